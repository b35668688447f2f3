package ws

import (
	"encoding/json"
	"sync"

	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
	"github.com/olivmath/stealth-battleship-sub001/internal/metrics"
)

// MessageHandler receives frames and connection lifecycle from the hub.
type MessageHandler interface {
	HandleConnect(publicKey, connID string)
	HandleDisconnect(publicKey, connID string)
	HandleMessage(publicKey, connID string, raw []byte)
}

// Hub maps identities to their live connection. One connection per
// identity: a reconnect replaces the previous socket, which is then
// closed.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	handler MessageHandler
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// SetHandler must be called before the first connection is accepted.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Send marshals an outbound event and queues it for the identity's
// connection. A full queue counts as undeliverable: a reader that slow
// will be dropped by its own write deadline soon enough.
func (h *Hub) Send(to, eventType string, payload map[string]any) bool {
	h.mu.RLock()
	client, ok := h.clients[to]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	frame, err := json.Marshal(map[string]any{"type": eventType, "payload": payload})
	if err != nil {
		logger.Error("marshal outbound event failed", "type", eventType, "error", err)
		return false
	}

	select {
	case client.Send <- frame:
		return true
	default:
		logger.Warn("send queue full, dropping event", "player", shortKey(to), "type", eventType)
		return false
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	prev := h.clients[c.PublicKey]
	h.clients[c.PublicKey] = c
	h.mu.Unlock()

	if prev != nil {
		prev.Conn.Close()
	}

	metrics.ConnectedClients.Inc()
	h.handler.HandleConnect(c.PublicKey, c.ConnID)
	logger.Info("client connected", "player", shortKey(c.PublicKey), "conn_id", c.ConnID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	// only the current connection may remove the mapping
	if cur, ok := h.clients[c.PublicKey]; ok && cur.ConnID == c.ConnID {
		delete(h.clients, c.PublicKey)
	}
	h.mu.Unlock()

	metrics.ConnectedClients.Dec()
	h.handler.HandleDisconnect(c.PublicKey, c.ConnID)
	logger.Info("client disconnected", "player", shortKey(c.PublicKey), "conn_id", c.ConnID)
}

func shortKey(publicKey string) string {
	if len(publicKey) > 8 {
		return publicKey[:8]
	}
	return publicKey
}
