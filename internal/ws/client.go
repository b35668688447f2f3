package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	// shot and placement proofs ride on these frames
	maxMessageSize = 512 * 1024
)

// Client is one websocket connection bound to a verified identity. A
// player who reconnects gets a new Client with a new ConnID; the hub
// keeps only the latest one per identity.
type Client struct {
	PublicKey string
	ConnID    string
	Conn      *websocket.Conn
	Send      chan []byte

	hub  *Hub
	done chan struct{}
}

func NewClient(publicKey, connID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		PublicKey: publicKey,
		ConnID:    connID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		hub:       hub,
		done:      make(chan struct{}),
	}
}

// Run registers the client and blocks until the connection drops.
func (c *Client) Run() {
	go c.writePump()
	c.hub.register(c)
	go c.readPump()
	<-c.done
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		close(c.done)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "player", c.PublicKey, "error", err)
			}
			return
		}
		c.hub.handler.HandleMessage(c.PublicKey, c.ConnID, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
