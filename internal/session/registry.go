package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
)

// Registry owns the in-memory match state: match id → match, plus the
// player and join-code reverse indices. Index maintenance is the only
// thing guarded by the registry lock; per-match mutation uses the match's
// own mutex.
type Registry struct {
	mu            sync.RWMutex
	matches       map[string]*domain.Match
	playerToMatch map[string]string
	codeToMatch   map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		matches:       make(map[string]*domain.Match),
		playerToMatch: make(map[string]string),
		codeToMatch:   make(map[string]string),
	}
}

// CreatePaired creates a match in placing state with both players bound.
func (r *Registry) CreatePaired(p1, p2 domain.Participant, gridSize int) *domain.Match {
	m := newMatch(gridSize)
	m.Status = domain.StatusPlacing
	m.Player1 = p1
	m.Player2 = &p2

	r.mu.Lock()
	r.matches[m.ID] = m
	r.playerToMatch[p1.PublicKey] = m.ID
	r.playerToMatch[p2.PublicKey] = m.ID
	r.mu.Unlock()

	return m
}

// CreateFriend creates a waiting match owned by p1 and indexes a fresh
// 6-digit join code for it.
func (r *Registry) CreateFriend(p1 domain.Participant, gridSize int) (*domain.Match, string) {
	m := newMatch(gridSize)
	m.Status = domain.StatusWaiting
	m.Player1 = p1

	r.mu.Lock()
	code := r.generateCodeLocked()
	m.JoinCode = code
	r.matches[m.ID] = m
	r.playerToMatch[p1.PublicKey] = m.ID
	r.codeToMatch[code] = m.ID
	r.mu.Unlock()

	return m, code
}

// ByCode resolves a join code to its match.
func (r *Registry) ByCode(code string) (*domain.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codeToMatch[code]
	if !ok {
		return nil, false
	}
	m, ok := r.matches[id]
	return m, ok
}

// Get resolves a match id.
func (r *Registry) Get(id string) (*domain.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	return m, ok
}

// ByPlayer resolves a player identity to their active match.
func (r *Registry) ByPlayer(publicKey string) (*domain.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.playerToMatch[publicKey]
	if !ok {
		return nil, false
	}
	m, ok := r.matches[id]
	return m, ok
}

// BindSecondPlayer indexes p2 into the match and invalidates the join
// code. The caller transitions the match itself under the match lock.
func (r *Registry) BindSecondPlayer(m *domain.Match, p2 domain.Participant, code string) {
	r.mu.Lock()
	r.playerToMatch[p2.PublicKey] = m.ID
	delete(r.codeToMatch, code)
	r.mu.Unlock()
}

// ReleasePlayers drops the player index entries so both participants can
// start new matches. The match object stays until Destroy.
func (r *Registry) ReleasePlayers(m *domain.Match) {
	r.mu.Lock()
	delete(r.playerToMatch, m.Player1.PublicKey)
	if m.Player2 != nil {
		delete(r.playerToMatch, m.Player2.PublicKey)
	}
	r.mu.Unlock()
}

// Destroy removes a match and all its index entries and cancels any
// pending timers. Destroying an unknown id is a no-op.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	m, ok := r.matches[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.matches, id)
	if r.playerToMatch[m.Player1.PublicKey] == id {
		delete(r.playerToMatch, m.Player1.PublicKey)
	}
	if m.Player2 != nil && r.playerToMatch[m.Player2.PublicKey] == id {
		delete(r.playerToMatch, m.Player2.PublicKey)
	}
	if m.JoinCode != "" {
		delete(r.codeToMatch, m.JoinCode)
	}
	r.mu.Unlock()

	m.Lock()
	m.TurnTimer.Cancel()
	m.DefenderTimer.Cancel()
	m.GraceTimer.Cancel()
	m.Unlock()
}

// Sweep removes waiting and finished matches older than maxAge. Returns
// how many were removed.
func (r *Registry) Sweep(maxAge time.Duration) int {
	r.mu.RLock()
	var stale []string
	now := time.Now()
	for id, m := range r.matches {
		m.Lock()
		old := now.Sub(m.CreatedAt) > maxAge &&
			(m.Status == domain.StatusWaiting || m.Status == domain.StatusFinished)
		m.Unlock()
		if old {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.Destroy(id)
	}
	if len(stale) > 0 {
		logger.Info("swept stale matches", "count", len(stale))
	}
	return len(stale)
}

// Count returns the number of live matches.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

func newMatch(gridSize int) *domain.Match {
	return &domain.Match{
		ID:        uuid.NewString(),
		GridSize:  gridSize,
		ShipSizes: domain.ShipSizesFor(gridSize),
		CreatedAt: time.Now(),
	}
}

// generateCodeLocked picks a 6-digit code not currently indexed. Caller
// holds the write lock.
func (r *Registry) generateCodeLocked() string {
	for i := 0; i < 10; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(900_000))
		code := fmt.Sprintf("%06d", n.Int64()+100_000)
		if _, taken := r.codeToMatch[code]; !taken {
			return code
		}
	}
	// practically unreachable with <900k live codes
	return uuid.NewString()[:6]
}
