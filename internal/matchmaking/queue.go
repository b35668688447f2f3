package matchmaking

import (
	"errors"
	"sync"
	"time"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
	"github.com/olivmath/stealth-battleship-sub001/internal/session"
)

var (
	ErrCodeNotFound   = errors.New("match not found")
	ErrMatchStarted   = errors.New("match already started")
	ErrOwnMatch       = errors.New("cannot join your own match")
	ErrAlreadyInMatch = errors.New("already in an active match")
)

// Queue pairs waiting players by grid size (first fit) and handles the
// friend-code create/join path. All queue scans run under one coarse lock;
// the queue is tiny and single-owner by design.
type Queue struct {
	mu       sync.Mutex
	entries  []domain.QueueEntry
	registry *session.Registry
}

func NewQueue(registry *session.Registry) *Queue {
	return &Queue{registry: registry}
}

// Result of an open-queue request: either still searching or paired.
type Result struct {
	Queued bool
	Match  *domain.Match
}

// RequestMatch finds the first queued opponent with the same grid size, or
// enqueues the requester. Re-requesting while busy or already queued is
// idempotent and reports "still searching".
func (q *Queue) RequestMatch(publicKey, connID string, gridSize int) Result {
	if _, busy := q.registry.ByPlayer(publicKey); busy {
		return Result{Queued: true}
	}

	q.mu.Lock()
	for _, e := range q.entries {
		if e.PublicKey == publicKey {
			q.mu.Unlock()
			return Result{Queued: true}
		}
	}

	idx := -1
	for i, e := range q.entries {
		if e.GridSize == gridSize && e.PublicKey != publicKey {
			idx = i
			break
		}
	}

	if idx == -1 {
		q.entries = append(q.entries, domain.QueueEntry{
			PublicKey: publicKey,
			ConnID:    connID,
			GridSize:  gridSize,
			JoinedAt:  time.Now(),
		})
		q.mu.Unlock()
		logger.Debug("player queued", "player", shortKey(publicKey), "grid", gridSize)
		return Result{Queued: true}
	}

	opponent := q.entries[idx]
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	q.mu.Unlock()

	// the waiting player becomes player 1 and takes the first turn
	m := q.registry.CreatePaired(
		domain.Participant{PublicKey: opponent.PublicKey, ConnID: opponent.ConnID},
		domain.Participant{PublicKey: publicKey, ConnID: connID},
		gridSize,
	)
	logger.Info("players paired", "match", m.ID, "grid", gridSize)
	return Result{Match: m}
}

// Cancel removes the player's queue entry and reports whether one existed.
func (q *Queue) Cancel(publicKey string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.PublicKey == publicKey {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// CreateFriend creates a waiting match with a shareable 6-digit code.
func (q *Queue) CreateFriend(publicKey, connID string, gridSize int) (*domain.Match, string, error) {
	if _, busy := q.registry.ByPlayer(publicKey); busy {
		return nil, "", ErrAlreadyInMatch
	}
	m, code := q.registry.CreateFriend(domain.Participant{PublicKey: publicKey, ConnID: connID}, gridSize)
	logger.Info("friend match created", "match", m.ID, "code", code)
	return m, code, nil
}

// JoinFriend binds the joining player as player 2 and moves the match to
// placing. The code is invalidated the instant the join succeeds.
func (q *Queue) JoinFriend(code, publicKey, connID string) (*domain.Match, error) {
	if _, busy := q.registry.ByPlayer(publicKey); busy {
		return nil, ErrAlreadyInMatch
	}
	m, ok := q.registry.ByCode(code)
	if !ok {
		return nil, ErrCodeNotFound
	}

	m.Lock()
	if m.Status != domain.StatusWaiting {
		m.Unlock()
		return nil, ErrMatchStarted
	}
	if m.Player1.PublicKey == publicKey {
		m.Unlock()
		return nil, ErrOwnMatch
	}
	p2 := domain.Participant{PublicKey: publicKey, ConnID: connID}
	m.Player2 = &p2
	m.Status = domain.StatusPlacing
	m.Unlock()

	q.registry.BindSecondPlayer(m, p2, code)
	logger.Info("friend match joined", "match", m.ID)
	return m, nil
}

// Len reports how many players are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func shortKey(publicKey string) string {
	if len(publicKey) > 8 {
		return publicKey[:8]
	}
	return publicKey
}
