package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

func TestCreatePairedIndexesBothPlayers(t *testing.T) {
	r := NewRegistry()
	m := r.CreatePaired(
		domain.Participant{PublicKey: "p1", ConnID: "c1"},
		domain.Participant{PublicKey: "p2", ConnID: "c2"},
		10,
	)

	assert.Equal(t, domain.StatusPlacing, m.Status)
	assert.Equal(t, []int{5, 4, 3, 3, 2}, m.ShipSizes)

	got, ok := r.ByPlayer("p1")
	require.True(t, ok)
	assert.Same(t, m, got)

	got, ok = r.ByPlayer("p2")
	require.True(t, ok)
	assert.Same(t, m, got)

	got, ok = r.Get(m.ID)
	require.True(t, ok)
	assert.Same(t, m, got)
}

func TestCreateFriendCodeRoundTrip(t *testing.T) {
	r := NewRegistry()
	m, code := r.CreateFriend(domain.Participant{PublicKey: "p1"}, 6)

	assert.Len(t, code, 6)
	assert.Equal(t, domain.StatusWaiting, m.Status)
	assert.Equal(t, []int{2, 2, 3}, m.ShipSizes)

	got, ok := r.ByCode(code)
	require.True(t, ok)
	assert.Same(t, m, got)
}

func TestBindSecondPlayerInvalidatesCode(t *testing.T) {
	r := NewRegistry()
	m, code := r.CreateFriend(domain.Participant{PublicKey: "p1"}, 10)

	r.BindSecondPlayer(m, domain.Participant{PublicKey: "p2"}, code)

	_, ok := r.ByCode(code)
	assert.False(t, ok, "code must be unusable after join")

	got, ok := r.ByPlayer("p2")
	require.True(t, ok)
	assert.Same(t, m, got)
}

func TestDestroyClearsAllIndices(t *testing.T) {
	r := NewRegistry()
	m, code := r.CreateFriend(domain.Participant{PublicKey: "p1"}, 10)
	r.BindSecondPlayer(m, domain.Participant{PublicKey: "p2"}, code)
	m.Player2 = &domain.Participant{PublicKey: "p2"}

	r.Destroy(m.ID)

	_, ok := r.Get(m.ID)
	assert.False(t, ok)
	_, ok = r.ByPlayer("p1")
	assert.False(t, ok)
	_, ok = r.ByPlayer("p2")
	assert.False(t, ok)

	// unknown id is a no-op, not a panic
	r.Destroy("nope")
}

func TestReleasePlayersKeepsMatch(t *testing.T) {
	r := NewRegistry()
	m := r.CreatePaired(domain.Participant{PublicKey: "p1"}, domain.Participant{PublicKey: "p2"}, 10)

	r.ReleasePlayers(m)

	_, ok := r.ByPlayer("p1")
	assert.False(t, ok)
	_, ok = r.Get(m.ID)
	assert.True(t, ok, "match object survives until sweep/destroy")
}

func TestSweepRemovesOnlyStaleTerminalStates(t *testing.T) {
	r := NewRegistry()

	stale, _ := r.CreateFriend(domain.Participant{PublicKey: "p1"}, 10)
	stale.CreatedAt = time.Now().Add(-time.Hour)

	active := r.CreatePaired(domain.Participant{PublicKey: "p3"}, domain.Participant{PublicKey: "p4"}, 10)
	active.CreatedAt = time.Now().Add(-time.Hour)
	active.Status = domain.StatusBattle

	removed := r.Sweep(5 * time.Minute)
	assert.Equal(t, 1, removed)

	_, ok := r.Get(stale.ID)
	assert.False(t, ok)
	_, ok = r.Get(active.ID)
	assert.True(t, ok, "battle in progress is never swept")
}
