package matchmaking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
	"github.com/olivmath/stealth-battleship-sub001/internal/session"
)

func newQueue() (*Queue, *session.Registry) {
	reg := session.NewRegistry()
	return NewQueue(reg), reg
}

func TestFirstRequestQueues(t *testing.T) {
	q, _ := newQueue()
	res := q.RequestMatch("p1", "c1", 10)
	assert.True(t, res.Queued)
	assert.Nil(t, res.Match)
	assert.Equal(t, 1, q.Len())
}

func TestCompatibleRequestPairs(t *testing.T) {
	q, reg := newQueue()
	q.RequestMatch("p1", "c1", 10)
	res := q.RequestMatch("p2", "c2", 10)

	require.NotNil(t, res.Match)
	assert.False(t, res.Queued)
	assert.Equal(t, 0, q.Len())

	m := res.Match
	// the player who waited first is player 1
	assert.Equal(t, "p1", m.Player1.PublicKey)
	assert.Equal(t, "p2", m.Player2.PublicKey)
	assert.Equal(t, domain.StatusPlacing, m.Status)

	_, ok := reg.ByPlayer("p1")
	assert.True(t, ok)
}

func TestGridSizeMismatchDoesNotPair(t *testing.T) {
	q, _ := newQueue()
	q.RequestMatch("p1", "c1", 6)
	res := q.RequestMatch("p2", "c2", 10)

	assert.True(t, res.Queued)
	assert.Equal(t, 2, q.Len())
}

func TestFirstFitNotBestFit(t *testing.T) {
	q, _ := newQueue()
	q.RequestMatch("p1", "c1", 10)
	q.RequestMatch("p2", "c2", 10)
	// p1+p2 paired; queue empty again
	q.RequestMatch("p3", "c3", 10)
	q.RequestMatch("p4", "c4", 10)

	m, ok := q.registry.ByPlayer("p3")
	require.True(t, ok)
	assert.Equal(t, "p3", m.Player1.PublicKey)
	assert.Equal(t, "p4", m.Player2.PublicKey)
}

func TestRequestIsIdempotentWhileQueued(t *testing.T) {
	q, _ := newQueue()
	q.RequestMatch("p1", "c1", 10)
	res := q.RequestMatch("p1", "c1", 10)

	assert.True(t, res.Queued)
	assert.Equal(t, 1, q.Len(), "no duplicate entries")
}

func TestRequestWhileInActiveMatchStaysSearching(t *testing.T) {
	q, reg := newQueue()
	reg.CreatePaired(domain.Participant{PublicKey: "p1"}, domain.Participant{PublicKey: "p2"}, 10)

	res := q.RequestMatch("p1", "c1", 10)
	assert.True(t, res.Queued)
	assert.Equal(t, 0, q.Len())
}

func TestCancel(t *testing.T) {
	q, _ := newQueue()
	q.RequestMatch("p1", "c1", 10)

	assert.True(t, q.Cancel("p1"))
	assert.False(t, q.Cancel("p1"), "second cancel reports nothing removed")
	assert.Equal(t, 0, q.Len())
}

func TestFriendFlow(t *testing.T) {
	q, _ := newQueue()
	created, code, err := q.CreateFriend("p1", "c1", 10)
	require.NoError(t, err)
	require.NotNil(t, created)

	joined, err := q.JoinFriend(code, "p2", "c2")
	require.NoError(t, err)
	assert.Same(t, created, joined)
	assert.Equal(t, domain.StatusPlacing, joined.Status)
	assert.Equal(t, "p2", joined.Player2.PublicKey)

	// the code is single-use
	_, err = q.JoinFriend(code, "p3", "c3")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestJoinFriendErrors(t *testing.T) {
	q, _ := newQueue()

	_, err := q.JoinFriend("000000", "p2", "c2")
	assert.ErrorIs(t, err, ErrCodeNotFound)

	_, code, err := q.CreateFriend("p1", "c1", 10)
	require.NoError(t, err)

	_, err = q.JoinFriend(code, "p1", "c1b")
	assert.ErrorIs(t, err, ErrOwnMatch)
}

func TestJoinFriendWhileBusy(t *testing.T) {
	q, reg := newQueue()
	_, code, err := q.CreateFriend("p1", "c1", 10)
	require.NoError(t, err)

	// p2 is already bound to a live match
	active := reg.CreatePaired(domain.Participant{PublicKey: "p2"}, domain.Participant{PublicKey: "p3"}, 10)

	_, err = q.JoinFriend(code, "p2", "c2")
	assert.ErrorIs(t, err, ErrAlreadyInMatch)

	// the player index still routes to the original match
	m, ok := reg.ByPlayer("p2")
	require.True(t, ok)
	assert.Same(t, active, m)

	// the code survives for someone who is actually free
	joined, err := q.JoinFriend(code, "p4", "c4")
	require.NoError(t, err)
	assert.Equal(t, "p4", joined.Player2.PublicKey)
}

func TestCreateFriendWhileBusy(t *testing.T) {
	q, reg := newQueue()
	reg.CreatePaired(domain.Participant{PublicKey: "p1"}, domain.Participant{PublicKey: "p2"}, 10)

	_, _, err := q.CreateFriend("p1", "c1", 10)
	assert.ErrorIs(t, err, ErrAlreadyInMatch)
}
