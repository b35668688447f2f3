package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

func finishedMatch() *domain.Match {
	return &domain.Match{
		ID:               "m1",
		Status:           domain.StatusFinished,
		GridSize:         6,
		ShipSizes:        domain.ShipSizesFor(6),
		Player1:          domain.Participant{PublicKey: "p1"},
		Player2:          &domain.Participant{PublicKey: "p2"},
		Player1BoardHash: "0xaaa",
		Player2BoardHash: "0xbbb",
		Winner:           "p2",
		EndReason:        domain.ReasonAllShipsSunk,
		Attacks: []domain.Attack{
			{Attacker: "p1", Row: 0, Col: 0, Result: domain.ShotMiss, TurnNumber: 1},
			{Attacker: "p2", Row: 1, Col: 1, Result: domain.ShotHit, TurnNumber: 2},
			{Attacker: "p1", Row: 2, Col: 2, Result: domain.ShotHit, TurnNumber: 3},
		},
	}
}

func validReveal(nonce string) domain.Reveal {
	return domain.Reveal{
		Nonce: nonce,
		Ships: []domain.Ship{
			{Row: 0, Col: 0, Size: 2, Horizontal: true},
			{Row: 2, Col: 0, Size: 2, Horizontal: true},
			{Row: 4, Col: 0, Size: 3, Horizontal: true},
		},
	}
}

func TestRevealBeforeFinishRejected(t *testing.T) {
	a := NewAggregator()
	m := finishedMatch()
	m.Status = domain.StatusBattle

	o, input := a.SubmitReveal(m, "p1", validReveal("n1"))
	require.Len(t, o.Events, 1)
	assert.Equal(t, EvRevealError, o.Events[0].Type)
	assert.Nil(t, input)
	assert.Nil(t, m.Reveal1)
}

func TestRevealFromStrangerRejected(t *testing.T) {
	a := NewAggregator()
	m := finishedMatch()

	o, input := a.SubmitReveal(m, "p3", validReveal("n1"))
	require.Len(t, o.Events, 1)
	assert.Equal(t, EvRevealError, o.Events[0].Type)
	assert.Nil(t, input)
}

func TestRevealWithWrongFleetRejected(t *testing.T) {
	a := NewAggregator()
	m := finishedMatch()
	bad := validReveal("n1")
	bad.Ships = bad.Ships[:2]

	o, input := a.SubmitReveal(m, "p1", bad)
	assert.Equal(t, EvRevealError, o.Events[0].Type)
	assert.Nil(t, input)

	bad = validReveal("n1")
	bad.Ships[0].Size = 5
	o, input = a.SubmitReveal(m, "p1", bad)
	assert.Equal(t, EvRevealError, o.Events[0].Type)
	assert.Nil(t, input)
}

func TestFirstRevealStoresWithoutTrigger(t *testing.T) {
	a := NewAggregator()
	m := finishedMatch()

	o, input := a.SubmitReveal(m, "p1", validReveal("n1"))
	require.Len(t, o.Events, 1)
	assert.Equal(t, EvRevealAccepted, o.Events[0].Type)
	assert.Nil(t, input)
	require.NotNil(t, m.Reveal1)
	assert.False(t, m.AggregateTriggered)
}

func TestSecondRevealTriggersExactlyOnce(t *testing.T) {
	a := NewAggregator()
	m := finishedMatch()

	a.SubmitReveal(m, "p1", validReveal("n1"))
	o, input := a.SubmitReveal(m, "p2", validReveal("n2"))

	require.NotNil(t, input)
	assert.Equal(t, EvRevealAccepted, o.Events[0].Type)
	assert.True(t, m.AggregateTriggered)

	// late resubmission is acknowledged but never re-triggers
	o, again := a.SubmitReveal(m, "p2", validReveal("n2"))
	assert.Nil(t, again)
	require.Len(t, o.Events, 1)
	assert.Equal(t, EvRevealAccepted, o.Events[0].Type)
	assert.Equal(t, true, o.Events[0].Payload["duplicate"])
}

func TestBuildInputPartitionsTranscript(t *testing.T) {
	a := NewAggregator()
	m := finishedMatch()
	a.SubmitReveal(m, "p1", validReveal("n1"))
	_, input := a.SubmitReveal(m, "p2", validReveal("n2"))
	require.NotNil(t, input)

	assert.Equal(t, "m1", input.MatchID)
	assert.Equal(t, "0xaaa", input.Player1Hash)
	assert.Equal(t, "n1", input.Player1Nonce)
	assert.Equal(t, "n2", input.Player2Nonce)

	require.Len(t, input.Player1Attacks, 2)
	require.Len(t, input.Player2Attacks, 1)
	assert.Equal(t, 1, input.Player1Attacks[0].TurnNumber)
	assert.Equal(t, 3, input.Player1Attacks[1].TurnNumber)
	assert.Equal(t, 2, input.Player2Attacks[0].TurnNumber)

	assert.Equal(t, 1, input.WinnerIndicator, "player 2 won")
}

func TestWinnerIndicatorZeroForPlayerOne(t *testing.T) {
	a := NewAggregator()
	m := finishedMatch()
	m.Winner = "p1"

	a.SubmitReveal(m, "p1", validReveal("n1"))
	_, input := a.SubmitReveal(m, "p2", validReveal("n2"))
	require.NotNil(t, input)
	assert.Equal(t, 0, input.WinnerIndicator)
}
