package aggregate

import (
	"github.com/olivmath/stealth-battleship-sub001/internal/battle"
	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

// Outbound reveal/aggregate event names.
const (
	EvRevealAccepted  = "aggregate:reveal_accepted"
	EvTurnsProofReady = "aggregate:turns_proof_ready"
	EvRevealError     = "aggregate:error"
)

// Aggregator collects post-game reveals and assembles the turns-proof
// input. Like the battle engine it is pure: the caller holds the match
// lock and runs the actual proof generation off the lock.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// SubmitReveal stores one player's full-board disclosure. When the second
// slot fills, the returned input is non-nil and the match is marked so a
// late resubmission can never trigger generation twice.
func (a *Aggregator) SubmitReveal(m *domain.Match, playerKey string, reveal domain.Reveal) (battle.Outcome, *TurnsInput) {
	var o battle.Outcome

	if m.Status != domain.StatusFinished {
		return rejectReveal(playerKey, "match not finished"), nil
	}
	if !m.IsParticipant(playerKey) {
		return rejectReveal(playerKey, "not a participant"), nil
	}
	if !fleetMatches(reveal.Ships, m.ShipSizes) {
		return rejectReveal(playerKey, "reveal does not match fleet composition"), nil
	}

	slot := &m.Reveal1
	if m.Player2 != nil && playerKey == m.Player2.PublicKey {
		slot = &m.Reveal2
	}
	if *slot != nil {
		// duplicate reveals are acknowledged, never re-processed
		o.Events = append(o.Events, battle.Event{To: playerKey, Type: EvRevealAccepted, Payload: map[string]any{"duplicate": true}})
		return o, nil
	}
	*slot = &reveal

	o.Events = append(o.Events, battle.Event{To: playerKey, Type: EvRevealAccepted, Payload: map[string]any{}})

	if m.Reveal1 == nil || m.Reveal2 == nil || m.AggregateTriggered {
		return o, nil
	}
	m.AggregateTriggered = true

	input := BuildInput(m)
	return o, &input
}

// BuildInput partitions the attack log per attacker and derives the
// winner indicator against the fixed player ordering.
func BuildInput(m *domain.Match) TurnsInput {
	input := TurnsInput{
		MatchID:      m.ID,
		GridSize:     m.GridSize,
		ShipSizes:    m.ShipSizes,
		Player1Hash:  m.Player1BoardHash,
		Player2Hash:  m.Player2BoardHash,
		Player1Nonce: m.Reveal1.Nonce,
		Player2Nonce: m.Reveal2.Nonce,
		Player1Ships: m.Reveal1.Ships,
		Player2Ships: m.Reveal2.Ships,
	}

	for _, atk := range m.Attacks {
		if atk.Attacker == m.Player1.PublicKey {
			input.Player1Attacks = append(input.Player1Attacks, atk)
		} else {
			input.Player2Attacks = append(input.Player2Attacks, atk)
		}
	}

	if m.Winner != m.Player1.PublicKey {
		input.WinnerIndicator = 1
	}
	return input
}

func fleetMatches(ships []domain.Ship, sizes []int) bool {
	if len(ships) != len(sizes) {
		return false
	}
	remaining := make(map[int]int, len(sizes))
	for _, s := range sizes {
		remaining[s]++
	}
	for _, ship := range ships {
		if remaining[ship.Size] == 0 {
			return false
		}
		remaining[ship.Size]--
	}
	return true
}

func rejectReveal(to, message string) battle.Outcome {
	var o battle.Outcome
	o.Events = append(o.Events, battle.Event{To: to, Type: EvRevealError, Payload: map[string]any{"message": message}})
	return o
}
