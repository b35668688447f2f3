package battle

import (
	"time"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

// Config is the battle timing configuration; both timeouts come from the
// environment, never hardcoded call sites.
type Config struct {
	TurnTimeout     time.Duration
	DefenderTimeout time.Duration
}

// Engine is the battle state machine. Every method expects the caller to
// hold the match lock and performs no I/O: verification verdicts come in
// as arguments, side effects go out as an effects list. That keeps each
// transition deterministic and unit-testable.
type Engine struct {
	cfg Config
	now func() time.Time
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// NewEngineWithClock injects a clock for deadline assertions in tests.
func NewEngineWithClock(cfg Config, now func() time.Time) *Engine {
	return &Engine{cfg: cfg, now: now}
}

// SubmitPlacement stores a proof-verified board commitment. proofValid is
// the gate's verdict; an invalid placement proof is only a rejection —
// the player may retry, nothing was at stake yet.
func (e *Engine) SubmitPlacement(m *domain.Match, playerKey, boardHash string, proof []byte, proofValid bool) Outcome {
	if m.Status != domain.StatusPlacing {
		return reject(playerKey, EvPlacementError, "invalid match or phase")
	}
	if !m.IsParticipant(playerKey) {
		return reject(playerKey, EvPlacementError, "not a participant")
	}
	if !proofValid {
		return reject(playerKey, EvPlacementError, "invalid placement proof")
	}

	// commitments are immutable once accepted
	if playerKey == m.Player1.PublicKey {
		if m.Player1Ready {
			return reject(playerKey, EvPlacementError, "placement already submitted")
		}
		m.Player1BoardHash = boardHash
		m.Player1BoardProof = proof
		m.Player1Ready = true
	} else {
		if m.Player2Ready {
			return reject(playerKey, EvPlacementError, "placement already submitted")
		}
		m.Player2BoardHash = boardHash
		m.Player2BoardProof = proof
		m.Player2Ready = true
	}

	var o Outcome
	if opp := m.OpponentOf(playerKey); opp != nil {
		o.emit(opp.PublicKey, EvOpponentReady, map[string]any{})
	}

	if m.Player1Ready && m.Player2Ready {
		m.Status = domain.StatusBattle
		m.TurnNumber = 1
		m.CurrentTurn = m.Player1.PublicKey // player 1 always goes first

		o.emitBoth(m, EvBothReady, map[string]any{"first_turn": m.CurrentTurn})
		e.startTurn(m, &o)
		o.effect(Effect{Kind: EffectAnchorOpen})
	}
	return o
}

// SubmitAttack validates and forwards the turn holder's shot. The attack
// is not logged yet: it only becomes ground truth once the defender
// answers with a verified proof.
func (e *Engine) SubmitAttack(m *domain.Match, attackerKey string, row, col int) Outcome {
	if m.Status != domain.StatusBattle {
		return reject(attackerKey, EvBattleError, "invalid match or phase")
	}
	if !m.IsParticipant(attackerKey) {
		return reject(attackerKey, EvBattleError, "not a participant")
	}
	if m.CurrentTurn != attackerKey {
		return reject(attackerKey, EvBattleError, "not your turn")
	}
	if row < 0 || row >= m.GridSize || col < 0 || col >= m.GridSize {
		return reject(attackerKey, EvBattleError, "invalid coordinates")
	}
	if m.Pending != nil {
		return reject(attackerKey, EvBattleError, "attack already in flight")
	}
	if m.HasAttacked(attackerKey, row, col) {
		return reject(attackerKey, EvBattleError, "cell already attacked")
	}

	m.Pending = &domain.Cell{Row: row, Col: col}

	var o Outcome
	o.effect(Effect{Kind: EffectCancelTurnTimer})
	o.emit(m.OpponentOf(attackerKey).PublicKey, EvIncomingAttack, map[string]any{
		"row":         row,
		"col":         col,
		"turn_number": m.TurnNumber,
	})
	o.effect(Effect{Kind: EffectArmDefenderTimer})
	return o
}

// ShotReply is the defender's answer to the pending attack.
type ShotReply struct {
	Row          int
	Col          int
	Result       domain.ShotResult
	SunkShipName string
	SunkShipSize int
}

// SubmitShotResult applies the proof gate's verdict on the defender's
// claimed result. An invalid proof is evidence the defender misreports
// their own board: the defender instantly loses, whatever they claimed.
func (e *Engine) SubmitShotResult(m *domain.Match, defenderKey string, reply ShotReply, proofValid bool) Outcome {
	if m.Status != domain.StatusBattle {
		return reject(defenderKey, EvBattleError, "invalid match or phase")
	}
	if !m.IsParticipant(defenderKey) {
		return reject(defenderKey, EvBattleError, "not a participant")
	}
	if m.CurrentTurn == defenderKey {
		return reject(defenderKey, EvBattleError, "not the defender")
	}
	if m.Pending == nil || m.Pending.Row != reply.Row || m.Pending.Col != reply.Col {
		return reject(defenderKey, EvBattleError, "no matching attack pending")
	}
	if reply.Result != domain.ShotHit && reply.Result != domain.ShotMiss {
		return reject(defenderKey, EvBattleError, "invalid result")
	}

	var o Outcome
	o.effect(Effect{Kind: EffectCancelDefenderTimer})

	attackerKey := m.CurrentTurn
	if !proofValid {
		e.endMatch(m, attackerKey, domain.ReasonInvalidProof, &o)
		o.effect(Effect{Kind: EffectAlertInvalidProof, Player: defenderKey})
		return o
	}

	attack := domain.Attack{
		Attacker:   attackerKey,
		Row:        reply.Row,
		Col:        reply.Col,
		Result:     reply.Result,
		TurnNumber: m.TurnNumber,
		Timestamp:  e.now().UnixMilli(),
	}
	m.Attacks = append(m.Attacks, attack)
	m.Pending = nil
	o.effect(Effect{Kind: EffectPersistAttack, Attack: &attack})

	payload := map[string]any{
		"row":         reply.Row,
		"col":         reply.Col,
		"result":      reply.Result,
		"turn_number": m.TurnNumber,
	}
	if reply.SunkShipName != "" {
		payload["sunk_ship_name"] = reply.SunkShipName
		payload["sunk_ship_size"] = reply.SunkShipSize
	}
	o.emit(attackerKey, EvResultConfirmed, payload)

	// Win condition folds the proof-backed hit log against the fleet's
	// total cell count. The server never sees layouts, so the attacker's
	// own fleet bookkeeping (via sunk reports) is trusted only indirectly
	// through the defender's proven hit/miss sequence.
	if m.HitsAgainst(defenderKey) >= m.TotalShipCells() {
		e.endMatch(m, attackerKey, domain.ReasonAllShipsSunk, &o)
		return o
	}

	m.TurnNumber++
	m.CurrentTurn = defenderKey
	e.startTurn(m, &o)
	return o
}

// Forfeit resolves the match for the opponent. Forfeiting with no second
// player present is a silent no-op.
func (e *Engine) Forfeit(m *domain.Match, playerKey string) Outcome {
	var o Outcome
	if m.Status == domain.StatusFinished || !m.IsParticipant(playerKey) {
		return o
	}
	opp := m.OpponentOf(playerKey)
	if opp == nil {
		return o
	}
	e.endMatch(m, opp.PublicKey, domain.ReasonForfeit, &o)
	return o
}

// TurnTimeout adjudicates a turn timer that fired while its holder never
// attacked. Stale fires are filtered by the caller via the timer
// generation; the phase check here is the second guard.
func (e *Engine) TurnTimeout(m *domain.Match) Outcome {
	var o Outcome
	if m.Status != domain.StatusBattle {
		return o
	}
	winner := m.OpponentOf(m.CurrentTurn)
	if winner == nil {
		return o
	}
	e.endMatch(m, winner.PublicKey, domain.ReasonTimeout, &o)
	return o
}

// DefenderTimeout adjudicates a defender-response timer: the attacker
// wins.
func (e *Engine) DefenderTimeout(m *domain.Match) Outcome {
	var o Outcome
	if m.Status != domain.StatusBattle {
		return o
	}
	e.endMatch(m, m.CurrentTurn, domain.ReasonDefenderTimeout, &o)
	return o
}

// DisconnectTimeout adjudicates an expired reconnect grace period.
func (e *Engine) DisconnectTimeout(m *domain.Match, absentKey string) Outcome {
	var o Outcome
	if m.Status != domain.StatusBattle {
		return o
	}
	winner := m.OpponentOf(absentKey)
	if winner == nil {
		return o
	}
	e.endMatch(m, winner.PublicKey, domain.ReasonDisconnectTimeout, &o)
	return o
}

func (e *Engine) startTurn(m *domain.Match, o *Outcome) {
	deadline := e.now().Add(e.cfg.TurnTimeout).UnixMilli()
	o.emitBoth(m, EvTurnStart, map[string]any{
		"current_turn": m.CurrentTurn,
		"turn_number":  m.TurnNumber,
		"deadline":     deadline,
	})
	o.effect(Effect{Kind: EffectArmTurnTimer})
}

func (e *Engine) endMatch(m *domain.Match, winnerKey, reason string, o *Outcome) {
	m.Status = domain.StatusFinished
	m.Winner = winnerKey
	m.EndReason = reason
	m.Pending = nil

	o.Ended = true
	o.effect(Effect{Kind: EffectCancelAllTimers})
	o.emitBoth(m, EvGameOver, map[string]any{
		"winner":      winnerKey,
		"reason":      reason,
		"turn_number": m.TurnNumber,
	})

	loser := ""
	if opp := m.OpponentOf(winnerKey); opp != nil {
		loser = opp.PublicKey
	}
	o.effect(Effect{Kind: EffectPersistMatchEnded})
	o.effect(Effect{Kind: EffectPersistOutcome, Player: winnerKey, Won: true})
	if loser != "" {
		o.effect(Effect{Kind: EffectPersistOutcome, Player: loser, Won: false})
	}
	o.effect(Effect{Kind: EffectAnchorClose})
}
