package battle

import "github.com/olivmath/stealth-battleship-sub001/internal/domain"

// Outbound event names. These are the wire-level message types the
// transport layer forwards verbatim.
const (
	EvOpponentReady   = "placement:opponent_ready"
	EvBothReady       = "placement:both_ready"
	EvPlacementError  = "placement:error"
	EvTurnStart       = "battle:turn_start"
	EvIncomingAttack  = "battle:incoming_attack"
	EvResultConfirmed = "battle:result_confirmed"
	EvGameOver        = "battle:game_over"
	EvBattleError     = "battle:error"
)

// Event is one outbound message addressed to a single participant.
type Event struct {
	To      string // recipient public key
	Type    string
	Payload map[string]any
}

// EffectKind tags the side effects a transition asks its caller to run.
// Timer effects must execute under the match lock (cancel-then-arm is
// atomic on the match's owner); everything else is fire-and-forget after
// the transition commits.
type EffectKind string

const (
	EffectCancelTurnTimer     EffectKind = "cancel_turn_timer"
	EffectCancelDefenderTimer EffectKind = "cancel_defender_timer"
	EffectCancelAllTimers     EffectKind = "cancel_all_timers"
	EffectArmTurnTimer        EffectKind = "arm_turn_timer"
	EffectArmDefenderTimer    EffectKind = "arm_defender_timer"

	EffectPersistAttack     EffectKind = "persist_attack"
	EffectPersistMatchEnded EffectKind = "persist_match_ended"
	EffectPersistOutcome    EffectKind = "persist_outcome"
	EffectAnchorOpen        EffectKind = "anchor_open"
	EffectAnchorClose       EffectKind = "anchor_close"
	EffectAlertInvalidProof EffectKind = "alert_invalid_proof"
)

// Effect carries the data a given kind needs; unused fields stay zero.
type Effect struct {
	Kind   EffectKind
	Attack *domain.Attack
	Player string // persist_outcome subject
	Won    bool
}

// Outcome is what a transition produced: messages to deliver and side
// effects to dispatch. A rejection is an Outcome with a single error
// event to the sender and no effects.
type Outcome struct {
	Events  []Event
	Effects []Effect
	// Ended is set when this transition finished the match, so the caller
	// can release the player index.
	Ended bool
}

func (o *Outcome) emit(to, eventType string, payload map[string]any) {
	o.Events = append(o.Events, Event{To: to, Type: eventType, Payload: payload})
}

func (o *Outcome) effect(e Effect) {
	o.Effects = append(o.Effects, e)
}

// emitBoth addresses the same payload to both participants.
func (o *Outcome) emitBoth(m *domain.Match, eventType string, payload map[string]any) {
	o.emit(m.Player1.PublicKey, eventType, payload)
	if m.Player2 != nil {
		o.emit(m.Player2.PublicKey, eventType, payload)
	}
}

func reject(to, eventType, message string) Outcome {
	var o Outcome
	o.emit(to, eventType, map[string]any{"message": message})
	return o
}
