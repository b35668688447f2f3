package service

import (
	"encoding/json"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

// Inbound action names. Every one of these must carry a valid signature
// over the raw payload bytes.
const (
	ActionRequestMatch   = "request_match"
	ActionCancelSearch   = "cancel_search"
	ActionCreateFriend   = "create_friend"
	ActionJoinFriend     = "join_friend"
	ActionPlacementReady = "placement_ready"
	ActionAttack         = "attack"
	ActionShotResult     = "shot_result"
	ActionForfeit        = "forfeit"
	ActionReveal         = "reveal"
)

// Matchmaking and generic outbound event names; battle and aggregate
// events are defined next to their state machines.
const (
	EvSearching       = "matchmaking:searching"
	EvSearchCancelled = "matchmaking:search_cancelled"
	EvMatched         = "matchmaking:matched"
	EvFriendCreated   = "matchmaking:friend_created"
	EvMatchState           = "match:state"
	EvOpponentDisconnected = "match:opponent_disconnected"
	EvOpponentReconnected  = "match:opponent_reconnected"
	EvMatchError           = "match:error"
)

// Envelope is the wire frame of every inbound message. Payload is kept
// raw: the client signs exactly the payload bytes it sends, so the server
// verifies against them untouched instead of re-canonicalizing.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Signature string          `json:"signature"`
	Payload   json.RawMessage `json:"payload"`
}

type RequestMatchPayload struct {
	GridSize int `json:"grid_size"`
}

type JoinFriendPayload struct {
	Code string `json:"code"`
}

type PlacementPayload struct {
	BoardHash string `json:"board_hash"`
	Proof     []byte `json:"proof"`
}

type AttackPayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type ShotResultPayload struct {
	Row          int               `json:"row"`
	Col          int               `json:"col"`
	Result       domain.ShotResult `json:"result"`
	Proof        []byte            `json:"proof"`
	SunkShipName string            `json:"sunk_ship_name,omitempty"`
	SunkShipSize int               `json:"sunk_ship_size,omitempty"`
}

// RevealPayload names the match explicitly: by the time reveals arrive
// the player index has already been released.
type RevealPayload struct {
	MatchID string        `json:"match_id"`
	Ships   []domain.Ship `json:"ships"`
	Nonce   string        `json:"nonce"`
}
