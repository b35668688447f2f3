package domain

import (
	"sync"
	"time"
)

// Match status lifecycle: waiting → placing → battle → finished.
// "waiting" only occurs for friend matches before the second player joins.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlacing  Status = "placing"
	StatusBattle   Status = "battle"
	StatusFinished Status = "finished"
)

// Reasons a match can end. Everything except all_ships_sunk is an
// adjudicated loss decided by protocol policy.
const (
	ReasonAllShipsSunk      = "all_ships_sunk"
	ReasonTimeout           = "timeout"
	ReasonDefenderTimeout   = "defender_timeout"
	ReasonInvalidProof      = "invalid_proof"
	ReasonForfeit           = "forfeit"
	ReasonDisconnectTimeout = "disconnect_timeout"
)

type ShotResult string

const (
	ShotHit  ShotResult = "hit"
	ShotMiss ShotResult = "miss"
)

// Participant binds a durable identity (hex ed25519 public key) to the
// current transport handle. The handle is replaced on reconnect.
type Participant struct {
	PublicKey string
	ConnID    string
}

// Cell addresses one board position.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Attack is one append-only entry of the battle log.
type Attack struct {
	Attacker   string     `json:"attacker"`
	Row        int        `json:"row"`
	Col        int        `json:"col"`
	Result     ShotResult `json:"result"`
	TurnNumber int        `json:"turn_number"`
	Timestamp  int64      `json:"timestamp"`
}

// Ship is a revealed ship placement: origin cell, size, orientation.
type Ship struct {
	Row        int  `json:"row"`
	Col        int  `json:"col"`
	Size       int  `json:"size"`
	Horizontal bool `json:"horizontal"`
}

// Reveal is a player's post-game disclosure of their full layout and the
// placement nonce behind their board hash.
type Reveal struct {
	Ships []Ship `json:"ships"`
	Nonce string `json:"nonce"`
}

// Match is the unit of one game between two players. All mutation goes
// through the embedded mutex; different matches never contend.
type Match struct {
	sync.Mutex

	ID       string
	Status   Status
	GridSize int
	JoinCode string

	Player1 Participant
	Player2 *Participant

	Player1BoardHash  string
	Player2BoardHash  string
	Player1BoardProof []byte
	Player2BoardProof []byte
	Player1Ready      bool
	Player2Ready      bool

	CurrentTurn string // public key of the turn holder
	TurnNumber  int
	Attacks     []Attack

	// Pending is the cell the turn holder attacked and the defender has
	// not yet answered with a proof.
	Pending *Cell

	Winner    string
	EndReason string
	ShipSizes []int
	CreatedAt time.Time

	TurnTimer     ArmedTimer
	DefenderTimer ArmedTimer
	GraceTimer    ArmedTimer

	Reveal1            *Reveal
	Reveal2            *Reveal
	AggregateTriggered bool
}

// ShipSizesFor returns the fleet composition for a grid size.
func ShipSizesFor(gridSize int) []int {
	if gridSize == 6 {
		return []int{2, 2, 3}
	}
	return []int{5, 4, 3, 3, 2} // 10x10 classic
}

// TotalShipCells is the number of hits required to sink the whole fleet.
func (m *Match) TotalShipCells() int {
	total := 0
	for _, s := range m.ShipSizes {
		total += s
	}
	return total
}

// IsParticipant reports whether the key belongs to one of the two players.
func (m *Match) IsParticipant(publicKey string) bool {
	if m.Player1.PublicKey == publicKey {
		return true
	}
	return m.Player2 != nil && m.Player2.PublicKey == publicKey
}

// OpponentOf returns the other participant, or nil when the match has no
// second player yet.
func (m *Match) OpponentOf(publicKey string) *Participant {
	if publicKey == m.Player1.PublicKey {
		return m.Player2
	}
	if m.Player2 != nil && m.Player2.PublicKey == publicKey {
		return &m.Player1
	}
	return nil
}

// ParticipantByKey returns the participant with the given identity.
func (m *Match) ParticipantByKey(publicKey string) *Participant {
	if m.Player1.PublicKey == publicKey {
		return &m.Player1
	}
	if m.Player2 != nil && m.Player2.PublicKey == publicKey {
		return m.Player2
	}
	return nil
}

// HasAttacked reports whether the attacker already shot at the cell.
func (m *Match) HasAttacked(attacker string, row, col int) bool {
	for _, a := range m.Attacks {
		if a.Attacker == attacker && a.Row == row && a.Col == col {
			return true
		}
	}
	return false
}

// HitsAgainst counts proof-confirmed hits landed on the defender.
func (m *Match) HitsAgainst(defender string) int {
	hits := 0
	for _, a := range m.Attacks {
		if a.Attacker != defender && a.Result == ShotHit {
			hits++
		}
	}
	return hits
}

// BoardHashOf returns the committed board fingerprint for the identity.
func (m *Match) BoardHashOf(publicKey string) string {
	if publicKey == m.Player1.PublicKey {
		return m.Player1BoardHash
	}
	return m.Player2BoardHash
}

// QueueEntry is one waiting player in the open matchmaking queue.
type QueueEntry struct {
	PublicKey string
	ConnID    string
	GridSize  int
	JoinedAt  time.Time
}
