package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

// TurnsInput is the full game transcript handed to the aggregate prover:
// both reveals plus the attack log partitioned per attacker, in the fixed
// player ordering. The winner indicator is 0 when player 1 won.
type TurnsInput struct {
	MatchID   string    `json:"match_id"`
	GridSize  int       `json:"grid_size"`
	ShipSizes []int     `json:"ship_sizes"`

	Player1Hash  string        `json:"player1_hash"`
	Player2Hash  string        `json:"player2_hash"`
	Player1Nonce string        `json:"player1_nonce"`
	Player2Nonce string        `json:"player2_nonce"`
	Player1Ships []domain.Ship `json:"player1_ships"`
	Player2Ships []domain.Ship `json:"player2_ships"`

	Player1Attacks []domain.Attack `json:"player1_attacks"`
	Player2Attacks []domain.Attack `json:"player2_attacks"`

	WinnerIndicator int `json:"winner"` // 0 = player1, 1 = player2
}

// Prover generates the post-game turns proof from a full transcript.
type Prover interface {
	GenerateTurnsProof(ctx context.Context, input TurnsInput) ([]byte, error)
}

// HTTPProver calls an external proving service. Proof generation is slow
// (seconds to minutes for the turns circuit), so the client timeout is
// generous and callers should run this off the hot path.
type HTTPProver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProver(baseURL string) *HTTPProver {
	return &HTTPProver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *HTTPProver) GenerateTurnsProof(ctx context.Context, input TurnsInput) ([]byte, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal turns input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/prove/turns", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call prover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prover returned status %d", resp.StatusCode)
	}

	proof, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read prover response: %w", err)
	}
	return proof, nil
}
