package zk

import (
	"context"
	"strconv"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

// Gate builds the public inputs for each transition's proof and asks the
// verifier for a verdict. It is stateless: policy on what a verdict means
// (placement retry vs instant loss) lives with the state machine.
type Gate struct {
	verifier ProofVerifier
}

func NewGate(verifier ProofVerifier) *Gate {
	return &Gate{verifier: verifier}
}

// VerifyPlacement checks a board_validity proof against the claimed board
// fingerprint and the fleet composition for the match's grid size.
// Public inputs: [boardHash, shipSize...].
func (g *Gate) VerifyPlacement(ctx context.Context, m *domain.Match, claimedHash string, proof []byte) (bool, error) {
	publicInputs := make([]string, 0, 1+len(m.ShipSizes))
	publicInputs = append(publicInputs, claimedHash)
	for _, size := range m.ShipSizes {
		publicInputs = append(publicInputs, strconv.Itoa(size))
	}
	return g.verifier.Verify(ctx, CircuitBoardValidity, proof, publicInputs)
}

// VerifyShot checks a shot_proof against the defender's committed board
// fingerprint, the attacked cell and the claimed hit bit. The caller
// snapshots the fingerprint under the match lock and passes it in.
// Public inputs: [boardHash, row, col, isHit].
func (g *Gate) VerifyShot(ctx context.Context, boardHash string, row, col int, result domain.ShotResult, proof []byte) (bool, error) {
	isHit := "0"
	if result == domain.ShotHit {
		isHit = "1"
	}
	publicInputs := []string{
		boardHash,
		strconv.Itoa(row),
		strconv.Itoa(col),
		isHit,
	}
	return g.verifier.Verify(ctx, CircuitShotProof, proof, publicInputs)
}
