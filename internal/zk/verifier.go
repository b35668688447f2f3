package zk

import "context"

// Circuit names the proof system a payload must verify against.
type Circuit string

const (
	CircuitBoardValidity Circuit = "board_validity"
	CircuitShotProof     Circuit = "shot_proof"
	CircuitTurnsProof    Circuit = "turns_proof"
)

// ProofVerifier checks an opaque proof against ordered public inputs.
// Inputs are decimal or 0x-hex field elements. Implementations never see
// private witness data.
type ProofVerifier interface {
	Verify(ctx context.Context, circuit Circuit, proof []byte, publicInputs []string) (bool, error)
}
