package zk

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
)

// GnarkVerifier verifies groth16 proofs over BN254 using verifying keys
// loaded from disk, one "<circuit>.vk" file per circuit.
type GnarkVerifier struct {
	keys map[Circuit]groth16.VerifyingKey
}

// NewGnarkVerifier loads the verifying keys for all known circuits from
// keysDir. A missing key file is an error: serving a circuit we cannot
// verify would silently void the protocol's guarantees.
func NewGnarkVerifier(keysDir string) (*GnarkVerifier, error) {
	keys := make(map[Circuit]groth16.VerifyingKey)

	for _, circuit := range []Circuit{CircuitBoardValidity, CircuitShotProof, CircuitTurnsProof} {
		path := filepath.Join(keysDir, string(circuit)+".vk")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read verifying key for %s: %w", circuit, err)
		}

		vk := groth16.NewVerifyingKey(ecc.BN254)
		if _, err := vk.ReadFrom(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parse verifying key for %s: %w", circuit, err)
		}
		keys[circuit] = vk
	}

	return &GnarkVerifier{keys: keys}, nil
}

// Verify parses the proof and the public inputs and runs groth16
// verification. A failed pairing check returns (false, nil); only
// malformed input is an error.
func (v *GnarkVerifier) Verify(ctx context.Context, circuit Circuit, proof []byte, publicInputs []string) (bool, error) {
	vk, ok := v.keys[circuit]
	if !ok {
		return false, fmt.Errorf("unknown circuit %q", circuit)
	}

	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return false, fmt.Errorf("parse proof: %w", err)
	}

	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return false, fmt.Errorf("new witness: %w", err)
	}

	values := make(chan any, len(publicInputs))
	for _, in := range publicInputs {
		fe, err := parseFieldElement(in)
		if err != nil {
			return false, err
		}
		values <- fe
	}
	close(values)

	if err := w.Fill(len(publicInputs), 0, values); err != nil {
		return false, fmt.Errorf("fill public witness: %w", err)
	}

	if err := groth16.Verify(p, vk, w); err != nil {
		// verification failure is a verdict, not an infrastructure error
		return false, nil
	}
	return true, nil
}

func parseFieldElement(s string) (*big.Int, error) {
	var n *big.Int
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok = new(big.Int).SetString(s[2:], 16)
	} else {
		n, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid field element %q", s)
	}
	return n, nil
}
