package zk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

type recordingVerifier struct {
	circuit Circuit
	proof   []byte
	inputs  []string
	verdict bool
	err     error
}

func (r *recordingVerifier) Verify(_ context.Context, circuit Circuit, proof []byte, publicInputs []string) (bool, error) {
	r.circuit = circuit
	r.proof = proof
	r.inputs = publicInputs
	return r.verdict, r.err
}

func testMatch() *domain.Match {
	return &domain.Match{
		ID:               "m1",
		GridSize:         10,
		ShipSizes:        domain.ShipSizesFor(10),
		Player1:          domain.Participant{PublicKey: "p1"},
		Player2:          &domain.Participant{PublicKey: "p2"},
		Player1BoardHash: "0xaaa",
		Player2BoardHash: "0xbbb",
	}
}

func TestVerifyPlacementPublicInputs(t *testing.T) {
	rec := &recordingVerifier{verdict: true}
	gate := NewGate(rec)

	ok, err := gate.VerifyPlacement(context.Background(), testMatch(), "0xcafe", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, CircuitBoardValidity, rec.circuit)
	assert.Equal(t, []string{"0xcafe", "5", "4", "3", "3", "2"}, rec.inputs)
	assert.Equal(t, []byte{1, 2, 3}, rec.proof)
}

func TestVerifyPlacementSmallGrid(t *testing.T) {
	rec := &recordingVerifier{verdict: true}
	gate := NewGate(rec)

	m := testMatch()
	m.GridSize = 6
	m.ShipSizes = domain.ShipSizesFor(6)

	_, err := gate.VerifyPlacement(context.Background(), m, "0x1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x1", "2", "2", "3"}, rec.inputs)
}

func TestVerifyShotPublicInputs(t *testing.T) {
	rec := &recordingVerifier{verdict: true}
	gate := NewGate(rec)

	ok, err := gate.VerifyShot(context.Background(), "0xbbb", 3, 7, domain.ShotHit, []byte{9})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, CircuitShotProof, rec.circuit)
	// caller-snapshotted fingerprint, cell, claimed hit bit
	assert.Equal(t, []string{"0xbbb", "3", "7", "1"}, rec.inputs)
}

func TestVerifyShotMissBit(t *testing.T) {
	rec := &recordingVerifier{verdict: false}
	gate := NewGate(rec)

	ok, err := gate.VerifyShot(context.Background(), "0xaaa", 0, 0, domain.ShotMiss, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"0xaaa", "0", "0", "0"}, rec.inputs)
}

func TestVerifierErrorPropagates(t *testing.T) {
	boom := errors.New("verifier down")
	rec := &recordingVerifier{err: boom}
	gate := NewGate(rec)

	_, err := gate.VerifyShot(context.Background(), "0xbbb", 1, 1, domain.ShotHit, nil)
	assert.ErrorIs(t, err, boom)
}
