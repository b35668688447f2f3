package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	// MaxSignatureAge bounds how old a signed action may be.
	MaxSignatureAge = 30 * time.Second
	// MaxClockSkew tolerates clients slightly ahead of the server.
	MaxClockSkew = 5 * time.Second
)

var (
	ErrMissingFields = errors.New("missing auth fields")
	ErrExpired       = errors.New("signature expired or clock skew too large")
	ErrBadPublicKey  = errors.New("invalid public key")
	ErrBadSignature  = errors.New("invalid signature")
)

// Verifier checks that inbound actions were signed by the claimed ed25519
// identity and are fresh. Every mutating action must pass here before any
// state is touched.
type Verifier struct {
	now func() time.Time
}

func NewVerifier() *Verifier {
	return &Verifier{now: time.Now}
}

// NewVerifierWithClock injects a clock for tests.
func NewVerifierWithClock(now func() time.Time) *Verifier {
	return &Verifier{now: now}
}

// VerifyAuth checks the connection handshake. The signed message is
// "publicKey:timestamp:nonce".
func (v *Verifier) VerifyAuth(publicKey string, timestamp int64, nonce, signature string) error {
	if publicKey == "" || signature == "" || nonce == "" || timestamp == 0 {
		return ErrMissingFields
	}
	if err := v.checkFreshness(timestamp); err != nil {
		return err
	}
	message := fmt.Sprintf("%s:%d:%s", publicKey, timestamp, nonce)
	return verifyDetached(publicKey, message, signature)
}

// VerifyAction checks a signed action. The canonical payload is the
// deterministic JSON of the action's semantic fields; the signed message is
// "publicKey:action:payload:timestamp".
func (v *Verifier) VerifyAction(publicKey, action, canonicalPayload string, timestamp int64, signature string) error {
	if publicKey == "" || action == "" || signature == "" || timestamp == 0 {
		return ErrMissingFields
	}
	if err := v.checkFreshness(timestamp); err != nil {
		return err
	}
	message := fmt.Sprintf("%s:%s:%s:%d", publicKey, action, canonicalPayload, timestamp)
	return verifyDetached(publicKey, message, signature)
}

func (v *Verifier) checkFreshness(timestampMs int64) error {
	age := v.now().UnixMilli() - timestampMs
	if age > MaxSignatureAge.Milliseconds() || age < -MaxClockSkew.Milliseconds() {
		return ErrExpired
	}
	return nil
}

func verifyDetached(publicKeyHex, message, signatureHex string) error {
	pubKey, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPublicKey, err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return ErrBadPublicKey
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return ErrBadSignature
	}

	if !ed25519.Verify(ed25519.PublicKey(pubKey), []byte(message), sig) {
		return ErrBadSignature
	}
	return nil
}
