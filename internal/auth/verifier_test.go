package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeypair(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return hex.EncodeToString(pub), priv
}

func signAction(priv ed25519.PrivateKey, publicKey, action, payload string, ts int64) string {
	message := fmt.Sprintf("%s:%s:%s:%d", publicKey, action, payload, ts)
	return hex.EncodeToString(ed25519.Sign(priv, []byte(message)))
}

func TestVerifyActionValid(t *testing.T) {
	pub, priv := newKeypair(t)
	v := NewVerifier()

	ts := time.Now().UnixMilli()
	payload := `{"matchId":"m1","row":3,"col":4}`
	sig := signAction(priv, pub, "battle:attack", payload, ts)

	assert.NoError(t, v.VerifyAction(pub, "battle:attack", payload, ts, sig))
}

func TestVerifyActionWrongSigner(t *testing.T) {
	pub, _ := newKeypair(t)
	_, otherPriv := newKeypair(t)
	v := NewVerifier()

	ts := time.Now().UnixMilli()
	payload := `{"matchId":"m1"}`
	sig := signAction(otherPriv, pub, "battle:forfeit", payload, ts)

	assert.ErrorIs(t, v.VerifyAction(pub, "battle:forfeit", payload, ts, sig), ErrBadSignature)
}

func TestVerifyActionTamperedPayload(t *testing.T) {
	pub, priv := newKeypair(t)
	v := NewVerifier()

	ts := time.Now().UnixMilli()
	sig := signAction(priv, pub, "battle:attack", `{"row":1}`, ts)

	assert.ErrorIs(t, v.VerifyAction(pub, "battle:attack", `{"row":2}`, ts, sig), ErrBadSignature)
}

func TestVerifyActionStaleTimestamp(t *testing.T) {
	pub, priv := newKeypair(t)
	base := time.Now()
	v := NewVerifierWithClock(func() time.Time { return base })

	ts := base.Add(-MaxSignatureAge - time.Second).UnixMilli()
	sig := signAction(priv, pub, "battle:attack", `{}`, ts)

	assert.ErrorIs(t, v.VerifyAction(pub, "battle:attack", `{}`, ts, sig), ErrExpired)
}

func TestVerifyActionFutureTimestampBeyondSkew(t *testing.T) {
	pub, priv := newKeypair(t)
	base := time.Now()
	v := NewVerifierWithClock(func() time.Time { return base })

	ts := base.Add(MaxClockSkew + time.Second).UnixMilli()
	sig := signAction(priv, pub, "battle:attack", `{}`, ts)

	assert.ErrorIs(t, v.VerifyAction(pub, "battle:attack", `{}`, ts, sig), ErrExpired)
}

func TestVerifyActionMissingFields(t *testing.T) {
	v := NewVerifier()
	assert.ErrorIs(t, v.VerifyAction("", "battle:attack", `{}`, time.Now().UnixMilli(), "aa"), ErrMissingFields)
	assert.ErrorIs(t, v.VerifyAction("ab", "battle:attack", `{}`, 0, "aa"), ErrMissingFields)
}

func TestVerifyAuthHandshake(t *testing.T) {
	pub, priv := newKeypair(t)
	v := NewVerifier()

	ts := time.Now().UnixMilli()
	nonce := "n-12345"
	message := fmt.Sprintf("%s:%d:%s", pub, ts, nonce)
	sig := hex.EncodeToString(ed25519.Sign(priv, []byte(message)))

	assert.NoError(t, v.VerifyAuth(pub, ts, nonce, sig))
	assert.ErrorIs(t, v.VerifyAuth(pub, ts, "other-nonce", sig), ErrBadSignature)
}

func TestVerifyBadKeyEncoding(t *testing.T) {
	v := NewVerifier()
	ts := time.Now().UnixMilli()
	err := v.VerifyAction("zz-not-hex", "battle:attack", `{}`, ts, hex.EncodeToString(make([]byte, 64)))
	assert.ErrorIs(t, err, ErrBadPublicKey)
}
