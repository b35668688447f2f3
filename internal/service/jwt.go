package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
)

var jwtSecret []byte

// InitJWT sets the signing secret. Must run before the websocket handler
// accepts connections.
func InitJWT(secret string) {
	if secret == "" {
		logger.Fatal("JWT secret is not set")
	}
	jwtSecret = []byte(secret)
}

// IssueToken mints a short-lived connection token for a handshake-verified
// identity. The token only gates the websocket upgrade; every action on
// the socket is still individually signed.
func IssueToken(publicKey string) (string, error) {
	claims := jwt.MapClaims{
		"sub": publicKey,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseJWT validates a connection token and returns the identity it was
// issued to.
func ParseJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing subject")
	}
	return sub, nil
}
