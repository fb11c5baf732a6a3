package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no identity token")
	ErrInvalidToken = errors.New("invalid identity token")
)

// identityClaims matches the tokens the account service issues: the user id
// sits under a "user" object, with the registered subject as fallback.
type identityClaims struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 identity tokens presented at the websocket
// handshake. Token issuance lives in the account service; this side only
// verifies.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify returns the authenticated user id or an error. Connections are
// refused before any event is processed when this fails.
func (v *Verifier) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoToken
	}
	claims := &identityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	id := strings.TrimSpace(claims.User.ID)
	if id == "" {
		id = strings.TrimSpace(claims.Subject)
	}
	if id == "" {
		return "", ErrInvalidToken
	}
	return id, nil
}
