// Package auth verifies the HS256 bearer tokens guarding the API.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken   = errors.New("empty token")
	ErrInvalidToken = errors.New("invalid token")
)

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier returns nil for an empty secret, which disables auth.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify checks token and returns its subject claim.
func (v *Verifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}

	claims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}

	sub, _ := claims.GetSubject()
	return sub, nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	return strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
}
