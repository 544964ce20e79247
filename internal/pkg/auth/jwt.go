// Package auth resolves the caller behind a bearer token. Tokens are HS256
// JWTs; the owner id is read from "sub", the .NET name identifier claim or
// "user_id", in that order.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const nameIdentifierClaim = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"

var ErrInvalidToken = errors.New("invalid or missing credential")

// Credential is the raw bearer token plus the owner it resolves to. The token
// is forwarded unchanged to collaborators that act on the owner's behalf.
type Credential struct {
	Token   string
	OwnerID string
}

type Verifier struct {
	key []byte
}

func NewVerifier(key string) *Verifier {
	return &Verifier{key: []byte(key)}
}

func (v *Verifier) Verify(token string) (Credential, error) {
	if token == "" {
		return Credential{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	if len(v.key) == 0 {
		return Credential{}, fmt.Errorf("%w: no signing key configured", ErrInvalidToken)
	}

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Credential{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Credential{}, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	owner := ownerOf(claims)
	if owner == "" {
		return Credential{}, fmt.Errorf("%w: no owner claim", ErrInvalidToken)
	}
	return Credential{Token: token, OwnerID: owner}, nil
}

// VerifyRequest reads the Authorization: Bearer header.
func (v *Verifier) VerifyRequest(r *http.Request) (Credential, error) {
	return v.Verify(BearerToken(r))
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func ownerOf(claims jwt.MapClaims) string {
	for _, name := range []string{"sub", nameIdentifierClaim, "user_id"} {
		if s, ok := claims[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Issue signs a token for ownerID. Used by the dev stubs and tests; the order
// service itself never issues credentials.
func Issue(key, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": ownerID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(key))
}
