package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "test-signing-key"

func TestVerify_SubjectClaim(t *testing.T) {
	token, err := Issue(key, "alice", time.Minute)
	require.NoError(t, err)

	cred, err := NewVerifier(key).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.OwnerID)
	assert.Equal(t, token, cred.Token)
}

func TestVerify_FallbackClaims(t *testing.T) {
	for name, claim := range map[string]string{
		"name identifier": nameIdentifierClaim,
		"user_id":         "user_id",
	} {
		t.Run(name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				claim: "bob",
				"exp": time.Now().Add(time.Minute).Unix(),
			}).SignedString([]byte(key))
			require.NoError(t, err)

			cred, err := NewVerifier(key).Verify(token)
			require.NoError(t, err)
			assert.Equal(t, "bob", cred.OwnerID)
		})
	}
}

func TestVerify_Rejects(t *testing.T) {
	expired, err := Issue(key, "alice", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := Issue("other-key", "alice", time.Minute)
	require.NoError(t, err)
	noOwner, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte(key))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-jwt",
		"expired":   expired,
		"wrong key": wrongKey,
		"no owner":  noOwner,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewVerifier(key).Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	token, err := Issue(key, "alice", time.Minute)
	require.NoError(t, err)

	var seen Credential
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	deny := func(w http.ResponseWriter, _ *http.Request, _ error) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	h := Middleware(NewVerifier(key), deny)(next)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "alice", seen.OwnerID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFromContext_Empty(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}
