package auth

import (
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithCookie(t *testing.T, token string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, "/rooms/ws/beginner", nil)
	require.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	return r
}

func TestSessionRoundTrip(t *testing.T) {
	Init()
	playerID := uuid.New()

	token, err := CreateSessionToken(playerID)
	require.NoError(t, err)

	got, err := AuthenticateRequest(requestWithCookie(t, token))
	require.NoError(t, err)
	assert.Equal(t, playerID, got)
}

func TestAuthenticateRequestRejectsMissingCookie(t *testing.T) {
	Init()
	r, err := http.NewRequest(http.MethodGet, "/rooms/ws/beginner", nil)
	require.NoError(t, err)

	_, err = AuthenticateRequest(r)
	assert.Error(t, err)
}

func TestAuthenticateRequestRejectsForeignSignature(t *testing.T) {
	Init()
	token, err := CreateSessionToken(uuid.New())
	require.NoError(t, err)

	// New key pair invalidates everything signed before it.
	Init()
	_, err = AuthenticateRequest(requestWithCookie(t, token))
	assert.Error(t, err)
}

func TestAuthenticateRequestFlagsMalformedSubject(t *testing.T) {
	Init()
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": "not-a-uuid"}).
		SignedString(privateKey)
	require.NoError(t, err)

	_, err = AuthenticateRequest(requestWithCookie(t, token))
	assert.ErrorIs(t, err, ErrMalformedPlayerID)
}

func TestAuthenticateRequestRejectsGarbageToken(t *testing.T) {
	Init()
	_, err := AuthenticateRequest(requestWithCookie(t, "not-a-token"))
	assert.Error(t, err)
}
