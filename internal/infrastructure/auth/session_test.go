package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sellerlink/gateway/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier() *SessionVerifier {
	return NewSessionVerifier(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "sellerlink-identity",
	})
}

func TestSessionVerifier_RoundTrip(t *testing.T) {
	v := newTestVerifier()

	token, err := v.Issue("user-1", "alice", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.OwnerUserID())
	assert.Equal(t, "alice", claims.Username)
}

func TestSessionVerifier_Expired(t *testing.T) {
	v := newTestVerifier()

	token, err := v.Issue("user-1", "", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSessionVerifier_WrongSecret(t *testing.T) {
	other := NewSessionVerifier(config.JWTConfig{Secret: "another-secret", Issuer: "sellerlink-identity"})
	token, err := other.Issue("user-1", "", time.Hour)
	require.NoError(t, err)

	_, err = newTestVerifier().Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionVerifier_WrongIssuer(t *testing.T) {
	other := NewSessionVerifier(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "someone-else"})
	token, err := other.Issue("user-1", "", time.Hour)
	require.NoError(t, err)

	_, err = newTestVerifier().Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionVerifier_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "sellerlink-identity",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret-key-at-least-32-chars"))
	require.NoError(t, err)

	_, err = newTestVerifier().Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionVerifier_MissingSubject(t *testing.T) {
	v := newTestVerifier()
	token, err := v.Issue("", "", time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestSessionVerifier_Garbage(t *testing.T) {
	_, err := newTestVerifier().Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
