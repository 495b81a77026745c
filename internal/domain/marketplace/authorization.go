package marketplace

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultAuthorizationTTL bounds how long a handshake may stay open
const DefaultAuthorizationTTL = 10 * time.Minute

const stateEntropyBytes = 32

// AuthorizationRequest is an in-flight OAuth handshake for one account
type AuthorizationRequest struct {
	AccountID   uuid.UUID `json:"account_id"`
	State       string    `json:"state"`
	IssuedAt    time.Time `json:"issued_at"`
	RedirectURI string    `json:"redirect_uri"`
}

// NewAuthorizationRequest issues a fresh CSRF state bound to accountID.
// The state is "<accountID>.<random>" so the callback can recover the account.
func NewAuthorizationRequest(accountID uuid.UUID, redirectURI string, now time.Time) (*AuthorizationRequest, error) {
	buf := make([]byte, stateEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	return &AuthorizationRequest{
		AccountID:   accountID,
		State:       accountID.String() + "." + base64.RawURLEncoding.EncodeToString(buf),
		IssuedAt:    now,
		RedirectURI: redirectURI,
	}, nil
}

// Matches compares the presented state in constant time
func (r *AuthorizationRequest) Matches(state string) bool {
	return subtle.ConstantTimeCompare([]byte(r.State), []byte(state)) == 1
}

// Expired reports whether the handshake window has closed
func (r *AuthorizationRequest) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(r.IssuedAt.Add(ttl))
}

// ParseStateAccountID extracts the account id prefix of a state value
func ParseStateAccountID(state string) (uuid.UUID, error) {
	prefix, _, ok := strings.Cut(state, ".")
	if !ok || prefix == "" {
		return uuid.Nil, ErrInvalidState
	}
	id, err := uuid.Parse(prefix)
	if err != nil {
		return uuid.Nil, ErrInvalidState
	}
	return id, nil
}
