package marketplace

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/shared"
)

// AccountStatus represents the lifecycle status of a connected account
type AccountStatus string

const (
	AccountStatusPending AccountStatus = "pending"
	AccountStatusActive  AccountStatus = "active"
	AccountStatusExpired AccountStatus = "expired"
	AccountStatusRevoked AccountStatus = "revoked"
	AccountStatusError   AccountStatus = "error"
)

// IsValid checks if the status is a known value
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusPending, AccountStatusActive, AccountStatusExpired,
		AccountStatusRevoked, AccountStatusError:
		return true
	}
	return false
}

// Environment selects the marketplace deployment an account is bound to
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// IsValid checks if the environment is a known value
func (e Environment) IsValid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// TokenGrant is a successful token response from the marketplace.
// A zero RefreshTokenExpiresAt means the marketplace did not report one.
type TokenGrant struct {
	AccessToken           string
	RefreshToken          string
	TokenType             string
	ExpiresAt             time.Time
	RefreshTokenExpiresAt time.Time
	Scopes                []string
}

// Identity is the marketplace user that granted access
type Identity struct {
	UserID   string
	Username string
}

// ConnectedAccount is one authorization grant to the marketplace.
type ConnectedAccount struct {
	shared.BaseEntity
	OwnerUserID           string
	MarketplaceUserID     string
	MarketplaceUsername   string
	FriendlyName          string
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	TokenType             string
	GrantedScopes         []string
	UserSelectedScopes    []string
	Status                AccountStatus
	StatusReason          string
	Environment           Environment
	LastUsedAt            *time.Time
}

// NewPendingAccount creates the placeholder record an authorization handshake binds to
func NewPendingAccount(ownerUserID string, env Environment, friendlyName string, scopes []string) (*ConnectedAccount, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return nil, shared.ErrInvalidInput.WithMessage("owner user id is required")
	}
	if !env.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage("environment must be sandbox or production")
	}
	if len(friendlyName) > 100 {
		return nil, shared.ErrInvalidInput.WithMessage("friendly name cannot exceed 100 characters")
	}
	return &ConnectedAccount{
		BaseEntity:         shared.NewBaseEntity(),
		OwnerUserID:        ownerUserID,
		FriendlyName:       strings.TrimSpace(friendlyName),
		UserSelectedScopes: normalizeScopes(scopes),
		Status:             AccountStatusPending,
		Environment:        env,
	}, nil
}

// IsOwnedBy reports whether the account belongs to ownerUserID
func (a *ConnectedAccount) IsOwnedBy(ownerUserID string) bool {
	return a.OwnerUserID == ownerUserID
}

// IsPlaceholder reports whether the account has never been bound to a marketplace user
func (a *ConnectedAccount) IsPlaceholder() bool {
	return a.Status == AccountStatusPending && a.MarketplaceUserID == ""
}

// HasRefreshToken reports whether a refresh token is stored
func (a *ConnectedAccount) HasRefreshToken() bool {
	return a.RefreshToken != ""
}

// RefreshTokenExpired reports whether the stored refresh token is past its expiry.
// An unknown expiry is treated as still valid.
func (a *ConnectedAccount) RefreshTokenExpired(now time.Time) bool {
	return !a.RefreshTokenExpiresAt.IsZero() && !now.Before(a.RefreshTokenExpiresAt)
}

// AccessTokenUsable reports whether the access token can be handed out at now,
// keeping skew of headroom before expiry.
func (a *ConnectedAccount) AccessTokenUsable(now time.Time, skew time.Duration) bool {
	if a.Status != AccountStatusActive || a.AccessToken == "" {
		return false
	}
	return now.Before(a.AccessTokenExpiresAt.Add(-skew))
}

// Activate stores the tokens of a completed code exchange and moves the account to active.
func (a *ConnectedAccount) Activate(grant TokenGrant, identity *Identity) error {
	if a.Status == AccountStatusRevoked {
		return ErrAccountRevoked
	}
	if grant.AccessToken == "" {
		return shared.ErrInvalidInput.WithMessage("token grant has no access token")
	}
	a.AccessToken = grant.AccessToken
	a.RefreshToken = grant.RefreshToken
	a.RefreshTokenExpiresAt = grant.RefreshTokenExpiresAt
	a.AccessTokenExpiresAt = grant.ExpiresAt
	a.TokenType = grant.TokenType
	a.GrantedScopes = normalizeScopes(grant.Scopes)
	if identity != nil {
		a.MarketplaceUserID = identity.UserID
		a.MarketplaceUsername = identity.Username
	}
	a.Status = AccountStatusActive
	a.StatusReason = ""
	a.MarkUpdated()
	return nil
}

// ApplyRefresh replaces the access token in place. The refresh token and
// scopes are replaced only when the marketplace issued new ones.
func (a *ConnectedAccount) ApplyRefresh(grant TokenGrant) error {
	if a.Status != AccountStatusActive {
		return ErrAccountNotConnected
	}
	if grant.AccessToken == "" {
		return shared.ErrInvalidInput.WithMessage("token grant has no access token")
	}
	a.AccessToken = grant.AccessToken
	a.AccessTokenExpiresAt = grant.ExpiresAt
	if grant.TokenType != "" {
		a.TokenType = grant.TokenType
	}
	if grant.RefreshToken != "" {
		a.RefreshToken = grant.RefreshToken
		a.RefreshTokenExpiresAt = grant.RefreshTokenExpiresAt
	}
	if len(grant.Scopes) > 0 {
		a.GrantedScopes = normalizeScopes(grant.Scopes)
	}
	a.MarkUpdated()
	return nil
}

// Expire marks the account as needing re-authorization
func (a *ConnectedAccount) Expire(reason string) {
	if a.Status == AccountStatusRevoked {
		return
	}
	a.Status = AccountStatusExpired
	a.StatusReason = reason
	a.AccessToken = ""
	a.MarkUpdated()
}

// MarkError records an unrecoverable integration problem
func (a *ConnectedAccount) MarkError(reason string) {
	if a.Status == AccountStatusRevoked {
		return
	}
	a.Status = AccountStatusError
	a.StatusReason = reason
	a.AccessToken = ""
	a.MarkUpdated()
}

// Revoke disconnects the account. Records are never hard-deleted.
func (a *ConnectedAccount) Revoke(reason string) {
	a.Status = AccountStatusRevoked
	a.StatusReason = reason
	a.AccessToken = ""
	a.RefreshToken = ""
	a.RefreshTokenExpiresAt = time.Time{}
	a.MarkUpdated()
}

// Reopen lets a revoked account accept a new authorization for the same
// marketplace identity. Other statuses are left as they are.
func (a *ConnectedAccount) Reopen() {
	if a.Status != AccountStatusRevoked {
		return
	}
	a.Status = AccountStatusPending
	a.StatusReason = ""
	a.MarkUpdated()
}

// Touch records that the account's credentials were just used
func (a *ConnectedAccount) Touch(now time.Time) {
	a.LastUsedAt = &now
}

// HasScope reports whether scope was granted
func (a *ConnectedAccount) HasScope(scope string) bool {
	return slices.Contains(a.GrantedScopes, scope)
}

func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// ParseScopes splits a space-delimited OAuth scope string
func ParseScopes(raw string) []string {
	return normalizeScopes(strings.Fields(raw))
}

// AccountID parses an account identifier
func AccountID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.ErrInvalidInput.WithMessage("invalid account id")
	}
	return id, nil
}
