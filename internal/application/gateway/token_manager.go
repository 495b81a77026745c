package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/sellerlink/gateway/internal/infrastructure/logger"
	"github.com/sellerlink/gateway/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTokenSkew is the headroom kept before an access token's expiry
const DefaultTokenSkew = 5 * time.Minute

// TokenManagerConfig holds the lifecycle settings
type TokenManagerConfig struct {
	DefaultEnvironment marketplace.Environment
	// Scopes are requested when the account did not select any
	Scopes         []string
	TokenSkew      time.Duration
	AuthRequestTTL time.Duration
	// RedirectURIs is the registered redirect per environment, kept on each
	// authorization request for diagnostics
	RedirectURIs map[marketplace.Environment]string
}

// AuthorizationStart is what the caller needs to send a seller to the consent page
type AuthorizationStart struct {
	AuthorizationURL string
	State            string
	ExpiresAt        time.Time
}

// TokenManager owns every connected account's credentials. It is the only
// component that reads tokens from the store or talks to the token endpoint.
type TokenManager struct {
	store marketplace.CredentialStore
	authz marketplace.AuthorizationRequestStore
	lock  marketplace.RefreshLocker
	oauth marketplace.OAuthProvider
	cfg   TokenManagerConfig
	group singleflight.Group
	deps
}

var _ marketplace.TokenSource = (*TokenManager)(nil)

// NewTokenManager creates the token lifecycle manager
func NewTokenManager(
	store marketplace.CredentialStore,
	authz marketplace.AuthorizationRequestStore,
	lock marketplace.RefreshLocker,
	oauth marketplace.OAuthProvider,
	cfg TokenManagerConfig,
	opts ...Option,
) *TokenManager {
	if cfg.TokenSkew <= 0 {
		cfg.TokenSkew = DefaultTokenSkew
	}
	if cfg.AuthRequestTTL <= 0 {
		cfg.AuthRequestTTL = marketplace.DefaultAuthorizationTTL
	}
	if !cfg.DefaultEnvironment.IsValid() {
		cfg.DefaultEnvironment = marketplace.EnvironmentSandbox
	}
	return &TokenManager{
		store: store,
		authz: authz,
		lock:  lock,
		oauth: oauth,
		cfg:   cfg,
		deps:  newDeps(opts),
	}
}

func (m *TokenManager) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, m.logger)
}

// CreatePendingAccount creates the placeholder an authorization handshake binds to.
// An empty environment selects the configured default.
func (m *TokenManager) CreatePendingAccount(ctx context.Context, ownerUserID string, env marketplace.Environment, friendlyName string, scopes []string) (*marketplace.ConnectedAccount, error) {
	if env == "" {
		env = m.cfg.DefaultEnvironment
	}
	account, err := marketplace.NewPendingAccount(ownerUserID, env, friendlyName, scopes)
	if err != nil {
		return nil, err
	}
	if err := m.store.Create(ctx, account); err != nil {
		return nil, err
	}
	m.log(ctx).Info("Connected account created",
		zap.String("account_id", account.ID.String()),
		zap.String("environment", string(env)))
	return account, nil
}

// GetAccount returns an account owned by ownerUserID. Accounts of other
// owners are reported as not found.
func (m *TokenManager) GetAccount(ctx context.Context, ownerUserID string, accountID uuid.UUID) (*marketplace.ConnectedAccount, error) {
	account, err := m.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsOwnedBy(ownerUserID) {
		return nil, marketplace.ErrAccountNotFound
	}
	return account, nil
}

// ListAccounts returns the owner's accounts
func (m *TokenManager) ListAccounts(ctx context.Context, ownerUserID string) ([]marketplace.ConnectedAccount, error) {
	return m.store.ListByOwner(ctx, ownerUserID)
}

// BeginAuthorization issues a fresh state for accountID and returns the consent URL.
// A previous pending handshake for the same account is replaced.
func (m *TokenManager) BeginAuthorization(ctx context.Context, accountID uuid.UUID) (*AuthorizationStart, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "gateway.tokens", "begin_authorization",
		telemetry.WithAttribute(telemetry.AttrAccountID, accountID.String()))
	defer span.End()

	account, err := m.store.Get(ctx, accountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := m.now()
	req, err := marketplace.NewAuthorizationRequest(account.ID, m.cfg.RedirectURIs[account.Environment], now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := m.authz.Save(ctx, req, m.cfg.AuthRequestTTL); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &AuthorizationStart{
		AuthorizationURL: m.oauth.AuthorizationURL(account.Environment, req.State, m.authorizationScopes(account)),
		State:            req.State,
		ExpiresAt:        now.Add(m.cfg.AuthRequestTTL),
	}, nil
}

// CompleteAuthorization finishes the handshake that issued state. Nothing is
// exchanged unless state matches an unconsumed, unexpired request.
func (m *TokenManager) CompleteAuthorization(ctx context.Context, code, state string) (*marketplace.ConnectedAccount, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "gateway.tokens", "complete_authorization")
	defer span.End()

	account, err := m.completeAuthorization(ctx, code, state)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.AttrAccountID, account.ID.String())
	return account, nil
}

func (m *TokenManager) completeAuthorization(ctx context.Context, code, state string) (*marketplace.ConnectedAccount, error) {
	accountID, err := marketplace.ParseStateAccountID(state)
	if err != nil {
		return nil, err
	}
	req, err := m.authz.Consume(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if req == nil || !req.Matches(state) || req.Expired(m.now(), m.cfg.AuthRequestTTL) {
		m.log(ctx).Warn("Authorization callback rejected", zap.String("account_id", accountID.String()))
		return nil, marketplace.ErrInvalidState
	}
	if strings.TrimSpace(code) == "" {
		return nil, shared.ErrInvalidInput.WithMessage("authorization code is required")
	}

	account, err := m.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	account.Reopen()

	grant, err := m.oauth.ExchangeCode(ctx, account.Environment, code)
	if err != nil {
		return nil, err
	}

	identity, err := m.oauth.FetchIdentity(ctx, account.Environment, grant.AccessToken)
	if err != nil {
		m.log(ctx).Warn("Marketplace identity lookup failed, continuing without it",
			zap.String("account_id", accountID.String()), zap.Error(err))
		identity = nil
	}

	target, err := m.bindIdentity(ctx, account, identity)
	if err != nil {
		return nil, err
	}
	if err := target.Activate(*grant, identity); err != nil {
		return nil, err
	}
	if err := m.store.Upsert(ctx, target); err != nil {
		return nil, err
	}

	if target.ID != account.ID {
		account.Revoke("merged into " + target.ID.String())
		if err := m.store.Upsert(ctx, account); err != nil {
			m.log(ctx).Error("Failed to retire duplicate placeholder account",
				zap.String("account_id", account.ID.String()), zap.Error(err))
		}
	}

	m.log(ctx).Info("Connected account authorized",
		zap.String("account_id", target.ID.String()),
		zap.String("marketplace_username", target.MarketplaceUsername))
	return target, nil
}

// bindIdentity returns the account the new tokens belong to. When the owner
// already connected the same marketplace user in the same environment under
// another id, that account is reused if the handshake started from a
// placeholder. Otherwise the completion is rejected and nothing is written.
func (m *TokenManager) bindIdentity(ctx context.Context, account *marketplace.ConnectedAccount, identity *marketplace.Identity) (*marketplace.ConnectedAccount, error) {
	if identity == nil || identity.UserID == "" {
		return account, nil
	}
	existing, err := m.store.FindByOwnerAndMarketplaceID(ctx, account.OwnerUserID, identity.UserID, account.Environment)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.ID == account.ID {
		return account, nil
	}
	// Only a placeholder is folded into the existing connection.
	if !account.IsPlaceholder() {
		m.log(ctx).Warn("Authorization completed for a marketplace user connected elsewhere",
			zap.String("account_id", account.ID.String()),
			zap.String("connected_account_id", existing.ID.String()))
		return nil, marketplace.ErrIdentityConflict.WithReason(existing.ID.String())
	}
	existing.Reopen()
	if len(account.UserSelectedScopes) > 0 {
		existing.UserSelectedScopes = account.UserSelectedScopes
	}
	return existing, nil
}

// GetValidToken returns an access token valid for at least the configured
// skew, refreshing it first when needed.
func (m *TokenManager) GetValidToken(ctx context.Context, accountID uuid.UUID) (*marketplace.AccessToken, error) {
	account, err := m.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := connected(account); err != nil {
		return nil, err
	}
	now := m.now()
	if account.AccessTokenUsable(now, m.cfg.TokenSkew) {
		m.touch(ctx, account.ID, now)
		return accessTokenOf(account), nil
	}
	return m.refresh(ctx, accountID, "")
}

// ForceRefresh replaces a token the marketplace rejected. When another caller
// already replaced it, the newer token is returned without a refresh.
func (m *TokenManager) ForceRefresh(ctx context.Context, accountID uuid.UUID, rejected string) (*marketplace.AccessToken, error) {
	return m.refresh(ctx, accountID, rejected)
}

// InvalidateAccount moves an active account to expired
func (m *TokenManager) InvalidateAccount(ctx context.Context, accountID uuid.UUID, reason string) error {
	account, err := m.store.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status != marketplace.AccountStatusActive {
		return nil
	}
	account.Expire(reason)
	if err := m.store.Upsert(ctx, account); err != nil {
		return err
	}
	m.metrics.RecordInvalidation(ctx, string(marketplace.AccountStatusExpired))
	m.log(ctx).Warn("Connected account invalidated",
		zap.String("account_id", accountID.String()), zap.String("reason", reason))
	return nil
}

// Disconnect revokes the account. The record is kept.
func (m *TokenManager) Disconnect(ctx context.Context, ownerUserID string, accountID uuid.UUID) (*marketplace.ConnectedAccount, error) {
	account, err := m.GetAccount(ctx, ownerUserID, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status == marketplace.AccountStatusRevoked {
		return account, nil
	}
	account.Revoke("disconnected by owner")
	if err := m.store.Upsert(ctx, account); err != nil {
		return nil, err
	}
	if _, err := m.authz.Consume(ctx, accountID); err != nil {
		m.log(ctx).Warn("Failed to drop pending authorization", zap.Error(err))
	}
	m.metrics.RecordInvalidation(ctx, string(marketplace.AccountStatusRevoked))
	m.log(ctx).Info("Connected account disconnected", zap.String("account_id", accountID.String()))
	return account, nil
}

// refresh collapses concurrent refreshes of one account in this process into
// a single call; the store lock does the same across processes.
func (m *TokenManager) refresh(ctx context.Context, accountID uuid.UUID, rejected string) (*marketplace.AccessToken, error) {
	ch := m.group.DoChan(accountID.String(), func() (any, error) {
		return m.refreshLocked(context.WithoutCancel(ctx), accountID, rejected)
	})
	select {
	case <-ctx.Done():
		return nil, waitError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*marketplace.AccessToken), nil
	}
}

func (m *TokenManager) refreshLocked(ctx context.Context, accountID uuid.UUID, rejected string) (*marketplace.AccessToken, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "gateway.tokens", "refresh",
		telemetry.WithAttribute(telemetry.AttrAccountID, accountID.String()))
	defer span.End()

	release, err := m.lock.Acquire(ctx, accountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	// The store is re-read under the lock: another instance may have refreshed.
	account, err := m.store.Get(ctx, accountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := connected(account); err != nil {
		return nil, err
	}
	now := m.now()
	if account.AccessToken != rejected && account.AccessTokenUsable(now, m.cfg.TokenSkew) {
		return accessTokenOf(account), nil
	}

	if !account.HasRefreshToken() {
		return nil, m.expire(ctx, account, marketplace.ErrNoRefreshToken)
	}
	if account.RefreshTokenExpired(now) {
		return nil, m.expire(ctx, account, marketplace.ErrRefreshTokenExpired)
	}

	grant, err := m.oauth.RefreshToken(ctx, account.Environment, account.RefreshToken, m.refreshScopes(account))
	if err != nil {
		m.metrics.RecordRefresh(ctx, string(account.Environment), false)
		telemetry.RecordError(span, err)
		if shared.IsKind(err, shared.KindUpstreamRejected) || shared.IsKind(err, shared.KindUnauthorized) {
			failed := marketplace.ErrRefreshFailed.WithCause(err)
			var de *shared.DomainError
			if errors.As(err, &de) {
				failed = failed.WithReason(de.Reason)
			}
			return nil, m.expire(ctx, account, failed)
		}
		// Timeouts and outages leave the stored credentials untouched.
		return nil, err
	}

	if !grant.ExpiresAt.After(now) {
		m.metrics.RecordRefresh(ctx, string(account.Environment), false)
		return nil, marketplace.ErrUpstreamRejected.WithMessage("Marketplace issued an access token that is already expired")
	}
	if err := account.ApplyRefresh(*grant); err != nil {
		return nil, err
	}
	account.Touch(now)
	if err := m.store.Upsert(ctx, account); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	m.metrics.RecordRefresh(ctx, string(account.Environment), true)
	m.log(ctx).Debug("Access token refreshed",
		zap.String("account_id", accountID.String()),
		zap.Time("expires_at", account.AccessTokenExpiresAt))
	return accessTokenOf(account), nil
}

// expire flips the account to expired and returns cause for the caller
func (m *TokenManager) expire(ctx context.Context, account *marketplace.ConnectedAccount, cause *shared.DomainError) error {
	account.Expire(cause.Code)
	if err := m.store.Upsert(ctx, account); err != nil {
		m.log(ctx).Error("Failed to persist expired account",
			zap.String("account_id", account.ID.String()), zap.Error(err))
	} else {
		m.metrics.RecordInvalidation(ctx, string(marketplace.AccountStatusExpired))
	}
	m.log(ctx).Warn("Connected account requires re-authorization",
		zap.String("account_id", account.ID.String()), zap.String("code", cause.Code))
	return cause
}

func (m *TokenManager) touch(ctx context.Context, accountID uuid.UUID, now time.Time) {
	if err := m.store.TouchLastUsed(ctx, accountID, now); err != nil {
		m.log(ctx).Debug("Failed to record last use", zap.Error(err))
	}
}

// authorizationScopes picks the scopes to request on the consent page
func (m *TokenManager) authorizationScopes(account *marketplace.ConnectedAccount) []string {
	if len(account.UserSelectedScopes) > 0 {
		return account.UserSelectedScopes
	}
	return m.cfg.Scopes
}

// refreshScopes never asks for more than was granted. The marketplace often
// omits scope from token responses, so the requested set is the fallback.
func (m *TokenManager) refreshScopes(account *marketplace.ConnectedAccount) []string {
	if len(account.GrantedScopes) > 0 {
		return account.GrantedScopes
	}
	return m.authorizationScopes(account)
}

// connected rejects accounts that cannot hand out tokens
func connected(account *marketplace.ConnectedAccount) error {
	switch account.Status {
	case marketplace.AccountStatusActive:
		return nil
	case marketplace.AccountStatusRevoked:
		return marketplace.ErrAccountRevoked
	default:
		err := marketplace.ErrAccountNotConnected.WithReason(string(account.Status))
		if account.StatusReason != "" {
			err = err.WithMessage("Account is not connected: " + account.StatusReason)
		}
		return err
	}
}

// waitError maps the end of a caller's wait on a shared refresh
func waitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return marketplace.ErrUpstreamTimeout.WithCause(err)
	}
	return err
}

func accessTokenOf(account *marketplace.ConnectedAccount) *marketplace.AccessToken {
	return &marketplace.AccessToken{
		Value:       account.AccessToken,
		ExpiresAt:   account.AccessTokenExpiresAt,
		Environment: account.Environment,
	}
}
