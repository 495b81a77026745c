package ebay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/infrastructure/config"
)

func testConfig(base string) *Config {
	return NewConfig(config.MarketplaceConfig{
		Sandbox: config.MarketplaceCredentials{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RuName:       "Seller-RuName",
		},
		RequestTimeout:  2 * time.Second,
		RetryAttempts:   3,
		AuthURL:         base + "/oauth2/authorize",
		TokenURL:        base + "/identity/v1/oauth2/token",
		APIBaseURL:      base,
		IdentityBaseURL: base,
		TradingURL:      base + "/ws/api.dll",
	})
}

// fakeTokens is a TokenSource that hands out "token-N" values and records
// forced refreshes and invalidations.
type fakeTokens struct {
	mu          sync.Mutex
	generation  int
	getErr      error
	forced      []string
	invalidated []string
}

func (f *fakeTokens) token() *marketplace.AccessToken {
	return &marketplace.AccessToken{
		Value:       "token-" + itoa(f.generation),
		ExpiresAt:   time.Now().Add(time.Hour),
		Environment: marketplace.EnvironmentSandbox,
	}
}

func (f *fakeTokens) GetValidToken(_ context.Context, _ uuid.UUID) (*marketplace.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.token(), nil
}

func (f *fakeTokens) ForceRefresh(_ context.Context, _ uuid.UUID, rejected string) (*marketplace.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, rejected)
	f.generation++
	return f.token(), nil
}

func (f *fakeTokens) InvalidateAccount(_ context.Context, _ uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, reason)
	return nil
}
