package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "sellerlink-gateway", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "sellerlink", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Empty(t, cfg.Redis.Host, "redis is opt-in")

		m := cfg.Marketplace
		assert.Equal(t, "sandbox", m.DefaultEnvironment)
		assert.Equal(t, 5*time.Minute, m.TokenSkew)
		assert.Equal(t, 10*time.Minute, m.AuthRequestTTL)
		assert.Equal(t, 30*time.Second, m.RequestTimeout)
		assert.Equal(t, 3, m.RetryAttempts)
		assert.Equal(t, "967", m.CompatibilityLevel)
		assert.Equal(t, "EBAY_US", m.MarketplaceID)
		assert.Contains(t, m.Scopes, "https://api.ebay.com/oauth/api_scope/sell.fulfillment")
	})

	t.Run("loads values from environment variables with SELLERLINK prefix", func(t *testing.T) {
		t.Setenv("SELLERLINK_APP_PORT", "9000")
		t.Setenv("SELLERLINK_DATABASE_HOST", "testdb.local")
		t.Setenv("SELLERLINK_DATABASE_PORT", "5433")
		t.Setenv("SELLERLINK_REDIS_HOST", "cache.local")
		t.Setenv("SELLERLINK_MARKETPLACE_SANDBOX_CLIENT_ID", "sandbox-app")
		t.Setenv("SELLERLINK_MARKETPLACE_SANDBOX_CLIENT_SECRET", "sandbox-secret")
		t.Setenv("SELLERLINK_MARKETPLACE_TOKEN_SKEW", "90s")
		t.Setenv("SELLERLINK_MARKETPLACE_SITE_ID", "15")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
		assert.True(t, cfg.Marketplace.Credentials("sandbox").Configured())
		assert.False(t, cfg.Marketplace.Credentials("production").Configured())
		assert.Equal(t, 90*time.Second, cfg.Marketplace.TokenSkew)
		assert.Equal(t, "15", cfg.Marketplace.SiteID)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("SELLERLINK_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("SELLERLINK_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown default environment", func(t *testing.T) {
		t.Setenv("SELLERLINK_MARKETPLACE_DEFAULT_ENVIRONMENT", "staging")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "default_environment")
	})

	t.Run("rejects malformed token encryption key", func(t *testing.T) {
		t.Setenv("SELLERLINK_MARKETPLACE_TOKEN_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token_encryption_key")
	})
}

func TestLoad_Production(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	setProduction := func(t *testing.T) {
		t.Setenv("SELLERLINK_APP_ENV", "production")
		t.Setenv("SELLERLINK_JWT_SECRET", strings.Repeat("s", 32))
		t.Setenv("SELLERLINK_DATABASE_PASSWORD", "secret")
		t.Setenv("SELLERLINK_DATABASE_SSLMODE", "require")
		t.Setenv("SELLERLINK_MARKETPLACE_PRODUCTION_CLIENT_ID", "prod-app")
		t.Setenv("SELLERLINK_MARKETPLACE_PRODUCTION_CLIENT_SECRET", "prod-secret")
		t.Setenv("SELLERLINK_MARKETPLACE_TOKEN_ENCRYPTION_KEY", key)
	}

	t.Run("accepts complete production config", func(t *testing.T) {
		setProduction(t)
		_, err := Load()
		require.NoError(t, err)
	})

	tests := []struct {
		name    string
		env     string
		value   string
		errPart string
	}{
		{"short jwt secret", "SELLERLINK_JWT_SECRET", "short", "jwt.secret"},
		{"ssl disabled", "SELLERLINK_DATABASE_SSLMODE", "disable", "sslmode"},
		{"missing marketplace keys", "SELLERLINK_MARKETPLACE_PRODUCTION_CLIENT_SECRET", "", "marketplace.production"},
		{"missing encryption key", "SELLERLINK_MARKETPLACE_TOKEN_ENCRYPTION_KEY", "", "token_encryption_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setProduction(t)
			t.Setenv(tt.env, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "sellerlink", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/sellerlink?sslmode=disable", d.DSN())
}
