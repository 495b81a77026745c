package ebay

import (
	"errors"
	"strings"
	"time"

	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/infrastructure/config"
)

const (
	// SandboxAuthURL is the sandbox consent page
	SandboxAuthURL = "https://auth.sandbox.ebay.com/oauth2/authorize"
	// SandboxTokenURL is the sandbox token endpoint
	SandboxTokenURL = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	// SandboxAPIBaseURL is the sandbox REST host
	SandboxAPIBaseURL = "https://api.sandbox.ebay.com"
	// SandboxIdentityBaseURL is the sandbox Commerce Identity host
	SandboxIdentityBaseURL = "https://apiz.sandbox.ebay.com"
	// SandboxTradingURL is the sandbox Trading API endpoint
	SandboxTradingURL = "https://api.sandbox.ebay.com/ws/api.dll"

	// ProductionAuthURL is the production consent page
	ProductionAuthURL = "https://auth.ebay.com/oauth2/authorize"
	// ProductionTokenURL is the production token endpoint
	ProductionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	// ProductionAPIBaseURL is the production REST host
	ProductionAPIBaseURL = "https://api.ebay.com"
	// ProductionIdentityBaseURL is the production Commerce Identity host
	ProductionIdentityBaseURL = "https://apiz.ebay.com"
	// ProductionTradingURL is the production Trading API endpoint
	ProductionTradingURL = "https://api.ebay.com/ws/api.dll"
)

const (
	defaultCompatibilityLevel = "967"
	defaultSiteID             = "0"
	defaultMarketplaceID      = "EBAY_US"
	defaultRequestTimeout     = 30 * time.Second
	defaultRetryAttempts      = 3
)

// Configuration errors
var (
	ErrConfigMissingClientID     = errors.New("ebay: client id is required")
	ErrConfigMissingClientSecret = errors.New("ebay: client secret is required")
	ErrConfigMissingRuName       = errors.New("ebay: RuName is required")
	ErrConfigNoEnvironment       = errors.New("ebay: no environment has credentials configured")
)

// Endpoints are the upstream URLs of one environment
type Endpoints struct {
	AuthURL         string
	TokenURL        string
	APIBaseURL      string
	IdentityBaseURL string
	TradingURL      string
}

// DefaultEndpoints returns the public URLs for env
func DefaultEndpoints(env marketplace.Environment) Endpoints {
	if env == marketplace.EnvironmentProduction {
		return Endpoints{
			AuthURL:         ProductionAuthURL,
			TokenURL:        ProductionTokenURL,
			APIBaseURL:      ProductionAPIBaseURL,
			IdentityBaseURL: ProductionIdentityBaseURL,
			TradingURL:      ProductionTradingURL,
		}
	}
	return Endpoints{
		AuthURL:         SandboxAuthURL,
		TokenURL:        SandboxTokenURL,
		APIBaseURL:      SandboxAPIBaseURL,
		IdentityBaseURL: SandboxIdentityBaseURL,
		TradingURL:      SandboxTradingURL,
	}
}

// Config holds the application keys and transport settings for both environments
type Config struct {
	Sandbox    config.MarketplaceCredentials
	Production config.MarketplaceCredentials
	// Endpoints per environment; missing entries fall back to DefaultEndpoints.
	Endpoints map[marketplace.Environment]Endpoints
	// RequestTimeout bounds every single upstream round trip
	RequestTimeout time.Duration
	// RetryAttempts caps attempts of idempotent calls on timeout or transient failure
	RetryAttempts      int
	MarketplaceID      string
	SiteID             string
	CompatibilityLevel string
}

// NewConfig builds the adapter configuration from the application config,
// applying endpoint overrides to both environments.
func NewConfig(mc config.MarketplaceConfig) *Config {
	c := &Config{
		Sandbox:            mc.Sandbox,
		Production:         mc.Production,
		Endpoints:          make(map[marketplace.Environment]Endpoints, 2),
		RequestTimeout:     mc.RequestTimeout,
		RetryAttempts:      mc.RetryAttempts,
		MarketplaceID:      mc.MarketplaceID,
		SiteID:             mc.SiteID,
		CompatibilityLevel: mc.CompatibilityLevel,
	}
	for _, env := range []marketplace.Environment{marketplace.EnvironmentSandbox, marketplace.EnvironmentProduction} {
		ep := DefaultEndpoints(env)
		overrideString(&ep.AuthURL, mc.AuthURL)
		overrideString(&ep.TokenURL, mc.TokenURL)
		overrideString(&ep.APIBaseURL, mc.APIBaseURL)
		overrideString(&ep.IdentityBaseURL, mc.IdentityBaseURL)
		overrideString(&ep.TradingURL, mc.TradingURL)
		c.Endpoints[env] = ep
	}
	c.applyDefaults()
	return c
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = strings.TrimRight(v, "/")
	}
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.MarketplaceID == "" {
		c.MarketplaceID = defaultMarketplaceID
	}
	if c.SiteID == "" {
		c.SiteID = defaultSiteID
	}
	if c.CompatibilityLevel == "" {
		c.CompatibilityLevel = defaultCompatibilityLevel
	}
}

// Validate checks that at least one environment is usable and that every
// configured environment is complete.
func (c *Config) Validate() error {
	c.applyDefaults()
	configured := 0
	for _, creds := range []config.MarketplaceCredentials{c.Sandbox, c.Production} {
		if creds.ClientID == "" && creds.ClientSecret == "" && creds.RuName == "" {
			continue
		}
		if creds.ClientID == "" {
			return ErrConfigMissingClientID
		}
		if creds.ClientSecret == "" {
			return ErrConfigMissingClientSecret
		}
		if creds.RuName == "" {
			return ErrConfigMissingRuName
		}
		configured++
	}
	if configured == 0 {
		return ErrConfigNoEnvironment
	}
	return nil
}

// Credentials returns the application keys for env
func (c *Config) Credentials(env marketplace.Environment) config.MarketplaceCredentials {
	if env == marketplace.EnvironmentProduction {
		return c.Production
	}
	return c.Sandbox
}

// EndpointsFor returns the upstream URLs for env
func (c *Config) EndpointsFor(env marketplace.Environment) Endpoints {
	if ep, ok := c.Endpoints[env]; ok {
		return ep
	}
	return DefaultEndpoints(env)
}
