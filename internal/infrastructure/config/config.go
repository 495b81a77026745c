package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Marketplace MarketplaceConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// An empty Host selects the in-memory stores.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds settings for verifying session tokens issued by the identity service
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	// RequestTimeout bounds each request's context, marketplace calls included
	RequestTimeout time.Duration
}

// MarketplaceCredentials holds the application keys for one marketplace environment
type MarketplaceCredentials struct {
	ClientID     string
	ClientSecret string
	RuName       string // redirect URL name registered with the marketplace
}

// Configured reports whether the keys are present
func (m MarketplaceCredentials) Configured() bool {
	return m.ClientID != "" && m.ClientSecret != ""
}

// MarketplaceConfig holds the marketplace integration settings
type MarketplaceConfig struct {
	Sandbox            MarketplaceCredentials
	Production         MarketplaceCredentials
	DefaultEnvironment string
	Scopes             []string
	TokenSkew          time.Duration
	AuthRequestTTL     time.Duration
	RequestTimeout     time.Duration
	RetryAttempts      int
	MaxConcurrentItems int
	MarketplaceID      string // e.g. EBAY_US
	SiteID             string // legacy site id header
	CompatibilityLevel string
	// TokenEncryptionKey is a base64 encoded 32 byte key; empty stores tokens in plain text.
	TokenEncryptionKey string
	// Endpoint overrides, applied to both environments when set.
	AuthURL         string
	TokenURL        string
	APIBaseURL      string
	IdentityBaseURL string
	TradingURL      string
}

// Credentials returns the keys for env
func (m *MarketplaceConfig) Credentials(env string) MarketplaceCredentials {
	if env == "production" {
		return m.Production
	}
	return m.Sandbox
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	LogsEnabled       bool // Export logs through the OTLP log pipeline
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool // Log full SQL statements (dev only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SELLERLINK_ prefix (e.g., SELLERLINK_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SELLERLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			RequestTimeout: v.GetDuration("http.request_timeout"),
		},
		Marketplace: MarketplaceConfig{
			Sandbox: MarketplaceCredentials{
				ClientID:     v.GetString("marketplace.sandbox.client_id"),
				ClientSecret: v.GetString("marketplace.sandbox.client_secret"),
				RuName:       v.GetString("marketplace.sandbox.ru_name"),
			},
			Production: MarketplaceCredentials{
				ClientID:     v.GetString("marketplace.production.client_id"),
				ClientSecret: v.GetString("marketplace.production.client_secret"),
				RuName:       v.GetString("marketplace.production.ru_name"),
			},
			DefaultEnvironment: v.GetString("marketplace.default_environment"),
			Scopes:             v.GetStringSlice("marketplace.scopes"),
			TokenSkew:          v.GetDuration("marketplace.token_skew"),
			AuthRequestTTL:     v.GetDuration("marketplace.auth_request_ttl"),
			RequestTimeout:     v.GetDuration("marketplace.request_timeout"),
			RetryAttempts:      v.GetInt("marketplace.retry_attempts"),
			MaxConcurrentItems: v.GetInt("marketplace.max_concurrent_items"),
			MarketplaceID:      v.GetString("marketplace.marketplace_id"),
			SiteID:             v.GetString("marketplace.site_id"),
			CompatibilityLevel: v.GetString("marketplace.compatibility_level"),
			TokenEncryptionKey: v.GetString("marketplace.token_encryption_key"),
			AuthURL:            v.GetString("marketplace.auth_url"),
			TokenURL:           v.GetString("marketplace.token_url"),
			APIBaseURL:         v.GetString("marketplace.api_base_url"),
			IdentityBaseURL:    v.GetString("marketplace.identity_base_url"),
			TradingURL:         v.GetString("marketplace.trading_url"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sellerlink-gateway"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "sellerlink"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "sellerlink"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 45 * time.Second
	}

	m := &cfg.Marketplace
	if m.DefaultEnvironment == "" {
		m.DefaultEnvironment = "sandbox"
	}
	if len(m.Scopes) == 0 {
		m.Scopes = []string{
			"https://api.ebay.com/oauth/api_scope",
			"https://api.ebay.com/oauth/api_scope/sell.inventory",
			"https://api.ebay.com/oauth/api_scope/sell.fulfillment",
			"https://api.ebay.com/oauth/api_scope/commerce.identity.readonly",
		}
	}
	if m.TokenSkew == 0 {
		m.TokenSkew = 5 * time.Minute
	}
	if m.AuthRequestTTL == 0 {
		m.AuthRequestTTL = 10 * time.Minute
	}
	if m.RequestTimeout == 0 {
		m.RequestTimeout = 30 * time.Second
	}
	if m.RetryAttempts == 0 {
		m.RetryAttempts = 3
	}
	if m.MaxConcurrentItems == 0 {
		m.MaxConcurrentItems = 4
	}
	if m.MarketplaceID == "" {
		m.MarketplaceID = "EBAY_US"
	}
	if m.SiteID == "" {
		m.SiteID = "0"
	}
	if m.CompatibilityLevel == "" {
		m.CompatibilityLevel = "967"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "sellerlink-gateway"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	m := c.Marketplace
	if m.DefaultEnvironment != "sandbox" && m.DefaultEnvironment != "production" {
		return fmt.Errorf("marketplace.default_environment must be sandbox or production, got %q", m.DefaultEnvironment)
	}
	if m.TokenSkew < 0 {
		return fmt.Errorf("marketplace.token_skew cannot be negative")
	}
	if m.RetryAttempts < 1 {
		return fmt.Errorf("marketplace.retry_attempts must be at least 1")
	}
	if m.TokenEncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(m.TokenEncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("marketplace.token_encryption_key must be 32 bytes, base64 encoded")
		}
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" || len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if !m.Production.Configured() {
			return fmt.Errorf("marketplace.production client_id and client_secret are required in production")
		}
		if m.TokenEncryptionKey == "" {
			return fmt.Errorf("marketplace.token_encryption_key is required in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
