package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Stores bundles the shared-state backends the token manager needs.
type Stores struct {
	Authorizations marketplace.AuthorizationRequestStore
	RefreshLock    marketplace.RefreshLocker
	client         *redis.Client
	closers        []func() error
}

// Distributed reports whether the stores are shared across instances
func (s *Stores) Distributed() bool {
	return s.client != nil
}

// Ping checks the Redis connection; in-memory stores are always ready
func (s *Stores) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis client and stops in-memory sweepers
func (s *Stores) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StoreFactory creates the stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to in-memory stores.
// Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateInMemory returns process-local stores
func (f *StoreFactory) CreateInMemory() *Stores {
	authz := NewInMemoryAuthorizationStore()
	return &Stores{
		Authorizations: authz,
		RefreshLock:    NewInMemoryRefreshLock(),
		closers:        []func() error{authz.Close},
	}
}

// CreateWithClient returns Redis-backed stores on an existing client
func (f *StoreFactory) CreateWithClient(client *redis.Client) *Stores {
	return &Stores{
		Authorizations: NewRedisAuthorizationStore(client),
		RefreshLock:    NewRedisRefreshLock(client, WithLockLogger(f.logger)),
		client:         client,
		closers:        []func() error{client.Close},
	}
}

// Create uses Redis when a host is configured, falling back to in-memory
// stores when Redis is unreachable and fallback is allowed.
func (f *StoreFactory) Create(ctx context.Context) (*Stores, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("Redis not configured, using in-memory authorization store and refresh lock")
		return f.CreateInMemory(), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis authorization store and refresh lock", zap.String("addr", f.redisConfig.Addr()))
		return f.CreateWithClient(client), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Authorization callbacks and refresh locking will not be shared across instances.",
		zap.Error(err),
	)
	return f.CreateInMemory(), nil
}
