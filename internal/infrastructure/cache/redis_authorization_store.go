package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
)

// RedisAuthorizationStore keeps pending authorization requests in Redis so
// the callback can land on any gateway instance.
type RedisAuthorizationStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisAuthorizationStore creates a store on an existing client
func NewRedisAuthorizationStore(client redis.UniversalClient) *RedisAuthorizationStore {
	return &RedisAuthorizationStore{
		client:    client,
		keyPrefix: keyNamespace + "authreq:",
	}
}

var _ marketplace.AuthorizationRequestStore = (*RedisAuthorizationStore)(nil)

// Save stores req under its account id, replacing any earlier request
func (s *RedisAuthorizationStore) Save(ctx context.Context, req *marketplace.AuthorizationRequest, ttl time.Duration) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode authorization request: %w", err)
	}
	if err := s.client.Set(ctx, s.key(req.AccountID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save authorization request: %w", err)
	}
	return nil
}

// Consume removes and returns the pending request with GETDEL so a state
// value can be redeemed only once.
func (s *RedisAuthorizationStore) Consume(ctx context.Context, accountID uuid.UUID) (*marketplace.AuthorizationRequest, error) {
	payload, err := s.client.GetDel(ctx, s.key(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume authorization request: %w", err)
	}
	var req marketplace.AuthorizationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("failed to decode authorization request: %w", err)
	}
	return &req, nil
}

func (s *RedisAuthorizationStore) key(accountID uuid.UUID) string {
	return s.keyPrefix + accountID.String()
}
