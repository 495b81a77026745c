package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"go.uber.org/zap"
)

const unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

var errLockHeld = errors.New("refresh lock is held")

// RedisRefreshLock serializes refreshes of one account across instances with
// SET NX PX and a compare-and-delete release.
type RedisRefreshLock struct {
	client    redis.UniversalClient
	keyPrefix string
	lockTTL   time.Duration
	wait      time.Duration
	logger    *zap.Logger
}

// RedisRefreshLockOption configures a RedisRefreshLock
type RedisRefreshLockOption func(*RedisRefreshLock)

// WithLockTTL bounds how long a crashed holder can block others
func WithLockTTL(ttl time.Duration) RedisRefreshLockOption {
	return func(l *RedisRefreshLock) { l.lockTTL = ttl }
}

// WithLockWait bounds how long Acquire polls before giving up
func WithLockWait(wait time.Duration) RedisRefreshLockOption {
	return func(l *RedisRefreshLock) { l.wait = wait }
}

// WithLockLogger sets the logger used for release failures
func WithLockLogger(logger *zap.Logger) RedisRefreshLockOption {
	return func(l *RedisRefreshLock) { l.logger = logger }
}

// NewRedisRefreshLock creates a lock on an existing client
func NewRedisRefreshLock(client redis.UniversalClient, opts ...RedisRefreshLockOption) *RedisRefreshLock {
	l := &RedisRefreshLock{
		client:    client,
		keyPrefix: keyNamespace + "refresh-lock:",
		lockTTL:   45 * time.Second,
		wait:      40 * time.Second,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ marketplace.RefreshLocker = (*RedisRefreshLock)(nil)

// Acquire polls with exponential backoff until the lock is taken, the wait
// elapses or ctx ends.
func (l *RedisRefreshLock) Acquire(ctx context.Context, accountID uuid.UUID) (func(), error) {
	key := l.keyPrefix + accountID.String()
	token := uuid.NewString()

	op := func() error {
		ok, err := l.client.SetNX(ctx, key, token, l.lockTTL).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = l.wait

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errLockHeld) {
			return nil, marketplace.ErrUpstreamUnavailable.
				WithMessage("Timed out waiting for a concurrent token refresh").
				WithCause(err)
		}
		return nil, err
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		res, err := l.client.Eval(releaseCtx, unlockScript, []string{key}, token).Result()
		if err != nil {
			l.logger.Warn("Failed to release refresh lock", zap.String("account_id", accountID.String()), zap.Error(err))
			return
		}
		if res == int64(0) {
			l.logger.Warn("Refresh lock expired before release", zap.String("account_id", accountID.String()))
		}
	}
	return release, nil
}

// InMemoryRefreshLock serializes refreshes within one process. A slot lives
// only while some caller holds or waits for it.
type InMemoryRefreshLock struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewInMemoryRefreshLock creates an in-process lock
func NewInMemoryRefreshLock() *InMemoryRefreshLock {
	return &InMemoryRefreshLock{slots: make(map[uuid.UUID]*lockSlot)}
}

var _ marketplace.RefreshLocker = (*InMemoryRefreshLock)(nil)

func (l *InMemoryRefreshLock) Acquire(ctx context.Context, accountID uuid.UUID) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[accountID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[accountID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.drop(accountID, slot)
			})
		}, nil
	case <-ctx.Done():
		l.drop(accountID, slot)
		return nil, ctx.Err()
	}
}

// drop forgets the slot once its last holder or waiter is gone
func (l *InMemoryRefreshLock) drop(accountID uuid.UUID, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 && l.slots[accountID] == slot {
		delete(l.slots, accountID)
	}
}
