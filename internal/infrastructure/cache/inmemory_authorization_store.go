package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
)

type pendingRequest struct {
	req       marketplace.AuthorizationRequest
	expiresAt time.Time
}

// InMemoryAuthorizationStore keeps pending authorization requests in process.
// Suitable for single-instance deployments and tests only: a callback served
// by another instance will not find the request.
type InMemoryAuthorizationStore struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]pendingRequest
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryAuthorizationStore creates the store and starts its expiry sweeper
func NewInMemoryAuthorizationStore() *InMemoryAuthorizationStore {
	s := &InMemoryAuthorizationStore{
		entries:  make(map[uuid.UUID]pendingRequest),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

var _ marketplace.AuthorizationRequestStore = (*InMemoryAuthorizationStore)(nil)

func (s *InMemoryAuthorizationStore) Save(_ context.Context, req *marketplace.AuthorizationRequest, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[req.AccountID] = pendingRequest{req: *req, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryAuthorizationStore) Consume(_ context.Context, accountID uuid.UUID) (*marketplace.AuthorizationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[accountID]
	if !ok {
		return nil, nil
	}
	delete(s.entries, accountID)
	if !s.now().Before(e.expiresAt) {
		return nil, nil
	}
	req := e.req
	return &req, nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryAuthorizationStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of stored requests, expired ones included
func (s *InMemoryAuthorizationStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *InMemoryAuthorizationStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryAuthorizationStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}
