package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/stretchr/testify/mock"
)

// memoryStore is a CredentialStore that copies records in and out like a database would
type memoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]marketplace.ConnectedAccount
	upserts  int
	touched  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[uuid.UUID]marketplace.ConnectedAccount)}
}

func (s *memoryStore) put(a *marketplace.ConnectedAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = *a
}

func (s *memoryStore) snapshot(id uuid.UUID) marketplace.ConnectedAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *memoryStore) Get(_ context.Context, id uuid.UUID) (*marketplace.ConnectedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, marketplace.ErrAccountNotFound
	}
	return &a, nil
}

func (s *memoryStore) Create(_ context.Context, a *marketplace.ConnectedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = *a
	return nil
}

func (s *memoryStore) Upsert(_ context.Context, a *marketplace.ConnectedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.accounts[a.ID] = *a
	return nil
}

func (s *memoryStore) FindByOwnerAndMarketplaceID(_ context.Context, owner, mpUserID string, env marketplace.Environment) (*marketplace.ConnectedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.OwnerUserID == owner && a.MarketplaceUserID == mpUserID && a.Environment == env {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) ListByOwner(_ context.Context, owner string) ([]marketplace.ConnectedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []marketplace.ConnectedAccount
	for _, a := range s.accounts {
		if a.OwnerUserID == owner {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memoryStore) TouchLastUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched++
	if a, ok := s.accounts[id]; ok {
		a.LastUsedAt = &at
		s.accounts[id] = a
	}
	return nil
}

// MockOAuthProvider is a mock implementation of marketplace.OAuthProvider
type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) AuthorizationURL(env marketplace.Environment, state string, scopes []string) string {
	args := m.Called(env, state, scopes)
	return args.String(0)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, env marketplace.Environment, code string) (*marketplace.TokenGrant, error) {
	args := m.Called(ctx, env, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.TokenGrant), args.Error(1)
}

func (m *MockOAuthProvider) RefreshToken(ctx context.Context, env marketplace.Environment, refreshToken string, scopes []string) (*marketplace.TokenGrant, error) {
	args := m.Called(ctx, env, refreshToken, scopes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.TokenGrant), args.Error(1)
}

func (m *MockOAuthProvider) FetchIdentity(ctx context.Context, env marketplace.Environment, accessToken string) (*marketplace.Identity, error) {
	args := m.Called(ctx, env, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Identity), args.Error(1)
}

// MockRestAPI is a mock of the modern family's capabilities
type MockRestAPI struct {
	mock.Mock
}

func (m *MockRestAPI) FindItemBySKU(ctx context.Context, accountID uuid.UUID, sku string) (*marketplace.Item, error) {
	args := m.Called(ctx, accountID, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Item), args.Error(1)
}

func (m *MockRestAPI) FetchOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*marketplace.Order, error) {
	args := m.Called(ctx, accountID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Order), args.Error(1)
}

func (m *MockRestAPI) ListOrders(ctx context.Context, accountID uuid.UUID, page marketplace.PageRequest) (*marketplace.Page[marketplace.Order], error) {
	args := m.Called(ctx, accountID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Page[marketplace.Order]), args.Error(1)
}

func (m *MockRestAPI) CreateShippingFulfillment(ctx context.Context, accountID uuid.UUID, orderID string, req marketplace.ShipmentRequest) (string, error) {
	args := m.Called(ctx, accountID, orderID, req)
	return args.String(0), args.Error(1)
}

func (m *MockRestAPI) GetReturn(ctx context.Context, accountID uuid.UUID, returnID string) (*marketplace.Return, error) {
	args := m.Called(ctx, accountID, returnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Return), args.Error(1)
}

func (m *MockRestAPI) AcceptReturn(ctx context.Context, accountID uuid.UUID, returnID, comments string) error {
	return m.Called(ctx, accountID, returnID, comments).Error(0)
}

func (m *MockRestAPI) IssueReturnRefund(ctx context.Context, accountID uuid.UUID, returnID string, amount *marketplace.Money, comments string) error {
	return m.Called(ctx, accountID, returnID, amount, comments).Error(0)
}

func (m *MockRestAPI) GetInquiry(ctx context.Context, accountID uuid.UUID, inquiryID string) (*marketplace.Inquiry, error) {
	args := m.Called(ctx, accountID, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Inquiry), args.Error(1)
}

func (m *MockRestAPI) IssueInquiryRefund(ctx context.Context, accountID uuid.UUID, inquiryID, comments string) error {
	return m.Called(ctx, accountID, inquiryID, comments).Error(0)
}

func (m *MockRestAPI) ProvideInquiryShipment(ctx context.Context, accountID uuid.UUID, inquiryID string, info marketplace.ShipmentInfo) error {
	return m.Called(ctx, accountID, inquiryID, info).Error(0)
}

func (m *MockRestAPI) EscalateInquiry(ctx context.Context, accountID uuid.UUID, inquiryID, comments string) error {
	return m.Called(ctx, accountID, inquiryID, comments).Error(0)
}

func (m *MockRestAPI) CheckCancellationEligibility(ctx context.Context, accountID uuid.UUID, legacyOrderID string) (*marketplace.CancellationEligibility, error) {
	args := m.Called(ctx, accountID, legacyOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.CancellationEligibility), args.Error(1)
}

// MockTradingAPI is a mock of the legacy family's capabilities
type MockTradingAPI struct {
	mock.Mock
}

func (m *MockTradingAPI) FindItemBySKU(ctx context.Context, accountID uuid.UUID, sku string) (*marketplace.Item, error) {
	args := m.Called(ctx, accountID, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Item), args.Error(1)
}

func (m *MockTradingAPI) FindItemByLegacyID(ctx context.Context, accountID uuid.UUID, itemID string) (*marketplace.Item, error) {
	args := m.Called(ctx, accountID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Item), args.Error(1)
}

func (m *MockTradingAPI) FetchOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*marketplace.Order, error) {
	args := m.Called(ctx, accountID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Order), args.Error(1)
}

func (m *MockTradingAPI) CreateShippingFulfillment(ctx context.Context, accountID uuid.UUID, orderID string, req marketplace.ShipmentRequest) (string, error) {
	args := m.Called(ctx, accountID, orderID, req)
	return args.String(0), args.Error(1)
}

func (m *MockTradingAPI) SendBuyerMessage(ctx context.Context, accountID uuid.UUID, msg marketplace.BuyerMessage) error {
	return m.Called(ctx, accountID, msg).Error(0)
}

func (m *MockTradingAPI) ListItemMessages(ctx context.Context, accountID uuid.UUID, itemID string, page marketplace.PageRequest) (*marketplace.Page[marketplace.MemberMessage], error) {
	args := m.Called(ctx, accountID, itemID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Page[marketplace.MemberMessage]), args.Error(1)
}
