package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/application/gateway"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/stretchr/testify/mock"
)

// MockAccountService is a mock implementation of AccountService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) GetAccount(ctx context.Context, ownerUserID string, accountID uuid.UUID) (*marketplace.ConnectedAccount, error) {
	args := m.Called(ctx, ownerUserID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.ConnectedAccount), args.Error(1)
}

func (m *MockAccountService) CreatePendingAccount(ctx context.Context, ownerUserID string, env marketplace.Environment, friendlyName string, scopes []string) (*marketplace.ConnectedAccount, error) {
	args := m.Called(ctx, ownerUserID, env, friendlyName, scopes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.ConnectedAccount), args.Error(1)
}

func (m *MockAccountService) ListAccounts(ctx context.Context, ownerUserID string) ([]marketplace.ConnectedAccount, error) {
	args := m.Called(ctx, ownerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketplace.ConnectedAccount), args.Error(1)
}

func (m *MockAccountService) BeginAuthorization(ctx context.Context, accountID uuid.UUID) (*gateway.AuthorizationStart, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.AuthorizationStart), args.Error(1)
}

func (m *MockAccountService) CompleteAuthorization(ctx context.Context, code, state string) (*marketplace.ConnectedAccount, error) {
	args := m.Called(ctx, code, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.ConnectedAccount), args.Error(1)
}

func (m *MockAccountService) Disconnect(ctx context.Context, ownerUserID string, accountID uuid.UUID) (*marketplace.ConnectedAccount, error) {
	args := m.Called(ctx, ownerUserID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.ConnectedAccount), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) GetOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*marketplace.Order, error) {
	args := m.Called(ctx, accountID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, accountID uuid.UUID, page marketplace.PageRequest) (*marketplace.Page[marketplace.Order], error) {
	args := m.Called(ctx, accountID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Page[marketplace.Order]), args.Error(1)
}

func (m *MockOrderService) ShipOrder(ctx context.Context, accountID uuid.UUID, in gateway.ShipOrderInput) (*marketplace.FulfillmentAction, error) {
	args := m.Called(ctx, accountID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.FulfillmentAction), args.Error(1)
}

func (m *MockOrderService) SendOrderMessage(ctx context.Context, accountID uuid.UUID, in gateway.SendMessageInput) (*marketplace.FulfillmentAction, error) {
	args := m.Called(ctx, accountID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.FulfillmentAction), args.Error(1)
}

func (m *MockOrderService) GetOrderMessages(ctx context.Context, accountID uuid.UUID, orderID string, page marketplace.PageRequest) (*gateway.OrderMessages, error) {
	args := m.Called(ctx, accountID, orderID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.OrderMessages), args.Error(1)
}

func (m *MockOrderService) ResolveInquiry(ctx context.Context, accountID uuid.UUID, inquiryID string, in gateway.InquiryResolution) (*marketplace.FulfillmentAction, error) {
	args := m.Called(ctx, accountID, inquiryID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.FulfillmentAction), args.Error(1)
}

func (m *MockOrderService) GetInquiry(ctx context.Context, accountID uuid.UUID, inquiryID string) (*marketplace.Inquiry, error) {
	args := m.Called(ctx, accountID, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Inquiry), args.Error(1)
}

func (m *MockOrderService) ResolveReturn(ctx context.Context, accountID uuid.UUID, returnID string, in gateway.ReturnResolution) (*marketplace.FulfillmentAction, error) {
	args := m.Called(ctx, accountID, returnID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.FulfillmentAction), args.Error(1)
}

func (m *MockOrderService) GetReturn(ctx context.Context, accountID uuid.UUID, returnID string) (*marketplace.Return, error) {
	args := m.Called(ctx, accountID, returnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Return), args.Error(1)
}

func (m *MockOrderService) CheckCancellationEligibility(ctx context.Context, accountID uuid.UUID, legacyOrderID string) (*marketplace.CancellationEligibility, error) {
	args := m.Called(ctx, accountID, legacyOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.CancellationEligibility), args.Error(1)
}

func (m *MockOrderService) CheckItemExists(ctx context.Context, accountID uuid.UUID, sku, itemID string) (*gateway.ItemExistence, error) {
	args := m.Called(ctx, accountID, sku, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ItemExistence), args.Error(1)
}
