package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CredentialStore persists connected accounts.
// Get returns ErrAccountNotFound when no record exists.
type CredentialStore interface {
	Get(ctx context.Context, id uuid.UUID) (*ConnectedAccount, error)
	Create(ctx context.Context, account *ConnectedAccount) error
	// Upsert writes every mutable field of account atomically.
	Upsert(ctx context.Context, account *ConnectedAccount) error
	// FindByOwnerAndMarketplaceID returns nil, nil when there is no match.
	FindByOwnerAndMarketplaceID(ctx context.Context, ownerUserID, marketplaceUserID string, env Environment) (*ConnectedAccount, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]ConnectedAccount, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AuthorizationRequestStore holds in-flight handshakes, one per account.
type AuthorizationRequestStore interface {
	// Save replaces any pending request for the same account.
	Save(ctx context.Context, req *AuthorizationRequest, ttl time.Duration) error
	// Consume atomically removes and returns the pending request, or nil when absent.
	Consume(ctx context.Context, accountID uuid.UUID) (*AuthorizationRequest, error)
}

// RefreshLocker serializes token refreshes for one account across gateway instances.
type RefreshLocker interface {
	// Acquire blocks until the lock is held or ctx ends.
	Acquire(ctx context.Context, accountID uuid.UUID) (release func(), err error)
}

// OAuthProvider talks to the marketplace's OAuth and identity endpoints.
type OAuthProvider interface {
	AuthorizationURL(env Environment, state string, scopes []string) string
	ExchangeCode(ctx context.Context, env Environment, code string) (*TokenGrant, error)
	RefreshToken(ctx context.Context, env Environment, refreshToken string, scopes []string) (*TokenGrant, error)
	FetchIdentity(ctx context.Context, env Environment, accessToken string) (*Identity, error)
}

// AccessToken is a credential valid for at least the configured skew
type AccessToken struct {
	Value       string
	ExpiresAt   time.Time
	Environment Environment
}

// TokenSource is the only way API clients obtain credentials.
type TokenSource interface {
	GetValidToken(ctx context.Context, accountID uuid.UUID) (*AccessToken, error)
	// ForceRefresh replaces rejected unless another caller already did.
	ForceRefresh(ctx context.Context, accountID uuid.UUID, rejected string) (*AccessToken, error)
	// InvalidateAccount flips the account to expired after a persistent auth failure.
	InvalidateAccount(ctx context.Context, accountID uuid.UUID, reason string) error
}

// ItemFinder looks an item up by seller SKU
type ItemFinder interface {
	FindItemBySKU(ctx context.Context, accountID uuid.UUID, sku string) (*Item, error)
}

// LegacyItemFinder looks an item up by its listing id
type LegacyItemFinder interface {
	FindItemByLegacyID(ctx context.Context, accountID uuid.UUID, itemID string) (*Item, error)
}

// OrderReader fetches a single order
type OrderReader interface {
	FetchOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*Order, error)
}

// OrderLister pages through the seller's orders
type OrderLister interface {
	ListOrders(ctx context.Context, accountID uuid.UUID, page PageRequest) (*Page[Order], error)
}

// ShipLine is one line item of a shipping fulfillment
type ShipLine struct {
	LineItemID string
	Quantity   int
}

// ShipmentRequest is the payload of a shipping fulfillment
type ShipmentRequest struct {
	LineItems      []ShipLine
	TrackingNumber string
	Carrier        string
	ShippedAt      time.Time
}

// Fulfiller creates shipping fulfillments
type Fulfiller interface {
	// CreateShippingFulfillment returns the marketplace fulfillment id.
	CreateShippingFulfillment(ctx context.Context, accountID uuid.UUID, orderID string, req ShipmentRequest) (string, error)
}

// BuyerMessage is a seller-to-buyer message keyed by listing
type BuyerMessage struct {
	ItemID       string
	Recipient    string
	Subject      string
	Body         string
	QuestionType string
}

// Messenger sends and reads member messages
type Messenger interface {
	SendBuyerMessage(ctx context.Context, accountID uuid.UUID, msg BuyerMessage) error
	ListItemMessages(ctx context.Context, accountID uuid.UUID, itemID string, page PageRequest) (*Page[MemberMessage], error)
}

// ReturnsAPI acts on buyer returns
type ReturnsAPI interface {
	GetReturn(ctx context.Context, accountID uuid.UUID, returnID string) (*Return, error)
	AcceptReturn(ctx context.Context, accountID uuid.UUID, returnID, comments string) error
	IssueReturnRefund(ctx context.Context, accountID uuid.UUID, returnID string, amount *Money, comments string) error
}

// ShipmentInfo proves shipment for an inquiry
type ShipmentInfo struct {
	TrackingNumber      string
	ShippingCarrierCode string
	ShippedAt           time.Time
}

// InquiriesAPI acts on buyer inquiries
type InquiriesAPI interface {
	GetInquiry(ctx context.Context, accountID uuid.UUID, inquiryID string) (*Inquiry, error)
	IssueInquiryRefund(ctx context.Context, accountID uuid.UUID, inquiryID, comments string) error
	ProvideInquiryShipment(ctx context.Context, accountID uuid.UUID, inquiryID string, info ShipmentInfo) error
	EscalateInquiry(ctx context.Context, accountID uuid.UUID, inquiryID, comments string) error
}

// CancellationsAPI checks cancellation eligibility
type CancellationsAPI interface {
	CheckCancellationEligibility(ctx context.Context, accountID uuid.UUID, legacyOrderID string) (*CancellationEligibility, error)
}
