package marketplace

import "github.com/sellerlink/gateway/internal/domain/shared"

// Lifecycle errors
var (
	ErrInvalidState        = shared.NewKindError(shared.KindInvalidState, "INVALID_STATE", "Authorization state is invalid or expired")
	ErrNoRefreshToken      = shared.NewKindError(shared.KindUnauthorized, "NO_REFRESH_TOKEN", "Account has no refresh token, re-authorization required")
	ErrRefreshTokenExpired = shared.NewKindError(shared.KindUnauthorized, "REFRESH_TOKEN_EXPIRED", "Refresh token has expired, re-authorization required")
	ErrRefreshFailed       = shared.NewKindError(shared.KindUnauthorized, "REFRESH_FAILED", "Marketplace rejected the token refresh")
	ErrAccountNotConnected = shared.NewKindError(shared.KindInvalidState, "ACCOUNT_NOT_CONNECTED", "Account is not connected")
	ErrAccountRevoked      = shared.NewKindError(shared.KindInvalidState, "ACCOUNT_REVOKED", "Account has been disconnected")
	ErrAccountNotFound     = shared.NewKindError(shared.KindNotFound, "ACCOUNT_NOT_FOUND", "Connected account not found")
	ErrIdentityConflict    = shared.NewKindError(shared.KindInvalidState, "IDENTITY_CONFLICT", "Marketplace user is already connected under another account")
)

// Upstream errors produced by the API surface
var (
	ErrNotFound            = shared.NewKindError(shared.KindNotFound, "NOT_FOUND", "Record not found upstream")
	ErrUnauthorized        = shared.NewKindError(shared.KindUnauthorized, "UNAUTHORIZED", "Marketplace rejected the access token")
	ErrUpstreamTimeout     = shared.NewKindError(shared.KindTimeout, "UPSTREAM_TIMEOUT", "Marketplace call timed out")
	ErrUpstreamUnavailable = shared.NewKindError(shared.KindTransient, "UPSTREAM_UNAVAILABLE", "Marketplace is temporarily unavailable")
	ErrUpstreamRejected    = shared.NewKindError(shared.KindUpstreamRejected, "UPSTREAM_REJECTED", "Marketplace rejected the request")
	ErrFulfillmentRejected = shared.NewKindError(shared.KindUpstreamRejected, "FULFILLMENT_REJECTED", "Marketplace rejected the shipping fulfillment")
)

// Orchestration errors
var (
	ErrOrderNotFound       = shared.NewKindError(shared.KindNotFound, "ORDER_NOT_FOUND", "Order not found")
	ErrItemNotFound        = shared.NewKindError(shared.KindNotFound, "ITEM_NOT_FOUND", "Item not found")
	ErrBuyerNotFound       = shared.NewKindError(shared.KindNotFound, "BUYER_NOT_FOUND", "Order has no buyer")
	ErrMissingTracking     = shared.NewKindError(shared.KindValidation, "MISSING_TRACKING", "Tracking number is required")
	ErrMissingCarrier      = shared.NewKindError(shared.KindValidation, "MISSING_CARRIER", "Shipping carrier is required")
	ErrMissingIdentifier   = shared.NewKindError(shared.KindValidation, "MISSING_IDENTIFIER", "A SKU or item id is required")
	ErrMissingShipmentInfo = shared.NewKindError(shared.KindValidation, "MISSING_SHIPMENT_INFO", "Tracking number and shipping carrier code are required")
	ErrBodyTooLong         = shared.NewKindError(shared.KindValidation, "BODY_TOO_LONG", "Message body exceeds 2000 characters")
	ErrEmptyBody           = shared.NewKindError(shared.KindValidation, "EMPTY_BODY", "Message body is required")
	ErrLineItemNotInOrder  = shared.NewKindError(shared.KindValidation, "LINE_ITEM_NOT_IN_ORDER", "Line item does not belong to the order")
	ErrShippingUnsupported = shared.NewKindError(shared.KindInvalidState, "SHIPPING_UNSUPPORTED", "Order cannot be shipped through the marketplace API that returned it")
	ErrNothingToShip       = shared.NewKindError(shared.KindInvalidState, "NOTHING_TO_SHIP", "Order has no unfulfilled line items")
	ErrUnknownAction       = shared.NewKindError(shared.KindValidation, "UNKNOWN_ACTION", "Unsupported action")
	ErrInvalidAmount       = shared.NewKindError(shared.KindValidation, "INVALID_AMOUNT", "Refund amount must be positive")
)
