package marketplace

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SourceAPI names the upstream API generation that produced a record.
// Only diagnostics should inspect it.
type SourceAPI string

const (
	SourceModern SourceAPI = "modern"
	SourceLegacy SourceAPI = "legacy"
)

// Record holds the fields every normalized record carries
type Record struct {
	ID        string          `json:"id"`
	SourceAPI SourceAPI       `json:"source_api"`
	Raw       json.RawMessage `json:"-"`
}

// Money is an amount in a currency
type Money struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// Item is a listing or inventory item
type Item struct {
	Record
	SKU       string `json:"sku,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Quantity  int    `json:"quantity"`
	Condition string `json:"condition,omitempty"`
	Price     *Money `json:"price,omitempty"`
}

// FulfillmentState is the order-level fulfillment state derived from the marketplace
type FulfillmentState string

const (
	FulfillmentNotStarted FulfillmentState = "NOT_STARTED"
	FulfillmentInProgress FulfillmentState = "IN_PROGRESS"
	FulfillmentFulfilled  FulfillmentState = "FULFILLED"
)

// IsTerminal reports whether no further fulfillment is possible
func (s FulfillmentState) IsTerminal() bool {
	return s == FulfillmentFulfilled
}

// LineItem is one purchased listing inside an order
type LineItem struct {
	LineItemID string `json:"line_item_id"`
	// LegacyItemID is the listing id the messaging capability is keyed by
	LegacyItemID  string `json:"legacy_item_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	SKU           string `json:"sku,omitempty"`
	Title         string `json:"title,omitempty"`
	Quantity      int    `json:"quantity"`
	Fulfilled     bool   `json:"fulfilled"`
	Total         *Money `json:"total,omitempty"`
}

// Order is a normalized marketplace order
type Order struct {
	Record
	LegacyOrderID     string           `json:"legacy_order_id,omitempty"`
	BuyerUsername     string           `json:"buyer_username,omitempty"`
	FulfillmentStatus FulfillmentState `json:"fulfillment_status"`
	PaymentStatus     string           `json:"payment_status,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	Total             *Money           `json:"total,omitempty"`
	LineItems         []LineItem       `json:"line_items"`
}

// LineItem returns the line item with the given id
func (o *Order) LineItem(lineItemID string) (LineItem, bool) {
	for _, li := range o.LineItems {
		if li.LineItemID == lineItemID {
			return li, true
		}
	}
	return LineItem{}, false
}

// UnfulfilledLineItems returns the line items not yet shipped, in order
func (o *Order) UnfulfilledLineItems() []LineItem {
	out := make([]LineItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		if !li.Fulfilled {
			out = append(out, li)
		}
	}
	return out
}

// Return is a buyer return request
type Return struct {
	Record
	OrderID       string `json:"order_id,omitempty"`
	State         string `json:"state"`
	Status        string `json:"status,omitempty"`
	BuyerUsername string `json:"buyer_username,omitempty"`
	Reason        string `json:"reason,omitempty"`
	RefundAmount  *Money `json:"refund_amount,omitempty"`
}

// Inquiry is a buyer item-not-received inquiry
type Inquiry struct {
	Record
	OrderID       string `json:"order_id,omitempty"`
	ItemID        string `json:"item_id,omitempty"`
	State         string `json:"state"`
	Status        string `json:"status,omitempty"`
	BuyerUsername string `json:"buyer_username,omitempty"`
}

// MemberMessage is one buyer/seller message attached to a listing
type MemberMessage struct {
	Record
	ItemID     string    `json:"item_id"`
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ResponseTo string    `json:"response_to,omitempty"`
}

// CancellationEligibility is the marketplace's verdict on cancelling an order
type CancellationEligibility struct {
	LegacyOrderID string `json:"legacy_order_id"`
	Eligible      bool   `json:"eligible"`
	// ReasonCodes is set when the order is not eligible
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// PageRequest selects a window of a list capability
type PageRequest struct {
	Limit  int
	Offset int
}

// Normalize clamps limit and offset into the range the upstream accepts
func (p PageRequest) Normalize(maxLimit int) PageRequest {
	if p.Limit <= 0 {
		p.Limit = 25
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Page is one window of a list capability, uniform across API families
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}
