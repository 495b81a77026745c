package ebay

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/shopspring/decimal"
)

// amount is a REST money value. The Sell APIs send the value as a string and
// the Post-Order API as a number; json.Number accepts both.
type amount struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
}

func (a *amount) toMoney() *marketplace.Money {
	if a == nil || a.Value == "" {
		return nil
	}
	v, err := decimal.NewFromString(a.Value.String())
	if err != nil {
		return nil
	}
	return &marketplace.Money{Value: v, Currency: a.Currency}
}

func fromMoney(m *marketplace.Money) *amount {
	if m == nil {
		return nil
	}
	return &amount{Value: json.Number(m.Value.String()), Currency: m.Currency}
}

// restErrorDetail is one entry of a REST error response
type restErrorDetail struct {
	ErrorID     int    `json:"errorId"`
	Domain      string `json:"domain"`
	Category    string `json:"category"`
	Message     string `json:"message"`
	LongMessage string `json:"longMessage"`
}

// restErrorEnvelope covers the Sell APIs ("errors") and Post-Order ("error")
type restErrorEnvelope struct {
	Errors []restErrorDetail `json:"errors"`
	Error  []restErrorDetail `json:"error"`
}

func (e restErrorEnvelope) first() (restErrorDetail, bool) {
	if len(e.Errors) > 0 {
		return e.Errors[0], true
	}
	if len(e.Error) > 0 {
		return e.Error[0], true
	}
	return restErrorDetail{}, false
}

// inventoryItem is a Sell Inventory API inventory item
type inventoryItem struct {
	SKU       string `json:"sku"`
	Condition string `json:"condition"`
	Product   struct {
		Title string `json:"title"`
	} `json:"product"`
	Availability struct {
		ShipToLocationAvailability struct {
			Quantity int `json:"quantity"`
		} `json:"shipToLocationAvailability"`
	} `json:"availability"`
}

func (i *inventoryItem) toItem(raw []byte) *marketplace.Item {
	return &marketplace.Item{
		Record:    marketplace.Record{ID: i.SKU, SourceAPI: marketplace.SourceModern, Raw: raw},
		SKU:       i.SKU,
		Title:     i.Product.Title,
		Quantity:  i.Availability.ShipToLocationAvailability.Quantity,
		Condition: i.Condition,
	}
}

// fulfillmentLineItem is a line item of a Sell Fulfillment API order
type fulfillmentLineItem struct {
	LineItemID                string  `json:"lineItemId"`
	LegacyItemID              string  `json:"legacyItemId"`
	SKU                       string  `json:"sku"`
	Title                     string  `json:"title"`
	Quantity                  int     `json:"quantity"`
	LineItemFulfillmentStatus string  `json:"lineItemFulfillmentStatus"`
	Total                     *amount `json:"total"`
}

// fulfillmentOrder is a Sell Fulfillment API order
type fulfillmentOrder struct {
	OrderID                string `json:"orderId"`
	LegacyOrderID          string `json:"legacyOrderId"`
	CreationDate           string `json:"creationDate"`
	OrderFulfillmentStatus string `json:"orderFulfillmentStatus"`
	OrderPaymentStatus     string `json:"orderPaymentStatus"`
	Buyer                  struct {
		Username string `json:"username"`
	} `json:"buyer"`
	PricingSummary struct {
		Total *amount `json:"total"`
	} `json:"pricingSummary"`
	LineItems []fulfillmentLineItem `json:"lineItems"`
}

func (o *fulfillmentOrder) toOrder(raw []byte) *marketplace.Order {
	order := &marketplace.Order{
		Record:            marketplace.Record{ID: o.OrderID, SourceAPI: marketplace.SourceModern, Raw: raw},
		LegacyOrderID:     o.LegacyOrderID,
		BuyerUsername:     o.Buyer.Username,
		FulfillmentStatus: mapFulfillmentStatus(o.OrderFulfillmentStatus),
		PaymentStatus:     o.OrderPaymentStatus,
		Total:             o.PricingSummary.Total.toMoney(),
		LineItems:         make([]marketplace.LineItem, 0, len(o.LineItems)),
	}
	if t, err := time.Parse(time.RFC3339, o.CreationDate); err == nil {
		order.CreatedAt = t
	}
	for _, li := range o.LineItems {
		order.LineItems = append(order.LineItems, marketplace.LineItem{
			LineItemID:   li.LineItemID,
			LegacyItemID: li.LegacyItemID,
			SKU:          li.SKU,
			Title:        li.Title,
			Quantity:     li.Quantity,
			Fulfilled:    li.LineItemFulfillmentStatus == string(marketplace.FulfillmentFulfilled),
			Total:        li.Total.toMoney(),
		})
	}
	return order
}

// mapFulfillmentStatus maps the marketplace order status; unknown values are not started
func mapFulfillmentStatus(status string) marketplace.FulfillmentState {
	switch status {
	case "IN_PROGRESS":
		return marketplace.FulfillmentInProgress
	case "FULFILLED":
		return marketplace.FulfillmentFulfilled
	default:
		return marketplace.FulfillmentNotStarted
	}
}

// orderSearchPage is a page of the getOrders call
type orderSearchPage struct {
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Orders []json.RawMessage `json:"orders"`
}

type shippingFulfillmentLine struct {
	LineItemID string `json:"lineItemId"`
	Quantity   int    `json:"quantity"`
}

// shippingFulfillmentRequest is the createShippingFulfillment payload
type shippingFulfillmentRequest struct {
	LineItems           []shippingFulfillmentLine `json:"lineItems"`
	ShippedDate         string                    `json:"shippedDate,omitempty"`
	ShippingCarrierCode string                    `json:"shippingCarrierCode"`
	TrackingNumber      string                    `json:"trackingNumber"`
}

type postOrderComments struct {
	Content string `json:"content"`
}

func commentText(text string) *postOrderComments {
	if text == "" {
		return nil
	}
	return &postOrderComments{Content: text}
}

// returnDetail is a Post-Order API return
type returnDetail struct {
	Summary struct {
		ReturnID       string `json:"returnId"`
		OrderID        string `json:"orderId"`
		BuyerLoginName string `json:"buyerLoginName"`
		State          string `json:"state"`
		Status         string `json:"status"`
		CreationInfo   struct {
			Reason string `json:"reason"`
		} `json:"creationInfo"`
		SellerTotalRefund struct {
			EstimatedRefundAmount *amount `json:"estimatedRefundAmount"`
		} `json:"sellerTotalRefund"`
	} `json:"summary"`
}

func (r *returnDetail) toReturn(raw []byte) *marketplace.Return {
	s := r.Summary
	return &marketplace.Return{
		Record:        marketplace.Record{ID: s.ReturnID, SourceAPI: marketplace.SourceModern, Raw: raw},
		OrderID:       s.OrderID,
		State:         s.State,
		Status:        s.Status,
		BuyerUsername: s.BuyerLoginName,
		Reason:        s.CreationInfo.Reason,
		RefundAmount:  s.SellerTotalRefund.EstimatedRefundAmount.toMoney(),
	}
}

type returnDecisionRequest struct {
	Decision string             `json:"decision"`
	Comments *postOrderComments `json:"comments,omitempty"`
}

type itemizedRefund struct {
	RefundAmount  *amount `json:"refundAmount"`
	RefundFeeType string  `json:"refundFeeType"`
}

type refundDetail struct {
	ItemizedRefundDetail []itemizedRefund `json:"itemizedRefundDetail"`
	TotalAmount          *amount          `json:"totalAmount"`
}

type returnRefundRequest struct {
	RefundDetail *refundDetail      `json:"refundDetail,omitempty"`
	Comments     *postOrderComments `json:"comments,omitempty"`
}

// inquiryDetail is a Post-Order API inquiry
type inquiryDetail struct {
	InquiryID     string `json:"inquiryId"`
	OrderID       string `json:"orderId"`
	ItemID        string `json:"itemId"`
	TransactionID string `json:"transactionId"`
	State         string `json:"state"`
	Status        string `json:"status"`
	Buyer         string `json:"buyer"`
}

func (i *inquiryDetail) toInquiry(raw []byte) *marketplace.Inquiry {
	return &marketplace.Inquiry{
		Record:        marketplace.Record{ID: i.InquiryID, SourceAPI: marketplace.SourceModern, Raw: raw},
		OrderID:       i.OrderID,
		ItemID:        i.ItemID,
		State:         i.State,
		Status:        i.Status,
		BuyerUsername: i.Buyer,
	}
}

type inquiryCommentRequest struct {
	Comments              *postOrderComments `json:"comments,omitempty"`
	EscalateInquiryReason string             `json:"escalateInquiryReason,omitempty"`
}

type postOrderDate struct {
	Value string `json:"value"`
}

type inquiryShipmentRequest struct {
	ShippingCarrierName string         `json:"shippingCarrierName"`
	TrackingNumber      string         `json:"trackingNumber"`
	ShippingDate        *postOrderDate `json:"shippingDate,omitempty"`
}

type cancellationEligibilityRequest struct {
	LegacyOrderID string `json:"legacyOrderId"`
}

type cancellationEligibilityResponse struct {
	LegacyOrderID string   `json:"legacyOrderId"`
	Eligible      bool     `json:"eligible"`
	FailureReason []string `json:"failureReason"`
}

// ebayTime formats t the way the marketplace expects timestamps
func ebayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
