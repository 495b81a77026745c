package dto

import (
	"time"

	"github.com/sellerlink/gateway/internal/application/gateway"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/shopspring/decimal"
)

// ShipOrderRequest marks line items shipped. Omitting line_item_ids ships
// everything still unfulfilled.
type ShipOrderRequest struct {
	TrackingNumber string     `json:"tracking_number" binding:"required,max=64"`
	Carrier        string     `json:"carrier" binding:"required,max=64"`
	ShippedAt      *time.Time `json:"shipped_at"`
	LineItemIDs    []string   `json:"line_item_ids" binding:"omitempty,dive,required"`
}

// ToInput converts the request for orderID
func (r ShipOrderRequest) ToInput(orderID string) gateway.ShipOrderInput {
	in := gateway.ShipOrderInput{
		OrderID:        orderID,
		TrackingNumber: r.TrackingNumber,
		Carrier:        r.Carrier,
		LineItemIDs:    r.LineItemIDs,
	}
	if r.ShippedAt != nil {
		in.ShippedAt = *r.ShippedAt
	}
	return in
}

// SendMessageRequest is a message to an order's buyer. The body limit is
// enforced after normalization, not here.
type SendMessageRequest struct {
	Body         string `json:"body" binding:"required"`
	Subject      string `json:"subject" binding:"max=100"`
	QuestionType string `json:"question_type" binding:"omitempty,oneof=General Shipping Payment CustomizedSubject MultipleItemShipping None"`
}

// ToInput converts the request for orderID
func (r SendMessageRequest) ToInput(orderID string) gateway.SendMessageInput {
	return gateway.SendMessageInput{
		OrderID:      orderID,
		Body:         r.Body,
		Subject:      r.Subject,
		QuestionType: r.QuestionType,
	}
}

// ItemExistsQuery identifies an item by SKU, listing id or both
type ItemExistsQuery struct {
	SKU    string `form:"sku" binding:"max=50"`
	ItemID string `form:"item_id" binding:"omitempty,numeric"`
}

// MoneyRequest is an amount in a currency
type MoneyRequest struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency" binding:"required,len=3,uppercase"`
}

// ResolveInquiryRequest acts on a buyer inquiry
type ResolveInquiryRequest struct {
	Action              string     `json:"action" binding:"required,oneof=refund shipment escalate"`
	Comments            string     `json:"comments" binding:"max=1000"`
	TrackingNumber      string     `json:"tracking_number"`
	ShippingCarrierCode string     `json:"shipping_carrier_code"`
	ShippedAt           *time.Time `json:"shipped_at"`
}

// ToResolution converts the request
func (r ResolveInquiryRequest) ToResolution() gateway.InquiryResolution {
	res := gateway.InquiryResolution{
		Action:              r.Action,
		Comments:            r.Comments,
		TrackingNumber:      r.TrackingNumber,
		ShippingCarrierCode: r.ShippingCarrierCode,
	}
	if r.ShippedAt != nil {
		res.ShippedAt = *r.ShippedAt
	}
	return res
}

// ResolveReturnRequest acts on a buyer return. Without refund_amount a
// refund covers the full amount.
type ResolveReturnRequest struct {
	Action       string        `json:"action" binding:"required,oneof=accept refund"`
	Comments     string        `json:"comments" binding:"max=1000"`
	RefundAmount *MoneyRequest `json:"refund_amount"`
}

// ToResolution converts the request
func (r ResolveReturnRequest) ToResolution() gateway.ReturnResolution {
	res := gateway.ReturnResolution{Action: r.Action, Comments: r.Comments}
	if r.RefundAmount != nil {
		res.RefundAmount = &marketplace.Money{Value: r.RefundAmount.Value, Currency: r.RefundAmount.Currency}
	}
	return res
}

// ToPageRequest converts the query into a page request
func (q PageQuery) ToPageRequest() marketplace.PageRequest {
	return marketplace.PageRequest{Limit: q.Limit, Offset: q.Offset}
}

// NewPageMeta builds pagination meta for a page
func NewPageMeta[T any](p *marketplace.Page[T], req marketplace.PageRequest) Meta {
	return Meta{Total: p.Total, Limit: req.Limit, Offset: req.Offset, HasMore: p.HasMore}
}
