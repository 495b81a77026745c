package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/sellerlink/gateway/internal/infrastructure/logger"
	"github.com/sellerlink/gateway/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// MaxMessageBodyLength is the ceiling on a buyer message, in characters
const MaxMessageBodyLength = 2000

// LegacyListings is the legacy family's item lookup
type LegacyListings interface {
	marketplace.ItemFinder
	marketplace.LegacyItemFinder
}

// Upstreams wires each capability to the API family that serves it
type Upstreams struct {
	Inventory         marketplace.ItemFinder
	Listings          LegacyListings
	Orders            marketplace.OrderReader
	LegacyOrders      marketplace.OrderReader
	OrderList         marketplace.OrderLister
	Fulfillment       marketplace.Fulfiller
	// LegacyFulfillment ships orders that only the Trading API returned
	LegacyFulfillment marketplace.Fulfiller
	Messages          marketplace.Messenger
	Returns           marketplace.ReturnsAPI
	Inquiries         marketplace.InquiriesAPI
	Cancellations     marketplace.CancellationsAPI
}

// Orchestrator implements the multi-step seller operations on top of the
// API families and the resolver chains.
type Orchestrator struct {
	up Upstreams
	deps
}

// NewOrchestrator creates the orchestrator
func NewOrchestrator(up Upstreams, opts ...Option) *Orchestrator {
	return &Orchestrator{up: up, deps: newDeps(opts)}
}

// ShipOrderInput describes a shipment. Empty LineItemIDs ships every
// unfulfilled line item; a zero ShippedAt means now.
type ShipOrderInput struct {
	OrderID        string
	TrackingNumber string
	Carrier        string
	ShippedAt      time.Time
	LineItemIDs    []string
}

// SendMessageInput is a message to an order's buyer
type SendMessageInput struct {
	OrderID      string
	Body         string
	Subject      string
	QuestionType string
}

// InquiryAction values
const (
	InquiryActionRefund   = "refund"
	InquiryActionShipment = "shipment"
	InquiryActionEscalate = "escalate"
)

// InquiryResolution is the payload of ResolveInquiry
type InquiryResolution struct {
	Action              string    `json:"action"`
	Comments            string    `json:"comments,omitempty"`
	TrackingNumber      string    `json:"tracking_number,omitempty"`
	ShippingCarrierCode string    `json:"shipping_carrier_code,omitempty"`
	ShippedAt           time.Time `json:"shipped_at,omitzero"`
}

// ReturnAction values
const (
	ReturnActionAccept = "accept"
	ReturnActionRefund = "refund"
)

// ReturnResolution is the payload of ResolveReturn. A nil RefundAmount
// refunds the full amount.
type ReturnResolution struct {
	Action       string             `json:"action"`
	Comments     string             `json:"comments,omitempty"`
	RefundAmount *marketplace.Money `json:"refund_amount,omitempty"`
}

// ItemMessages is the message thread of one line item's listing
type ItemMessages struct {
	LineItemID string                      `json:"line_item_id"`
	ItemID     string                      `json:"item_id"`
	Messages   []marketplace.MemberMessage `json:"messages"`
	HasMore    bool                        `json:"has_more"`
}

// OrderMessages holds the threads that could be read. TotalItems counts the
// order's line items, so fewer ItemMessages than TotalItems means partial coverage.
type OrderMessages struct {
	OrderID      string                    `json:"order_id"`
	ItemMessages []ItemMessages            `json:"item_messages"`
	TotalItems   int                       `json:"total_items"`
	Failed       []marketplace.ItemOutcome `json:"failed,omitempty"`
}

// ItemExistence reports where an item was found
type ItemExistence struct {
	Exists   bool              `json:"exists"`
	Location string            `json:"location,omitempty"`
	Item     *marketplace.Item `json:"item,omitempty"`
}

func (o *Orchestrator) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, o.logger)
}

func (o *Orchestrator) span(ctx context.Context, op string, accountID uuid.UUID, opts ...telemetry.SpanOption) (context.Context, trace.Span) {
	opts = append(opts, telemetry.WithAttribute(telemetry.AttrAccountID, accountID.String()))
	return telemetry.StartServiceSpan(ctx, "gateway.orchestrator", op, opts...)
}

// finish records a completed action on the span and in metrics
func (o *Orchestrator) finish(ctx context.Context, span trace.Span, action *marketplace.FulfillmentAction) *marketplace.FulfillmentAction {
	action.Aggregate()
	telemetry.SetAttributes(span, telemetry.AttrResult, string(action.Result))
	o.metrics.RecordAction(ctx, string(action.Kind), string(action.Result))
	return action
}

func fail(span trace.Span, err error) error {
	telemetry.RecordError(span, err)
	return err
}

// GetOrder fetches an order from the Fulfillment API, falling back to the
// Trading API for orders only it knows.
func (o *Orchestrator) GetOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*marketplace.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, shared.ErrInvalidInput.WithMessage("order id is required")
	}
	res, err := o.orderChain(accountID, orderID).Resolve(ctx, o.metrics)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (o *Orchestrator) orderChain(accountID uuid.UUID, orderID string) Chain[*marketplace.Order] {
	chain := Chain[*marketplace.Order]{Operation: "fetch_order", NotFound: marketplace.ErrOrderNotFound}
	if o.up.Orders != nil {
		chain.Attempts = append(chain.Attempts, Attempt[*marketplace.Order]{
			Source: SourceFulfillmentAPI,
			Fetch: func(ctx context.Context) (*marketplace.Order, error) {
				return o.up.Orders.FetchOrder(ctx, accountID, orderID)
			},
		})
	}
	if o.up.LegacyOrders != nil {
		chain.Attempts = append(chain.Attempts, Attempt[*marketplace.Order]{
			Source: SourceTradingAPI,
			Fetch: func(ctx context.Context) (*marketplace.Order, error) {
				return o.up.LegacyOrders.FetchOrder(ctx, accountID, orderID)
			},
		})
	}
	return chain
}

// ListOrders pages through the seller's orders
func (o *Orchestrator) ListOrders(ctx context.Context, accountID uuid.UUID, page marketplace.PageRequest) (*marketplace.Page[marketplace.Order], error) {
	return o.up.OrderList.ListOrders(ctx, accountID, page)
}

// ShipOrder creates one shipping fulfillment for the selected line items
func (o *Orchestrator) ShipOrder(ctx context.Context, accountID uuid.UUID, in ShipOrderInput) (*marketplace.FulfillmentAction, error) {
	ctx, span := o.span(ctx, "ship_order", accountID, telemetry.WithAttribute(telemetry.AttrOrderID, in.OrderID))
	defer span.End()

	if strings.TrimSpace(in.TrackingNumber) == "" {
		return nil, fail(span, marketplace.ErrMissingTracking)
	}
	if strings.TrimSpace(in.Carrier) == "" {
		return nil, fail(span, marketplace.ErrMissingCarrier)
	}

	if strings.TrimSpace(in.OrderID) == "" {
		return nil, fail(span, shared.ErrInvalidInput.WithMessage("order id is required"))
	}
	res, err := o.orderChain(accountID, in.OrderID).Resolve(ctx, o.metrics)
	if err != nil {
		return nil, fail(span, err)
	}
	order := res.Value
	fulfiller, err := o.fulfillerFor(res.Source)
	if err != nil {
		return nil, fail(span, err)
	}

	lines, err := selectLines(order, in.LineItemIDs)
	if err != nil {
		return nil, fail(span, err)
	}

	shippedAt := in.ShippedAt
	if shippedAt.IsZero() {
		shippedAt = o.now()
	}
	req := marketplace.ShipmentRequest{
		TrackingNumber: strings.TrimSpace(in.TrackingNumber),
		Carrier:        strings.TrimSpace(in.Carrier),
		ShippedAt:      shippedAt.UTC(),
	}
	for _, li := range lines {
		req.LineItems = append(req.LineItems, marketplace.ShipLine{LineItemID: li.LineItemID, Quantity: li.Quantity})
	}
	telemetry.SetAttributes(span, telemetry.AttrItemCount, len(lines))

	fulfillmentID, err := fulfiller.CreateShippingFulfillment(ctx, accountID, order.ID, req)
	if err != nil {
		o.log(ctx).Warn("Shipping fulfillment failed",
			zap.String("order_id", order.ID), zap.String("source", res.Source), zap.Error(err))
		return nil, fail(span, err)
	}

	action := marketplace.NewFulfillmentAction(order.ID, marketplace.ActionShip, req)
	action.Reference = fulfillmentID
	for _, li := range lines {
		action.PerItemOutcomes = append(action.PerItemOutcomes, marketplace.ItemOutcome{ItemID: li.LineItemID, Success: true})
	}
	action.RecordState = o.rereadOrderState(ctx, accountID, order.ID, res.Source)
	return o.finish(ctx, span, action), nil
}

// fulfillerFor returns the shipping capability of the family that returned the order
func (o *Orchestrator) fulfillerFor(source string) (marketplace.Fulfiller, error) {
	var f marketplace.Fulfiller
	switch source {
	case SourceFulfillmentAPI:
		f = o.up.Fulfillment
	case SourceTradingAPI:
		f = o.up.LegacyFulfillment
	}
	if f == nil {
		return nil, marketplace.ErrShippingUnsupported.WithReason(source)
	}
	return f, nil
}

// rereadOrderState fetches the order again from the family that shipped it.
// A failed read leaves the state empty; the shipment itself already succeeded.
func (o *Orchestrator) rereadOrderState(ctx context.Context, accountID uuid.UUID, orderID, source string) string {
	reader := o.up.Orders
	if source == SourceTradingAPI {
		reader = o.up.LegacyOrders
	}
	if reader == nil {
		return ""
	}
	order, err := reader.FetchOrder(ctx, accountID, orderID)
	if err != nil {
		o.log(ctx).Debug("Order state re-read failed after shipment",
			zap.String("order_id", orderID), zap.Error(err))
		return ""
	}
	return string(order.FulfillmentStatus)
}

// selectLines picks the line items a shipment covers
func selectLines(order *marketplace.Order, ids []string) ([]marketplace.LineItem, error) {
	if len(ids) == 0 {
		lines := order.UnfulfilledLineItems()
		if len(lines) == 0 {
			return nil, marketplace.ErrNothingToShip
		}
		return lines, nil
	}
	lines := make([]marketplace.LineItem, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		li, ok := order.LineItem(id)
		if !ok {
			return nil, marketplace.ErrLineItemNotInOrder.
				WithMessage(fmt.Sprintf("Line item %s does not belong to order %s", id, order.ID))
		}
		if !seen[id] {
			seen[id] = true
			lines = append(lines, li)
		}
	}
	return lines, nil
}

// SendOrderMessage messages the order's buyer through the first line item's listing
func (o *Orchestrator) SendOrderMessage(ctx context.Context, accountID uuid.UUID, in SendMessageInput) (*marketplace.FulfillmentAction, error) {
	ctx, span := o.span(ctx, "send_order_message", accountID, telemetry.WithAttribute(telemetry.AttrOrderID, in.OrderID))
	defer span.End()

	body, err := normalizeBody(in.Body)
	if err != nil {
		return nil, fail(span, err)
	}

	order, err := o.GetOrder(ctx, accountID, in.OrderID)
	if err != nil {
		return nil, fail(span, err)
	}
	if order.BuyerUsername == "" {
		return nil, fail(span, marketplace.ErrBuyerNotFound)
	}
	if len(order.LineItems) == 0 || order.LineItems[0].LegacyItemID == "" {
		return nil, fail(span, marketplace.ErrItemNotFound.WithMessage("Order has no listing to message about"))
	}

	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		subject = "Regarding order " + order.ID
	}
	msg := marketplace.BuyerMessage{
		ItemID:       order.LineItems[0].LegacyItemID,
		Recipient:    order.BuyerUsername,
		Subject:      subject,
		Body:         body,
		QuestionType: in.QuestionType,
	}
	if err := o.up.Messages.SendBuyerMessage(ctx, accountID, msg); err != nil {
		return nil, fail(span, err)
	}

	action := marketplace.NewFulfillmentAction(order.ID, marketplace.ActionMessage, msg)
	return o.finish(ctx, span, action), nil
}

// normalizeBody composes the body to NFC and enforces the length ceiling in code points
func normalizeBody(body string) (string, error) {
	body = norm.NFC.String(strings.TrimSpace(body))
	if body == "" {
		return "", marketplace.ErrEmptyBody
	}
	if n := utf8.RuneCountInString(body); n > MaxMessageBodyLength {
		return "", marketplace.ErrBodyTooLong.
			WithMessage(fmt.Sprintf("Message body has %d characters, the limit is %d", n, MaxMessageBodyLength))
	}
	return body, nil
}

// GetOrderMessages reads the message thread of every line item. A line item
// whose thread cannot be read is reported in Failed and left out.
func (o *Orchestrator) GetOrderMessages(ctx context.Context, accountID uuid.UUID, orderID string, page marketplace.PageRequest) (*OrderMessages, error) {
	ctx, span := o.span(ctx, "get_order_messages", accountID, telemetry.WithAttribute(telemetry.AttrOrderID, orderID))
	defer span.End()

	order, err := o.GetOrder(ctx, accountID, orderID)
	if err != nil {
		return nil, fail(span, err)
	}

	type slot struct {
		msgs *marketplace.Page[marketplace.MemberMessage]
		err  error
	}
	slots := make([]slot, len(order.LineItems))

	var g errgroup.Group
	g.SetLimit(o.maxConcurrentItems)
	for i, li := range order.LineItems {
		if li.LegacyItemID == "" {
			slots[i].err = marketplace.ErrItemNotFound.WithMessage("Line item has no listing id")
			continue
		}
		g.Go(func() error {
			slots[i].msgs, slots[i].err = o.up.Messages.ListItemMessages(ctx, accountID, li.LegacyItemID, page)
			return nil
		})
	}
	_ = g.Wait()

	out := &OrderMessages{
		OrderID:      order.ID,
		ItemMessages: make([]ItemMessages, 0, len(order.LineItems)),
		TotalItems:   len(order.LineItems),
	}
	action := marketplace.NewFulfillmentAction(order.ID, marketplace.ActionReadMessages, nil)
	for i, li := range order.LineItems {
		s := slots[i]
		outcome := marketplace.ItemOutcome{ItemID: li.LineItemID, Success: s.err == nil}
		if s.err != nil {
			outcome.ErrorCode, outcome.Message = errorCode(s.err), s.err.Error()
			out.Failed = append(out.Failed, outcome)
			o.log(ctx).Warn("Failed to read item messages",
				zap.String("order_id", order.ID),
				zap.String("line_item_id", li.LineItemID),
				zap.Error(s.err))
		} else {
			out.ItemMessages = append(out.ItemMessages, ItemMessages{
				LineItemID: li.LineItemID,
				ItemID:     li.LegacyItemID,
				Messages:   s.msgs.Items,
				HasMore:    s.msgs.HasMore,
			})
		}
		action.PerItemOutcomes = append(action.PerItemOutcomes, outcome)
	}
	o.finish(ctx, span, action)
	return out, nil
}

// ResolveInquiry acts on a buyer inquiry
func (o *Orchestrator) ResolveInquiry(ctx context.Context, accountID uuid.UUID, inquiryID string, in InquiryResolution) (*marketplace.FulfillmentAction, error) {
	ctx, span := o.span(ctx, "resolve_inquiry", accountID, telemetry.WithAttribute("sellerlink.inquiry_id", inquiryID))
	defer span.End()

	if strings.TrimSpace(inquiryID) == "" {
		return nil, fail(span, shared.ErrInvalidInput.WithMessage("inquiry id is required"))
	}

	var (
		kind marketplace.ActionKind
		call func() error
	)
	switch in.Action {
	case InquiryActionRefund:
		kind = marketplace.ActionRefund
		call = func() error {
			return o.up.Inquiries.IssueInquiryRefund(ctx, accountID, inquiryID, in.Comments)
		}
	case InquiryActionShipment:
		info := marketplace.ShipmentInfo{
			TrackingNumber:      strings.TrimSpace(in.TrackingNumber),
			ShippingCarrierCode: strings.TrimSpace(in.ShippingCarrierCode),
			ShippedAt:           in.ShippedAt,
		}
		if info.TrackingNumber == "" || info.ShippingCarrierCode == "" {
			return nil, fail(span, marketplace.ErrMissingShipmentInfo)
		}
		if info.ShippedAt.IsZero() {
			info.ShippedAt = o.now()
		}
		kind = marketplace.ActionProvideShipment
		call = func() error {
			return o.up.Inquiries.ProvideInquiryShipment(ctx, accountID, inquiryID, info)
		}
	case InquiryActionEscalate:
		kind = marketplace.ActionEscalate
		call = func() error {
			return o.up.Inquiries.EscalateInquiry(ctx, accountID, inquiryID, in.Comments)
		}
	default:
		return nil, fail(span, marketplace.ErrUnknownAction.
			WithMessage(fmt.Sprintf("Unsupported inquiry action %q", in.Action)))
	}

	if err := call(); err != nil {
		return nil, fail(span, err)
	}
	return o.finish(ctx, span, marketplace.NewFulfillmentAction(inquiryID, kind, in)), nil
}

// ResolveReturn acts on a buyer return
func (o *Orchestrator) ResolveReturn(ctx context.Context, accountID uuid.UUID, returnID string, in ReturnResolution) (*marketplace.FulfillmentAction, error) {
	ctx, span := o.span(ctx, "resolve_return", accountID, telemetry.WithAttribute("sellerlink.return_id", returnID))
	defer span.End()

	if strings.TrimSpace(returnID) == "" {
		return nil, fail(span, shared.ErrInvalidInput.WithMessage("return id is required"))
	}

	var kind marketplace.ActionKind
	switch in.Action {
	case ReturnActionAccept:
		kind = marketplace.ActionAcceptReturn
		if err := o.up.Returns.AcceptReturn(ctx, accountID, returnID, in.Comments); err != nil {
			return nil, fail(span, err)
		}
	case ReturnActionRefund:
		if in.RefundAmount != nil && !in.RefundAmount.Value.IsPositive() {
			return nil, fail(span, marketplace.ErrInvalidAmount)
		}
		kind = marketplace.ActionRefund
		if err := o.up.Returns.IssueReturnRefund(ctx, accountID, returnID, in.RefundAmount, in.Comments); err != nil {
			return nil, fail(span, err)
		}
	default:
		return nil, fail(span, marketplace.ErrUnknownAction.
			WithMessage(fmt.Sprintf("Unsupported return action %q", in.Action)))
	}
	return o.finish(ctx, span, marketplace.NewFulfillmentAction(returnID, kind, in)), nil
}

// GetReturn re-reads a return's state
func (o *Orchestrator) GetReturn(ctx context.Context, accountID uuid.UUID, returnID string) (*marketplace.Return, error) {
	if strings.TrimSpace(returnID) == "" {
		return nil, shared.ErrInvalidInput.WithMessage("return id is required")
	}
	return o.up.Returns.GetReturn(ctx, accountID, returnID)
}

// GetInquiry re-reads an inquiry's state
func (o *Orchestrator) GetInquiry(ctx context.Context, accountID uuid.UUID, inquiryID string) (*marketplace.Inquiry, error) {
	if strings.TrimSpace(inquiryID) == "" {
		return nil, shared.ErrInvalidInput.WithMessage("inquiry id is required")
	}
	return o.up.Inquiries.GetInquiry(ctx, accountID, inquiryID)
}

// CheckCancellationEligibility asks whether a legacy order can still be cancelled
func (o *Orchestrator) CheckCancellationEligibility(ctx context.Context, accountID uuid.UUID, legacyOrderID string) (*marketplace.CancellationEligibility, error) {
	if strings.TrimSpace(legacyOrderID) == "" {
		return nil, shared.ErrInvalidInput.WithMessage("legacy order id is required")
	}
	return o.up.Cancellations.CheckCancellationEligibility(ctx, accountID, legacyOrderID)
}

// CheckItemExists looks an item up by SKU in the Inventory API, then in the
// Trading API by item id, or by SKU when no item id was given.
func (o *Orchestrator) CheckItemExists(ctx context.Context, accountID uuid.UUID, sku, itemID string) (*ItemExistence, error) {
	sku, itemID = strings.TrimSpace(sku), strings.TrimSpace(itemID)
	if sku == "" && itemID == "" {
		return nil, marketplace.ErrMissingIdentifier
	}

	chain := Chain[*marketplace.Item]{Operation: "item_exists", NotFound: marketplace.ErrItemNotFound}
	if sku != "" {
		chain.Attempts = append(chain.Attempts, Attempt[*marketplace.Item]{
			Source: SourceInventoryAPI,
			Fetch: func(ctx context.Context) (*marketplace.Item, error) {
				return o.up.Inventory.FindItemBySKU(ctx, accountID, sku)
			},
		})
	}
	legacy := Attempt[*marketplace.Item]{Source: SourceTradingAPI}
	switch {
	case itemID != "":
		legacy.Fetch = func(ctx context.Context) (*marketplace.Item, error) {
			return o.up.Listings.FindItemByLegacyID(ctx, accountID, itemID)
		}
	default:
		legacy.Fetch = func(ctx context.Context) (*marketplace.Item, error) {
			return o.up.Listings.FindItemBySKU(ctx, accountID, sku)
		}
	}
	chain.Attempts = append(chain.Attempts, legacy)

	res, err := chain.Resolve(ctx, o.metrics)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return &ItemExistence{Exists: false}, nil
		}
		return nil, err
	}
	o.log(ctx).Debug("Item resolved",
		zap.String("source", res.Source), zap.String("sku", sku), zap.String("item_id", itemID))
	return &ItemExistence{Exists: true, Location: res.Source, Item: res.Value}, nil
}

// errorCode returns the stable code of err
func errorCode(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL_ERROR"
}
