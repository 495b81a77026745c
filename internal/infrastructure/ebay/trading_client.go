package ebay

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/sellerlink/gateway/internal/infrastructure/telemetry"
)

// Maximum EntriesPerPage accepted by GetMemberMessages
const maxMessagePageSize = 100

// DefaultQuestionType is used when a buyer message names none
const DefaultQuestionType = "General"

// Trading error codes that mean the IAF token was not accepted
var tradingAuthErrorCodes = map[string]struct{}{
	"931":      {}, // auth token is invalid
	"932":      {}, // auth token is hard expired
	"21916984": {}, // invalid IAF token
}

// Trading error codes that mean the record does not exist
var tradingNotFoundCodes = map[string]struct{}{
	"17": {}, // item cannot be accessed or does not exist
}

// TradingAPI is the legacy XML Trading API family.
type TradingAPI struct {
	t *transport
}

// NewTradingAPI creates the Trading client. Credentials come from tokens only.
func NewTradingAPI(cfg *Config, tokens marketplace.TokenSource, opts ...Option) *TradingAPI {
	return &TradingAPI{t: newTransport(cfg, tokens, opts...)}
}

var (
	_ marketplace.ItemFinder       = (*TradingAPI)(nil)
	_ marketplace.LegacyItemFinder = (*TradingAPI)(nil)
	_ marketplace.OrderReader      = (*TradingAPI)(nil)
	_ marketplace.Messenger        = (*TradingAPI)(nil)
	_ marketplace.Fulfiller        = (*TradingAPI)(nil)
)

// send posts one Trading call and decodes the response into out
func (c *TradingAPI) send(ctx context.Context, tok *marketplace.AccessToken, callName string, in any, out tradingResponse) ([]byte, error) {
	payload, err := xml.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to encode %s request: %w", callName, err)
	}
	payload = append([]byte(xml.Header), payload...)

	endpoint := c.t.cfg.EndpointsFor(tok.Environment).TradingURL
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to create request: %w", err)
	}
	req.Header.Set("X-EBAY-API-COMPATIBILITY-LEVEL", c.t.cfg.CompatibilityLevel)
	req.Header.Set("X-EBAY-API-CALL-NAME", callName)
	req.Header.Set("X-EBAY-API-SITEID", c.t.cfg.SiteID)
	req.Header.Set("X-EBAY-API-IAF-TOKEN", tok.Value)
	req.Header.Set("Content-Type", "text/xml")

	resp, body, err := c.t.do(ctx, req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, marketplace.ErrUnauthorized.WithRaw(body)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, marketplace.ErrUpstreamUnavailable.WithRaw(body)
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return nil, marketplace.ErrUpstreamRejected.
			WithMessage("Malformed marketplace response").
			WithRaw(body).
			WithCause(err)
	}
	if !out.ack().succeeded() {
		return nil, tradingFailure(out.ack(), body)
	}
	return body, nil
}

// tradingFailure translates a failed Ack
func tradingFailure(a *tradingAck, body []byte) error {
	e, ok := a.firstError()
	if !ok {
		return marketplace.ErrUpstreamRejected.
			WithMessage("Marketplace returned Ack=" + a.Ack).
			WithRaw(body)
	}

	var base *shared.DomainError
	switch {
	case inSet(tradingAuthErrorCodes, e.ErrorCode):
		base = marketplace.ErrUnauthorized
	case inSet(tradingNotFoundCodes, e.ErrorCode):
		base = marketplace.ErrNotFound
	case e.ErrorClassification == "SystemError":
		base = marketplace.ErrUpstreamUnavailable
	default:
		base = marketplace.ErrUpstreamRejected
	}

	out := base.WithReason(e.ErrorCode).WithRaw(body)
	if base == marketplace.ErrUpstreamRejected {
		msg := e.LongMessage
		if msg == "" {
			msg = e.ShortMessage
		}
		if msg != "" {
			out = out.WithMessage(msg)
		}
	}
	return out
}

func inSet(set map[string]struct{}, code string) bool {
	_, ok := set[code]
	return ok
}

// FindItemByLegacyID reads a listing by its item id
func (c *TradingAPI) FindItemByLegacyID(ctx context.Context, accountID uuid.UUID, itemID string) (*marketplace.Item, error) {
	return c.getItem(ctx, accountID, getItemRequest{ItemID: itemID, DetailLevel: "ReturnAll"},
		telemetry.WithAttribute(telemetry.AttrItemID, itemID))
}

// FindItemBySKU reads a SKU-tracked listing
func (c *TradingAPI) FindItemBySKU(ctx context.Context, accountID uuid.UUID, sku string) (*marketplace.Item, error) {
	return c.getItem(ctx, accountID, getItemRequest{SKU: sku, DetailLevel: "ReturnAll"},
		telemetry.WithAttribute(telemetry.AttrSKU, sku))
}

func (c *TradingAPI) getItem(ctx context.Context, accountID uuid.UUID, in getItemRequest, attr telemetry.SpanOption) (*marketplace.Item, error) {
	var item *marketplace.Item
	err := c.t.invoke(ctx, call{
		family: familyTrading, name: "GetItem", accountID: accountID, idempotent: true,
		attrs: []telemetry.SpanOption{attr},
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out getItemResponse
		raw, err := c.send(ctx, tok, "GetItem", in, &out)
		if err != nil {
			return err
		}
		if out.Item.ItemID == "" {
			return marketplace.ErrNotFound.WithRaw(raw)
		}
		item = out.Item.toItem(raw)
		return nil
	})
	return item, err
}

// FetchOrder reads one order with GetOrders. Accepts both the REST order id
// and the legacy itemId-transactionId form.
func (c *TradingAPI) FetchOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*marketplace.Order, error) {
	in := getOrdersRequest{DetailLevel: "ReturnAll"}
	in.OrderIDArray.OrderID = []string{orderID}

	var order *marketplace.Order
	err := c.t.invoke(ctx, call{
		family: familyTrading, name: "GetOrders", accountID: accountID, idempotent: true,
		attrs: []telemetry.SpanOption{telemetry.WithAttribute(telemetry.AttrOrderID, orderID)},
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out getOrdersResponse
		raw, err := c.send(ctx, tok, "GetOrders", in, &out)
		if err != nil {
			return err
		}
		if len(out.OrderArray.Orders) == 0 {
			return marketplace.ErrNotFound.WithRaw(raw)
		}
		order = out.OrderArray.Orders[0].toOrder(raw)
		return nil
	})
	return order, err
}

// CreateShippingFulfillment marks the shipped line items of a legacy order
// with CompleteSale, one call per line item. The Trading API issues no
// fulfillment id, so the returned reference is always empty. Never retried.
func (c *TradingAPI) CreateShippingFulfillment(ctx context.Context, accountID uuid.UUID, orderID string, req marketplace.ShipmentRequest) (string, error) {
	if len(req.LineItems) == 0 {
		return "", shared.ErrInvalidInput.WithMessage("shipment has no line items")
	}
	for _, line := range req.LineItems {
		in := completeSaleRequest{Shipped: true, OrderLineItemID: line.LineItemID}
		in.Shipment.ShipmentTrackingDetails = shipmentTrackingDetails{
			ShipmentTrackingNumber: req.TrackingNumber,
			ShippingCarrierUsed:    req.Carrier,
		}
		if !req.ShippedAt.IsZero() {
			in.Shipment.ShippedTime = req.ShippedAt.UTC().Format(time.RFC3339)
		}

		err := c.t.invoke(ctx, call{
			family: familyTrading, name: "CompleteSale", accountID: accountID,
			attrs: []telemetry.SpanOption{telemetry.WithAttribute(telemetry.AttrOrderID, orderID)},
		}, func(ctx context.Context, tok *marketplace.AccessToken) error {
			var out completeSaleResponse
			_, err := c.send(ctx, tok, "CompleteSale", in, &out)
			return err
		})
		if err != nil {
			return "", err
		}
	}
	return "", nil
}

// SendBuyerMessage sends an Ask-a-Question message to the buyer of an item.
// Never retried: a lost response must not deliver the message twice.
func (c *TradingAPI) SendBuyerMessage(ctx context.Context, accountID uuid.UUID, msg marketplace.BuyerMessage) error {
	in := addMemberMessageRequest{ItemID: msg.ItemID}
	in.MemberMessage.Body = msg.Body
	in.MemberMessage.Subject = msg.Subject
	in.MemberMessage.RecipientID = msg.Recipient
	in.MemberMessage.QuestionType = msg.QuestionType
	if in.MemberMessage.QuestionType == "" {
		in.MemberMessage.QuestionType = DefaultQuestionType
	}

	return c.t.invoke(ctx, call{
		family: familyTrading, name: "AddMemberMessageAAQToPartner", accountID: accountID,
		attrs: []telemetry.SpanOption{telemetry.WithAttribute(telemetry.AttrItemID, msg.ItemID)},
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out addMemberMessageResponse
		_, err := c.send(ctx, tok, "AddMemberMessageAAQToPartner", in, &out)
		return err
	})
}

// ListItemMessages pages through the member messages of one listing. The
// offset is rounded down to a page boundary of limit.
func (c *TradingAPI) ListItemMessages(ctx context.Context, accountID uuid.UUID, itemID string, page marketplace.PageRequest) (*marketplace.Page[marketplace.MemberMessage], error) {
	page = page.Normalize(maxMessagePageSize)
	in := getMemberMessagesRequest{
		ItemID:          itemID,
		MailMessageType: "All",
		Pagination: tradingPagination{
			EntriesPerPage: page.Limit,
			PageNumber:     page.Offset/page.Limit + 1,
		},
	}

	var result *marketplace.Page[marketplace.MemberMessage]
	err := c.t.invoke(ctx, call{
		family: familyTrading, name: "GetMemberMessages", accountID: accountID, idempotent: true,
		attrs: []telemetry.SpanOption{telemetry.WithAttribute(telemetry.AttrItemID, itemID)},
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out getMemberMessagesResponse
		if _, err := c.send(ctx, tok, "GetMemberMessages", in, &out); err != nil {
			return err
		}
		msgs := make([]marketplace.MemberMessage, 0, len(out.MemberMessage.Exchanges))
		for i := range out.MemberMessage.Exchanges {
			msgs = append(msgs, out.MemberMessage.Exchanges[i].toMessage(itemID))
		}
		result = &marketplace.Page[marketplace.MemberMessage]{
			Items:   msgs,
			Total:   out.PaginationResult.TotalNumberOfEntries,
			HasMore: out.HasMoreItems || in.Pagination.PageNumber < out.PaginationResult.TotalNumberOfPages,
		}
		return nil
	})
	return result, err
}
