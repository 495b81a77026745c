package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/sellerlink/gateway/internal/infrastructure/telemetry"
)

// Maximum page size of the getOrders call
const maxOrderPageSize = 200

// REST error ids that mean the record does not exist even when the status is 400
var restNotFoundReasons = map[int]struct{}{
	25710: {}, // Inventory: resource not found
	32100: {}, // Fulfillment: invalid order id
}

// RestAPI is the modern REST family: Sell Inventory, Sell Fulfillment and Post-Order.
type RestAPI struct {
	t *transport
}

// NewRestAPI creates the REST client. Credentials come from tokens only.
func NewRestAPI(cfg *Config, tokens marketplace.TokenSource, opts ...Option) *RestAPI {
	return &RestAPI{t: newTransport(cfg, tokens, opts...)}
}

var (
	_ marketplace.ItemFinder       = (*RestAPI)(nil)
	_ marketplace.OrderReader      = (*RestAPI)(nil)
	_ marketplace.OrderLister      = (*RestAPI)(nil)
	_ marketplace.Fulfiller        = (*RestAPI)(nil)
	_ marketplace.ReturnsAPI       = (*RestAPI)(nil)
	_ marketplace.InquiriesAPI     = (*RestAPI)(nil)
	_ marketplace.CancellationsAPI = (*RestAPI)(nil)
)

// restRequest is one REST round trip
type restRequest struct {
	method string
	path   string
	query  url.Values
	body   any
	// postOrder selects the IAF authorization scheme of the Post-Order API
	postOrder bool
}

// restResponse carries what callers need beyond the decoded body
type restResponse struct {
	header http.Header
	body   []byte
}

// send performs r with tok, decoding a 2xx body into out when out is non-nil
func (c *RestAPI) send(ctx context.Context, tok *marketplace.AccessToken, r restRequest, out any) (*restResponse, error) {
	u := c.t.cfg.EndpointsFor(tok.Environment).APIBaseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return nil, fmt.Errorf("ebay: failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to create request: %w", err)
	}
	if r.postOrder {
		req.Header.Set("Authorization", "IAF "+tok.Value)
	} else {
		req.Header.Set("Authorization", "Bearer "+tok.Value)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.t.cfg.MarketplaceID)

	resp, body, err := c.t.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, restError(resp.StatusCode, body)
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, marketplace.ErrUpstreamRejected.
				WithMessage("Malformed marketplace response").
				WithRaw(body).
				WithCause(err)
		}
	}
	return &restResponse{header: resp.Header, body: body}, nil
}

// restError translates a non-2xx REST answer
func restError(status int, body []byte) error {
	var env restErrorEnvelope
	_ = json.Unmarshal(body, &env)
	detail, hasDetail := env.first()

	var base *shared.DomainError
	switch {
	case status == http.StatusUnauthorized:
		base = marketplace.ErrUnauthorized
	case status == http.StatusNotFound:
		base = marketplace.ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		base = marketplace.ErrUpstreamUnavailable
	case hasDetail && isRestNotFound(detail.ErrorID):
		base = marketplace.ErrNotFound
	default:
		base = marketplace.ErrUpstreamRejected
	}

	e := base.WithRaw(body)
	if hasDetail && detail.ErrorID != 0 {
		e = e.WithReason(itoa(detail.ErrorID))
	}
	if base == marketplace.ErrUpstreamRejected && hasDetail {
		msg := detail.LongMessage
		if msg == "" {
			msg = detail.Message
		}
		if msg != "" {
			e = e.WithMessage(msg)
		}
	}
	return e
}

func isRestNotFound(id int) bool {
	_, ok := restNotFoundReasons[id]
	return ok
}

// recode re-labels an UpstreamRejected error with a more specific code,
// keeping the upstream reason and payload.
func recode(err error, target *shared.DomainError) error {
	var de *shared.DomainError
	if !errors.As(err, &de) || de.Code != marketplace.ErrUpstreamRejected.Code {
		return err
	}
	out := target.WithReason(de.Reason).WithRaw(de.Raw)
	if de.Message != marketplace.ErrUpstreamRejected.Message {
		out = out.WithMessage(de.Message)
	}
	return out
}

// FindItemBySKU reads an inventory item
func (c *RestAPI) FindItemBySKU(ctx context.Context, accountID uuid.UUID, sku string) (*marketplace.Item, error) {
	var item *marketplace.Item
	err := c.t.invoke(ctx, call{
		family: familyInventory, name: "get_inventory_item", accountID: accountID, idempotent: true,
		attrs: []telemetry.SpanOption{telemetry.WithAttribute(telemetry.AttrSKU, sku)},
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out inventoryItem
		resp, err := c.send(ctx, tok, restRequest{
			method: http.MethodGet,
			path:   "/sell/inventory/v1/inventory_item/" + url.PathEscape(sku),
		}, &out)
		if err != nil {
			return err
		}
		if out.SKU == "" {
			out.SKU = sku
		}
		item = out.toItem(resp.body)
		return nil
	})
	return item, err
}

// FetchOrder reads one order by its REST order id
func (c *RestAPI) FetchOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*marketplace.Order, error) {
	var order *marketplace.Order
	err := c.t.invoke(ctx, call{
		family: familyFulfillment, name: "get_order", accountID: accountID, idempotent: true,
		attrs: []telemetry.SpanOption{telemetry.WithAttribute(telemetry.AttrOrderID, orderID)},
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out fulfillmentOrder
		resp, err := c.send(ctx, tok, restRequest{
			method: http.MethodGet,
			path:   "/sell/fulfillment/v1/order/" + url.PathEscape(orderID),
		}, &out)
		if err != nil {
			return err
		}
		order = out.toOrder(resp.body)
		return nil
	})
	return order, err
}

// ListOrders pages through the seller's orders, newest first
func (c *RestAPI) ListOrders(ctx context.Context, accountID uuid.UUID, page marketplace.PageRequest) (*marketplace.Page[marketplace.Order], error) {
	page = page.Normalize(maxOrderPageSize)
	var result *marketplace.Page[marketplace.Order]
	err := c.t.invoke(ctx, call{
		family: familyFulfillment, name: "get_orders", accountID: accountID, idempotent: true,
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out orderSearchPage
		_, err := c.send(ctx, tok, restRequest{
			method: http.MethodGet,
			path:   "/sell/fulfillment/v1/order",
			query:  url.Values{"limit": {itoa(page.Limit)}, "offset": {itoa(page.Offset)}},
		}, &out)
		if err != nil {
			return err
		}
		orders := make([]marketplace.Order, 0, len(out.Orders))
		for _, raw := range out.Orders {
			var o fulfillmentOrder
			if err := json.Unmarshal(raw, &o); err != nil {
				return marketplace.ErrUpstreamRejected.WithMessage("Malformed order in list").WithRaw(raw).WithCause(err)
			}
			orders = append(orders, *o.toOrder(raw))
		}
		result = &marketplace.Page[marketplace.Order]{
			Items:   orders,
			Total:   out.Total,
			HasMore: page.Offset+len(orders) < out.Total,
		}
		return nil
	})
	return result, err
}

// CreateShippingFulfillment marks line items as shipped. The fulfillment id
// is the last segment of the Location header.
func (c *RestAPI) CreateShippingFulfillment(ctx context.Context, accountID uuid.UUID, orderID string, req marketplace.ShipmentRequest) (string, error) {
	body := shippingFulfillmentRequest{
		LineItems:           make([]shippingFulfillmentLine, 0, len(req.LineItems)),
		ShippedDate:         ebayTime(req.ShippedAt),
		ShippingCarrierCode: req.Carrier,
		TrackingNumber:      req.TrackingNumber,
	}
	for _, li := range req.LineItems {
		body.LineItems = append(body.LineItems, shippingFulfillmentLine{LineItemID: li.LineItemID, Quantity: li.Quantity})
	}

	var fulfillmentID string
	err := c.t.invoke(ctx, call{
		family: familyFulfillment, name: "create_shipping_fulfillment", accountID: accountID,
		attrs: []telemetry.SpanOption{
			telemetry.WithAttribute(telemetry.AttrOrderID, orderID),
			telemetry.WithAttribute(telemetry.AttrItemCount, len(req.LineItems)),
		},
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out struct {
			FulfillmentID string `json:"fulfillmentId"`
		}
		resp, err := c.send(ctx, tok, restRequest{
			method: http.MethodPost,
			path:   "/sell/fulfillment/v1/order/" + url.PathEscape(orderID) + "/shipping_fulfillment",
			body:   body,
		}, &out)
		if err != nil {
			return err
		}
		fulfillmentID = out.FulfillmentID
		if loc := resp.header.Get("Location"); loc != "" {
			fulfillmentID = path.Base(strings.TrimRight(loc, "/"))
		}
		return nil
	})
	if err != nil {
		return "", recode(err, marketplace.ErrFulfillmentRejected)
	}
	return fulfillmentID, nil
}

// GetReturn reads a return
func (c *RestAPI) GetReturn(ctx context.Context, accountID uuid.UUID, returnID string) (*marketplace.Return, error) {
	var ret *marketplace.Return
	err := c.t.invoke(ctx, call{
		family: familyPostOrder, name: "get_return", accountID: accountID, idempotent: true,
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out returnDetail
		resp, err := c.send(ctx, tok, restRequest{
			method:    http.MethodGet,
			path:      "/post-order/v2/return/" + url.PathEscape(returnID),
			postOrder: true,
		}, &out)
		if err != nil {
			return err
		}
		if out.Summary.ReturnID == "" {
			out.Summary.ReturnID = returnID
		}
		ret = out.toReturn(resp.body)
		return nil
	})
	return ret, err
}

// AcceptReturn approves the buyer's return request
func (c *RestAPI) AcceptReturn(ctx context.Context, accountID uuid.UUID, returnID, comments string) error {
	return c.postOrderAction(ctx, accountID, "decide_return",
		"/post-order/v2/return/"+url.PathEscape(returnID)+"/decide",
		returnDecisionRequest{Decision: "ACCEPT", Comments: commentText(comments)})
}

// IssueReturnRefund refunds a return. A nil amount lets the marketplace
// refund the full estimated amount.
func (c *RestAPI) IssueReturnRefund(ctx context.Context, accountID uuid.UUID, returnID string, amount *marketplace.Money, comments string) error {
	body := returnRefundRequest{Comments: commentText(comments)}
	if amount != nil {
		a := fromMoney(amount)
		body.RefundDetail = &refundDetail{
			ItemizedRefundDetail: []itemizedRefund{{RefundAmount: a, RefundFeeType: "PURCHASE_PRICE"}},
			TotalAmount:          a,
		}
	}
	return c.postOrderAction(ctx, accountID, "issue_return_refund",
		"/post-order/v2/return/"+url.PathEscape(returnID)+"/issue_refund", body)
}

// GetInquiry reads an inquiry
func (c *RestAPI) GetInquiry(ctx context.Context, accountID uuid.UUID, inquiryID string) (*marketplace.Inquiry, error) {
	var inq *marketplace.Inquiry
	err := c.t.invoke(ctx, call{
		family: familyPostOrder, name: "get_inquiry", accountID: accountID, idempotent: true,
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out inquiryDetail
		resp, err := c.send(ctx, tok, restRequest{
			method:    http.MethodGet,
			path:      "/post-order/v2/inquiry/" + url.PathEscape(inquiryID),
			postOrder: true,
		}, &out)
		if err != nil {
			return err
		}
		if out.InquiryID == "" {
			out.InquiryID = inquiryID
		}
		inq = out.toInquiry(resp.body)
		return nil
	})
	return inq, err
}

// IssueInquiryRefund refunds the buyer and closes the inquiry
func (c *RestAPI) IssueInquiryRefund(ctx context.Context, accountID uuid.UUID, inquiryID, comments string) error {
	return c.postOrderAction(ctx, accountID, "issue_inquiry_refund",
		"/post-order/v2/inquiry/"+url.PathEscape(inquiryID)+"/issue_refund",
		inquiryCommentRequest{Comments: commentText(comments)})
}

// ProvideInquiryShipment answers an inquiry with tracking information
func (c *RestAPI) ProvideInquiryShipment(ctx context.Context, accountID uuid.UUID, inquiryID string, info marketplace.ShipmentInfo) error {
	body := inquiryShipmentRequest{
		ShippingCarrierName: info.ShippingCarrierCode,
		TrackingNumber:      info.TrackingNumber,
	}
	if !info.ShippedAt.IsZero() {
		body.ShippingDate = &postOrderDate{Value: ebayTime(info.ShippedAt)}
	}
	return c.postOrderAction(ctx, accountID, "provide_shipment_info",
		"/post-order/v2/inquiry/"+url.PathEscape(inquiryID)+"/provide_shipment_info", body)
}

// EscalateInquiry escalates an inquiry to a case
func (c *RestAPI) EscalateInquiry(ctx context.Context, accountID uuid.UUID, inquiryID, comments string) error {
	return c.postOrderAction(ctx, accountID, "escalate_inquiry",
		"/post-order/v2/inquiry/"+url.PathEscape(inquiryID)+"/escalate",
		inquiryCommentRequest{Comments: commentText(comments), EscalateInquiryReason: "OTHERS"})
}

// CheckCancellationEligibility asks whether the seller may cancel an order
func (c *RestAPI) CheckCancellationEligibility(ctx context.Context, accountID uuid.UUID, legacyOrderID string) (*marketplace.CancellationEligibility, error) {
	var result *marketplace.CancellationEligibility
	// A pure read despite the POST, so it is safe to retry.
	err := c.t.invoke(ctx, call{
		family: familyPostOrder, name: "check_cancellation_eligibility", accountID: accountID, idempotent: true,
		attrs: []telemetry.SpanOption{telemetry.WithAttribute(telemetry.AttrOrderID, legacyOrderID)},
	}, func(ctx context.Context, tok *marketplace.AccessToken) error {
		var out cancellationEligibilityResponse
		_, err := c.send(ctx, tok, restRequest{
			method:    http.MethodPost,
			path:      "/post-order/v2/cancellation/check_eligibility",
			body:      cancellationEligibilityRequest{LegacyOrderID: legacyOrderID},
			postOrder: true,
		}, &out)
		if err != nil {
			return err
		}
		result = &marketplace.CancellationEligibility{
			LegacyOrderID: legacyOrderID,
			Eligible:      out.Eligible,
		}
		if !out.Eligible {
			result.ReasonCodes = out.FailureReason
		}
		return nil
	})
	return result, err
}

// postOrderAction performs a non-idempotent Post-Order write with no response body
func (c *RestAPI) postOrderAction(ctx context.Context, accountID uuid.UUID, name, p string, body any) error {
	return c.t.invoke(ctx, call{family: familyPostOrder, name: name, accountID: accountID},
		func(ctx context.Context, tok *marketplace.AccessToken) error {
			_, err := c.send(ctx, tok, restRequest{method: http.MethodPost, path: p, body: body, postOrder: true}, nil)
			return err
		})
}
