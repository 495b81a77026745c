package ebay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRestAPI(t *testing.T, handler http.HandlerFunc) (*RestAPI, *fakeTokens) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	tokens := &fakeTokens{}
	return NewRestAPI(testConfig(server.URL), tokens, withRetryInterval(time.Millisecond)), tokens
}

func TestRestAPI_FindItemBySKU(t *testing.T) {
	api, _ := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sell/inventory/v1/inventory_item/ABC 123", r.URL.Path)
		assert.Equal(t, "Bearer token-0", r.Header.Get("Authorization"))
		assert.Equal(t, "EBAY_US", r.Header.Get("X-EBAY-C-MARKETPLACE-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"sku": "ABC 123",
			"condition": "NEW",
			"product": {"title": "Blue widget"},
			"availability": {"shipToLocationAvailability": {"quantity": 7}}
		}`)
	})

	item, err := api.FindItemBySKU(context.Background(), uuid.New(), "ABC 123")
	require.NoError(t, err)
	assert.Equal(t, "ABC 123", item.ID)
	assert.Equal(t, marketplace.SourceModern, item.SourceAPI)
	assert.Equal(t, "Blue widget", item.Title)
	assert.Equal(t, 7, item.Quantity)
	assert.Equal(t, "NEW", item.Condition)
	assert.NotEmpty(t, item.Raw)
}

func TestRestAPI_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantCode   string
		wantReason string
	}{
		{"404 is not found", http.StatusNotFound, `{"errors":[{"errorId":25710,"message":"We didn't find the resource"}]}`, "NOT_FOUND", "25710"},
		{"400 with not-found id", http.StatusBadRequest, `{"errors":[{"errorId":32100,"message":"Invalid order ID"}]}`, "NOT_FOUND", "32100"},
		{"400 is rejected", http.StatusBadRequest, `{"errors":[{"errorId":25001,"message":"System error","longMessage":"Bad SKU"}]}`, "UPSTREAM_REJECTED", "25001"},
		{"post-order error envelope", http.StatusConflict, `{"error":[{"errorId":1614,"message":"Return is closed"}]}`, "UPSTREAM_REJECTED", "1614"},
		{"409 without body", http.StatusConflict, ``, "UPSTREAM_REJECTED", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := restError(tt.status, []byte(tt.body))
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantCode, de.Code)
			assert.Equal(t, tt.wantReason, de.Reason)
			assert.Equal(t, []byte(tt.body), de.Raw)
		})
	}

	err := restError(http.StatusBadRequest, []byte(`{"errors":[{"errorId":25001,"longMessage":"Bad SKU"}]}`))
	assert.Equal(t, "Bad SKU", err.Error())
}

func TestRestAPI_UnauthorizedForcesOneRefresh(t *testing.T) {
	var calls int32
	api, tokens := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") == "Bearer token-0" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"orderId":"04-1","orderFulfillmentStatus":"NOT_STARTED","lineItems":[]}`)
	})

	order, err := api.FetchOrder(context.Background(), uuid.New(), "04-1")
	require.NoError(t, err)
	assert.Equal(t, "04-1", order.ID)
	assert.Equal(t, []string{"token-0"}, tokens.forced)
	assert.Empty(t, tokens.invalidated)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRestAPI_UnauthorizedTwiceInvalidates(t *testing.T) {
	api, tokens := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := api.FetchOrder(context.Background(), uuid.New(), "04-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, marketplace.ErrUnauthorized)
	assert.Len(t, tokens.forced, 1)
	assert.Equal(t, []string{reasonRejectedTwice}, tokens.invalidated)
}

func TestRestAPI_TokenErrorSkipsUpstream(t *testing.T) {
	var calls int32
	api, tokens := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	tokens.getErr = marketplace.ErrNoRefreshToken

	_, err := api.FindItemBySKU(context.Background(), uuid.New(), "SKU")
	assert.ErrorIs(t, err, marketplace.ErrNoRefreshToken)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRestAPI_RetriesOnlyIdempotentCalls(t *testing.T) {
	var calls int32
	api, _ := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := api.FetchOrder(context.Background(), uuid.New(), "04-1")
	assert.ErrorIs(t, err, marketplace.ErrUpstreamUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	_, err = api.CreateShippingFulfillment(context.Background(), uuid.New(), "04-1", marketplace.ShipmentRequest{
		LineItems:      []marketplace.ShipLine{{LineItemID: "L1", Quantity: 1}},
		TrackingNumber: "1Z",
		Carrier:        "UPS",
	})
	assert.ErrorIs(t, err, marketplace.ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRestAPI_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RequestTimeout = 30 * time.Millisecond
	cfg.RetryAttempts = 1
	api := NewRestAPI(cfg, &fakeTokens{})

	_, err := api.FetchOrder(context.Background(), uuid.New(), "04-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, marketplace.ErrUpstreamTimeout)
	assert.Equal(t, shared.KindTimeout, shared.KindOf(err))
}

func TestRestAPI_FetchOrderNormalizes(t *testing.T) {
	api, _ := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"orderId": "04-09876-54321",
			"legacyOrderId": "110000000001-2000000001",
			"creationDate": "2024-03-01T10:00:00.000Z",
			"orderFulfillmentStatus": "IN_PROGRESS",
			"orderPaymentStatus": "PAID",
			"buyer": {"username": "buyer_one"},
			"pricingSummary": {"total": {"value": "25.50", "currency": "USD"}},
			"lineItems": [
				{"lineItemId": "L1", "legacyItemId": "110000000001", "sku": "A", "quantity": 1, "lineItemFulfillmentStatus": "FULFILLED"},
				{"lineItemId": "L2", "legacyItemId": "110000000002", "sku": "B", "quantity": 2, "lineItemFulfillmentStatus": "NOT_STARTED",
				 "total": {"value": "10.00", "currency": "USD"}}
			]
		}`)
	})

	order, err := api.FetchOrder(context.Background(), uuid.New(), "04-09876-54321")
	require.NoError(t, err)
	assert.Equal(t, marketplace.FulfillmentInProgress, order.FulfillmentStatus)
	assert.Equal(t, "buyer_one", order.BuyerUsername)
	assert.Equal(t, "110000000001-2000000001", order.LegacyOrderID)
	assert.True(t, decimal.RequireFromString("25.50").Equal(order.Total.Value))
	require.Len(t, order.LineItems, 2)
	assert.True(t, order.LineItems[0].Fulfilled)
	assert.False(t, order.LineItems[1].Fulfilled)
	assert.Equal(t, "110000000002", order.LineItems[1].LegacyItemID)
	assert.Equal(t, 2024, order.CreatedAt.Year())
}

func TestRestAPI_ListOrders(t *testing.T) {
	api, _ := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sell/fulfillment/v1/order", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		_, _ = io.WriteString(w, `{"total": 3, "limit": 200, "offset": 0, "orders": [
			{"orderId": "A", "lineItems": []},
			{"orderId": "B", "lineItems": []}
		]}`)
	})

	page, err := api.ListOrders(context.Background(), uuid.New(), marketplace.PageRequest{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "B", page.Items[1].ID)
	assert.NotEmpty(t, page.Items[1].Raw)
}

func TestRestAPI_CreateShippingFulfillment(t *testing.T) {
	shipped := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	api, _ := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sell/fulfillment/v1/order/04-1/shipping_fulfillment", r.URL.Path)

		var body shippingFulfillmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1Z999", body.TrackingNumber)
		assert.Equal(t, "UPS", body.ShippingCarrierCode)
		assert.Equal(t, "2024-03-02T12:00:00.000Z", body.ShippedDate)
		assert.Equal(t, []shippingFulfillmentLine{{LineItemID: "L1", Quantity: 2}}, body.LineItems)

		w.Header().Set("Location", "https://api.ebay.com/sell/fulfillment/v1/order/04-1/shipping_fulfillment/9-8765")
		w.WriteHeader(http.StatusCreated)
	})

	id, err := api.CreateShippingFulfillment(context.Background(), uuid.New(), "04-1", marketplace.ShipmentRequest{
		LineItems:      []marketplace.ShipLine{{LineItemID: "L1", Quantity: 2}},
		TrackingNumber: "1Z999",
		Carrier:        "UPS",
		ShippedAt:      shipped,
	})
	require.NoError(t, err)
	assert.Equal(t, "9-8765", id)
}

func TestRestAPI_CreateShippingFulfillmentRejected(t *testing.T) {
	api, _ := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errors":[{"errorId":32700,"message":"Invalid carrier"}]}`)
	})

	_, err := api.CreateShippingFulfillment(context.Background(), uuid.New(), "04-1", marketplace.ShipmentRequest{
		LineItems:      []marketplace.ShipLine{{LineItemID: "L1", Quantity: 1}},
		TrackingNumber: "X",
		Carrier:        "NOPE",
	})
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, marketplace.ErrFulfillmentRejected.Code, de.Code)
	assert.Equal(t, "32700", de.Reason)
	assert.Equal(t, "Invalid carrier", de.Message)
}

func TestRestAPI_PostOrder(t *testing.T) {
	type seen struct {
		method, path, auth string
		body               map[string]any
	}
	var requests []seen
	api, _ := newRestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		s := seen{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&s.body)
		}
		requests = append(requests, s)

		switch r.URL.Path {
		case "/post-order/v2/return/5001":
			_, _ = io.WriteString(w, `{"summary":{"returnId":"5001","orderId":"04-1","buyerLoginName":"buyer_one",
				"state":"RETURN_REQUESTED","status":"WAITING_FOR_SELLER",
				"sellerTotalRefund":{"estimatedRefundAmount":{"value":12.5,"currency":"USD"}}}}`)
		case "/post-order/v2/inquiry/7001":
			_, _ = io.WriteString(w, `{"inquiryId":"7001","itemId":"110000000001","state":"OPEN","status":"WAITING_SELLER_RESPONSE","buyer":"buyer_one"}`)
		case "/post-order/v2/cancellation/check_eligibility":
			_, _ = io.WriteString(w, `{"legacyOrderId":"110-220","eligible":false,"failureReason":["ORDER_ALREADY_SHIPPED"]}`)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()
	accountID := uuid.New()

	ret, err := api.GetReturn(ctx, accountID, "5001")
	require.NoError(t, err)
	assert.Equal(t, "WAITING_FOR_SELLER", ret.Status)
	assert.True(t, decimal.RequireFromString("12.5").Equal(ret.RefundAmount.Value))

	require.NoError(t, api.AcceptReturn(ctx, accountID, "5001", "ok"))
	require.NoError(t, api.IssueReturnRefund(ctx, accountID, "5001",
		&marketplace.Money{Value: decimal.RequireFromString("5.00"), Currency: "USD"}, ""))

	inq, err := api.GetInquiry(ctx, accountID, "7001")
	require.NoError(t, err)
	assert.Equal(t, "110000000001", inq.ItemID)

	require.NoError(t, api.IssueInquiryRefund(ctx, accountID, "7001", "sorry"))
	require.NoError(t, api.ProvideInquiryShipment(ctx, accountID, "7001", marketplace.ShipmentInfo{
		TrackingNumber: "1Z", ShippingCarrierCode: "UPS",
	}))
	require.NoError(t, api.EscalateInquiry(ctx, accountID, "7001", "buyer unresponsive"))

	elig, err := api.CheckCancellationEligibility(ctx, accountID, "110-220")
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
	assert.Equal(t, []string{"ORDER_ALREADY_SHIPPED"}, elig.ReasonCodes)

	require.Len(t, requests, 8)
	for _, r := range requests {
		assert.Equal(t, "IAF token-0", r.auth, r.path)
	}
	assert.Equal(t, "/post-order/v2/return/5001/decide", requests[1].path)
	assert.Equal(t, "ACCEPT", requests[1].body["decision"])
	assert.Equal(t, "/post-order/v2/return/5001/issue_refund", requests[2].path)
	assert.Contains(t, requests[2].body, "refundDetail")
	assert.Equal(t, "/post-order/v2/inquiry/7001/provide_shipment_info", requests[5].path)
	assert.Equal(t, "1Z", requests[5].body["trackingNumber"])
	assert.Equal(t, "/post-order/v2/inquiry/7001/escalate", requests[6].path)
}
