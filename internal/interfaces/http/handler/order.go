package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/application/gateway"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/interfaces/http/dto"
)

// OrderService is the seller operation surface
type OrderService interface {
	GetOrder(ctx context.Context, accountID uuid.UUID, orderID string) (*marketplace.Order, error)
	ListOrders(ctx context.Context, accountID uuid.UUID, page marketplace.PageRequest) (*marketplace.Page[marketplace.Order], error)
	ShipOrder(ctx context.Context, accountID uuid.UUID, in gateway.ShipOrderInput) (*marketplace.FulfillmentAction, error)
	SendOrderMessage(ctx context.Context, accountID uuid.UUID, in gateway.SendMessageInput) (*marketplace.FulfillmentAction, error)
	GetOrderMessages(ctx context.Context, accountID uuid.UUID, orderID string, page marketplace.PageRequest) (*gateway.OrderMessages, error)
	ResolveInquiry(ctx context.Context, accountID uuid.UUID, inquiryID string, in gateway.InquiryResolution) (*marketplace.FulfillmentAction, error)
	GetInquiry(ctx context.Context, accountID uuid.UUID, inquiryID string) (*marketplace.Inquiry, error)
	ResolveReturn(ctx context.Context, accountID uuid.UUID, returnID string, in gateway.ReturnResolution) (*marketplace.FulfillmentAction, error)
	GetReturn(ctx context.Context, accountID uuid.UUID, returnID string) (*marketplace.Return, error)
	CheckCancellationEligibility(ctx context.Context, accountID uuid.UUID, legacyOrderID string) (*marketplace.CancellationEligibility, error)
	CheckItemExists(ctx context.Context, accountID uuid.UUID, sku, itemID string) (*gateway.ItemExistence, error)
}

// OrderHandler handles order, item, return and inquiry endpoints under an account
type OrderHandler struct {
	BaseHandler
	accounts AccountLookup
	orders   OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(accounts AccountLookup, orders OrderService) *OrderHandler {
	return &OrderHandler{accounts: accounts, orders: orders}
}

// account checks ownership of :id before any marketplace call
func (h *OrderHandler) account(c *gin.Context) (uuid.UUID, bool) {
	account, ok := loadOwnedAccount(c, &h.BaseHandler, h.accounts)
	if !ok {
		return uuid.Nil, false
	}
	return account.ID, true
}

// ListOrders pages through the account's orders
// GET /accounts/:id/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	var q dto.PageQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page := q.ToPageRequest().Normalize(200)
	orders, err := h.orders.ListOrders(c.Request.Context(), id, page)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, orders.Items, dto.NewPageMeta(orders, page))
}

// GetOrder returns one order
// GET /accounts/:id/orders/:orderId
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id, c.Param("orderId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// ShipOrder records a shipment with tracking
// POST /accounts/:id/orders/:orderId/shipments
func (h *OrderHandler) ShipOrder(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	var req dto.ShipOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	action, err := h.orders.ShipOrder(c.Request.Context(), id, req.ToInput(c.Param("orderId")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, action)
}

// SendMessage messages the order's buyer
// POST /accounts/:id/orders/:orderId/messages
func (h *OrderHandler) SendMessage(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}
	action, err := h.orders.SendOrderMessage(c.Request.Context(), id, req.ToInput(c.Param("orderId")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, action)
}

// GetMessages returns the message threads of the order's line items
// GET /accounts/:id/orders/:orderId/messages
func (h *OrderHandler) GetMessages(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	var q dto.PageQuery
	if !h.bindQuery(c, &q) {
		return
	}
	msgs, err := h.orders.GetOrderMessages(c.Request.Context(), id, c.Param("orderId"), q.ToPageRequest().Normalize(200))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, msgs)
}

// CancellationEligibility asks whether a legacy order can still be cancelled
// GET /accounts/:id/orders/:orderId/cancellation-eligibility
func (h *OrderHandler) CancellationEligibility(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	res, err := h.orders.CheckCancellationEligibility(c.Request.Context(), id, c.Param("orderId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// ItemExists reports whether and where an item is listed
// GET /accounts/:id/items/exists
func (h *OrderHandler) ItemExists(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	var q dto.ItemExistsQuery
	if !h.bindQuery(c, &q) {
		return
	}
	res, err := h.orders.CheckItemExists(c.Request.Context(), id, q.SKU, q.ItemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// GetInquiry re-reads an inquiry
// GET /accounts/:id/inquiries/:inquiryId
func (h *OrderHandler) GetInquiry(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	inquiry, err := h.orders.GetInquiry(c.Request.Context(), id, c.Param("inquiryId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inquiry)
}

// ResolveInquiry refunds, proves shipment or escalates an inquiry
// POST /accounts/:id/inquiries/:inquiryId/resolution
func (h *OrderHandler) ResolveInquiry(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	var req dto.ResolveInquiryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	action, err := h.orders.ResolveInquiry(c.Request.Context(), id, c.Param("inquiryId"), req.ToResolution())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, action)
}

// GetReturn re-reads a return
// GET /accounts/:id/returns/:returnId
func (h *OrderHandler) GetReturn(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	ret, err := h.orders.GetReturn(c.Request.Context(), id, c.Param("returnId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ret)
}

// ResolveReturn accepts or refunds a return
// POST /accounts/:id/returns/:returnId/resolution
func (h *OrderHandler) ResolveReturn(c *gin.Context) {
	id, ok := h.account(c)
	if !ok {
		return
	}
	var req dto.ResolveReturnRequest
	if !h.bindJSON(c, &req) {
		return
	}
	action, err := h.orders.ResolveReturn(c.Request.Context(), id, c.Param("returnId"), req.ToResolution())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, action)
}
