package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sellerlink/gateway/internal/interfaces/http/handler"
	"github.com/sellerlink/gateway/internal/interfaces/http/middleware"
)

// Handlers are the gateway's HTTP handlers
type Handlers struct {
	Accounts *handler.AccountHandler
	Orders   *handler.OrderHandler
	System   *handler.SystemHandler
}

// Mount registers the gateway routes on engine. Everything under /accounts
// requires session; the OAuth callback is reached by browser redirect and
// is authenticated by its state instead.
func Mount(engine *gin.Engine, h Handlers, session gin.HandlerFunc, opts ...RouterOption) *Router {
	if h.System != nil {
		engine.GET("/health", h.System.Health)
		engine.GET("/ready", h.System.Ready)
	}

	accounts := NewDomainGroup("accounts", "/accounts").
		Use(session, middleware.SpanAttributes()).
		POST("", h.Accounts.Create).
		GET("", h.Accounts.List).
		GET("/:id", h.Accounts.Get).
		POST("/:id/authorize", h.Accounts.Authorize).
		DELETE("/:id", h.Accounts.Disconnect).
		GET("/:id/items/exists", h.Orders.ItemExists).
		GET("/:id/orders", h.Orders.ListOrders).
		GET("/:id/orders/:orderId", h.Orders.GetOrder).
		POST("/:id/orders/:orderId/shipments", h.Orders.ShipOrder).
		POST("/:id/orders/:orderId/messages", h.Orders.SendMessage).
		GET("/:id/orders/:orderId/messages", h.Orders.GetMessages).
		GET("/:id/orders/:orderId/cancellation-eligibility", h.Orders.CancellationEligibility).
		GET("/:id/inquiries/:inquiryId", h.Orders.GetInquiry).
		POST("/:id/inquiries/:inquiryId/resolution", h.Orders.ResolveInquiry).
		GET("/:id/returns/:returnId", h.Orders.GetReturn).
		POST("/:id/returns/:returnId/resolution", h.Orders.ResolveReturn)

	oauth := NewDomainGroup("oauth", "/oauth").
		GET("/callback", h.Accounts.Callback)

	r := NewRouter(engine, opts...)
	r.Register(accounts).Register(oauth)
	r.Setup()
	return r
}
