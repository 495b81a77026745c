package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/application/gateway"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/sellerlink/gateway/internal/infrastructure/logger"
	"github.com/sellerlink/gateway/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// AccountLookup resolves an account on behalf of its owner
type AccountLookup interface {
	GetAccount(ctx context.Context, ownerUserID string, accountID uuid.UUID) (*marketplace.ConnectedAccount, error)
}

// AccountService is the connected account lifecycle
type AccountService interface {
	AccountLookup
	CreatePendingAccount(ctx context.Context, ownerUserID string, env marketplace.Environment, friendlyName string, scopes []string) (*marketplace.ConnectedAccount, error)
	ListAccounts(ctx context.Context, ownerUserID string) ([]marketplace.ConnectedAccount, error)
	BeginAuthorization(ctx context.Context, accountID uuid.UUID) (*gateway.AuthorizationStart, error)
	CompleteAuthorization(ctx context.Context, code, state string) (*marketplace.ConnectedAccount, error)
	Disconnect(ctx context.Context, ownerUserID string, accountID uuid.UUID) (*marketplace.ConnectedAccount, error)
}

// AccountHandler handles connected account endpoints
type AccountHandler struct {
	BaseHandler
	accounts AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Create starts a new connection in the pending state
// POST /accounts
func (h *AccountHandler) Create(c *gin.Context) {
	owner, ok := h.ownerUserID(c)
	if !ok {
		return
	}
	var req dto.CreateAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.CreatePendingAccount(c.Request.Context(), owner,
		marketplace.Environment(req.Environment), req.FriendlyName, req.Scopes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewAccountResponse(account))
}

// List returns the caller's accounts
// GET /accounts
func (h *AccountHandler) List(c *gin.Context) {
	owner, ok := h.ownerUserID(c)
	if !ok {
		return
	}
	accounts, err := h.accounts.ListAccounts(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewAccountListResponse(accounts))
}

// Get returns one account
// GET /accounts/:id
func (h *AccountHandler) Get(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	h.Success(c, dto.NewAccountResponse(account))
}

// Authorize begins the consent flow and returns the URL to send the user to
// POST /accounts/:id/authorize
func (h *AccountHandler) Authorize(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	start, err := h.accounts.BeginAuthorization(c.Request.Context(), account.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewAuthorizationResponse(start))
}

// Callback completes the consent flow. The marketplace redirects the user's
// browser here, so the request carries no session; the state binds it to
// the pending authorization.
// GET /oauth/callback
func (h *AccountHandler) Callback(c *gin.Context) {
	var q dto.CallbackQuery
	if !h.bindQuery(c, &q) {
		return
	}
	if q.Error != "" {
		logger.L(c.Request.Context()).Info("Marketplace consent declined",
			zap.String("error", q.Error),
			zap.String("description", q.ErrorDescription))
		h.HandleError(c, shared.ErrInvalidInput.WithReason(q.Error).
			WithMessage("Marketplace authorization was declined"))
		return
	}

	account, err := h.accounts.CompleteAuthorization(c.Request.Context(), q.Code, q.State)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewAccountResponse(account))
}

// Disconnect revokes an account
// DELETE /accounts/:id
func (h *AccountHandler) Disconnect(c *gin.Context) {
	owner, ok := h.ownerUserID(c)
	if !ok {
		return
	}
	id, err := marketplace.AccountID(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	account, err := h.accounts.Disconnect(c.Request.Context(), owner, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewAccountResponse(account))
}

// ownedAccount loads the :id account if the caller owns it
func (h *AccountHandler) ownedAccount(c *gin.Context) (*marketplace.ConnectedAccount, bool) {
	return loadOwnedAccount(c, &h.BaseHandler, h.accounts)
}

func loadOwnedAccount(c *gin.Context, h *BaseHandler, lookup AccountLookup) (*marketplace.ConnectedAccount, bool) {
	owner, ok := h.ownerUserID(c)
	if !ok {
		return nil, false
	}
	id, err := marketplace.AccountID(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	account, err := lookup.GetAccount(c.Request.Context(), owner, id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	c.Request = c.Request.WithContext(logger.WithAccountID(c.Request.Context(), account.ID.String()))
	return account, true
}
