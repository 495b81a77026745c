package dto

import (
	"time"

	"github.com/sellerlink/gateway/internal/application/gateway"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
)

// CreateAccountRequest starts a new marketplace connection
type CreateAccountRequest struct {
	Environment  string   `json:"environment" binding:"omitempty,oneof=sandbox production"`
	FriendlyName string   `json:"friendly_name" binding:"max=100"`
	Scopes       []string `json:"scopes" binding:"omitempty,dive,url"`
}

// CallbackQuery is the marketplace's redirect back after consent
type CallbackQuery struct {
	Code             string `form:"code"`
	State            string `form:"state" binding:"required"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

// AccountResponse is a connected account without its credentials
type AccountResponse struct {
	ID                    string     `json:"id"`
	Environment           string     `json:"environment"`
	Status                string     `json:"status"`
	StatusReason          string     `json:"status_reason,omitempty"`
	FriendlyName          string     `json:"friendly_name,omitempty"`
	MarketplaceUserID     string     `json:"marketplace_user_id,omitempty"`
	MarketplaceUsername   string     `json:"marketplace_username,omitempty"`
	GrantedScopes         []string   `json:"granted_scopes"`
	UserSelectedScopes    []string   `json:"user_selected_scopes,omitempty"`
	AccessTokenExpiresAt  *time.Time `json:"access_token_expires_at,omitempty"`
	RefreshTokenExpiresAt *time.Time `json:"refresh_token_expires_at,omitempty"`
	LastUsedAt            *time.Time `json:"last_used_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// NewAccountResponse converts a connected account for output
func NewAccountResponse(a *marketplace.ConnectedAccount) AccountResponse {
	resp := AccountResponse{
		ID:                  a.ID.String(),
		Environment:         string(a.Environment),
		Status:              string(a.Status),
		StatusReason:        a.StatusReason,
		FriendlyName:        a.FriendlyName,
		MarketplaceUserID:   a.MarketplaceUserID,
		MarketplaceUsername: a.MarketplaceUsername,
		GrantedScopes:       a.GrantedScopes,
		UserSelectedScopes:  a.UserSelectedScopes,
		LastUsedAt:          a.LastUsedAt,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
	if resp.GrantedScopes == nil {
		resp.GrantedScopes = []string{}
	}
	resp.AccessTokenExpiresAt = timePtr(a.AccessTokenExpiresAt)
	resp.RefreshTokenExpiresAt = timePtr(a.RefreshTokenExpiresAt)
	return resp
}

// NewAccountListResponse converts a list of accounts
func NewAccountListResponse(accounts []marketplace.ConnectedAccount) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, NewAccountResponse(&accounts[i]))
	}
	return out
}

// AuthorizationResponse carries the consent URL the user must visit
type AuthorizationResponse struct {
	AuthorizationURL string    `json:"authorization_url"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// NewAuthorizationResponse converts an authorization start
func NewAuthorizationResponse(s *gateway.AuthorizationStart) AuthorizationResponse {
	return AuthorizationResponse{AuthorizationURL: s.AuthorizationURL, ExpiresAt: s.ExpiresAt}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
