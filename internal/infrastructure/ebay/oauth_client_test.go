package ebay

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockBase = "https://ebay.test"

func newOAuthClient(t *testing.T) (*OAuthClient, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	client := NewOAuthClient(testConfig(mockBase), WithHTTPClient(&http.Client{Transport: mock}))
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }
	return client, mock
}

func TestOAuthClient_AuthorizationURL(t *testing.T) {
	client, _ := newOAuthClient(t)

	raw := client.AuthorizationURL(marketplace.EnvironmentSandbox, "acct.state",
		[]string{"https://api.ebay.com/oauth/api_scope", "https://api.ebay.com/oauth/api_scope/sell.fulfillment"})
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "ebay.test", u.Host)
	assert.Equal(t, "/oauth2/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "Seller-RuName", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "acct.state", q.Get("state"))
	assert.Equal(t, "login", q.Get("prompt"))
	assert.Equal(t, "https://api.ebay.com/oauth/api_scope https://api.ebay.com/oauth/api_scope/sell.fulfillment", q.Get("scope"))
}

func TestOAuthClient_ExchangeCode(t *testing.T) {
	client, mock := newOAuthClient(t)
	mock.RegisterResponder(http.MethodPost, mockBase+"/identity/v1/oauth2/token",
		func(req *http.Request) (*http.Response, error) {
			user, pass, ok := req.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "authorization_code", req.PostForm.Get("grant_type"))
			assert.Equal(t, "the-code", req.PostForm.Get("code"))
			assert.Equal(t, "Seller-RuName", req.PostForm.Get("redirect_uri"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"access_token":             "v^1.1#access",
				"expires_in":               7200,
				"refresh_token":            "v^1.1#refresh",
				"refresh_token_expires_in": 47304000,
				"token_type":               "User Access Token",
			})
		})

	grant, err := client.ExchangeCode(context.Background(), marketplace.EnvironmentSandbox, "the-code")
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#access", grant.AccessToken)
	assert.Equal(t, "v^1.1#refresh", grant.RefreshToken)
	assert.Equal(t, "User Access Token", grant.TokenType)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), grant.ExpiresAt, time.Minute)
	assert.Equal(t, client.now().Add(47304000*time.Second), grant.RefreshTokenExpiresAt)
	assert.Empty(t, grant.Scopes)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestOAuthClient_ExchangeCodeErrors(t *testing.T) {
	t.Run("rejected code", func(t *testing.T) {
		client, mock := newOAuthClient(t)
		mock.RegisterResponder(http.MethodPost, mockBase+"/identity/v1/oauth2/token",
			httpmock.NewStringResponder(http.StatusBadRequest,
				`{"error":"invalid_grant","error_description":"the provided authorization grant code is invalid or was issued to another client"}`).
				HeaderSet(http.Header{"Content-Type": {"application/json"}}))

		_, err := client.ExchangeCode(context.Background(), marketplace.EnvironmentSandbox, "bad")
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, shared.KindUpstreamRejected, de.Kind)
		assert.Equal(t, "invalid_grant", de.Reason)
		assert.NotEmpty(t, de.Raw)
	})

	t.Run("server error", func(t *testing.T) {
		client, mock := newOAuthClient(t)
		mock.RegisterResponder(http.MethodPost, mockBase+"/identity/v1/oauth2/token",
			httpmock.NewStringResponder(http.StatusInternalServerError, `oops`))

		_, err := client.ExchangeCode(context.Background(), marketplace.EnvironmentSandbox, "code")
		assert.ErrorIs(t, err, marketplace.ErrUpstreamUnavailable)
	})
}

func TestOAuthClient_RefreshToken(t *testing.T) {
	client, mock := newOAuthClient(t)
	mock.RegisterResponder(http.MethodPost, mockBase+"/identity/v1/oauth2/token",
		func(req *http.Request) (*http.Response, error) {
			user, pass, ok := req.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "refresh_token", req.PostForm.Get("grant_type"))
			assert.Equal(t, "v^1.1#refresh", req.PostForm.Get("refresh_token"))
			assert.Equal(t, "scope.a scope.b", req.PostForm.Get("scope"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"access_token": "v^1.1#fresh",
				"expires_in":   7200,
				"token_type":   "User Access Token",
			})
		})

	grant, err := client.RefreshToken(context.Background(), marketplace.EnvironmentSandbox, "v^1.1#refresh", []string{"scope.a", "scope.b"})
	require.NoError(t, err)
	assert.Equal(t, "v^1.1#fresh", grant.AccessToken)
	assert.Equal(t, client.now().Add(2*time.Hour), grant.ExpiresAt)
	assert.Empty(t, grant.RefreshToken)
	assert.True(t, grant.RefreshTokenExpiresAt.IsZero())
}

func TestOAuthClient_RefreshTokenErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		reason   string
	}{
		{"invalid grant", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"refresh token is invalid"}`, "UPSTREAM_REJECTED", "invalid_grant"},
		{"unavailable", http.StatusServiceUnavailable, ``, "UPSTREAM_UNAVAILABLE", ""},
		{"malformed", http.StatusOK, `{"token_type":"x"}`, "UPSTREAM_REJECTED", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newOAuthClient(t)
			mock.RegisterResponder(http.MethodPost, mockBase+"/identity/v1/oauth2/token",
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := client.RefreshToken(context.Background(), marketplace.EnvironmentSandbox, "rt", nil)
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantCode, de.Code)
			assert.Equal(t, tt.reason, de.Reason)
		})
	}
}

func TestOAuthClient_RefreshTokenNetworkError(t *testing.T) {
	client, mock := newOAuthClient(t)
	mock.RegisterResponder(http.MethodPost, mockBase+"/identity/v1/oauth2/token",
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	_, err := client.RefreshToken(context.Background(), marketplace.EnvironmentSandbox, "rt", nil)
	assert.ErrorIs(t, err, marketplace.ErrUpstreamTimeout)
}

func TestOAuthClient_FetchIdentity(t *testing.T) {
	client, mock := newOAuthClient(t)
	mock.RegisterResponder(http.MethodGet, mockBase+"/commerce/identity/v1/user/",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer access", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"userId":   "u-123",
				"username": "seller_one",
			})
		})

	id, err := client.FetchIdentity(context.Background(), marketplace.EnvironmentSandbox, "access")
	require.NoError(t, err)
	assert.Equal(t, "u-123", id.UserID)
	assert.Equal(t, "seller_one", id.Username)

	mock.RegisterResponder(http.MethodGet, mockBase+"/commerce/identity/v1/user/",
		httpmock.NewStringResponder(http.StatusUnauthorized, ``))
	_, err = client.FetchIdentity(context.Background(), marketplace.EnvironmentSandbox, "access")
	assert.ErrorIs(t, err, marketplace.ErrUnauthorized)
}
