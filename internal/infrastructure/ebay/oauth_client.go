package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"golang.org/x/oauth2"
)

// OAuthClient talks to the marketplace's consent page, token endpoint and
// Commerce Identity API.
type OAuthClient struct {
	t   *transport
	now func() time.Time
}

// NewOAuthClient creates the OAuth client
func NewOAuthClient(cfg *Config, opts ...Option) *OAuthClient {
	return &OAuthClient{t: newTransport(cfg, nil, opts...), now: time.Now}
}

var _ marketplace.OAuthProvider = (*OAuthClient)(nil)

// tokenResponse is the token endpoint's JSON answer
type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	ExpiresIn             int64  `json:"expires_in"`
	TokenType             string `json:"token_type"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	Scope                 string `json:"scope"`
}

// oauthErrorResponse is the token endpoint's error body
type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *OAuthClient) oauthConfig(env marketplace.Environment, scopes []string) *oauth2.Config {
	creds := c.t.cfg.Credentials(env)
	ep := c.t.cfg.EndpointsFor(env)
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RuName,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   ep.AuthURL,
			TokenURL:  ep.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthorizationURL builds the consent page URL. prompt=login forces the
// seller to sign in so a different account can be connected.
func (c *OAuthClient) AuthorizationURL(env marketplace.Environment, state string, scopes []string) string {
	return c.oauthConfig(env, scopes).AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "login"))
}

// ExchangeCode trades an authorization code for tokens
func (c *OAuthClient) ExchangeCode(ctx context.Context, env marketplace.Environment, code string) (*marketplace.TokenGrant, error) {
	var grant *marketplace.TokenGrant
	err := c.t.observe(ctx, familyOAuth, "exchange_code", nil, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.t.cfg.RequestTimeout)
		defer cancel()
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.t.httpClient)

		tok, err := c.oauthConfig(env, nil).Exchange(ctx, code)
		if err != nil {
			return oauthError(err)
		}
		grant = c.grantFromToken(tok)
		return nil
	})
	return grant, err
}

func (c *OAuthClient) grantFromToken(tok *oauth2.Token) *marketplace.TokenGrant {
	grant := &marketplace.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if secs, ok := tok.Extra("refresh_token_expires_in").(float64); ok && secs > 0 {
		grant.RefreshTokenExpiresAt = c.now().Add(time.Duration(secs) * time.Second)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		grant.Scopes = marketplace.ParseScopes(scope)
	}
	return grant
}

// oauthError classifies an error returned by the oauth2 package
func oauthError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return transportError(err)
	}
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return marketplace.ErrUpstreamUnavailable.WithRaw(re.Body).WithCause(err)
	}
	out := marketplace.ErrUpstreamRejected.WithReason(re.ErrorCode).WithRaw(re.Body)
	if re.ErrorDescription != "" {
		out = out.WithMessage(re.ErrorDescription)
	}
	return out
}

// RefreshToken mints a new access token. The marketplace requires the
// scope parameter on refresh, which oauth2.TokenSource never sends, so the
// form is posted directly with HTTP Basic client credentials.
func (c *OAuthClient) RefreshToken(ctx context.Context, env marketplace.Environment, refreshToken string, scopes []string) (*marketplace.TokenGrant, error) {
	creds := c.t.cfg.Credentials(env)
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	var grant *marketplace.TokenGrant
	err := c.t.observe(ctx, familyOAuth, "refresh_token", nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.t.cfg.EndpointsFor(env).TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("ebay: failed to create request: %w", err)
		}
		req.SetBasicAuth(url.QueryEscape(creds.ClientID), url.QueryEscape(creds.ClientSecret))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, body, err := c.t.do(ctx, req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return marketplace.ErrUpstreamUnavailable.WithRaw(body)
		}
		if resp.StatusCode >= 400 {
			var oe oauthErrorResponse
			_ = json.Unmarshal(body, &oe)
			out := marketplace.ErrUpstreamRejected.WithReason(oe.Error).WithRaw(body)
			if oe.ErrorDescription != "" {
				out = out.WithMessage(oe.ErrorDescription)
			}
			return out
		}

		var tr tokenResponse
		if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
			return marketplace.ErrUpstreamRejected.
				WithMessage("Malformed token response").
				WithRaw(body)
		}
		now := c.now()
		grant = &marketplace.TokenGrant{
			AccessToken:  tr.AccessToken,
			RefreshToken: tr.RefreshToken,
			TokenType:    tr.TokenType,
			ExpiresAt:    now.Add(time.Duration(tr.ExpiresIn) * time.Second),
			Scopes:       marketplace.ParseScopes(tr.Scope),
		}
		if tr.RefreshToken != "" && tr.RefreshTokenExpiresIn > 0 {
			grant.RefreshTokenExpiresAt = now.Add(time.Duration(tr.RefreshTokenExpiresIn) * time.Second)
		}
		return nil
	})
	return grant, err
}

// FetchIdentity resolves the marketplace user behind accessToken
func (c *OAuthClient) FetchIdentity(ctx context.Context, env marketplace.Environment, accessToken string) (*marketplace.Identity, error) {
	var identity *marketplace.Identity
	err := c.t.observe(ctx, familyIdentity, "get_user", nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.t.cfg.EndpointsFor(env).IdentityBaseURL+"/commerce/identity/v1/user/", nil)
		if err != nil {
			return fmt.Errorf("ebay: failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		resp, body, err := c.t.do(ctx, req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			return restError(resp.StatusCode, body)
		}
		var out struct {
			UserID   string `json:"userId"`
			Username string `json:"username"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return marketplace.ErrUpstreamRejected.WithMessage("Malformed identity response").WithRaw(body)
		}
		identity = &marketplace.Identity{UserID: out.UserID, Username: out.Username}
		return nil
	})
	return identity, err
}
