package ebay

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/sellerlink/gateway/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxResponseSize is the maximum allowed response size from the marketplace (10MB)
const maxResponseSize = 10 * 1024 * 1024

// API family names used in spans and metrics
const (
	familyInventory     = "inventory"
	familyFulfillment   = "fulfillment"
	familyPostOrder     = "post_order"
	familyTrading       = "trading"
	familyIdentity      = "identity"
	familyOAuth         = "oauth"
	reasonRejectedTwice = "access token rejected after refresh"
)

// Option configures the shared transport of the API clients
type Option func(*transport)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(t *transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(t *transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *telemetry.GatewayMetrics) Option {
	return func(t *transport) { t.metrics = m }
}

// withRetryInterval shortens backoff in tests
func withRetryInterval(d time.Duration) Option {
	return func(t *transport) { t.retryInterval = d }
}

// transport is the plumbing shared by the REST and Trading clients: token
// acquisition with one forced refresh, per-call timeouts, retries of
// idempotent calls, spans and metrics.
type transport struct {
	cfg           *Config
	tokens        marketplace.TokenSource
	httpClient    *http.Client
	logger        *zap.Logger
	metrics       *telemetry.GatewayMetrics
	retryInterval time.Duration
}

func newTransport(cfg *Config, tokens marketplace.TokenSource, opts ...Option) *transport {
	cfg.applyDefaults()
	t := &transport{
		cfg:           cfg,
		tokens:        tokens,
		httpClient:    &http.Client{},
		logger:        zap.NewNop(),
		retryInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// call describes one capability invocation
type call struct {
	family     string
	name       string
	accountID  uuid.UUID
	idempotent bool
	attrs      []telemetry.SpanOption
}

// sendFunc performs one upstream round trip with tok
type sendFunc func(ctx context.Context, tok *marketplace.AccessToken) error

// invoke runs send inside a client span, retrying idempotent calls on
// Timeout or Transient failures.
func (t *transport) invoke(ctx context.Context, c call, send sendFunc) error {
	attrs := append([]telemetry.SpanOption{
		telemetry.WithAttribute(telemetry.AttrAccountID, c.accountID.String()),
	}, c.attrs...)
	return t.observe(ctx, c.family, c.name, attrs, func(ctx context.Context) error {
		op := func() error {
			err := t.withToken(ctx, c.accountID, send)
			if err != nil && !(c.idempotent && retryable(err)) {
				return backoff.Permanent(err)
			}
			return err
		}

		attempts := t.cfg.RetryAttempts
		if !c.idempotent {
			attempts = 1
		}
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = t.retryInterval
		b.MaxInterval = 8 * t.retryInterval
		policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

		return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
			t.logger.Debug("Retrying marketplace call",
				zap.String("call", c.family+"."+c.name),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		})
	})
}

// observe wraps fn in an ebay.<family>.<name> client span and records the
// call in the upstream metrics.
func (t *transport) observe(ctx context.Context, family, name string, attrs []telemetry.SpanOption, fn func(context.Context) error) error {
	opts := append([]telemetry.SpanOption{
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.AttrAPIFamily, family),
		telemetry.WithAttribute(telemetry.AttrAPICall, name),
	}, attrs...)
	ctx, span := telemetry.StartSpan(ctx, "ebay."+family+"."+name, opts...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	errKind := ""
	if err != nil {
		errKind = string(shared.KindOf(err))
		telemetry.RecordError(span, err)
	}
	t.metrics.RecordUpstreamCall(ctx, family, name, errKind, time.Since(start))
	return err
}

// withToken runs send with a valid token. After an Unauthorized answer the
// token is force-refreshed once; a second rejection invalidates the account.
func (t *transport) withToken(ctx context.Context, accountID uuid.UUID, send sendFunc) error {
	tok, err := t.tokens.GetValidToken(ctx, accountID)
	if err != nil {
		return err
	}
	err = send(ctx, tok)
	if !errors.Is(err, marketplace.ErrUnauthorized) {
		return err
	}

	t.logger.Info("Marketplace rejected access token, forcing refresh",
		zap.String("account_id", accountID.String()))
	tok, err = t.tokens.ForceRefresh(ctx, accountID, tok.Value)
	if err != nil {
		return err
	}
	err = send(ctx, tok)
	if errors.Is(err, marketplace.ErrUnauthorized) {
		if ierr := t.tokens.InvalidateAccount(ctx, accountID, reasonRejectedTwice); ierr != nil {
			t.logger.Warn("Failed to invalidate account",
				zap.String("account_id", accountID.String()), zap.Error(ierr))
		}
	}
	return err
}

// do sends req bounded by the configured request timeout and returns the body
func (t *transport) do(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.RequestTimeout)
	defer cancel()

	resp, err := t.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, nil, transportError(err)
	}
	return resp, body, nil
}

func retryable(err error) bool {
	switch shared.KindOf(err) {
	case shared.KindTimeout, shared.KindTransient:
		return true
	}
	return false
}

// transportError classifies a failed round trip
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return marketplace.ErrUpstreamTimeout.WithCause(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return marketplace.ErrUpstreamTimeout.WithCause(err)
	}
	return marketplace.ErrUpstreamUnavailable.WithCause(err)
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}
