package gateway

import (
	"time"

	"github.com/sellerlink/gateway/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// defaultMaxConcurrentItems bounds per-line-item fan-out
const defaultMaxConcurrentItems = 4

// deps holds what the gateway services share
type deps struct {
	logger             *zap.Logger
	metrics            *telemetry.GatewayMetrics
	now                func() time.Time
	maxConcurrentItems int
}

func newDeps(opts []Option) deps {
	d := deps{
		logger:             zap.NewNop(),
		now:                time.Now,
		maxConcurrentItems: defaultMaxConcurrentItems,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Option configures a gateway service
type Option func(*deps)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *deps) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metric instruments. Nil disables metrics.
func WithMetrics(m *telemetry.GatewayMetrics) Option {
	return func(d *deps) {
		d.metrics = m
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(d *deps) {
		if now != nil {
			d.now = now
		}
	}
}

// WithMaxConcurrentItems bounds how many line items are processed at once
func WithMaxConcurrentItems(n int) Option {
	return func(d *deps) {
		if n > 0 {
			d.maxConcurrentItems = n
		}
	}
}
