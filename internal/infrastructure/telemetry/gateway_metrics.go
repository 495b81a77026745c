package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	MetricAttrEnvironment = attribute.Key("environment")
	MetricAttrOutcome     = attribute.Key("outcome")
	MetricAttrAPIFamily   = attribute.Key("api_family")
	MetricAttrCall        = attribute.Key("call")
	MetricAttrKind        = attribute.Key("error_kind")
	MetricAttrOperation   = attribute.Key("operation")
	MetricAttrSource      = attribute.Key("source")
	MetricAttrAction      = attribute.Key("action")
	MetricAttrResult      = attribute.Key("result")
)

// GatewayMetrics records token lifecycle, upstream traffic and fallback use.
// A nil *GatewayMetrics is valid and records nothing.
type GatewayMetrics struct {
	tokenRefreshes   *Counter
	tokenInvalidated *Counter
	upstreamCalls    *Counter
	upstreamDuration *Histogram
	fallbackHits     *Counter
	actions          *Counter
}

// NewGatewayMetrics creates the gateway instruments on meter. A nil meter
// uses the global meter provider.
func NewGatewayMetrics(meter metric.Meter) (*GatewayMetrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(TracerName)
	}
	m := &GatewayMetrics{}
	var err error

	if m.tokenRefreshes, err = NewCounter(meter, "gateway_token_refresh_total",
		"Access token refresh attempts", "{refresh}"); err != nil {
		return nil, err
	}
	if m.tokenInvalidated, err = NewCounter(meter, "gateway_account_invalidated_total",
		"Accounts moved out of the active state", "{account}"); err != nil {
		return nil, err
	}
	if m.upstreamCalls, err = NewCounter(meter, "gateway_upstream_calls_total",
		"Marketplace API calls", "{call}"); err != nil {
		return nil, err
	}
	if m.upstreamDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "gateway_upstream_call_duration_seconds",
		Description: "Marketplace API call latency",
		Unit:        "s",
		Boundaries:  UpstreamDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.fallbackHits, err = NewCounter(meter, "gateway_resolver_source_total",
		"Resolver results by answering source", "{resolution}"); err != nil {
		return nil, err
	}
	if m.actions, err = NewCounter(meter, "gateway_fulfillment_actions_total",
		"Fulfillment actions by kind and result", "{action}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRefresh counts a refresh attempt with outcome success or failure.
func (m *GatewayMetrics) RecordRefresh(ctx context.Context, env string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.tokenRefreshes.Inc(ctx, MetricAttrEnvironment.String(env), MetricAttrOutcome.String(outcome))
}

// RecordInvalidation counts an account leaving the active state.
func (m *GatewayMetrics) RecordInvalidation(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.tokenInvalidated.Inc(ctx, MetricAttrOutcome.String(status))
}

// RecordUpstreamCall counts one marketplace call and its latency. errKind is
// empty on success.
func (m *GatewayMetrics) RecordUpstreamCall(ctx context.Context, family, call, errKind string, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if errKind != "" {
		outcome = "error"
	}
	attrs := []attribute.KeyValue{
		MetricAttrAPIFamily.String(family),
		MetricAttrCall.String(call),
		MetricAttrOutcome.String(outcome),
		MetricAttrKind.String(errKind),
	}
	m.upstreamCalls.Inc(ctx, attrs...)
	m.upstreamDuration.RecordDuration(ctx, d, attrs[:2]...)
}

// RecordResolution counts which source answered a resolver chain. source is
// "none" when every attempt failed.
func (m *GatewayMetrics) RecordResolution(ctx context.Context, operation, source string) {
	if m == nil {
		return
	}
	m.fallbackHits.Inc(ctx, MetricAttrOperation.String(operation), MetricAttrSource.String(source))
}

// RecordAction counts a completed fulfillment action.
func (m *GatewayMetrics) RecordAction(ctx context.Context, kind, result string) {
	if m == nil {
		return
	}
	m.actions.Inc(ctx, MetricAttrAction.String(kind), MetricAttrResult.String(result))
}
