package gateway

import (
	"context"
	"errors"

	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/domain/shared"
	"github.com/sellerlink/gateway/internal/infrastructure/telemetry"
)

// Sources reported by resolver chains
const (
	SourceInventoryAPI   = "inventory_api"
	SourceFulfillmentAPI = "fulfillment_api"
	SourceTradingAPI     = "trading_api"
	sourceNone           = "none"
)

// Attempt is one source of a resolver chain. A nil Fetch is skipped, which
// lets a chain drop sources the caller has no identifier for.
type Attempt[T any] struct {
	Source string
	Fetch  func(ctx context.Context) (T, error)
}

// Resolution is the answer of a chain and the source that gave it
type Resolution[T any] struct {
	Value  T
	Source string
}

// Chain tries its attempts in order. Only a not-found answer moves on to the
// next source; every other error stops the chain.
type Chain[T any] struct {
	Operation string
	Attempts  []Attempt[T]
	// NotFound is returned when every source reported not found
	NotFound *shared.DomainError
}

// Resolve runs the chain
func (c Chain[T]) Resolve(ctx context.Context, metrics *telemetry.GatewayMetrics) (Resolution[T], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "gateway.resolver", c.Operation)
	defer span.End()

	var misses []error
	for _, a := range c.Attempts {
		if a.Fetch == nil {
			continue
		}
		v, err := a.Fetch(ctx)
		if err == nil {
			telemetry.SetAttributes(span, telemetry.AttrSource, a.Source)
			metrics.RecordResolution(ctx, c.Operation, a.Source)
			return Resolution[T]{Value: v, Source: a.Source}, nil
		}
		if !shared.IsKind(err, shared.KindNotFound) {
			telemetry.RecordError(span, err)
			return Resolution[T]{}, err
		}
		misses = append(misses, err)
	}

	metrics.RecordResolution(ctx, c.Operation, sourceNone)
	notFound := c.NotFound
	if notFound == nil {
		notFound = marketplace.ErrNotFound
	}
	if len(misses) > 0 {
		return Resolution[T]{}, notFound.WithCause(errors.Join(misses...))
	}
	return Resolution[T]{}, notFound
}
