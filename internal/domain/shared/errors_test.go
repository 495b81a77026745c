package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	specific := ErrNotFound.WithMessage("order 42 not found").WithReason("1505")

	assert.True(t, errors.Is(specific, ErrNotFound))
	assert.False(t, errors.Is(specific, ErrInvalidInput))
	assert.Equal(t, "Resource not found", ErrNotFound.Message, "With* must not mutate the sentinel")
	assert.Equal(t, "1505", specific.Reason)
}

func TestDomainError_WrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewKindError(KindTransient, "UPSTREAM_UNAVAILABLE", "upstream down").WithCause(cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "upstream down: connection reset", err.Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("fetch order: %w", NewKindError(KindTimeout, "UPSTREAM_TIMEOUT", "timed out"))

	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindTimeout))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestDomainError_RawNotSerialized(t *testing.T) {
	err := ErrInvalidState.WithRaw([]byte(`<xml/>`))
	assert.Equal(t, []byte(`<xml/>`), err.Raw)
	assert.Equal(t, KindInvalidState, err.Kind)
}
