package shared

import "errors"

// ErrorKind classifies a DomainError independently of its code.
// Callers branch on the kind; the code is the stable identifier shown to clients.
type ErrorKind string

const (
	KindValidation       ErrorKind = "VALIDATION"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindUnauthorized     ErrorKind = "UNAUTHORIZED"
	KindTimeout          ErrorKind = "TIMEOUT"
	KindTransient        ErrorKind = "TRANSIENT"
	KindUpstreamRejected ErrorKind = "UPSTREAM_REJECTED"
	KindInvalidState     ErrorKind = "INVALID_STATE"
	KindInternal         ErrorKind = "INTERNAL"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	// Reason is the upstream error code when the marketplace supplied one.
	Reason string `json:"reason,omitempty"`
	// Raw is the upstream payload, kept for diagnostics only.
	Raw   []byte `json:"-"`
	cause error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches another DomainError by code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindInternal,
	}
}

// NewKindError creates a domain error of the given kind
func NewKindError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

func (e *DomainError) clone() *DomainError {
	c := *e
	return &c
}

// WithMessage returns a copy with a more specific message
func (e *DomainError) WithMessage(message string) *DomainError {
	c := e.clone()
	c.Message = message
	return c
}

// WithReason returns a copy carrying the upstream reason code
func (e *DomainError) WithReason(reason string) *DomainError {
	c := e.clone()
	c.Reason = reason
	return c
}

// WithRaw returns a copy carrying the raw upstream payload
func (e *DomainError) WithRaw(raw []byte) *DomainError {
	c := e.clone()
	c.Raw = raw
	return c
}

// WithCause returns a copy wrapping err
func (e *DomainError) WithCause(err error) *DomainError {
	c := e.clone()
	c.cause = err
	return c
}

// KindOf returns the kind of the first DomainError in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries a DomainError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Common domain errors
var (
	ErrNotFound            = NewKindError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewKindError(KindValidation, "ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewKindError(KindValidation, "INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewKindError(KindInvalidState, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewKindError(KindUnauthorized, "UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewKindError(KindUnauthorized, "FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewKindError(KindInvalidState, "INVALID_STATE", "Operation not allowed in current state")
)
