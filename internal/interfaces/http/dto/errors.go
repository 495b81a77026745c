package dto

import (
	"errors"
	"net/http"

	"github.com/sellerlink/gateway/internal/domain/shared"
)

// Transport-level error codes. Domain errors carry their own codes.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// KindHTTPStatus maps error kinds to HTTP status codes
var KindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:       http.StatusBadRequest,
	shared.KindNotFound:         http.StatusNotFound,
	shared.KindUnauthorized:     http.StatusUnauthorized,
	shared.KindTimeout:          http.StatusGatewayTimeout,
	shared.KindTransient:        http.StatusServiceUnavailable,
	shared.KindUpstreamRejected: http.StatusUnprocessableEntity,
	shared.KindInvalidState:     http.StatusConflict,
	shared.KindInternal:         http.StatusInternalServerError,
}

// codeHTTPStatus overrides the kind mapping for individual codes
var codeHTTPStatus = map[string]int{
	shared.ErrAlreadyExists.Code: http.StatusConflict,
	shared.ErrForbidden.Code:     http.StatusForbidden,
}

// GetHTTPStatus returns the HTTP status code for a domain error
// Returns 500 Internal Server Error for unknown kinds
func GetHTTPStatus(err *shared.DomainError) int {
	if status, ok := codeHTTPStatus[err.Code]; ok {
		return status
	}
	if status, ok := KindHTTPStatus[err.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponseFor converts err into a status code and response body.
// The upstream payload never leaves the process; only code, message and reason do.
func ErrorResponseFor(err error, requestID string) (int, Response) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError,
			NewErrorResponse(ErrCodeInternal, "An unexpected error occurred", requestID)
	}
	status := GetHTTPStatus(de)
	message := de.Message
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	}
	resp := NewErrorResponse(de.Code, message, requestID)
	resp.Error.Reason = de.Reason
	return status, resp
}
