package core

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/controlplane/pkg/breaker"
	"github.com/dmitrymomot/controlplane/pkg/feature"
	"github.com/dmitrymomot/controlplane/pkg/ratelimiter"
)

// HTTPError is an error with an HTTP status code and a stable machine code.
type HTTPError struct {
	Code int    // HTTP status code
	Key  string // Stable error code, e.g. "not_found"
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Key
}

// 4xx Client Errors
var (
	ErrBadRequest           = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized         = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrForbidden            = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound             = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrMethodNotAllowed     = HTTPError{Code: http.StatusMethodNotAllowed, Key: "method_not_allowed"}
	ErrRequestTimeout       = HTTPError{Code: http.StatusRequestTimeout, Key: "request_timeout"}
	ErrConflict             = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnsupportedMediaType = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type"}
	ErrUnprocessableEntity  = HTTPError{Code: http.StatusUnprocessableEntity, Key: "unprocessable_entity"}
	ErrTooManyRequests      = HTTPError{Code: http.StatusTooManyRequests, Key: "rate_limit_exceeded"}
)

// 5xx Server Errors
var (
	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
	ErrNotImplemented      = HTTPError{Code: http.StatusNotImplemented, Key: "not_implemented"}
	ErrBadGateway          = HTTPError{Code: http.StatusBadGateway, Key: "downstream_failed"}
	ErrServiceUnavailable  = HTTPError{Code: http.StatusServiceUnavailable, Key: "service_unavailable"}
	ErrCircuitOpen         = HTTPError{Code: http.StatusServiceUnavailable, Key: "circuit_open"}
	ErrGatewayTimeout      = HTTPError{Code: http.StatusGatewayTimeout, Key: "gateway_timeout"}
)

// Domain errors that map onto a fixed HTTP error.
var (
	ErrFlagNotFound = HTTPError{Code: http.StatusNotFound, Key: "flag_not_found"}
	ErrInvalidFlag  = HTTPError{Code: http.StatusUnprocessableEntity, Key: "invalid_flag"}
)

// NewHTTPError creates a custom HTTP error with the given status code and key.
//
// Example:
//
//	err := core.NewHTTPError(http.StatusForbidden, "admin_required")
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}

// AsHTTPError maps err onto the HTTP error it should be reported as.
// An HTTPError anywhere in the chain wins; guard errors are matched next.
// The second result is false when err is unknown and falls back to 500.
func AsHTTPError(err error) (HTTPError, bool) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}

	switch {
	case errors.Is(err, ratelimiter.ErrRateLimitExceeded):
		return ErrTooManyRequests, true
	case errors.Is(err, breaker.ErrCircuitOpen):
		return ErrCircuitOpen, true
	case errors.Is(err, breaker.ErrOperationFailed):
		return ErrBadGateway, true
	case errors.Is(err, feature.ErrFlagNotFound):
		return ErrFlagNotFound, true
	case errors.Is(err, feature.ErrInvalidFlag):
		return ErrInvalidFlag, true
	}
	return ErrInternalServerError, false
}
