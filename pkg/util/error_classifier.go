package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"

	"admincore/pkg/circuitbreaker"
)

// retryable is implemented by domain errors that know whether a retry
// can succeed.
type retryable interface {
	Retryable() bool
}

// IsRetryableError reports whether err is worth retrying and a short
// error type usable as a metrics label.
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, "json_decode_error"
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return true, "circuit_open"
	}

	var r retryable
	if errors.As(err, &r) {
		if r.Retryable() {
			return true, "transient"
		}
		return false, "permanent"
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return false, "not_found"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	return false, "unknown_error"
}

// ShouldRetry allows retryable errors until retryCount passes maxRetries.
func ShouldRetry(retryCount int64, maxRetries int64, isRetryable bool) bool {
	if !isRetryable {
		return false
	}
	return retryCount <= maxRetries
}
