package textgen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind partitions completion failures by how callers must react.
type ErrorKind int

const (
	// KindTransient covers timeouts, 5xx responses and rate-limit signals.
	// Transient failures are safe to retry.
	KindTransient ErrorKind = iota

	// KindPermanent covers malformed requests and other 4xx responses.
	// Retrying cannot help; the failure propagates immediately.
	KindPermanent

	// KindConfiguration covers missing or rejected credentials. Surfaced at
	// validation time where possible, never retried.
	KindConfiguration
)

// String returns the human-readable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// APIError is a classified completion failure. Providers wrap backend errors
// in APIError so the retry layer can decide whether another attempt is
// worthwhile without inspecting SDK-specific types.
type APIError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// StatusCode is the HTTP status when the failure came from an HTTP
	// response, zero otherwise.
	StatusCode int

	// Message describes the failure.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("textgen: %s (%s, status %d)", e.Message, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("textgen: %s (%s)", e.Message, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Err
}

// KindForStatus maps an HTTP status code onto an [ErrorKind] following the
// retry contract: 408, 429 and all 5xx are transient; 401 and 403 are
// configuration failures; every other 4xx is permanent.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return KindTransient
	case status >= 500:
		return KindTransient
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindConfiguration
	default:
		return KindPermanent
	}
}

// Classify reports the [ErrorKind] of err. Unwrapped network failures and
// deadline expiry count as transient; caller cancellation and everything
// unrecognised count as permanent so unknown failures are never retried
// blindly.
func Classify(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindPermanent
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return Classify(err) == KindTransient
}
