package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"
)

// Kind classifies a provider failure for retry and propagation decisions.
type Kind int

const (
	// KindTransient covers network errors, 5xx responses and deadline
	// overruns. Retried with backoff.
	KindTransient Kind = iota
	// KindRateLimited is a quota rejection. Retried with backoff, honoring
	// any API-suggested delay.
	KindRateLimited
	// KindPermanent covers auth failures, bad requests and other errors
	// that will not succeed on retry.
	KindPermanent
	// KindSchemaViolation means the provider returned output that does not
	// conform to the requested schema. Never retried.
	KindSchemaViolation
	// KindCircuitOpen means the breaker is open and the call failed fast.
	KindCircuitOpen
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindPermanent:
		return "permanent"
	case KindSchemaViolation:
		return "schema_violation"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error wraps a provider failure with its classification.
type Error struct {
	Kind Kind
	Op   string // "complete" or "embed"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error chain, defaulting to
// transient for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// Retryable reports whether a failed call should be retried.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimited:
		return true
	default:
		return false
	}
}

// classify maps a raw provider error onto the failure taxonomy.
func classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	kind := KindTransient
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		kind = KindCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTransient
	case isRateLimitError(err):
		kind = KindRateLimited
	case isPermanentError(err):
		kind = KindPermanent
	}

	return &Error{Kind: kind, Op: op, Err: err}
}

// isRateLimitError checks for quota rejections across providers.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") ||
		strings.Contains(s, "RESOURCE_EXHAUSTED") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "quota")
}

// isPermanentError checks for failures that will not succeed on retry.
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, marker := range []string{"400", "401", "403", "404", "invalid_request", "INVALID_ARGUMENT", "PERMISSION_DENIED", "API key"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
