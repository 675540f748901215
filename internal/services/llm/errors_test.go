package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"rate limit status", errors.New("got HTTP 429 from provider"), KindRateLimited},
		{"resource exhausted", errors.New("rpc error: RESOURCE_EXHAUSTED"), KindRateLimited},
		{"quota message", errors.New("quota exceeded for project"), KindRateLimited},
		{"bad request", errors.New("400 invalid_request"), KindPermanent},
		{"missing api key", errors.New("API key not valid"), KindPermanent},
		{"permission denied", errors.New("PERMISSION_DENIED"), KindPermanent},
		{"breaker open", gobreaker.ErrOpenState, KindCircuitOpen},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"plain network error", errors.New("connection reset by peer"), KindTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := classify("complete", tc.err)
			assert.Equal(t, tc.kind, classified.Kind)
		})
	}

	assert.Nil(t, classify("complete", nil))
}

func TestClassifyPreservesExistingClassification(t *testing.T) {
	inner := &Error{Kind: KindSchemaViolation, Op: "complete", Err: errors.New("bad shape")}
	wrapped := fmt.Errorf("call failed: %w", inner)

	classified := classify("complete", wrapped)
	assert.Equal(t, KindSchemaViolation, classified.Kind)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindPermanent, KindOf(&Error{Kind: KindPermanent}))
	assert.Equal(t, KindPermanent, KindOf(fmt.Errorf("wrap: %w", &Error{Kind: KindPermanent})))
	// unclassified errors default to transient
	assert.Equal(t, KindTransient, KindOf(errors.New("whatever")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&Error{Kind: KindTransient}))
	assert.True(t, Retryable(&Error{Kind: KindRateLimited}))
	assert.False(t, Retryable(&Error{Kind: KindPermanent}))
	assert.False(t, Retryable(&Error{Kind: KindSchemaViolation}))
	assert.False(t, Retryable(&Error{Kind: KindCircuitOpen}))
}

func TestErrorStringAndUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Kind: KindRateLimited, Op: "embed", Err: inner}

	assert.Contains(t, err.Error(), "embed")
	assert.Contains(t, err.Error(), "rate_limited")
	assert.ErrorIs(t, err, inner)
}
