package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractRetryDelay(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"please retry phrasing", errors.New("429: Please retry in 7s"), 7 * time.Second},
		{"retryDelay field", errors.New("RESOURCE_EXHAUSTED retryDelay: 3s"), 3 * time.Second},
		{"fractional seconds", errors.New("Please retry in 1.5s"), 1500 * time.Millisecond},
		{"no delay present", errors.New("rate limit exceeded"), 0},
		{"nil error", nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractRetryDelay(tc.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	config := NewDefaultRetryConfig()

	// Doubles per attempt from the 1s base.
	assert.Equal(t, 1*time.Second, config.Backoff(0, 0))
	assert.Equal(t, 2*time.Second, config.Backoff(1, 0))
	assert.Equal(t, 4*time.Second, config.Backoff(2, 0))

	// Capped at MaxBackoff regardless of attempt.
	assert.Equal(t, 30*time.Second, config.Backoff(10, 0))
}

func TestBackoffHonorsAPIDelay(t *testing.T) {
	config := NewDefaultRetryConfig()

	// The API-suggested delay replaces the base.
	assert.Equal(t, 7*time.Second, config.Backoff(0, 7*time.Second))
	assert.Equal(t, 14*time.Second, config.Backoff(1, 7*time.Second))

	// Still capped.
	assert.Equal(t, 30*time.Second, config.Backoff(3, 7*time.Second))
}
