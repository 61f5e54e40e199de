package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down")
	require.Equal(t, "slow down", err.Error())
	require.True(t, IsRateLimitError(err))
	require.True(t, IsRateLimitError(fmt.Errorf("google: %w", err)))
	require.False(t, IsRateLimitError(stdErrors.New("slow down")))
}

func TestRateLimitErrorWithSource(t *testing.T) {
	err := &RateLimitError{Source: "goodreads", Message: "too many requests"}
	require.Equal(t, "goodreads: too many requests", err.Error())
}

func TestRateLimitErrorWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{name: "zero omits hint", duration: 0, expected: "rate limited"},
		{name: "seconds", duration: 30 * time.Second, expected: "rate limited (retry after 30s)"},
		{name: "minutes", duration: 2 * time.Minute, expected: "rate limited (retry after 2m0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRateLimitErrorWithRetry("rate limited", tt.duration)
			require.Equal(t, tt.expected, err.Error())
			require.Equal(t, tt.duration, err.RetryAfter)
		})
	}
}

func TestStopProcessingError(t *testing.T) {
	err := NewStopProcessingError("stopped by user")
	require.Equal(t, "stopped by user", err.Error())
	require.True(t, IsStopProcessingError(err))
	require.True(t, IsStopProcessingError(stdErrors.Join(stdErrors.New("context"), err)))
	require.False(t, IsStopProcessingError(stdErrors.New("stopped by user")))
}

func TestBlockedError(t *testing.T) {
	err := &BlockedError{URL: "https://example.com/search", Reason: "cloudflare challenge"}
	require.Equal(t, "blocked fetching https://example.com/search: cloudflare challenge", err.Error())
	require.True(t, IsBlockedError(fmt.Errorf("fetch: %w", err)))
}
