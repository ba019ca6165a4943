package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProviderErrorRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       *ProviderError
		retryable bool
		delay     time.Duration
	}{
		{
			name:      "rate limit with retry-after",
			err:       &ProviderError{Kind: ProviderErrorKindRateLimitExceeded, RetryAfter: 30 * time.Second},
			retryable: true,
			delay:     30 * time.Second,
		},
		{
			name:      "overloaded",
			err:       &ProviderError{Kind: ProviderErrorKindOverloaded},
			retryable: true,
			delay:     20 * time.Second,
		},
		{
			name:      "invalid request",
			err:       &ProviderError{Kind: ProviderErrorKindInvalidRequest},
			retryable: false,
		},
		{
			name:      "timeout",
			err:       &ProviderError{Kind: ProviderErrorKindTimeout},
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, delay := tt.err.Retryable()
			if retryable != tt.retryable || (retryable && delay != tt.delay) {
				t.Errorf("Retryable() = %v, %s, want %v, %s", retryable, delay, tt.retryable, tt.delay)
			}
		})
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")
	err := NewProviderError("ollama", ProviderErrorKindConnection, cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach the wrapped cause")
	}
	if !strings.Contains(err.Error(), "ollama") || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStripThinking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "think block removed",
			content: "<think>reasoning here</think>The answer.",
			want:    "The answer.",
		},
		{
			name:    "multiline think block",
			content: "<think>line one\nline two</think>\nAnswer below.",
			want:    "Answer below.",
		},
		{
			name:    "no think block",
			content: "Plain answer.",
			want:    "Plain answer.",
		},
		{
			name:    "multiple think blocks",
			content: "<think>a</think>First. <think>b</think>Second.",
			want:    "First. Second.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripThinking(tt.content); got != tt.want {
				t.Errorf("StripThinking() = %q, want %q", got, tt.want)
			}
		})
	}
}
