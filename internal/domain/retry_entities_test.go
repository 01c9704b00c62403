package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultRetryPolicyValues(t *testing.T) {
	p := DefaultRetryPolicy()

	if p.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.BaseDelay != time.Second {
		t.Fatalf("BaseDelay = %v, want 1s", p.BaseDelay)
	}
	if p.MaxDelay != 60*time.Second {
		t.Fatalf("MaxDelay = %v, want 60s", p.MaxDelay)
	}
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"retryable kind below cap", &LLMError{Kind: LLMNetwork}, 1, true},
		{"retryable kind at cap", &LLMError{Kind: LLMNetwork}, 3, false},
		{"rate limited", &LLMError{Kind: LLMRateLimited, RetryAfterMS: 1000}, 2, true},
		{"unavailable", &LLMError{Kind: LLMUnavailable, Provider: "openai"}, 1, true},
		{"auth failure never retries", &LLMError{Kind: LLMAuthenticationFailed}, 1, false},
		{"invalid response never retries", &LLMError{Kind: LLMInvalidResponse}, 1, false},
		{"unclassified error never retries", errors.New("boom"), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldRetry(tt.err, tt.attempt); got != tt.want {
				t.Errorf("ShouldRetry(%v, %d) = %v, want %v", tt.err, tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	netErr := &LLMError{Kind: LLMNetwork}

	tests := []struct {
		name    string
		err     error
		attempt int
		want    time.Duration
	}{
		{"first backoff", netErr, 1, time.Second},
		{"second backoff doubles", netErr, 2, 2 * time.Second},
		{"third backoff doubles again", netErr, 3, 4 * time.Second},
		{"capped at max", netErr, 30, 60 * time.Second},
		{"provider hint wins", &LLMError{Kind: LLMRateLimited, RetryAfterMS: 500}, 1, 500 * time.Millisecond},
		{"hint wins over large backoff", &LLMError{Kind: LLMRateLimited, RetryAfterMS: 250}, 3, 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.NextDelay(tt.err, tt.attempt); got != tt.want {
				t.Errorf("NextDelay(%v, %d) = %v, want %v", tt.err, tt.attempt, got, tt.want)
			}
		})
	}
}
