package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrConflict", ErrConflict, "conflict"},
		{"ErrCloneFailed", ErrCloneFailed, "clone failed"},
		{"ErrInternal", ErrInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected %s to be %q, got %q", tt.name, tt.expected, tt.err.Error())
			}
		})
	}
}

func TestErrorIsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("op=store.get: %w", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Errorf("expected wrapped error to match ErrNotFound")
	}
	if errors.Is(wrapped, ErrConflict) {
		t.Errorf("wrapped ErrNotFound should not match ErrConflict")
	}
}

func TestLLMErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      *LLMError
		expected string
	}{
		{"authentication failed", &LLMError{Kind: LLMAuthenticationFailed, Message: "bad key"}, "authentication failed: bad key"},
		{"rate limited", &LLMError{Kind: LLMRateLimited, RetryAfterMS: 60000}, "rate limit exceeded: retry after 60000ms"},
		{"context exceeded", &LLMError{Kind: LLMContextExceeded, Used: 210000, Limit: 200000}, "context window exceeded: 210000 tokens used, 200000 limit"},
		{"content filtered", &LLMError{Kind: LLMContentFiltered, Reason: "policy"}, "content filtered: policy"},
		{"model not found", &LLMError{Kind: LLMModelNotFound, Model: "gpt-0"}, "model not found: gpt-0"},
		{"network wrapped", &LLMError{Kind: LLMNetwork, Err: errors.New("dial tcp: refused")}, "network error: dial tcp: refused"},
		{"network message only", &LLMError{Kind: LLMNetwork, Message: "request timed out"}, "network error: request timed out"},
		{"invalid response", &LLMError{Kind: LLMInvalidResponse, Message: "empty body"}, "invalid response: empty body"},
		{"stream error", &LLMError{Kind: LLMStreamError, Message: "broken pipe"}, "stream error: broken pipe"},
		{"configuration", &LLMError{Kind: LLMConfiguration, Message: "no provider"}, "configuration error: no provider"},
		{"unavailable", &LLMError{Kind: LLMUnavailable, Provider: "anthropic"}, "provider unavailable: anthropic"},
		{"token expired", &LLMError{Kind: LLMTokenExpired}, "token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestLLMErrorRetryable(t *testing.T) {
	tests := []struct {
		kind      LLMErrorKind
		retryable bool
	}{
		{LLMAuthenticationFailed, false},
		{LLMRateLimited, true},
		{LLMContextExceeded, false},
		{LLMContentFiltered, false},
		{LLMModelNotFound, false},
		{LLMNetwork, true},
		{LLMInvalidResponse, false},
		{LLMStreamError, false},
		{LLMConfiguration, false},
		{LLMUnavailable, true},
		{LLMTokenExpired, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := &LLMError{Kind: tt.kind}
			if got := e.Retryable(); got != tt.retryable {
				t.Errorf("Retryable(%s) = %v, want %v", tt.kind, got, tt.retryable)
			}
		})
	}
}

func TestLLMErrorRetryAfterHint(t *testing.T) {
	if ms, ok := (&LLMError{Kind: LLMRateLimited, RetryAfterMS: 2500}).RetryAfterHint(); !ok || ms != 2500 {
		t.Errorf("RetryAfterHint() = (%d,%v), want (2500,true)", ms, ok)
	}
	if _, ok := (&LLMError{Kind: LLMRateLimited}).RetryAfterHint(); ok {
		t.Errorf("rate limit without delay should have no hint")
	}
	if _, ok := (&LLMError{Kind: LLMNetwork, RetryAfterMS: 2500}).RetryAfterHint(); ok {
		t.Errorf("only rate limit errors carry a hint")
	}
}

func TestAsLLMError(t *testing.T) {
	orig := &LLMError{Kind: LLMUnavailable, Provider: "openai"}
	wrapped := fmt.Errorf("op=grader.check: %w", orig)

	got, ok := AsLLMError(wrapped)
	if !ok {
		t.Fatalf("expected AsLLMError to find wrapped *LLMError")
	}
	if got.Kind != LLMUnavailable || got.Provider != "openai" {
		t.Errorf("AsLLMError = %+v, want original", got)
	}

	if _, ok := AsLLMError(errors.New("plain")); ok {
		t.Errorf("plain error should not match")
	}
}

func TestLLMErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	e := &LLMError{Kind: LLMNetwork, Err: inner}
	if !errors.Is(e, inner) {
		t.Errorf("expected Unwrap to expose the transport error")
	}
}
