package domain

import (
	"errors"
	"fmt"
)

// LLMErrorKind classifies provider failures. The kind, not the Go error
// identity, drives retry decisions and HTTP mapping.
type LLMErrorKind string

const (
	LLMAuthenticationFailed LLMErrorKind = "authentication_failed"
	LLMRateLimited          LLMErrorKind = "rate_limited"
	LLMContextExceeded      LLMErrorKind = "context_exceeded"
	LLMContentFiltered      LLMErrorKind = "content_filtered"
	LLMModelNotFound        LLMErrorKind = "model_not_found"
	LLMNetwork              LLMErrorKind = "network"
	LLMInvalidResponse      LLMErrorKind = "invalid_response"
	LLMStreamError          LLMErrorKind = "stream_error"
	LLMConfiguration        LLMErrorKind = "configuration"
	LLMUnavailable          LLMErrorKind = "unavailable"
	LLMTokenExpired         LLMErrorKind = "token_expired"
)

// LLMError is a classified provider failure. Only the fields relevant to a
// given Kind are populated (RetryAfterMS for rate limits, Used/Limit for
// context overflow, and so on).
type LLMError struct {
	Kind         LLMErrorKind
	Message      string
	RetryAfterMS int64
	Used         int
	Limit        int
	Reason       string
	Model        string
	Provider     string
	Err          error
}

func (e *LLMError) Error() string {
	switch e.Kind {
	case LLMAuthenticationFailed:
		return fmt.Sprintf("authentication failed: %s", e.Message)
	case LLMRateLimited:
		return fmt.Sprintf("rate limit exceeded: retry after %dms", e.RetryAfterMS)
	case LLMContextExceeded:
		return fmt.Sprintf("context window exceeded: %d tokens used, %d limit", e.Used, e.Limit)
	case LLMContentFiltered:
		return fmt.Sprintf("content filtered: %s", e.Reason)
	case LLMModelNotFound:
		return fmt.Sprintf("model not found: %s", e.Model)
	case LLMNetwork:
		if e.Err != nil {
			return fmt.Sprintf("network error: %v", e.Err)
		}
		return fmt.Sprintf("network error: %s", e.Message)
	case LLMInvalidResponse:
		return fmt.Sprintf("invalid response: %s", e.Message)
	case LLMStreamError:
		return fmt.Sprintf("stream error: %s", e.Message)
	case LLMConfiguration:
		return fmt.Sprintf("configuration error: %s", e.Message)
	case LLMUnavailable:
		return fmt.Sprintf("provider unavailable: %s", e.Provider)
	case LLMTokenExpired:
		return "token expired"
	}
	return e.Message
}

func (e *LLMError) Unwrap() error { return e.Err }

// Retryable reports whether the retry wrapper may attempt the call again.
func (e *LLMError) Retryable() bool {
	switch e.Kind {
	case LLMRateLimited, LLMNetwork, LLMUnavailable:
		return true
	}
	return false
}

// RetryAfterHint returns the provider's requested delay, if it gave one.
func (e *LLMError) RetryAfterHint() (int64, bool) {
	if e.Kind == LLMRateLimited && e.RetryAfterMS > 0 {
		return e.RetryAfterMS, true
	}
	return 0, false
}

// AsLLMError unwraps err to the classified form, if present.
func AsLLMError(err error) (*LLMError, bool) {
	var le *LLMError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
