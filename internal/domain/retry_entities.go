// Package domain holds the grading service's core entities and ports.
package domain

import (
	"time"
)

// RetryPolicy bounds retries of upstream LLM calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, first call included
	MaxAttempts int
	// BaseDelay is the delay after the first failed attempt
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth of the delay
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the standard policy for provider calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// ShouldRetry reports whether attempt (1-based) may be followed by another.
// Only classified retryable provider errors qualify.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	le, ok := AsLLMError(err)
	return ok && le.Retryable()
}

// NextDelay returns the pause before attempt+1. A provider retry-after hint
// takes precedence; otherwise the delay doubles from BaseDelay per attempt,
// capped at MaxDelay.
func (p RetryPolicy) NextDelay(err error, attempt int) time.Duration {
	if le, ok := AsLLMError(err); ok {
		if ms, hinted := le.RetryAfterHint(); hinted {
			return time.Duration(ms) * time.Millisecond
		}
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
