// Package llm implements the provider clients behind the grading model calls.
//
// All providers share one HTTP error classification onto the domain's LLM
// error taxonomy, so the retry wrapper can decide retryability without
// knowing which provider produced the failure.
package llm

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

const defaultRetryAfterMS = 60_000

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// snippet bounds provider bodies quoted into error messages.
func snippet(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}

// retryAfterMS reads a Retry-After header given in seconds. Absent or
// unparsable values fall back to the 60 s default hint.
func retryAfterMS(h http.Header) int64 {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return defaultRetryAfterMS
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs < 0 {
		return defaultRetryAfterMS
	}
	return secs * 1000
}

// classify maps one non-2xx provider response onto the error taxonomy.
func classify(provider, model string, oauth bool, resp *http.Response, body []byte) *domain.LLMError {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.LLMError{
			Kind:         domain.LLMRateLimited,
			RetryAfterMS: retryAfterMS(resp.Header),
			Provider:     provider,
		}
	case resp.StatusCode == http.StatusUnauthorized && oauth:
		return &domain.LLMError{Kind: domain.LLMTokenExpired, Provider: provider}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &domain.LLMError{
			Kind:     domain.LLMAuthenticationFailed,
			Message:  snippet(body),
			Provider: provider,
		}
	case resp.StatusCode == http.StatusNotFound && model != "":
		return &domain.LLMError{Kind: domain.LLMModelNotFound, Model: model, Provider: provider}
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == 529:
		return &domain.LLMError{Kind: domain.LLMUnavailable, Provider: provider}
	default:
		return &domain.LLMError{
			Kind:     domain.LLMInvalidResponse,
			Message:  fmt.Sprintf("API error (%s): %s", resp.Status, snippet(body)),
			Provider: provider,
		}
	}
}

func networkErr(provider string, err error) *domain.LLMError {
	return &domain.LLMError{Kind: domain.LLMNetwork, Provider: provider, Err: err}
}

func invalidResponse(provider, message string) *domain.LLMError {
	return &domain.LLMError{Kind: domain.LLMInvalidResponse, Message: message, Provider: provider}
}
