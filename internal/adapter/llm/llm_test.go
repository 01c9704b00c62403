package llm

import (
	"net/http"
	"strings"
	"testing"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

func respWith(status int, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
	}
}

func TestClassifyRateLimited(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	le := classify("anthropic", "m", false, respWith(429, h), nil)
	if le.Kind != domain.LLMRateLimited {
		t.Fatalf("kind = %q, want rate_limited", le.Kind)
	}
	if le.RetryAfterMS != 7000 {
		t.Fatalf("retry after = %d, want 7000", le.RetryAfterMS)
	}
	if !le.Retryable() {
		t.Fatalf("rate limited must be retryable")
	}
}

func TestClassifyRateLimitedDefaultHint(t *testing.T) {
	le := classify("openai", "m", false, respWith(429, nil), nil)
	if le.RetryAfterMS != 60_000 {
		t.Fatalf("retry after = %d, want 60000 default", le.RetryAfterMS)
	}
}

func TestClassifyUnauthorized(t *testing.T) {
	le := classify("anthropic", "m", true, respWith(401, nil), []byte("expired"))
	if le.Kind != domain.LLMTokenExpired {
		t.Fatalf("oauth 401 kind = %q, want token_expired", le.Kind)
	}

	le = classify("anthropic", "m", false, respWith(401, nil), []byte("bad key"))
	if le.Kind != domain.LLMAuthenticationFailed {
		t.Fatalf("api key 401 kind = %q, want authentication_failed", le.Kind)
	}
	if le.Message != "bad key" {
		t.Fatalf("message = %q", le.Message)
	}
	if le.Retryable() {
		t.Fatalf("auth failures must not retry")
	}
}

func TestClassifyForbidden(t *testing.T) {
	le := classify("openai", "m", false, respWith(403, nil), []byte("denied"))
	if le.Kind != domain.LLMAuthenticationFailed {
		t.Fatalf("kind = %q, want authentication_failed", le.Kind)
	}
}

func TestClassifyModelNotFound(t *testing.T) {
	le := classify("anthropic", "claude-x", false, respWith(404, nil), nil)
	if le.Kind != domain.LLMModelNotFound || le.Model != "claude-x" {
		t.Fatalf("got kind=%q model=%q", le.Kind, le.Model)
	}
}

func TestClassifyNotFoundWithoutModel(t *testing.T) {
	le := classify("opencode", "", false, respWith(404, nil), []byte("nope"))
	if le.Kind != domain.LLMInvalidResponse {
		t.Fatalf("kind = %q, want invalid_response", le.Kind)
	}
}

func TestClassifyUnavailable(t *testing.T) {
	for _, status := range []int{503, 529} {
		resp := respWith(status, nil)
		if status == 529 {
			resp.Status = "529"
		}
		le := classify("anthropic", "m", false, resp, nil)
		if le.Kind != domain.LLMUnavailable {
			t.Fatalf("status %d kind = %q, want unavailable", status, le.Kind)
		}
		if !le.Retryable() {
			t.Fatalf("status %d must be retryable", status)
		}
	}
}

func TestClassifyDefault(t *testing.T) {
	le := classify("anthropic", "m", false, respWith(500, nil), []byte("boom"))
	if le.Kind != domain.LLMInvalidResponse {
		t.Fatalf("kind = %q, want invalid_response", le.Kind)
	}
	if !strings.Contains(le.Message, "API error") || !strings.Contains(le.Message, "boom") {
		t.Fatalf("message = %q", le.Message)
	}
}

func TestRetryAfterMS(t *testing.T) {
	cases := []struct {
		value string
		want  int64
	}{
		{"", 60_000},
		{"30", 30_000},
		{"0", 0},
		{"  5 ", 5_000},
		{"soon", 60_000},
		{"-3", 60_000},
	}
	for _, tc := range cases {
		h := http.Header{}
		if tc.value != "" {
			h.Set("Retry-After", tc.value)
		}
		if got := retryAfterMS(h); got != tc.want {
			t.Fatalf("retryAfterMS(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
}

func TestSnippetTruncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	if got := snippet([]byte(long)); len(got) != 512 {
		t.Fatalf("len = %d, want 512", len(got))
	}
	if got := snippet([]byte("  short  ")); got != "short" {
		t.Fatalf("got %q", got)
	}
}
