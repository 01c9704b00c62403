package llm

import (
	"log/slog"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// RetryingClient wraps a ModelClient with the provider retry contract: at
// most policy.MaxAttempts calls, sleeping the provider's retry hint when
// present, else capped exponential delays. Only rate-limit, network, and
// unavailable errors retry; everything else propagates immediately.
type RetryingClient struct {
	inner  domain.ModelClient
	policy domain.RetryPolicy
}

// WithRetry wraps client. A zero policy falls back to the defaults.
func WithRetry(client domain.ModelClient, policy domain.RetryPolicy) *RetryingClient {
	if policy.MaxAttempts <= 0 {
		policy = domain.DefaultRetryPolicy()
	}
	return &RetryingClient{inner: client, policy: policy}
}

// Provider reports the wrapped client's provider label.
func (c *RetryingClient) Provider() string { return c.inner.Provider() }

var _ domain.ModelClient = (*RetryingClient)(nil)

// policyBackOff adapts the domain retry policy to the backoff interface.
// The operation records its last error so delays can honor the hint it
// carries.
type policyBackOff struct {
	policy  domain.RetryPolicy
	attempt int
	lastErr error
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
	b.lastErr = nil
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt >= b.policy.MaxAttempts {
		return backoff.Stop
	}
	return b.policy.NextDelay(b.lastErr, b.attempt)
}

// Chat calls the wrapped client, retrying per the policy.
func (c *RetryingClient) Chat(ctx domain.Context, messages []domain.Message, system string) (string, error) {
	bo := &policyBackOff{policy: c.policy}

	var result string
	op := func() error {
		out, err := c.inner.Chat(ctx, messages, system)
		if err != nil {
			bo.lastErr = err
			if le, ok := domain.AsLLMError(err); !ok || !le.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		result = out
		return nil
	}
	notify := func(err error, delay time.Duration) {
		slog.Warn("llm request failed, retrying",
			slog.String("provider", c.inner.Provider()),
			slog.Int("attempt", bo.attempt),
			slog.Int("max_attempts", c.policy.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return "", err
	}
	return result, nil
}
