package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// Five consecutive failed exchanges open the circuit; one probe call is
// admitted after the cooldown.
const (
	breakerMaxFailures = 5
	breakerCooldown    = 30 * time.Second
)

// BreakerClient fails fast once the provider looks down. Consecutive Chat
// failures at or past the threshold open the circuit; while open, calls
// return an unavailable error without touching the provider. After the
// cooldown a single probe goes through, closing the circuit on success
// and re-arming the cooldown on failure.
//
// It wraps the retrying client, so one breaker sample covers a whole
// retry cycle rather than a single attempt.
type BreakerClient struct {
	inner       domain.ModelClient
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool
}

// WithBreaker wraps client with the default thresholds.
func WithBreaker(client domain.ModelClient) *BreakerClient {
	return &BreakerClient{inner: client, maxFailures: breakerMaxFailures, cooldown: breakerCooldown}
}

// Provider reports the wrapped client's provider label.
func (b *BreakerClient) Provider() string { return b.inner.Provider() }

var _ domain.ModelClient = (*BreakerClient)(nil)

// Chat delegates unless the circuit is open.
func (b *BreakerClient) Chat(ctx domain.Context, messages []domain.Message, system string) (string, error) {
	if err := b.allow(); err != nil {
		return "", err
	}
	out, err := b.inner.Chat(ctx, messages, system)
	b.observe(err)
	return out, err
}

// allow admits the call, or returns the fail-fast error while the circuit
// is open. At most one probe is in flight at a time.
func (b *BreakerClient) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.maxFailures {
		return nil
	}
	if !b.probing && time.Since(b.openedAt) >= b.cooldown {
		b.probing = true
		slog.Info("llm circuit half-open, probing provider",
			slog.String("provider", b.inner.Provider()))
		return nil
	}
	return &domain.LLMError{Kind: domain.LLMUnavailable, Provider: b.inner.Provider()}
}

// observe folds one call outcome into the breaker state. Cancelled
// contexts say nothing about provider health and are not counted.
func (b *BreakerClient) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		if b.failures >= b.maxFailures {
			slog.Info("llm circuit closed", slog.String("provider", b.inner.Provider()))
		}
		b.failures = 0
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.openedAt = time.Now()
	}
	if b.failures == b.maxFailures {
		slog.Warn("llm circuit opened",
			slog.String("provider", b.inner.Provider()),
			slog.Int("consecutive_failures", b.failures))
	}
}
