package llm

import (
	"log/slog"

	"github.com/fairyhunter13/ai-code-grader/internal/adapter/llm/tokencount"
	"github.com/fairyhunter13/ai-code-grader/internal/domain"
	"github.com/fairyhunter13/ai-code-grader/internal/observability"
)

// ObservedClient decorates a ModelClient with per-exchange accounting:
// request outcomes and token usage. Providers in this service do not report
// usage on every response shape, so token counts are computed locally.
type ObservedClient struct {
	inner   domain.ModelClient
	counter *tokencount.Counter
	model   string

	// OnUsage, when set, receives the usage of every successful exchange.
	OnUsage func(tokencount.Usage)
}

// Observe wraps client. model names the configured model for counting.
func Observe(client domain.ModelClient, model string) *ObservedClient {
	return &ObservedClient{inner: client, counter: tokencount.DefaultCounter, model: model}
}

// Provider reports the wrapped client's provider label.
func (o *ObservedClient) Provider() string { return o.inner.Provider() }

var _ domain.ModelClient = (*ObservedClient)(nil)

// Chat delegates to the wrapped client and accounts the exchange.
func (o *ObservedClient) Chat(ctx domain.Context, messages []domain.Message, system string) (string, error) {
	out, err := o.inner.Chat(ctx, messages, system)
	observability.RecordLLMRequest(o.inner.Provider(), err)
	if err != nil {
		return "", err
	}
	u := o.counter.ComputeUsage(system, messages, out, o.model, o.inner.Provider())
	slog.Debug("llm token usage",
		slog.String("provider", u.Provider),
		slog.String("model", u.Model),
		slog.Int("prompt_tokens", u.PromptTokens),
		slog.Int("completion_tokens", u.CompletionTokens),
		slog.Int("total_tokens", u.TotalTokens))
	if o.OnUsage != nil {
		o.OnUsage(u)
	}
	return out, nil
}
