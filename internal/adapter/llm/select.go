package llm

import (
	"github.com/fairyhunter13/ai-code-grader/internal/config"
	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// FromConfig picks a provider from the environment. Anthropic wins when
// configured, then OpenAI, then an OpenAI-compatible endpoint. The returned
// client already carries the retry wrapper, the circuit breaker, and usage
// accounting.
func FromConfig(cfg config.Config) (*ObservedClient, error) {
	timeout := cfg.LLMTimeout()
	switch {
	case cfg.AnthropicAPIKey != "":
		c := NewAnthropic(cfg.AnthropicAPIKey, timeout).WithModel(cfg.AnthropicModel)
		return Observe(WithBreaker(WithRetry(c, domain.DefaultRetryPolicy())), c.model), nil
	case cfg.OpenAIAPIKey != "":
		c := NewOpenAI(cfg.OpenAIAPIKey, timeout).WithModel(cfg.OpenAIModel)
		return Observe(WithBreaker(WithRetry(c, domain.DefaultRetryPolicy())), c.model), nil
	case cfg.OpenCodeBaseURL != "" || cfg.OpenCodeAPIKey != "":
		c := NewCompat(cfg.OpenCodeBaseURL, cfg.OpenCodeAPIKey, timeout).WithModel(cfg.OpenCodeModel)
		return Observe(WithBreaker(WithRetry(c, domain.DefaultRetryPolicy())), c.model), nil
	default:
		return nil, &domain.LLMError{
			Kind:    domain.LLMConfiguration,
			Message: "no provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY, or OPENCODE_BASE_URL",
		}
	}
}
