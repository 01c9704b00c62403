// Package tokencount estimates token usage for model calls.
//
// It uses tiktoken-go, a Go port of OpenAI's tiktoken library, to count
// tokens per model for usage logging and metrics. Claude and open-weight
// models have no public tokenizer here, so they are approximated with the
// cl100k_base family encodings.
package tokencount

import (
	"strings"
	"sync"

	"log/slog"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// Usage is the token accounting for one chat exchange.
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// Counter provides thread-safe token counting with cached encodings.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{
		encodingCache: make(map[string]*tiktoken.Tiktoken),
	}
}

// DefaultCounter is a global token counter instance.
var DefaultCounter = NewCounter()

func (c *Counter) encodingForModel(model string) (*tiktoken.Tiktoken, error) {
	normalized := normalizeModel(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[normalized]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if enc, ok := c.encodingCache[normalized]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(normalized)
	if err != nil {
		// cl100k_base covers GPT-4, GPT-3.5-turbo, and most modern models
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model),
			slog.String("normalized", normalized),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	c.encodingCache[normalized] = enc
	return enc, nil
}

// normalizeModel converts provider model IDs to tiktoken-compatible names.
func normalizeModel(model string) string {
	model = strings.ToLower(model)

	// Local inference servers often namespace IDs, e.g.
	// "meta-llama/llama-3.1-8b-instruct"
	if strings.Contains(model, "/") {
		parts := strings.Split(model, "/")
		model = parts[len(parts)-1]
	}

	switch {
	case strings.Contains(model, "gpt-4"):
		return "gpt-4"
	case strings.Contains(model, "gpt-3.5"):
		return "gpt-3.5-turbo"
	case strings.Contains(model, "claude"):
		// Claude tokenizes differently; cl100k_base is a close approximation
		return "gpt-4"
	case strings.Contains(model, "llama"),
		strings.Contains(model, "mistral"),
		strings.Contains(model, "qwen"),
		strings.Contains(model, "deepseek"),
		strings.Contains(model, "gemma"):
		return "gpt-4"
	default:
		return "gpt-4"
	}
}

// CountText counts the tokens in a text string for a given model.
func (c *Counter) CountText(text, model string) (int, error) {
	enc, err := c.encodingForModel(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountChat counts the prompt tokens of a chat request, including the
// per-message structure overhead used by OpenAI-compatible APIs. A
// non-empty system prompt counts as one more message.
func (c *Counter) CountChat(system string, messages []domain.Message, model string) (int, error) {
	enc, err := c.encodingForModel(model)
	if err != nil {
		return 0, err
	}

	// 3 tokens per message plus 1 for the role, per the OpenAI cookbook
	const tokensPerMessage = 3
	const tokensPerRole = 1

	n := 0
	if system != "" {
		n += tokensPerMessage
		n += len(enc.Encode("system", nil, nil))
		n += len(enc.Encode(system, nil, nil))
		n += tokensPerRole
	}
	for _, m := range messages {
		n += tokensPerMessage
		n += len(enc.Encode(string(m.Role), nil, nil))
		n += len(enc.Encode(m.Content, nil, nil))
		n += tokensPerRole
	}

	// Every reply is primed with <|start|>assistant<|message|>
	n += 3

	return n, nil
}

// ComputeUsage calculates full token usage for one chat exchange. Counting
// failures degrade to a rough four-characters-per-token estimate.
func (c *Counter) ComputeUsage(system string, messages []domain.Message, completion, model, provider string) Usage {
	promptTokens, err := c.CountChat(system, messages, model)
	if err != nil {
		slog.Warn("failed to count prompt tokens, using estimate",
			slog.String("model", model),
			slog.Any("error", err))
		chars := len(system)
		for _, m := range messages {
			chars += len(m.Content)
		}
		promptTokens = chars / 4
	}

	completionTokens, err := c.CountText(completion, model)
	if err != nil {
		slog.Warn("failed to count completion tokens, using estimate",
			slog.String("model", model),
			slog.Any("error", err))
		completionTokens = len(completion) / 4
	}

	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Model:            model,
		Provider:         provider,
	}
}

// CountTextDefault uses the default counter to count tokens.
func CountTextDefault(text, model string) (int, error) {
	return DefaultCounter.CountText(text, model)
}

// ComputeUsageDefault uses the default counter to calculate usage.
func ComputeUsageDefault(system string, messages []domain.Message, completion, model, provider string) Usage {
	return DefaultCounter.ComputeUsage(system, messages, completion, model, provider)
}
