package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

const (
	anthropicAPIURL    = "https://api.anthropic.com/v1/messages"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096

	oauthBetaFeatures  = "oauth-2025-04-20,interleaved-thinking-2025-05-14"
	oauthUserAgent     = "claude-cli/2.1.2 (external, cli)"
	claudeCodeIdentity = "You are Claude Code, Anthropic's official CLI for Claude."
)

// AnthropicClient calls the Anthropic Messages API. It runs in one of two
// credential modes: a plain API key, or an OAuth access token (sk-ant-oat
// prefix) which requires the beta query flag, extra headers, and an
// identity system block ahead of the caller's system prompt.
type AnthropicClient struct {
	hc      *http.Client
	key     string
	model   string
	baseURL string
	oauth   bool
}

// NewAnthropic builds a client for the given credential. OAuth mode is
// detected from the key prefix.
func NewAnthropic(key string, timeout time.Duration) *AnthropicClient {
	return &AnthropicClient{
		hc:      newHTTPClient(timeout),
		key:     key,
		model:   "claude-sonnet-4-20250514",
		baseURL: anthropicAPIURL,
		oauth:   strings.HasPrefix(key, "sk-ant-oat"),
	}
}

// WithModel overrides the default model. Empty values keep the default.
func (c *AnthropicClient) WithModel(model string) *AnthropicClient {
	if model != "" {
		c.model = model
	}
	return c
}

// WithBaseURL points the client at a different endpoint.
func (c *AnthropicClient) WithBaseURL(u string) *AnthropicClient {
	c.baseURL = u
	return c
}

// Provider identifies this client in errors, logs, and metrics.
func (c *AnthropicClient) Provider() string { return "anthropic" }

var _ domain.ModelClient = (*AnthropicClient)(nil)

func (c *AnthropicClient) endpoint() string {
	if c.oauth {
		return c.baseURL + "?beta=true"
	}
	return c.baseURL
}

// sanitizeForOAuth rewrites third-party branding in system text; the OAuth
// endpoint rejects prompts that claim a different product identity.
func sanitizeForOAuth(text string) string {
	text = strings.ReplaceAll(text, "OpenCode", "Claude Code")
	return strings.ReplaceAll(text, "opencode", "Claude")
}

type anthropicCacheControl struct {
	Type string `json:"type"`
}

type anthropicSystemBlock struct {
	Type         string                `json:"type"`
	Text         string                `json:"text"`
	CacheControl anthropicCacheControl `json:"cache_control"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	System    any                `json:"system,omitempty"`
}

// Chat sends one conversation turn and returns the joined text blocks.
func (c *AnthropicClient) Chat(ctx domain.Context, messages []domain.Message, system string) (string, error) {
	var sys any
	if c.oauth {
		blocks := []anthropicSystemBlock{{
			Type:         "text",
			Text:         claudeCodeIdentity,
			CacheControl: anthropicCacheControl{Type: "ephemeral"},
		}}
		if system != "" {
			blocks = append(blocks, anthropicSystemBlock{
				Type:         "text",
				Text:         sanitizeForOAuth(system),
				CacheControl: anthropicCacheControl{Type: "ephemeral"},
			})
		}
		sys = blocks
	} else if system != "" {
		sys = system
	}

	apiMessages := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			continue
		}
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "assistant"
		}
		apiMessages = append(apiMessages, anthropicMessage{Role: role, Content: m.Content})
	}

	b, _ := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		Messages:  apiMessages,
		System:    sys,
	})

	r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(b))
	r.Header.Set("anthropic-version", anthropicVersion)
	r.Header.Set("Content-Type", "application/json")
	if c.oauth {
		r.Header.Set("Authorization", "Bearer "+c.key)
		r.Header.Set("anthropic-beta", oauthBetaFeatures)
		r.Header.Set("anthropic-product", "claude-code")
		r.Header.Set("User-Agent", oauthUserAgent)
	} else {
		r.Header.Set("x-api-key", c.key)
	}

	resp, err := c.hc.Do(r)
	if err != nil {
		return "", networkErr("anthropic", err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkErr("anthropic", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classify("anthropic", c.model, c.oauth, resp, bodyBytes)
	}

	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return "", invalidResponse("anthropic", fmt.Sprintf("Invalid response: %v", err))
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", invalidResponse("anthropic", "No text content in response")
	}
	return sb.String(), nil
}
