package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

const (
	openAIChatURL    = "https://api.openai.com/v1/chat/completions"
	defaultCompatURL = "http://localhost:8000/v1/chat/completions"
)

// CompatClient speaks the OpenAI chat-completions wire format. The same
// client covers api.openai.com and any compatible local inference server;
// only the endpoint, credential, and provider label differ.
type CompatClient struct {
	hc       *http.Client
	provider string
	baseURL  string
	apiKey   string
	model    string
}

// NewOpenAI builds a client for the hosted OpenAI API.
func NewOpenAI(apiKey string, timeout time.Duration) *CompatClient {
	return &CompatClient{
		hc:       newHTTPClient(timeout),
		provider: "openai",
		baseURL:  openAIChatURL,
		apiKey:   apiKey,
		model:    "gpt-4o",
	}
}

// NewCompat builds a client for a generic OpenAI-compatible endpoint. An
// empty baseURL targets a local server; the key is optional.
func NewCompat(baseURL, apiKey string, timeout time.Duration) *CompatClient {
	if baseURL == "" {
		baseURL = defaultCompatURL
	}
	return &CompatClient{
		hc:       newHTTPClient(timeout),
		provider: "opencode",
		baseURL:  baseURL,
		apiKey:   apiKey,
		model:    "default",
	}
}

// WithModel overrides the default model. Empty values keep the default.
func (c *CompatClient) WithModel(model string) *CompatClient {
	if model != "" {
		c.model = model
	}
	return c
}

// WithBaseURL points the client at a different endpoint.
func (c *CompatClient) WithBaseURL(u string) *CompatClient {
	c.baseURL = u
	return c
}

// Provider identifies this client in errors, logs, and metrics.
func (c *CompatClient) Provider() string { return c.provider }

var _ domain.ModelClient = (*CompatClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// Chat sends one conversation turn and returns the first choice's content.
func (c *CompatClient) Chat(ctx domain.Context, messages []domain.Message, system string) (string, error) {
	msgs := make([]chatMessage, 0, len(messages)+1)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	b, _ := json.Marshal(chatRequest{Model: c.model, Messages: msgs})

	r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(r)
	if err != nil {
		return "", networkErr(c.provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkErr(c.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classify(c.provider, c.model, false, resp, bodyBytes)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return "", invalidResponse(c.provider, fmt.Sprintf("Invalid response: %v", err))
	}
	if len(out.Choices) == 0 {
		return "", invalidResponse(c.provider, "No choices in response")
	}
	return out.Choices[0].Message.Content, nil
}
