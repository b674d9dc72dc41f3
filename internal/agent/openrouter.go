package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterOption configures an OpenRouter completer.
type OpenRouterOption func(*OpenRouter)

// OpenRouter completes prompts over the OpenRouter chat completions API.
type OpenRouter struct {
	apiKey      string
	model       string
	endpoint    string
	temperature float64
	maxTokens   int
	referer     string
	title       string
	client      *http.Client
}

// NewOpenRouter returns a completer for model authenticated with apiKey.
func NewOpenRouter(apiKey, model string, opts ...OpenRouterOption) *OpenRouter {
	o := &OpenRouter{
		apiKey:      strings.TrimSpace(apiKey),
		model:       strings.TrimSpace(model),
		endpoint:    defaultOpenRouterEndpoint,
		temperature: 0.7,
		maxTokens:   1024,
		referer:     "http://localhost:3000",
		title:       "DealScout",
		client:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithOpenRouterEndpoint overrides the API URL.
func WithOpenRouterEndpoint(endpoint string) OpenRouterOption {
	return func(o *OpenRouter) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			o.endpoint = trimmed
		}
	}
}

// WithOpenRouterHTTPClient replaces the HTTP client.
func WithOpenRouterHTTPClient(client *http.Client) OpenRouterOption {
	return func(o *OpenRouter) {
		if client != nil {
			o.client = client
		}
	}
}

// WithSampling sets temperature and the completion token cap.
func WithSampling(temperature float64, maxTokens int) OpenRouterOption {
	return func(o *OpenRouter) {
		o.temperature = temperature
		if maxTokens > 0 {
			o.maxTokens = maxTokens
		}
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *chatError `json:"error"`
}

type chatError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

var _ Completer = (*OpenRouter)(nil)

// Complete sends the prompt and returns the first choice.
func (o *OpenRouter) Complete(ctx context.Context, p Prompt) (Completion, error) {
	if o.apiKey == "" {
		return Completion{}, errors.New("agent: openrouter api key is required")
	}
	if o.model == "" {
		return Completion{}, errors.New("agent: openrouter model is required")
	}

	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("agent: marshal openrouter request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("agent: build openrouter request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", o.referer)
	req.Header.Set("X-Title", o.title)

	resp, err := o.client.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("agent: call openrouter: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Completion{}, fmt.Errorf("agent: read openrouter response: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(data, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return Completion{}, fmt.Errorf("agent: openrouter status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return Completion{}, fmt.Errorf("agent: openrouter status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if decodeErr != nil {
		return Completion{}, fmt.Errorf("agent: decode openrouter response: %w", decodeErr)
	}
	if parsed.Error != nil {
		return Completion{}, fmt.Errorf("agent: openrouter error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, errors.New("agent: openrouter response contained no choices")
	}

	model := parsed.Model
	if model == "" {
		model = o.model
	}
	return Completion{
		Text:         strings.TrimSpace(parsed.Choices[0].Message.Content),
		Model:        model,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}
