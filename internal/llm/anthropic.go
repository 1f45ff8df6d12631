package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicDefaultURL   = "https://api.anthropic.com"
	anthropicDefaultModel = "claude-3-5-haiku-latest"
	anthropicVersion      = "2023-06-01"
)

// AnthropicProvider writes narratives through the Anthropic Messages API
type AnthropicProvider struct {
	baseURL string
	header  http.Header
	client  *http.Client
	config  Config
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Model   string             `json:"model"`
	Usage   anthropicUsage     `json:"usage"`
}

// NewAnthropicProvider creates a provider; config.APIKey is required
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	header := http.Header{}
	header.Set("x-api-key", config.APIKey)
	header.Set("anthropic-version", anthropicVersion)

	return &AnthropicProvider{
		baseURL: strings.TrimSuffix(pickModel(config.BaseURL, anthropicDefaultURL), "/"),
		header:  header,
		client:  newClient(config, 30*time.Second),
		config:  config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable sends a one-token message to confirm the key works
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	var resp anthropicResponse
	return p.send(ctx, anthropicRequest{
		Model:     p.model(""),
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: "user", Content: "Hi"}},
	}, &resp) == nil
}

// Summarize asks the model for a narrative of the report
func (p *AnthropicProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	var resp anthropicResponse
	err := p.send(ctx, anthropicRequest{
		Model:       p.model(req.Model),
		MaxTokens:   resolveMaxTokens(req, p.config),
		System:      systemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: promptFor(req)}},
		Temperature: 0.3,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var parts []string
	for _, c := range resp.Content {
		if c.Type == "text" && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	if len(parts) == 0 {
		return nil, errors.New("anthropic: response has no text content")
	}

	tokens := resp.Usage.InputTokens + resp.Usage.OutputTokens
	return narrative(strings.Join(parts, "\n"), pickModel(resp.Model, p.model(req.Model)), tokens, req, p.config)
}

func (p *AnthropicProvider) model(requested string) string {
	return pickModel(requested, p.config.Model, anthropicDefaultModel)
}

func (p *AnthropicProvider) send(ctx context.Context, req anthropicRequest, out *anthropicResponse) error {
	return postJSON(ctx, p.client, p.baseURL+"/v1/messages", p.header, req, out, anthropicErrorMessage)
}

func anthropicErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
		return ""
	}
	return e.Error.Type + ": " + e.Error.Message
}
