package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const ollamaDefaultURL = "http://localhost:11434"

// OllamaProvider writes narratives with a local Ollama model over /api/chat
type OllamaProvider struct {
	baseURL string
	client  *http.Client
	config  Config
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// NewOllamaProvider creates a provider for the server at config.BaseURL
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	return &OllamaProvider{
		baseURL: strings.TrimSuffix(pickModel(config.BaseURL, ollamaDefaultURL), "/"),
		// Local models can take a while to load on first use
		client: newClient(config, 60*time.Second),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable reports whether the server lists its models
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Summarize asks the model for a narrative of the report
func (p *OllamaProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	modelName := pickModel(req.Model, p.config.Model)
	if modelName == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g. llama3.1:8b)")
	}
	prompt := promptFor(req)

	chat := ollamaChatRequest{
		Model: modelName,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	chat.Options.Temperature = 0.3
	chat.Options.NumPredict = resolveMaxTokens(req, p.config)

	var resp ollamaChatResponse
	if err := postJSON(ctx, p.client, p.baseURL+"/api/chat", nil, chat, &resp, ollamaErrorMessage); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	// Not every model reports counts; ~4 characters per token otherwise
	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		tokens = (len(prompt) + len(strings.TrimSpace(resp.Message.Content))) / 4
	}
	return narrative(resp.Message.Content, pickModel(resp.Model, modelName), tokens, req, p.config)
}

func ollamaErrorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}
