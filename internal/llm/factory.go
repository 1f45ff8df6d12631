package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/plagiscan/internal/model"
)

// NewProvider creates a new LLM provider based on configuration.
// An empty provider name returns nil (narratives disabled).
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config. Strict source
// checking is always on; proxies follow the HTTP section.
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:      llmCfg.Provider,
		Model:         llmCfg.Model,
		APIKey:        llmCfg.APIKey,
		BaseURL:       llmCfg.BaseURL,
		Timeout:       llmCfg.Timeout,
		StrictSources: true,
		MaxTokens:     llmCfg.MaxTokens,
		HTTPProxy:     httpCfg.HTTPProxy,
		HTTPSProxy:    httpCfg.HTTPSProxy,
		NoProxy:       httpCfg.NoProxy,
	}
}
