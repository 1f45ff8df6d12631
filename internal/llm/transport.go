package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/plagiscan/internal/model"
	"github.com/ppiankov/plagiscan/internal/util"
)

// newClient builds a provider HTTP client on the same proxy and redirect
// rules as search and fetch
func newClient(config Config, fallback time.Duration) *http.Client {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = fallback
	}
	return util.NewHTTPClient(model.HTTPConfig{
		Timeout:      timeout,
		MaxRedirects: 3,
		HTTPProxy:    config.HTTPProxy,
		HTTPSProxy:   config.HTTPSProxy,
		NoProxy:      config.NoProxy,
	})
}

// pickModel returns the first non-empty name
func pickModel(names ...string) string {
	for _, n := range names {
		if n != "" {
			return n
		}
	}
	return ""
}

// promptFor returns the caller's prompt or one built from the report
func promptFor(req SummarizeRequest) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return BuildPrompt(req.Report, req.SourceURLs)
}

// narrative checks the generated text against the allowed sources and
// packages it as a response
func narrative(text, modelName string, tokens int, req SummarizeRequest, config Config) (*SummarizeResponse, error) {
	summary := strings.TrimSpace(text)
	cited, err := checkCitations(summary, req.SourceURLs, config.StrictSources)
	if err != nil {
		return nil, err
	}
	return &SummarizeResponse{
		Summary:    summary,
		CitedURLs:  cited,
		Model:      modelName,
		TokensUsed: tokens,
	}, nil
}

// postJSON posts in as JSON and decodes a 200 answer into out. For other
// statuses apiMessage pulls the provider's error text out of the body.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any, apiMessage func([]byte) string) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if apiMessage != nil {
			msg = apiMessage(raw)
		}
		if msg == "" {
			msg = string(raw)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
