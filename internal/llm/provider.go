package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/plagiscan/internal/model"
)

// ErrCitationLeak is returned when a narrative cites a URL that is not among the matched sources
var ErrCitationLeak = errors.New("narrative cited a URL outside the matched sources")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize writes a narrative of the report restricted to its sources
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	// Report is the finished detection report
	Report model.Report

	// SourceURLs is the allowlist of URLs the narrative may cite
	SourceURLs []string

	// Prompt overrides the default prompt when set
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string // URLs found in the summary, already checked against the allowlist
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	Model   string
	APIKey  string
	BaseURL string // Custom endpoint, required for self-hosted Ollama

	Timeout int // seconds

	// StrictSources rejects narratives citing URLs outside the matches
	StrictSources bool

	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:      "", // Disabled by default
		Timeout:       30,
		StrictSources: true,
		MaxTokens:     800,
	}
}

const systemPrompt = "You describe plagiarism check results with strict adherence to the listed evidence. You never accuse anyone of copying."

// maxPromptPairs bounds how many matched pairs are quoted in the prompt
const maxPromptPairs = 8

// BuildPrompt constructs the default narrative prompt
func BuildPrompt(report model.Report, sourceURLs []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are summarizing the result of a lexical similarity check. The check compares
sentences of a submitted text with sentences found on web pages. A match means overlapping
wording; it does NOT prove copying, and common phrases or quotations can match legitimately.

RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. Do not cite, guess or invent any other source.
3. Do not change, recompute or dispute the similarity numbers below.
4. Describe overlap, never intent. Use phrases like:
   - "N sentences closely match wording found on ..."
   - "No overlapping wording was found for ..."
5. If the run was partial or degraded, say that the result is incomplete.

Check Summary:
- Overall similarity: %.2f%%
- Matches: %d across %d source(s)
- Sentences checked: %d of %d
- Run status: %s
`, joinURLs(sourceURLs),
		report.Summary.OverallPercentage,
		report.Summary.TotalMatches, len(report.Summary.Sources),
		report.Stats.SentencesChecked, report.Stats.SentencesSegmented,
		report.Stats.Status())

	if len(report.Matches) > 0 {
		b.WriteString("\nMatched pairs:\n")
		for i, m := range report.Matches {
			if i >= maxPromptPairs {
				fmt.Fprintf(&b, "... and %d more matches\n", len(report.Matches)-maxPromptPairs)
				break
			}
			fmt.Fprintf(&b, "- %.0f%% | submitted: %q | source (%s): %q\n",
				m.Similarity*100, m.Sentence, m.Source.URL, m.Source.Text)
		}
	}

	b.WriteString("\nProvide a 3-4 sentence summary of where the wording overlaps and how strongly.")
	return b.String()
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No matched sources)"
	}
	var b strings.Builder
	for i, url := range urls {
		if i >= 20 { // Limit to first 20 to avoid token bloat
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", url)
	}
	return b.String()
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"']+`)

// extractURLs returns the distinct URLs in text with trailing punctuation trimmed
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, url := range urlPattern.FindAllString(text, -1) {
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}
	return unique
}

// checkCitations extracts the cited URLs of a summary and, in strict mode,
// rejects any that are not in the allowlist
func checkCitations(summary string, allowed []string, strict bool) ([]string, error) {
	cited := extractURLs(summary)
	if !strict {
		return cited, nil
	}
	allow := make(map[string]bool, len(allowed))
	for _, u := range allowed {
		allow[u] = true
	}
	for _, u := range cited {
		if !allow[u] {
			return nil, fmt.Errorf("%w: %s", ErrCitationLeak, u)
		}
	}
	return cited, nil
}

func resolveMaxTokens(req SummarizeRequest, cfg Config) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 800
}
