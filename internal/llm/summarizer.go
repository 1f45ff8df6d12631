package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/plagiscan/internal/model"
)

// Summarizer adds an optional narrative to finished reports.
// It never modifies matches, scores or the summary.
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer; a disabled config yields a no-op summarizer
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary writes a narrative for report. Provider failures are
// reported as warnings on the returned summary, not as errors, so a
// narrative problem never fails a check.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.Report) (*model.LLMSummary, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	name := s.provider.Name()
	if !s.provider.IsAvailable(ctx) {
		return &model.LLMSummary{
			Enabled:       false,
			Provider:      name,
			StrictSources: s.config.StrictSources,
			Warnings:      []string{fmt.Sprintf("LLM provider %s is not available; narrative skipped", name)},
		}, nil
	}

	sources := report.SourceURLs()
	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Report:     report,
		SourceURLs: sources,
		Model:      s.config.Model,
		MaxTokens:  s.config.MaxTokens,
	})
	if err != nil {
		return &model.LLMSummary{
			Enabled:       true,
			Provider:      name,
			Model:         s.config.Model,
			StrictSources: s.config.StrictSources,
			Warnings:      []string{fmt.Sprintf("Narrative generation failed: %v", err)},
		}, nil
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = s.config.Model
	}

	warnings := []string{fmt.Sprintf("Tokens used: %d", resp.TokensUsed)}
	if s.config.StrictSources {
		warnings = append(warnings, fmt.Sprintf("Verified %d citations against %d matched sources", len(resp.CitedURLs), len(sources)))
	}

	return &model.LLMSummary{
		Enabled:       true,
		Provider:      name,
		Model:         modelName,
		StrictSources: s.config.StrictSources,
		SummaryMD:     resp.Summary,
		Warnings:      warnings,
	}, nil
}

// RenderSeparateMarkdown renders a narrative as a standalone Markdown document
func RenderSeparateMarkdown(summary *model.LLMSummary) string {
	if summary == nil || !summary.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# LLM Narrative\n\n")
	b.WriteString("> **GENERATED CONTENT.** Matches and similarity scores were determined independently by lexical comparison. ")
	b.WriteString("This narrative only describes them and cannot change them.\n\n")

	fmt.Fprintf(&b, "- **Provider:** %s\n", summary.Provider)
	if summary.Model != "" {
		fmt.Fprintf(&b, "- **Model:** %s\n", summary.Model)
	}
	fmt.Fprintf(&b, "- **Strict Sources:** %t\n\n", summary.StrictSources)

	b.WriteString("## Narrative\n\n")
	if strings.TrimSpace(summary.SummaryMD) == "" {
		b.WriteString("_No narrative generated._\n\n")
	} else {
		b.WriteString(strings.TrimSpace(summary.SummaryMD))
		b.WriteString("\n\n")
	}

	if len(summary.Warnings) > 0 {
		b.WriteString("## Notes\n\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
