package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/plagiscan/internal/model"
)

// Renderer writes reports in the supported formats
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// Formats lists the names accepted by Render
var Formats = []string{"text", "json", "yaml", "md"}

// Render writes rep to w in the named format
func (r *Renderer) Render(w io.Writer, rep *model.Report, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		r.RenderSummary(w, rep)
		return nil
	case "json":
		return r.RenderJSON(w, rep)
	case "yaml", "yml":
		return r.RenderYAML(w, rep)
	case "md", "markdown":
		return r.RenderMarkdown(w, rep)
	default:
		return fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(w io.Writer, rep *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// RenderYAML writes the report as YAML
func (r *Renderer) RenderYAML(w io.Writer, rep *model.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	return enc.Close()
}

// RenderMarkdown writes a human-readable Markdown report
func (r *Renderer) RenderMarkdown(w io.Writer, rep *model.Report) error {
	var b strings.Builder

	level, reading := Interpret(rep.Summary.OverallPercentage)

	b.WriteString("# Plagiarism Check Report\n\n")
	if rep.SourceLabel != "" {
		fmt.Fprintf(&b, "**Document:** %s  \n", rep.SourceLabel)
	}
	fmt.Fprintf(&b, "**Run:** `%s`  \n", rep.RunID)
	fmt.Fprintf(&b, "**Checked:** %s  \n", rep.FinishedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**Status:** %s  \n\n", rep.Stats.Status())

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- **Overall similarity:** %.2f%% (%s)\n", rep.Summary.OverallPercentage, level)
	fmt.Fprintf(&b, "- **Matches:** %d across %d source(s)\n", rep.Summary.TotalMatches, len(rep.Summary.Sources))
	fmt.Fprintf(&b, "- **Threshold:** %.2f\n", rep.Threshold)
	fmt.Fprintf(&b, "- **Sentences checked:** %d of %d\n\n", rep.Stats.SentencesChecked, rep.Stats.SentencesSegmented)
	fmt.Fprintf(&b, "%s\n\n", reading)

	if rep.Stats.Status() == model.RunStatusDegraded {
		b.WriteString("> **Warning:** every search failed or was rate limited. An empty result here does not mean the text is original.\n\n")
	}

	if len(rep.Summary.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		for i, src := range sortedSources(rep.Summary.Sources) {
			fmt.Fprintf(&b, "### %d. [%s](%s)\n\n", i+1, escapeMarkdown(src.Title), src.URL)
			fmt.Fprintf(&b, "Average similarity: **%.0f%%**\n\n", src.AvgSimilarity*100)
			b.WriteString("| Similarity | Submitted sentence | Source sentence |\n")
			b.WriteString("|---|---|---|\n")
			for _, seg := range src.MatchedSentences {
				fmt.Fprintf(&b, "| %.0f%% | %s | %s |\n",
					seg.Similarity*100, escapeTableCell(seg.Sentence), escapeTableCell(seg.SourceText))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Run Statistics\n\n")
	fmt.Fprintf(&b, "- Queries: %d (empty: %d, failed: %d, rate limited: %d)\n",
		rep.Stats.Queries, rep.Stats.EmptySearches, rep.Stats.SearchFailures, rep.Stats.RateLimited)
	fmt.Fprintf(&b, "- Sources fetched: %d (unusable: %d)\n", rep.Stats.CandidatesFetched, rep.Stats.EmptyFetches)
	fmt.Fprintf(&b, "- Sentence comparisons: %d\n\n", rep.Stats.Comparisons)

	if rep.LLM != nil && rep.LLM.Enabled && rep.LLM.SummaryMD != "" {
		fmt.Fprintf(&b, "## Narrative (%s)\n\n", rep.LLM.Provider)
		b.WriteString(strings.TrimSpace(rep.LLM.SummaryMD))
		b.WriteString("\n\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("*Similarity is lexical and heuristic. A match is evidence of overlapping wording, not proof of copying.*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSummary prints a colored terminal summary
func (r *Renderer) RenderSummary(w io.Writer, rep *model.Report) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	pct := rep.Summary.OverallPercentage
	level, reading := Interpret(pct)

	fmt.Fprintln(w)
	bold.Fprintf(w, "Overall similarity: ")
	levelColor(level).Fprintf(w, "%.2f%% (%s)\n", pct, level)
	fmt.Fprintf(w, "%s\n", reading)
	dim.Fprintf(w, "run %s · %d match(es) · %d/%d sentences checked · status %s\n",
		rep.RunID, rep.Summary.TotalMatches, rep.Stats.SentencesChecked, rep.Stats.SentencesSegmented, rep.Stats.Status())

	if rep.Stats.Status() == model.RunStatusDegraded {
		color.New(color.FgRed).Fprintln(w, "Warning: every search failed or was rate limited; results are not meaningful.")
	}

	for _, src := range sortedSources(rep.Summary.Sources) {
		fmt.Fprintln(w)
		similarityColor(src.AvgSimilarity).Fprintf(w, "[%3.0f%%] ", src.AvgSimilarity*100)
		bold.Fprintf(w, "%s\n", src.Title)
		dim.Fprintf(w, "       %s\n", src.URL)
		for _, seg := range src.MatchedSentences {
			similarityColor(seg.Similarity).Fprintf(w, "  %3.0f%% ", seg.Similarity*100)
			fmt.Fprintf(w, "%s\n", truncate(seg.Sentence, 100))
			dim.Fprintf(w, "        ↳ %s\n", truncate(seg.SourceText, 100))
		}
	}

	if rep.LLM != nil && rep.LLM.Enabled && rep.LLM.SummaryMD != "" {
		fmt.Fprintln(w)
		bold.Fprintf(w, "Narrative (%s):\n", rep.LLM.Provider)
		fmt.Fprintln(w, strings.TrimSpace(rep.LLM.SummaryMD))
	}
	fmt.Fprintln(w)
}

// WriteFile renders rep into path, choosing the format from the extension
func (r *Renderer) WriteFile(path string, rep *model.Report) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "txt" {
		format = "text"
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := r.Render(f, rep, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// sortedSources orders groups by average similarity, highest first
func sortedSources(groups []model.SourceGroup) []model.SourceGroup {
	out := make([]model.SourceGroup, len(groups))
	copy(out, groups)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvgSimilarity > out[j].AvgSimilarity
	})
	return out
}

func levelColor(l Level) *color.Color {
	switch l {
	case LevelLow:
		return color.New(color.FgGreen, color.Bold)
	case LevelModerate:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

// similarityColor follows the same bands as the overall reading plus an
// orange-ish band between 30% and 50%
func similarityColor(sim float64) *color.Color {
	pct := sim * 100
	switch {
	case pct < 15:
		return color.New(color.FgGreen)
	case pct < 30:
		return color.New(color.FgYellow)
	case pct < 50:
		return color.New(color.FgHiYellow)
	default:
		return color.New(color.FgRed)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("[", "\\[", "]", "\\]").Replace(s)
}

func escapeTableCell(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
