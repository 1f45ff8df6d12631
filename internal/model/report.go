package model

import "time"

// Report is the complete result of one detection run
type Report struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time     `json:"finished_at" yaml:"finished_at"`
	InputChars  int           `json:"input_chars" yaml:"input_chars"`
	Threshold   float64       `json:"threshold" yaml:"threshold"`
	Matches     []MatchRecord `json:"matches" yaml:"matches"`
	Stats       RunStats      `json:"stats" yaml:"stats"`
	Summary     Summary       `json:"summary" yaml:"summary"`
	Principles  Principles    `json:"principles" yaml:"principles"`
	LLM         *LLMSummary   `json:"llm,omitempty" yaml:"llm,omitempty"` // Never affects matches or scores
	SourceLabel string        `json:"source_label,omitempty" yaml:"source_label,omitempty"`
}

// RunStatus describes how much of a run actually executed
type RunStatus string

const (
	RunStatusProcessing RunStatus = "processing"
	RunStatusComplete   RunStatus = "complete"
	RunStatusPartial    RunStatus = "partial"  // Cancelled before all sentences were checked
	RunStatusDegraded   RunStatus = "degraded" // Every search attempt failed
)

// RunStats counts what happened during a run. Failures are counted
// here so an empty match list can be told apart from a run where
// nothing could be reached.
type RunStats struct {
	SentencesSegmented int  `json:"sentences_segmented" yaml:"sentences_segmented"`
	SentencesSelected  int  `json:"sentences_selected" yaml:"sentences_selected"`
	SentencesChecked   int  `json:"sentences_checked" yaml:"sentences_checked"`
	Queries            int  `json:"queries" yaml:"queries"`
	EmptySearches      int  `json:"empty_searches" yaml:"empty_searches"`
	SearchFailures     int  `json:"search_failures" yaml:"search_failures"`
	RateLimited        int  `json:"rate_limited" yaml:"rate_limited"`
	CandidatesFetched  int  `json:"candidates_fetched" yaml:"candidates_fetched"`
	EmptyFetches       int  `json:"empty_fetches" yaml:"empty_fetches"`
	Comparisons        int  `json:"comparisons" yaml:"comparisons"`
	Recovered          int  `json:"recovered" yaml:"recovered"` // Panics absorbed at sentence/candidate boundaries
	Cancelled          bool `json:"cancelled" yaml:"cancelled"`
}

// Status derives the run status from the counters
func (s RunStats) Status() RunStatus {
	if s.Cancelled {
		return RunStatusPartial
	}
	if s.Queries > 0 && s.SearchFailures+s.RateLimited >= s.Queries {
		return RunStatusDegraded
	}
	return RunStatusComplete
}

// Summary is the presentation-level aggregation of matches
type Summary struct {
	Sources           []SourceGroup `json:"sources" yaml:"sources"`
	OverallPercentage float64       `json:"overall_percentage" yaml:"overall_percentage"`
	TotalMatches      int           `json:"total_matches" yaml:"total_matches"`
}

// SourceGroup collects every match attributed to one source URL
type SourceGroup struct {
	URL              string           `json:"url" yaml:"url"`
	Title            string           `json:"title" yaml:"title"`
	MatchedSentences []MatchedSegment `json:"matched_sentences" yaml:"matched_sentences"`
	AvgSimilarity    float64          `json:"avg_similarity" yaml:"avg_similarity"`
}

// MatchedSegment is one input sentence matched against a source
type MatchedSegment struct {
	Sentence   string  `json:"sentence" yaml:"sentence"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
	SourceText string  `json:"source_text" yaml:"source_text"`
}

// Principles documents how results should be read
type Principles struct {
	Heuristic   bool `json:"heuristic" yaml:"heuristic"`     // Evidence of overlap, not proof of copying
	Lexical     bool `json:"lexical" yaml:"lexical"`         // Token overlap only, no semantics
	Transparent bool `json:"transparent" yaml:"transparent"` // Every match carries its source sentence
}

// DefaultPrinciples returns the standard principles
func DefaultPrinciples() Principles {
	return Principles{
		Heuristic:   true,
		Lexical:     true,
		Transparent: true,
	}
}

// LLMSummary contains an optional LLM-written narrative of the evidence
type LLMSummary struct {
	Enabled       bool     `json:"enabled" yaml:"enabled"`
	Provider      string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model         string   `json:"model,omitempty" yaml:"model,omitempty"`
	StrictSources bool     `json:"strict_sources" yaml:"strict_sources"` // Only matched source URLs may be cited
	SummaryMD     string   `json:"summary_md,omitempty" yaml:"summary_md,omitempty"`
	Warnings      []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// SourceURLs returns the distinct source URLs of the matches in first-seen order
func (r *Report) SourceURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, m := range r.Matches {
		if !seen[m.Source.URL] {
			seen[m.Source.URL] = true
			urls = append(urls, m.Source.URL)
		}
	}
	return urls
}
