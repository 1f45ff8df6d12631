// Package detect orchestrates a detection run: segment the input, pick
// sentences, search for each, fetch and score every candidate source, and
// collect matches above the threshold.
package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/plagiscan/internal/events"
	"github.com/ppiankov/plagiscan/internal/model"
	"github.com/ppiankov/plagiscan/internal/report"
	"github.com/ppiankov/plagiscan/internal/search"
	"github.com/ppiankov/plagiscan/internal/similarity"
	"github.com/ppiankov/plagiscan/internal/text"
)

// Searcher discovers candidate sources for a query. The slice is empty on
// failure; the error only classifies the failure.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.SourceCandidate, error)
}

// ContentFetcher returns a page's plain text, or "" when unusable
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Scorer scores two snippets in [0,1]
type Scorer interface {
	Score(a, b string) float64
}

// Pacer spaces out outbound calls
type Pacer interface {
	AfterQuery(ctx context.Context) error
	AfterCandidate(ctx context.Context) error
}

type noPacer struct{}

func (noPacer) AfterQuery(ctx context.Context) error     { return ctx.Err() }
func (noPacer) AfterCandidate(ctx context.Context) error { return ctx.Err() }

// Options configures a Detector. Zero values select defaults.
type Options struct {
	Scorer             Scorer // default similarity.NewScorer()
	Pacer              Pacer  // default no delays
	Sink               events.Sink
	Selection          Selection
	MinWords           int
	MaxResults         int // Candidates requested per query
	MaxSourceSentences int
}

// OptionsFromConfig maps configuration onto Options
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		Selection:          SelectionFromConfig(cfg.Detection),
		MinWords:           cfg.Detection.MinWords,
		MaxResults:         cfg.Search.MaxResults,
		MaxSourceSentences: cfg.Detection.MaxSourceSentences,
	}
}

// Detector runs detections. It holds no per-run state; concurrent hosts
// should still give each run its own collaborators.
type Detector struct {
	searcher           Searcher
	fetcher            ContentFetcher
	scorer             Scorer
	pacer              Pacer
	sink               events.Sink
	selection          Selection
	minWords           int
	maxResults         int
	maxSourceSentences int
}

// New creates a Detector
func New(searcher Searcher, fetcher ContentFetcher, opts Options) *Detector {
	d := &Detector{
		searcher:           searcher,
		fetcher:            fetcher,
		scorer:             opts.Scorer,
		pacer:              opts.Pacer,
		sink:               events.OrNop(opts.Sink),
		selection:          opts.Selection,
		minWords:           opts.MinWords,
		maxResults:         opts.MaxResults,
		maxSourceSentences: opts.MaxSourceSentences,
	}
	if d.scorer == nil {
		d.scorer = similarity.NewScorer()
	}
	if d.pacer == nil {
		d.pacer = noPacer{}
	}
	if d.selection == (Selection{}) {
		d.selection = DefaultSelection()
	}
	if d.minWords <= 0 {
		d.minWords = text.DefaultMinWords
	}
	if d.maxResults <= 0 {
		d.maxResults = 5
	}
	if d.maxSourceSentences <= 0 {
		d.maxSourceSentences = 100
	}
	return d
}

// RunRequest describes one detection run
type RunRequest struct {
	RunID         string // Generated when empty
	Text          string
	MinSimilarity float64
	MaxSentences  int
	SourceLabel   string
}

// Detect returns the matches for text in the order sentences were checked.
// It never returns nil and never panics; failures are reported as events.
func (d *Detector) Detect(ctx context.Context, input string, minSimilarity float64, maxSentences int) []model.MatchRecord {
	r := d.newRun(ctx, "", minSimilarity, maxSentences)
	return r.execute(input)
}

// Run performs a detection and wraps the matches in a report
func (d *Detector) Run(ctx context.Context, req RunRequest) *model.Report {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	started := time.Now().UTC()
	r := d.newRun(ctx, runID, req.MinSimilarity, req.MaxSentences)
	matches := r.execute(req.Text)

	rep := &model.Report{
		RunID:       runID,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		InputChars:  len([]rune(req.Text)),
		Threshold:   req.MinSimilarity,
		Matches:     matches,
		Stats:       r.stats,
		Principles:  model.DefaultPrinciples(),
		SourceLabel: req.SourceLabel,
	}
	rep.Summary = report.Summarize(matches)
	return rep
}

// run carries the state of one detection
type run struct {
	*Detector
	ctx           context.Context
	sink          events.Sink
	minSimilarity float64
	maxSentences  int
	stats         model.RunStats
	matches       []model.MatchRecord
}

func (d *Detector) newRun(ctx context.Context, runID string, minSimilarity float64, maxSentences int) *run {
	if ctx == nil {
		ctx = context.Background()
	}
	sink := d.sink
	if runID != "" {
		sink = events.WithRunID(sink, runID)
	}
	return &run{
		Detector:      d,
		ctx:           ctx,
		sink:          sink,
		minSimilarity: minSimilarity,
		maxSentences:  maxSentences,
		matches:       []model.MatchRecord{},
	}
}

func (r *run) execute(input string) []model.MatchRecord {
	start := time.Now()
	r.emit(events.Event{Level: events.LevelInfo, Kind: events.KindRunStart, Count: len(input)})

	// 1. Segment
	r.phase(events.PhaseSegment)
	sents := text.Segment(input, r.minWords)
	r.stats.SentencesSegmented = len(sents)

	// 2. Select
	r.phase(events.PhaseSelect)
	selected := SelectSentences(sents, r.selection, r.maxSentences)
	r.stats.SentencesSelected = len(selected)

	// 3. Check each sentence in order
	r.phase(events.PhaseCheck)
	for i, sent := range selected {
		if r.cancelled() {
			break
		}
		r.checkSentence(sent)
		r.stats.SentencesChecked++

		if i < len(selected)-1 {
			if err := r.pacer.AfterQuery(r.ctx); err != nil {
				r.cancelled()
				break
			}
		}
	}

	// 4. Aggregate
	r.phase(events.PhaseAggregate)
	r.emit(events.Event{
		Level: events.LevelInfo,
		Kind:  events.KindRunComplete,
		Count: len(r.matches),
		Dur:   time.Since(start),
		Msg:   string(r.stats.Status()),
	})
	return r.matches
}

// checkSentence searches for one sentence and scores every candidate.
// A panic anywhere inside is absorbed so the run continues.
func (r *run) checkSentence(sent model.Sentence) {
	defer r.recoverAt("sentence", sent.Text)

	r.emit(events.Event{Level: events.LevelDebug, Kind: events.KindSentenceStart, Query: sent.Text, Count: sent.Index})

	candidates := r.search(sent.Text)
	for i, cand := range candidates {
		if r.cancelled() {
			return
		}
		r.checkCandidate(sent, cand)

		if i < len(candidates)-1 {
			if err := r.pacer.AfterCandidate(r.ctx); err != nil {
				r.cancelled()
				return
			}
		}
	}
}

func (r *run) search(query string) (candidates []model.SourceCandidate) {
	r.stats.Queries++
	defer func() {
		if rec := recover(); rec != nil {
			r.stats.SearchFailures++
			r.stats.Recovered++
			r.emit(events.Event{
				Level: events.LevelError,
				Kind:  events.KindRecovered,
				Query: query,
				Err:   fmt.Sprint(rec),
				Msg:   "search",
			})
			candidates = nil
		}
	}()

	candidates, err := r.searcher.Search(r.ctx, query, r.maxResults)
	switch {
	case errors.Is(err, search.ErrRateLimited):
		r.stats.RateLimited++
		return nil
	case err != nil:
		r.stats.SearchFailures++
		return nil
	case len(candidates) == 0:
		r.stats.EmptySearches++
	}
	return candidates
}

// checkCandidate compares a sentence against one source and records a
// match when the best pair meets the threshold
func (r *run) checkCandidate(sent model.Sentence, cand model.SourceCandidate) {
	defer r.recoverAt("candidate", cand.URL)

	r.stats.CandidatesFetched++
	content := r.fetcher.Fetch(r.ctx, cand.URL)
	if content == "" {
		r.stats.EmptyFetches++
		return
	}

	sources := Subsample(text.Texts(text.SegmentLines(content, r.minWords)), r.maxSourceSentences)
	if len(sources) == 0 {
		r.stats.EmptyFetches++
		return
	}

	// Seeded below any valid score so a zero threshold still keeps a pair
	best, bestText := -1.0, ""
	for _, src := range sources {
		score := r.scorer.Score(sent.Text, src)
		if score > best {
			best, bestText = score, src
		}
	}
	r.stats.Comparisons += len(sources)

	r.emit(events.Event{
		Level: events.LevelDebug,
		Kind:  events.KindCompare,
		URL:   cand.URL,
		Count: len(sources),
		Score: best,
	})

	if best < r.minSimilarity {
		r.emit(events.Event{Level: events.LevelDebug, Kind: events.KindNoMatch, URL: cand.URL, Score: best})
		return
	}

	r.matches = append(r.matches, model.MatchRecord{
		Sentence:   sent.Text,
		Similarity: best,
		Source: model.MatchSource{
			URL:   cand.URL,
			Title: cand.Title,
			Text:  bestText,
		},
	})
	r.emit(events.Event{
		Level: events.LevelInfo,
		Kind:  events.KindMatch,
		Query: sent.Text,
		URL:   cand.URL,
		Score: best,
	})
}

// cancelled reports whether the run's context is done, recording it once
func (r *run) cancelled() bool {
	if r.ctx.Err() == nil {
		return false
	}
	if !r.stats.Cancelled {
		r.stats.Cancelled = true
		r.emit(events.Event{Level: events.LevelWarn, Kind: events.KindCancelled, Err: r.ctx.Err().Error()})
	}
	return true
}

func (r *run) recoverAt(scope, subject string) {
	if rec := recover(); rec != nil {
		r.stats.Recovered++
		r.emit(events.Event{
			Level: events.LevelError,
			Kind:  events.KindRecovered,
			Query: subject,
			Err:   fmt.Sprint(rec),
			Msg:   scope,
		})
	}
}

func (r *run) phase(p events.Phase) {
	r.emit(events.Event{Level: events.LevelDebug, Kind: events.KindPhase, Phase: p})
}

func (r *run) emit(e events.Event) {
	e.Time = time.Now()
	e.Comp = "detect"
	r.sink.Emit(e)
}
