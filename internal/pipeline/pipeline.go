// Package pipeline wires detection, narrative, persistence and rendering
// into a single check.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/plagiscan/internal/cache"
	"github.com/ppiankov/plagiscan/internal/detect"
	"github.com/ppiankov/plagiscan/internal/events"
	"github.com/ppiankov/plagiscan/internal/fetch"
	"github.com/ppiankov/plagiscan/internal/ingest"
	"github.com/ppiankov/plagiscan/internal/llm"
	"github.com/ppiankov/plagiscan/internal/model"
	"github.com/ppiankov/plagiscan/internal/pacing"
	"github.com/ppiankov/plagiscan/internal/report"
	"github.com/ppiankov/plagiscan/internal/search"
	"github.com/ppiankov/plagiscan/internal/util"
)

// RunStore persists runs keyed by run ID
type RunStore interface {
	Begin(ctx context.Context, runID, sourceLabel string) error
	Save(ctx context.Context, rep *model.Report) error
}

// Options carries collaborators shared across pipelines
type Options struct {
	Client   *http.Client    // nil builds one from cfg.HTTP
	Cache    cache.Cache     // nil disables the page cache
	Store    RunStore        // nil disables persistence
	Sink     events.Sink     // nil discards events
	Clock    pacing.Clock    // nil uses the wall clock
	Searcher detect.Searcher // nil builds a WebProvider from cfg.Search
}

// Pipeline orchestrates one complete check
type Pipeline struct {
	detector   *detect.Detector
	summarizer *llm.Summarizer // nil when narratives are disabled
	store      RunStore
	renderer   *report.Renderer
	sink       events.Sink
	config     *model.Config
}

// NewPipeline builds a pipeline with its own detector. Pipelines are
// cheap; batch checks build one per document.
func NewPipeline(cfg *model.Config, opts Options) (*Pipeline, error) {
	sink := events.OrNop(opts.Sink)

	client := opts.Client
	if client == nil {
		client = util.NewHTTPClient(cfg.HTTP)
	}
	clock := opts.Clock
	if clock == nil {
		clock = pacing.RealClock{}
	}

	pacer := pacing.NewPacer(cfg.Pacing, clock, sink)

	searcher := opts.Searcher
	if searcher == nil {
		provider, err := search.NewWebProvider(cfg, search.Options{
			Client: client,
			Cooler: pacer,
			Sink:   sink,
		})
		if err != nil {
			return nil, fmt.Errorf("search provider: %w", err)
		}
		searcher = provider
	}

	fetcher := fetch.NewFetcher(cfg, fetch.Options{
		Client: client,
		Cache:  opts.Cache,
		Sink:   sink,
	})

	detectOpts := detect.OptionsFromConfig(cfg)
	detectOpts.Pacer = pacer
	detectOpts.Sink = sink

	p := &Pipeline{
		detector: detect.New(searcher, fetcher, detectOpts),
		store:    opts.Store,
		renderer: report.NewRenderer(cfg.Output.IncludeFooter),
		sink:     sink,
		config:   cfg,
	}

	// A broken narrative setup never blocks a check.
	if cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
		if err != nil {
			p.emit(events.LevelWarn, events.KindNarrativeError, "", fmt.Errorf("initialize LLM provider: %w", err))
		} else {
			p.summarizer = s
		}
	}

	return p, nil
}

// CheckFile parses a document and checks its text
func (p *Pipeline) CheckFile(ctx context.Context, path string) (*model.Report, error) {
	doc, err := ingest.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return p.CheckText(ctx, doc.Text, doc.Name)
}

// CheckText runs a detection over text. The run is recorded as processing
// before detection and saved once the report is complete.
func (p *Pipeline) CheckText(ctx context.Context, raw, label string) (*model.Report, error) {
	input, err := ingest.Prepare(raw, p.config.Detection.MinInputChars)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if p.store != nil {
		if err := p.store.Begin(ctx, runID, label); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	rep := p.detector.Run(ctx, detect.RunRequest{
		RunID:         runID,
		Text:          input,
		MinSimilarity: p.config.Detection.MinSimilarity,
		MaxSentences:  p.config.Detection.MaxSentencesChecked,
		SourceLabel:   label,
	})

	// The narrative is written after scoring and never changes it.
	if p.summarizer != nil && p.summarizer.IsEnabled() {
		summary, err := p.summarizer.GenerateSummary(ctx, *rep)
		switch {
		case err != nil:
			p.emit(events.LevelWarn, events.KindNarrativeError, runID, err)
		case summary != nil:
			rep.LLM = summary
			p.emit(events.LevelInfo, events.KindNarrative, runID, nil)
		}
	}

	if p.store != nil {
		// Persist even when the caller's context ended so partial runs are kept.
		if err := p.store.Save(context.WithoutCancel(ctx), rep); err != nil {
			p.emit(events.LevelError, events.KindStoreError, runID, err)
			return rep, fmt.Errorf("save run %s: %w", runID, err)
		}
	}

	return rep, nil
}

// RenderOptions selects where a report is written
type RenderOptions struct {
	Format   string // Format written to the terminal writer: text, json, yaml, md
	JSONPath string
	YAMLPath string
	MDPath   string
}

// RenderReport writes the requested files and then rep to w in the chosen format
func (p *Pipeline) RenderReport(w io.Writer, rep *model.Report, opts RenderOptions) error {
	files := []struct {
		path   string
		render func(io.Writer, *model.Report) error
	}{
		{opts.JSONPath, p.renderer.RenderJSON},
		{opts.YAMLPath, p.renderer.RenderYAML},
		{opts.MDPath, p.renderer.RenderMarkdown},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if err := writeFile(f.path, func(out io.Writer) error { return f.render(out, rep) }); err != nil {
			return err
		}
		p.sink.Emit(events.Event{Time: time.Now(), Level: events.LevelInfo, Kind: events.KindReportWritten, Comp: "report", RunID: rep.RunID, Msg: f.path})
	}

	// Narrative goes to a separate file next to the Markdown report
	if opts.MDPath != "" && rep.LLM != nil && rep.LLM.Enabled {
		llmPath := strings.TrimSuffix(opts.MDPath, ".md") + ".llm.md"
		narrative := llm.RenderSeparateMarkdown(rep.LLM)
		if err := writeFile(llmPath, func(out io.Writer) error {
			_, err := io.WriteString(out, narrative)
			return err
		}); err != nil {
			p.emit(events.LevelWarn, events.KindNarrativeError, rep.RunID, err)
		} else {
			p.sink.Emit(events.Event{Time: time.Now(), Level: events.LevelInfo, Kind: events.KindReportWritten, Comp: "report", RunID: rep.RunID, Msg: llmPath})
		}
	}

	if w == nil {
		return nil
	}
	return p.renderer.Render(w, rep, opts.Format)
}

func (p *Pipeline) emit(level events.Level, kind events.Kind, runID string, err error) {
	e := events.Event{
		Time:  time.Now(),
		Level: level,
		Kind:  kind,
		Comp:  "pipeline",
		RunID: runID,
	}
	if err != nil {
		e.Err = err.Error()
	}
	p.sink.Emit(e)
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	if err := render(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
