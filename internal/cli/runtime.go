package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ppiankov/plagiscan/internal/cache"
	"github.com/ppiankov/plagiscan/internal/events"
	"github.com/ppiankov/plagiscan/internal/model"
	"github.com/ppiankov/plagiscan/internal/pipeline"
	"github.com/ppiankov/plagiscan/internal/store"
	"github.com/ppiankov/plagiscan/internal/util"
)

// checkRuntime holds the collaborators shared by every check in one command
type checkRuntime struct {
	cfg    *model.Config
	client *http.Client
	cache  cache.Cache
	store  *store.Store
	sink   events.Sink

	closers []func() error
}

func newRuntime(cfg *model.Config, persist bool) (*checkRuntime, error) {
	rt := &checkRuntime{
		cfg:    cfg,
		client: util.NewHTTPClient(cfg.HTTP),
		cache:  cache.New(cfg.Cache),
	}

	sinks := events.Multi{events.NewLogSink(os.Stderr, cfg.Output.Verbose)}
	if cfg.Output.EventsLog != "" {
		f, err := os.OpenFile(cfg.Output.EventsLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open events log: %w", err)
		}
		rt.closers = append(rt.closers, f.Close)
		sinks = append(sinks, events.NewJSONLSink(f))
	}
	rt.sink = sinks

	if persist && cfg.Store.Path != "" {
		s, err := openStore(cfg.Store.Path)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.store = s
		rt.closers = append(rt.closers, s.Close)
	}

	return rt, nil
}

// newPipeline builds a pipeline with its own detector over the shared collaborators
func (rt *checkRuntime) newPipeline() (*pipeline.Pipeline, error) {
	opts := pipeline.Options{
		Client: rt.client,
		Cache:  rt.cache,
		Sink:   rt.sink,
	}
	if rt.store != nil {
		opts.Store = rt.store
	}
	return pipeline.NewPipeline(rt.cfg, opts)
}

// Close releases the store and the events log
func (rt *checkRuntime) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}

func openStore(path string) (*store.Store, error) {
	s, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open run store %s: %w", filepath.Clean(path), err)
	}
	return s, nil
}
