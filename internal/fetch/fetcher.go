// Package fetch turns source URLs into extracted plain text.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/plagiscan/internal/cache"
	"github.com/ppiankov/plagiscan/internal/events"
	"github.com/ppiankov/plagiscan/internal/model"
	"github.com/ppiankov/plagiscan/internal/util"
	"github.com/ppiankov/plagiscan/internal/worker"
)

// ErrUnexpectedStatus reports a non-2xx response
var ErrUnexpectedStatus = errors.New("unexpected status")

// ErrUnsupportedContent reports a body that is neither HTML nor plain text
var ErrUnsupportedContent = errors.New("unsupported content type")

// ErrDisallowed reports a URL excluded by robots.txt
var ErrDisallowed = errors.New("disallowed by robots.txt")

// fetchSleepFunc is the backoff sleep between retries; tests override it.
// It returns early with the context's error when ctx is done.
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	maxRetries   = 1
	retryBackoff = 500 * time.Millisecond
)

// Fetcher fetches source pages and extracts their text
type Fetcher struct {
	httpClient *http.Client
	identities *util.IdentityPool
	maxBytes   int64
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	cache      cache.Cache
	cacheTTL   time.Duration
	sink       events.Sink
}

// Options carries the collaborators a Fetcher needs beyond configuration
type Options struct {
	Client *http.Client // nil builds one from cfg.HTTP
	Cache  cache.Cache  // nil disables caching
	Sink   events.Sink
}

// NewFetcher creates a Fetcher from configuration
func NewFetcher(cfg *model.Config, opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		client = util.NewHTTPClient(cfg.HTTP)
	}

	identities := util.NewIdentityPool(cfg.HTTP.UserAgents, model.DefaultUserAgents[0])

	var robots *util.RobotsChecker
	if cfg.Fetch.RespectRobots {
		robots = util.NewRobotsChecker(client, identities.Next())
	}

	maxBytes := cfg.HTTP.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}

	return &Fetcher{
		httpClient: client,
		identities: identities,
		maxBytes:   maxBytes,
		limiter:    worker.NewLimiter(cfg.Fetch.RequestsPerSecond, cfg.Fetch.BurstSize),
		robots:     robots,
		cache:      opts.Cache,
		cacheTTL:   cfg.Cache.MemoryTTL,
		sink:       events.OrNop(opts.Sink),
	}
}

// Fetch returns the plain text of rawURL, or "" when the page is unusable.
// Failures never propagate; they are reported as events.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) string {
	text, err := f.FetchText(ctx, rawURL)
	if err != nil {
		level := events.LevelWarn
		kind := events.KindFetchError
		if errors.Is(err, ErrDisallowed) {
			level, kind = events.LevelInfo, events.KindFetchSkipped
		}
		f.sink.Emit(events.Event{
			Time:  time.Now(),
			Level: level,
			Kind:  kind,
			Comp:  "fetch",
			URL:   rawURL,
			Err:   err.Error(),
		})
		return ""
	}
	return text
}

// FetchText returns the extracted text of rawURL or the reason it could not be fetched
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("invalid source URL %q", rawURL)
	}

	key := cache.PageKey(rawURL)
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			f.sink.Emit(events.Event{
				Time:  time.Now(),
				Level: events.LevelDebug,
				Kind:  events.KindFetchCacheHit,
				Comp:  "fetch",
				URL:   rawURL,
				Count: len(data),
			})
			return string(data), nil
		}
	}

	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err == nil && !allowed {
			return "", ErrDisallowed
		}
		f.limiter.SetCrawlDelay(parsed.Host, delay)
	}

	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	f.sink.Emit(events.Event{
		Time:  time.Now(),
		Level: events.LevelDebug,
		Kind:  events.KindFetchStart,
		Comp:  "fetch",
		URL:   rawURL,
	})
	start := time.Now()

	text, err := f.fetchWithRetry(ctx, rawURL)
	if err != nil {
		return "", err
	}

	f.sink.Emit(events.Event{
		Time:  time.Now(),
		Level: events.LevelDebug,
		Kind:  events.KindFetchComplete,
		Comp:  "fetch",
		URL:   rawURL,
		Count: len(text),
		Dur:   time.Since(start),
	})

	if f.cache != nil && text != "" {
		_ = f.cache.Set(key, []byte(text), f.cacheTTL)
	}
	return text, nil
}

// fetchWithRetry retries once on gateway errors
func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := fetchSleepFunc(ctx, retryBackoff); err != nil {
				break
			}
		}
		text, retryable, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.identities.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode == http.StatusBadGateway ||
			resp.StatusCode == http.StatusServiceUnavailable ||
			resp.StatusCode == http.StatusGatewayTimeout
		return "", retryable, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	kind := contentKind(contentType)
	if kind == "" {
		return "", false, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", false, fmt.Errorf("read body: %w", err)
	}

	if kind == "text" {
		text, err := ExtractPlain(bytes.NewReader(body), contentType)
		return text, false, err
	}
	text, err := ExtractText(body, contentType)
	return text, false, err
}

// contentKind classifies a Content-Type as "html", "text" or unsupported.
// A missing header is treated as HTML.
func contentKind(contentType string) string {
	if contentType == "" {
		return "html"
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "html"
	}
	switch {
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return "html"
	case mediaType == "text/plain":
		return "text"
	default:
		return ""
	}
}
