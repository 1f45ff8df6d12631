// Package search discovers candidate source pages for a sentence by
// querying a web search engine and scraping its results page.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/plagiscan/internal/events"
	"github.com/ppiankov/plagiscan/internal/model"
	"github.com/ppiankov/plagiscan/internal/util"
)

// ErrRateLimited reports that the engine asked us to slow down
var ErrRateLimited = errors.New("search engine rate limited the request")

// ErrUnexpectedStatus reports a non-2xx results page
var ErrUnexpectedStatus = errors.New("unexpected status")

// UnknownTitle labels results whose heading could not be read
const UnknownTitle = "Unknown"

// Cooler backs off after a rate-limit signal
type Cooler interface {
	Cooldown(ctx context.Context) error
}

// Options carries the collaborators a WebProvider needs beyond configuration
type Options struct {
	Client *http.Client // nil builds one from cfg.HTTP
	Cooler Cooler       // nil skips the cool-down
	Sink   events.Sink
}

// WebProvider queries a search engine over HTTP
type WebProvider struct {
	httpClient *http.Client
	identities *util.IdentityPool
	endpoint   *url.URL
	queryParam string
	extra      url.Values
	maxResults int
	maxBytes   int64
	registry   *Registry
	cooler     Cooler
	sink       events.Sink
}

// NewWebProvider creates a provider from configuration
func NewWebProvider(cfg *model.Config, opts Options) (*WebProvider, error) {
	endpoint, err := url.Parse(cfg.Search.Endpoint)
	if err != nil || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid search endpoint %q", cfg.Search.Endpoint)
	}

	registry, err := NewRegistry(cfg.Search.Strategies)
	if err != nil {
		return nil, err
	}

	extra := url.Values{}
	for _, kv := range cfg.Search.ExtraParams {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid search extra param %q (want key=value)", kv)
		}
		extra.Add(key, value)
	}

	queryParam := cfg.Search.QueryParam
	if queryParam == "" {
		queryParam = "q"
	}
	maxResults := cfg.Search.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	maxBytes := cfg.HTTP.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}

	client := opts.Client
	if client == nil {
		client = util.NewHTTPClient(cfg.HTTP)
	}

	return &WebProvider{
		httpClient: client,
		identities: util.NewIdentityPool(cfg.HTTP.UserAgents, model.DefaultUserAgents[0]),
		endpoint:   endpoint,
		queryParam: queryParam,
		extra:      extra,
		maxResults: maxResults,
		maxBytes:   maxBytes,
		registry:   registry,
		cooler:     opts.Cooler,
		sink:       events.OrNop(opts.Sink),
	}, nil
}

// Search returns candidate sources for query in engine rank order.
// maxResults <= 0 uses the configured limit. The returned slice is never
// nil; on failure it is empty and the error says why.
func (p *WebProvider) Search(ctx context.Context, query string, maxResults int) ([]model.SourceCandidate, error) {
	if maxResults <= 0 {
		maxResults = p.maxResults
	}
	start := time.Now()
	p.emit(events.LevelDebug, events.KindSearchStart, query, nil)

	doc, err := p.fetchResults(ctx, query)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			p.emit(events.LevelWarn, events.KindSearchRateLimit, query, err)
			if p.cooler != nil {
				_ = p.cooler.Cooldown(ctx)
			}
		} else {
			p.emit(events.LevelWarn, events.KindSearchError, query, err)
		}
		return []model.SourceCandidate{}, err
	}

	candidates, strategy := p.extract(doc, maxResults)
	if len(candidates) == 0 {
		p.emit(events.LevelInfo, events.KindSearchEmpty, query, nil)
		return candidates, nil
	}

	p.sink.Emit(events.Event{
		Time:  time.Now(),
		Level: events.LevelDebug,
		Kind:  events.KindSearchComplete,
		Comp:  "search",
		Query: query,
		Count: len(candidates),
		Dur:   time.Since(start),
		Msg:   strategy,
	})
	return candidates, nil
}

// QueryURL builds the results page URL for query
func (p *WebProvider) QueryURL(query string) string {
	u := *p.endpoint
	values := u.Query()
	for key, vals := range p.extra {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	values.Set(p.queryParam, query)
	u.RawQuery = values.Encode()
	return u.String()
}

func (p *WebProvider) fetchResults(ctx context.Context, query string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.QueryURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", p.identities.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", p.endpoint.Scheme+"://"+p.endpoint.Host+"/")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || isChallengePage(resp) {
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return doc, nil
}

// isChallengePage detects the engine's captcha interstitial
func isChallengePage(resp *http.Response) bool {
	return resp.Request != nil && resp.Request.URL != nil &&
		strings.Contains(resp.Request.URL.Path, "/sorry/")
}

// extract runs strategies in priority order; the first that yields a
// usable candidate wins.
func (p *WebProvider) extract(doc *goquery.Document, maxResults int) ([]model.SourceCandidate, string) {
	for _, strategy := range p.registry.Strategies() {
		candidates := p.clean(strategy.Extract(doc), maxResults)
		if len(candidates) > 0 {
			return candidates, strategy.Name()
		}
	}
	return []model.SourceCandidate{}, ""
}

// clean resolves, filters and deduplicates hits, then truncates
func (p *WebProvider) clean(hits []Hit, maxResults int) []model.SourceCandidate {
	candidates := make([]model.SourceCandidate, 0, len(hits))
	seen := make(map[string]bool)

	for _, hit := range hits {
		target, ok := p.resolve(hit.Href)
		if !ok || seen[target] {
			continue
		}
		seen[target] = true

		title := hit.Title
		if title == "" {
			title = UnknownTitle
		}
		candidates = append(candidates, model.SourceCandidate{URL: target, Title: title})
	}

	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates
}

// resolve turns a result href into an absolute external URL.
// Redirect wrappers (/url?q=...) are unwrapped; engine-internal links are rejected.
func (p *WebProvider) resolve(href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := p.endpoint.ResolveReference(ref)

	if p.isEngineHost(abs.Host) && abs.Path == "/url" {
		wrapped := abs.Query().Get("q")
		if wrapped == "" {
			wrapped = abs.Query().Get("url")
		}
		inner, err := url.Parse(wrapped)
		if err != nil {
			return "", false
		}
		abs = inner
	}

	if (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
		return "", false
	}
	if p.isEngineHost(abs.Host) {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// isEngineHost reports whether host belongs to the search engine
func (p *WebProvider) isEngineHost(host string) bool {
	host = strings.ToLower(hostOnly(host))
	engine := strings.TrimPrefix(strings.ToLower(p.endpoint.Hostname()), "www.")
	if host == engine || strings.HasSuffix(host, "."+engine) {
		return true
	}
	// Cached copies and translations served from engine-owned domains
	return strings.HasSuffix(host, ".googleusercontent.com")
}

func hostOnly(hostport string) string {
	u := url.URL{Host: hostport}
	return u.Hostname()
}

func (p *WebProvider) emit(level events.Level, kind events.Kind, query string, err error) {
	e := events.Event{
		Time:  time.Now(),
		Level: level,
		Kind:  kind,
		Comp:  "search",
		Query: query,
	}
	if err != nil {
		e.Err = err.Error()
	}
	p.sink.Emit(e)
}
