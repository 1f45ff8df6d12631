package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/plagiscan/internal/events"
	"github.com/ppiankov/plagiscan/internal/model"
)

const resultsPage = `<html><body>
<div class="g"><div class="tF2Cxc">
  <div class="yuRUbf"><a href="https://example.com/fox"><h3>Fox Essay</h3></a></div>
</div></div>
<div class="g"><div class="tF2Cxc">
  <div class="yuRUbf"><a href="/url?q=https://wrapped.org/page&amp;sa=U"><h3>Wrapped</h3></a></div>
</div></div>
<div class="g"><div class="tF2Cxc">
  <div class="yuRUbf"><a href="https://example.com/fox#frag"><h3>Duplicate</h3></a></div>
</div></div>
<div class="g"><div class="tF2Cxc">
  <div class="yuRUbf"><a href="/search?q=more"><h3>Engine link</h3></a></div>
</div></div>
<div class="g"><div class="tF2Cxc">
  <div class="yuRUbf"><a href="https://notitle.net/"><span>no heading</span></a></div>
</div></div>
<div class="g"><div class="tF2Cxc">
  <div class="yuRUbf"><a href="javascript:void(0)"><h3>Script</h3></a></div>
</div></div>
</body></html>`

type countingCooler struct {
	calls atomic.Int32
}

func (c *countingCooler) Cooldown(ctx context.Context) error {
	c.calls.Add(1)
	return nil
}

func newTestProvider(t *testing.T, serverURL string, opts Options) *WebProvider {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Search.Endpoint = serverURL + "/search"
	cfg.HTTP.Timeout = 2 * time.Second
	p, err := NewWebProvider(cfg, opts)
	if err != nil {
		t.Fatalf("NewWebProvider: %v", err)
	}
	return p
}

func TestSearch_ResultBlock(t *testing.T) {
	var gotQuery, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, resultsPage)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, Options{})
	got, err := p.Search(context.Background(), "the quick brown fox", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []model.SourceCandidate{
		{URL: "https://example.com/fox", Title: "Fox Essay"},
		{URL: "https://wrapped.org/page", Title: "Wrapped"},
		{URL: "https://notitle.net/", Title: UnknownTitle},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	if gotQuery != "the quick brown fox" {
		t.Errorf("unexpected query sent: %q", gotQuery)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Errorf("expected browser identity, got %q", gotUA)
	}
}

func TestSearch_TruncatesAfterDedupe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, Options{})
	got, _ := p.Search(context.Background(), "q", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[1].URL != "https://wrapped.org/page" {
		t.Errorf("expected duplicate removed before truncation, got %+v", got)
	}
}

func TestSearch_FirstNonEmptyStrategyWins(t *testing.T) {
	page := `<html><body>
<div class="tF2Cxc"><div class="yuRUbf"><a href="https://primary.com/"><h3>Primary</h3></a></div></div>
<div class="g"><a href="https://legacy.com/"><h3>Legacy</h3></a></div>
</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	rec := events.NewRecorder()
	p := newTestProvider(t, server.URL, Options{Sink: rec})
	got, _ := p.Search(context.Background(), "q", 0)
	if len(got) != 1 || got[0].URL != "https://primary.com/" {
		t.Errorf("expected only the result-block candidate, got %+v", got)
	}

	done := rec.OfKind(events.KindSearchComplete)
	if len(done) != 1 || done[0].Msg != "result-block" {
		t.Errorf("expected completion event naming result-block, got %+v", done)
	}
}

func TestSearch_FallbackStrategies(t *testing.T) {
	tests := []struct {
		name string
		page string
		want model.SourceCandidate
	}{
		{
			name: "generic block with LC20lb title",
			page: `<div class="g"><a href="https://legacy.com/a"><span class="LC20lb">Legacy Title</span></a></div>`,
			want: model.SourceCandidate{URL: "https://legacy.com/a", Title: "Legacy Title"},
		},
		{
			name: "heading anchor",
			page: `<div class="new-layout"><a href="https://fresh.io/x"><h3>Fresh   Layout</h3></a></div>`,
			want: model.SourceCandidate{URL: "https://fresh.io/x", Title: "Fresh Layout"},
		},
		{
			name: "engine-only result block falls through",
			page: `<div class="tF2Cxc"><div class="yuRUbf"><a href="/search?q=x"><h3>x</h3></a></div></div>
<div class="g"><a href="https://outside.com/"><h3>Outside</h3></a></div>`,
			want: model.SourceCandidate{URL: "https://outside.com/", Title: "Outside"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html><body>"+tt.page+"</body></html>")
			}))
			defer server.Close()

			p := newTestProvider(t, server.URL, Options{})
			got, err := p.Search(context.Background(), "q", 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("expected [%+v], got %+v", tt.want, got)
			}
		})
	}
}

func TestSearch_RateLimited(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cooler := &countingCooler{}
	rec := events.NewRecorder()
	p := newTestProvider(t, server.URL, Options{Cooler: cooler, Sink: rec})

	got, err := p.Search(context.Background(), "q", 0)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
	if cooler.calls.Load() != 1 {
		t.Errorf("expected one cool-down, got %d", cooler.calls.Load())
	}
	if hits.Load() != 1 {
		t.Errorf("expected no retry within the call, got %d requests", hits.Load())
	}
	if rec.Count(events.KindSearchRateLimit) != 1 {
		t.Error("expected search.ratelimit event")
	}
}

func TestSearch_ChallengeRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/sorry/") {
			fmt.Fprint(w, "<html>unusual traffic</html>")
			return
		}
		http.Redirect(w, r, "/sorry/index", http.StatusFound)
	}))
	defer server.Close()

	cooler := &countingCooler{}
	p := newTestProvider(t, server.URL, Options{Cooler: cooler})
	if _, err := p.Search(context.Background(), "q", 0); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited for challenge page, got %v", err)
	}
	if cooler.calls.Load() != 1 {
		t.Error("expected cool-down on challenge page")
	}
}

func TestSearch_FailuresReturnEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cooler := &countingCooler{}
	rec := events.NewRecorder()
	p := newTestProvider(t, server.URL, Options{Cooler: cooler, Sink: rec})

	got, err := p.Search(context.Background(), "q", 0)
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("expected ErrUnexpectedStatus, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
	if cooler.calls.Load() != 0 {
		t.Error("plain failures must not trigger the cool-down")
	}
	if rec.Count(events.KindSearchError) != 1 {
		t.Error("expected search.error event")
	}

	server.Close()
	if got, err := p.Search(context.Background(), "q", 0); err == nil || len(got) != 0 {
		t.Errorf("expected network error and empty list, got %v %v", got, err)
	}
}

func TestSearch_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>No results</p></body></html>")
	}))
	defer server.Close()

	rec := events.NewRecorder()
	p := newTestProvider(t, server.URL, Options{Sink: rec})
	got, err := p.Search(context.Background(), "q", 0)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("expected empty list without error, got %v %v", got, err)
	}
	if rec.Count(events.KindSearchEmpty) != 1 {
		t.Error("expected search.empty event")
	}
}

func TestQueryURL(t *testing.T) {
	cfg := model.DefaultConfig()
	p, err := NewWebProvider(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := p.QueryURL(`a "quoted" phrase`)
	if !strings.HasPrefix(got, "https://www.google.com/search?") {
		t.Errorf("unexpected endpoint: %s", got)
	}
	if !strings.Contains(got, "hl=en") || !strings.Contains(got, "q=a+%22quoted%22+phrase") {
		t.Errorf("unexpected query encoding: %s", got)
	}
}

func TestNewWebProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Config)
	}{
		{"bad endpoint", func(c *model.Config) { c.Search.Endpoint = "not-a-url" }},
		{"unknown strategy", func(c *model.Config) { c.Search.Strategies = []string{"magic"} }},
		{"bad extra param", func(c *model.Config) { c.Search.ExtraParams = []string{"novalue"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.DefaultConfig()
			tt.mutate(cfg)
			if _, err := NewWebProvider(cfg, Options{}); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	cfg := model.DefaultConfig()
	p, _ := NewWebProvider(cfg, Options{})

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"https://example.com/a", "https://example.com/a", true},
		{"/url?q=https://example.com/b&sa=U", "https://example.com/b", true},
		{"https://www.google.com/url?url=https://example.com/c", "https://example.com/c", true},
		{"/search?q=next", "", false},
		{"https://maps.google.com/place", "", false},
		{"https://webcache.googleusercontent.com/search?q=cache:x", "", false},
		{"mailto:someone@example.com", "", false},
		{"/url?q=ftp://example.com/file", "", false},
	}
	for _, tt := range tests {
		got, ok := p.resolve(tt.href)
		if ok != tt.ok || got != tt.want {
			t.Errorf("resolve(%q) = %q, %v; want %q, %v", tt.href, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRegistry_Order(t *testing.T) {
	r, err := NewRegistry([]string{"heading-anchor", "result-block"})
	if err != nil {
		t.Fatal(err)
	}
	names := []string{}
	for _, s := range r.Strategies() {
		names = append(names, s.Name())
	}
	if strings.Join(names, ",") != "heading-anchor,result-block" {
		t.Errorf("unexpected order: %v", names)
	}

	def, _ := NewRegistry(nil)
	if len(def.Strategies()) != len(DefaultStrategyNames) {
		t.Error("expected defaults for empty list")
	}
}

func TestTextOf(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<h3>  Spaced \n  Title </h3>"))
	if got := textOf(doc.Find("h3")); got != "Spaced Title" {
		t.Errorf("unexpected title %q", got)
	}
	if got := textOf(doc.Find("h4")); got != "" {
		t.Errorf("expected empty for missing node, got %q", got)
	}
}
