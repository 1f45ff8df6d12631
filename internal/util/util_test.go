package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/ppiankov/plagiscan/internal/model"
)

func TestNewProxyFunc(t *testing.T) {
	tests := []struct {
		name       string
		httpProxy  string
		httpsProxy string
		noProxy    string
		target     string
		want       string
	}{
		{"http target", "http://proxy:8080", "", "", "http://example.com/a", "http://proxy:8080"},
		{"https falls back to http proxy", "http://proxy:8080", "", "", "https://example.com/a", "http://proxy:8080"},
		{"https proxy preferred", "http://proxy:8080", "http://secure:8443", "", "https://example.com/a", "http://secure:8443"},
		{"no_proxy bypass", "http://proxy:8080", "", "example.com", "http://example.com/a", ""},
		{"no_proxy other host", "http://proxy:8080", "", "example.com", "http://other.org/a", "http://proxy:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := NewProxyFunc(tt.httpProxy, tt.httpsProxy, tt.noProxy)
			target, _ := url.Parse(tt.target)
			got, err := fn(&http.Request{URL: target})
			if err != nil {
				t.Fatalf("proxy func: %v", err)
			}
			gotStr := ""
			if got != nil {
				gotStr = got.String()
			}
			if gotStr != tt.want {
				t.Errorf("expected %q, got %q", tt.want, gotStr)
			}
		})
	}
}

func TestIdentityPool(t *testing.T) {
	pool := NewIdentityPool([]string{"", "a", "b"}, "fallback")
	if len(pool.Agents()) != 2 {
		t.Fatalf("expected blank agents dropped, got %v", pool.Agents())
	}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[pool.Next()] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("expected both agents to be used, got %v", seen)
	}
	if seen["fallback"] {
		t.Error("fallback should not be used when agents exist")
	}
}

func TestIdentityPool_Fallback(t *testing.T) {
	pool := NewIdentityPool(nil, "fallback")
	if got := pool.Next(); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestRobotsChecker(t *testing.T) {
	var robotsHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			atomic.AddInt32(&robotsHits, 1)
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\nCrawl-delay: 2\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "Mozilla/5.0 (X11)")
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, server.URL+"/public/page")
	if err != nil {
		t.Fatalf("CanFetch: %v", err)
	}
	if !allowed {
		t.Error("expected /public/page to be allowed")
	}
	if delay.Seconds() != 2 {
		t.Errorf("expected crawl delay 2s, got %v", delay)
	}

	if checker.IsAllowed(ctx, server.URL+"/private/doc") {
		t.Error("expected /private/doc to be disallowed")
	}

	if hits := atomic.LoadInt32(&robotsHits); hits != 1 {
		t.Errorf("expected robots.txt fetched once, got %d", hits)
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "Mozilla/5.0")
	if !checker.IsAllowed(context.Background(), server.URL+"/anything") {
		t.Error("expected missing robots.txt to allow everything")
	}
}

func TestRobotsChecker_InvalidURL(t *testing.T) {
	checker := NewRobotsChecker(nil, "Mozilla/5.0")
	if _, _, err := checker.CanFetch(context.Background(), "not a url"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	if got := NormalizeUserAgent("Mozilla/5.0 (X11; Linux)"); got != "Mozilla" {
		t.Errorf("expected Mozilla, got %q", got)
	}
	if got := NormalizeUserAgent(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestNewHTTPClient_RedirectCap(t *testing.T) {
	var hops int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hops, 1)
		http.Redirect(w, r, "/next", http.StatusFound)
	}))
	defer server.Close()

	client := NewHTTPClient(model.HTTPConfig{MaxRedirects: 3})
	resp, err := client.Get(server.URL)
	if err == nil {
		_ = resp.Body.Close()
		t.Fatal("expected redirect loop to fail")
	}
	if got := atomic.LoadInt32(&hops); got != 4 {
		t.Errorf("expected initial request plus 3 redirects, got %d", got)
	}
}
