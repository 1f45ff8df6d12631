package search

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Hit is a raw link pulled out of a results page before URL hygiene
type Hit struct {
	Href  string
	Title string
}

// Strategy extracts raw result links from a search results page
type Strategy interface {
	// Name returns the strategy name used in configuration
	Name() string

	// Extract returns hits in page order
	Extract(doc *goquery.Document) []Hit
}

// Registry holds extraction strategies in priority order
type Registry struct {
	strategies []Strategy
}

// builtins maps configuration names to constructors
var builtins = map[string]func() Strategy{
	"result-block":   func() Strategy { return resultBlockStrategy{} },
	"generic-block":  func() Strategy { return genericBlockStrategy{} },
	"heading-anchor": func() Strategy { return headingAnchorStrategy{} },
}

// DefaultStrategyNames is the built-in priority order
var DefaultStrategyNames = []string{"result-block", "generic-block", "heading-anchor"}

// NewRegistry builds a registry from strategy names in priority order.
// An empty list uses the defaults.
func NewRegistry(names []string) (*Registry, error) {
	if len(names) == 0 {
		names = DefaultStrategyNames
	}

	registry := &Registry{}
	for _, name := range names {
		build, ok := builtins[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown search strategy %q", name)
		}
		registry.Register(build())
	}
	return registry, nil
}

// Register appends a strategy at the lowest priority
func (r *Registry) Register(s Strategy) {
	r.strategies = append(r.strategies, s)
}

// Strategies returns the strategies in priority order
func (r *Registry) Strategies() []Strategy {
	return r.strategies
}

// resultBlockStrategy reads the current organic result container
type resultBlockStrategy struct{}

func (resultBlockStrategy) Name() string { return "result-block" }

func (resultBlockStrategy) Extract(doc *goquery.Document) []Hit {
	var hits []Hit
	doc.Find(".tF2Cxc").Each(func(_ int, block *goquery.Selection) {
		link := block.Find(".yuRUbf a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		hits = append(hits, Hit{Href: href, Title: textOf(link.Find("h3").First())})
	})
	return hits
}

// genericBlockStrategy reads the older div.g result layout
type genericBlockStrategy struct{}

func (genericBlockStrategy) Name() string { return "generic-block" }

func (genericBlockStrategy) Extract(doc *goquery.Document) []Hit {
	var hits []Hit
	doc.Find("div.g").Each(func(_ int, block *goquery.Selection) {
		href, ok := block.Find("a").First().Attr("href")
		if !ok || href == "" {
			return
		}
		title := block.Find("h3").First()
		if title.Length() == 0 {
			title = block.Find(".LC20lb").First()
		}
		hits = append(hits, Hit{Href: href, Title: textOf(title)})
	})
	return hits
}

// headingAnchorStrategy takes any link wrapping a result heading.
// It survives markup changes that rename result containers.
type headingAnchorStrategy struct{}

func (headingAnchorStrategy) Name() string { return "heading-anchor" }

func (headingAnchorStrategy) Extract(doc *goquery.Document) []Hit {
	var hits []Hit
	doc.Find("a:has(h3)").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		hits = append(hits, Hit{Href: href, Title: textOf(link.Find("h3").First())})
	})
	return hits
}

func textOf(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}
