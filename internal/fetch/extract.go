package fetch

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// boilerplateSelector lists structural elements dropped before extraction
const boilerplateSelector = "script, style, noscript, template, nav, header, footer, aside, iframe, svg, form"

// mainRegionSelectors are tried in order; the first with text wins
var mainRegionSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#content",
	".content",
	"#main-content",
}

// blockElements end a line of text
var blockElements = map[string]bool{
	"address": true, "blockquote": true, "br": true, "dd": true, "div": true,
	"dl": true, "dt": true, "figcaption": true, "figure": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "hr": true,
	"li": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// ExtractText converts an HTML body to plain text. contentType drives
// charset detection and may be empty.
func ExtractText(body []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		reader = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(boilerplateSelector).Remove()

	region := mainRegion(doc)
	var b strings.Builder
	for _, n := range region.Nodes {
		writeText(&b, n)
	}

	return CollapseLines(b.String()), nil
}

// ExtractPlain normalizes a text/plain body
func ExtractPlain(r io.Reader, contentType string) (string, error) {
	reader, err := charset.NewReader(r, contentType)
	if err != nil {
		reader = r
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return CollapseLines(string(data)), nil
}

func mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainRegionSelectors {
		found := doc.Find(sel).First()
		if found.Length() > 0 && strings.TrimSpace(found.Text()) != "" {
			return found
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// writeText walks n and writes its text, breaking lines at block elements
func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

// CollapseLines trims each line, splits runs of two or more spaces into
// separate phrases and drops blanks. Phrases are joined with newlines.
func CollapseLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.ReplaceAll(line, "\t", "  ")
		line = strings.ReplaceAll(line, "\u00a0", " ")
		for _, phrase := range strings.Split(line, "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				out = append(out, phrase)
			}
		}
	}
	return strings.Join(out, "\n")
}
