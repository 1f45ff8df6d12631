// Package text segments checked text into normalized sentences.
package text

import (
	"regexp"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/plagiscan/internal/model"
)

// DefaultMinWords is the minimum sentence length used when a caller passes zero
const DefaultMinWords = 4

var whitespace = regexp.MustCompile(`\s+`)

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

// punkt returns the shared English Punkt tokenizer, or nil if its
// training data could not be loaded.
func punkt() *sentences.DefaultSentenceTokenizer {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err == nil {
			tokenizer = t
		}
	})
	return tokenizer
}

// Normalize applies NFC normalization, collapses whitespace runs to a
// single space and trims the result.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// WordCount counts whitespace-separated words
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Segment splits text into sentences and drops any sentence with fewer
// than minWords words. The result keeps input order.
func Segment(text string, minWords int) []model.Sentence {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}

	text = Normalize(text)
	if text == "" {
		return []model.Sentence{}
	}

	result := make([]model.Sentence, 0)
	for _, raw := range split(text) {
		s := strings.TrimSpace(raw)
		count := WordCount(s)
		if count < minWords {
			continue
		}
		result = append(result, model.Sentence{
			Text:      s,
			WordCount: count,
			Index:     len(result),
		})
	}

	return result
}

// SegmentLines segments each line of text on its own, so a line without
// closing punctuation (a heading, a list item) never joins the next
// sentence. Use it for extracted page text whose lines mark block breaks.
func SegmentLines(text string, minWords int) []model.Sentence {
	result := make([]model.Sentence, 0)
	for _, line := range strings.Split(text, "\n") {
		for _, s := range Segment(line, minWords) {
			s.Index = len(result)
			result = append(result, s)
		}
	}
	return result
}

// Texts returns the text of each sentence
func Texts(sents []model.Sentence) []string {
	out := make([]string, len(sents))
	for i, s := range sents {
		out[i] = s.Text
	}
	return out
}

func split(text string) []string {
	if t := punkt(); t != nil {
		tokens := t.Tokenize(text)
		out := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			out = append(out, tok.Text)
		}
		return out
	}
	return splitTerminators(text)
}

// splitTerminators is the fallback splitter: a sentence ends at '.', '!'
// or '?' followed by whitespace.
func splitTerminators(text string) []string {
	var out []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t') {
			out = append(out, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		out = append(out, current.String())
	}

	return out
}
