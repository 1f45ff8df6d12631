// Package similarity scores lexical overlap between two text snippets.
package similarity

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Method identifies which tier produced a score
type Method string

const (
	MethodJaccard     Method = "jaccard"      // Either snippet has fewer than MinTokens tokens
	MethodTFIDF       Method = "tfidf"        // Cosine of TF-IDF vectors
	MethodCommonWords Method = "common_words" // Vectorizer failed
)

// MinTokens is the token count below which Jaccard similarity is used
const MinTokens = 3

// scorePrecision rounds away floating point noise so identical
// vectors score exactly 1.
const scorePrecision = 1e9

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+(?:'[\p{L}]+)?`)

// Scorer computes similarity in [0,1] with a three-tier policy:
// Jaccard for very short snippets, TF-IDF cosine otherwise, and a
// common-word ratio when vectorization fails. It never fails.
type Scorer struct {
	vectorizer Vectorizer
}

// NewScorer creates a scorer backed by the TF-IDF vectorizer
func NewScorer() *Scorer {
	return &Scorer{vectorizer: NewTFIDF()}
}

// NewScorerWithVectorizer creates a scorer with a custom vectorizer
func NewScorerWithVectorizer(v Vectorizer) *Scorer {
	if v == nil {
		v = NewTFIDF()
	}
	return &Scorer{vectorizer: v}
}

// Score returns the similarity of a and b
func (s *Scorer) Score(a, b string) float64 {
	score, _ := s.ScoreWithMethod(a, b)
	return score
}

// ScoreWithMethod returns the similarity of a and b and the tier that produced it
func (s *Scorer) ScoreWithMethod(a, b string) (float64, Method) {
	ta := Tokenize(a)
	tb := Tokenize(b)

	if len(ta) < MinTokens || len(tb) < MinTokens {
		return Jaccard(ta, tb), MethodJaccard
	}

	cos, err := s.cosine(ta, tb)
	if err != nil {
		return CommonWordRatio(ta, tb), MethodCommonWords
	}
	return clamp(cos), MethodTFIDF
}

// cosine runs the vectorizer, converting a panic into an error
func (s *Scorer) cosine(a, b []string) (cos float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vectorizer panic: %v", r)
		}
	}()
	return s.vectorizer.Cosine(a, b)
}

// Tokenize lowercases s and splits it into word tokens
func Tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

// Jaccard returns |A∩B| / |A∪B| over the token sets, 0 when the union is empty
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return clamp(float64(intersection) / float64(union))
}

// CommonWordRatio returns |A∩B| / max(|A|,|B|), 0 if either side is empty
func CommonWordRatio(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	common := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			common++
		}
	}

	denom := len(setA)
	if len(setB) > denom {
		denom = len(setB)
	}
	return clamp(float64(common) / float64(denom))
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	v = math.Round(v*scorePrecision) / scorePrecision
	if v > 1 {
		return 1
	}
	return v
}
