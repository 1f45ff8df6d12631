package similarity

import (
	"errors"
	"math"

	"github.com/kljensen/snowball"
)

// ErrEmptyVocabulary is returned when no term survives stopword removal
var ErrEmptyVocabulary = errors.New("empty vocabulary: documents contain only stopwords")

// Vectorizer computes the cosine similarity of two token lists in some
// vector space.
type Vectorizer interface {
	Cosine(a, b []string) (float64, error)
}

// TFIDF vectorizes a two-document corpus with smoothed inverse document
// frequency: idf(t) = ln((1+n)/(1+df(t))) + 1.
type TFIDF struct {
	// Stem reduces terms with the Snowball English stemmer before counting
	Stem bool
}

// NewTFIDF creates a TF-IDF vectorizer with stemming enabled
func NewTFIDF() *TFIDF {
	return &TFIDF{Stem: true}
}

// Cosine returns the cosine similarity of the TF-IDF vectors of a and b
func (v *TFIDF) Cosine(a, b []string) (float64, error) {
	ta := v.terms(a)
	tb := v.terms(b)

	vocab := make(map[string]int)
	for t := range ta {
		vocab[t]++
	}
	for t := range tb {
		vocab[t]++
	}
	if len(vocab) == 0 {
		return 0, ErrEmptyVocabulary
	}

	const docs = 2.0
	var dot, normA, normB float64
	for term, df := range vocab {
		idf := math.Log((1+docs)/(1+float64(df))) + 1
		wa := float64(ta[term]) * idf
		wb := float64(tb[term]) * idf
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(cos) || math.IsInf(cos, 0) {
		return 0, errors.New("cosine is not finite")
	}
	return cos, nil
}

// terms counts non-stopword terms
func (v *TFIDF) terms(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		if IsStopword(tok) {
			continue
		}
		term := tok
		if v.Stem {
			if stemmed, err := snowball.Stem(tok, "english", true); err == nil && stemmed != "" {
				term = stemmed
			}
		}
		counts[term]++
	}
	return counts
}
