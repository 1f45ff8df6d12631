package similarity

import (
	"errors"
	"math"
	"testing"
)

// recordingVectorizer records whether it was called
type recordingVectorizer struct {
	calls int
	score float64
	err   error
	panic bool
}

func (v *recordingVectorizer) Cosine(a, b []string) (float64, error) {
	v.calls++
	if v.panic {
		panic("boom")
	}
	return v.score, v.err
}

var samplePairs = [][2]string{
	{"", ""},
	{"", "some words here"},
	{"hello", "hello"},
	{"hello world", "hello"},
	{"The quick brown fox jumps over the lazy dog.", "The quick brown fox jumps over the lazy dog."},
	{"The quick brown fox jumps over the lazy dog.", "Bananas are yellow and curved."},
	{"cats chase mice in the barn", "dogs chase cats in the yard"},
	{"the and of", "of the and"},
	{"Machine learning models need data.", "Data is needed by machine learning models."},
	{"Über café naïve résumé", "uber cafe naive resume"},
}

func TestScore_Bounded(t *testing.T) {
	scorer := NewScorer()
	for _, p := range samplePairs {
		got := scorer.Score(p[0], p[1])
		if got < 0 || got > 1 || math.IsNaN(got) {
			t.Errorf("Score(%q, %q) = %v, want value in [0,1]", p[0], p[1], got)
		}
	}
}

func TestScore_Symmetric(t *testing.T) {
	scorer := NewScorer()
	for _, p := range samplePairs {
		ab := scorer.Score(p[0], p[1])
		ba := scorer.Score(p[1], p[0])
		if ab != ba {
			t.Errorf("Score not symmetric for %q / %q: %v vs %v", p[0], p[1], ab, ba)
		}
	}
}

func TestScore_EmptyIsZero(t *testing.T) {
	if got := NewScorer().Score("", ""); got != 0 {
		t.Errorf("Score(\"\", \"\") = %v, want 0", got)
	}
}

func TestScore_Reflexive(t *testing.T) {
	scorer := NewScorer()
	inputs := []string{
		"The quick brown fox jumps over the lazy dog near the riverbank at sunset.",
		"alpha beta gamma",
		"the and of",
		"Plagiarism detection relies on lexical overlap between documents.",
		"one two three four five six seven eight nine ten eleven twelve",
	}
	for _, in := range inputs {
		if got := scorer.Score(in, in); got != 1.0 {
			t.Errorf("Score(a, a) = %v for %q, want 1.0", got, in)
		}
	}
}

func TestScore_UnrelatedIsLow(t *testing.T) {
	got := NewScorer().Score(
		"The quick brown fox jumps over the lazy dog near the riverbank at sunset.",
		"Bananas are yellow and curved.",
	)
	if got >= 0.9 {
		t.Errorf("expected low score for unrelated sentences, got %v", got)
	}
}

func TestScore_TFIDFValue(t *testing.T) {
	score, method := NewScorer().ScoreWithMethod("cats chase mice", "dogs chase cats")
	if method != MethodTFIDF {
		t.Fatalf("expected tfidf method, got %s", method)
	}

	// Shared terms have idf 1, unique terms ln(3/2)+1.
	unique := math.Log(1.5) + 1
	want := 2 / (2 + unique*unique)
	if math.Abs(score-want) > 1e-6 {
		t.Errorf("expected %.6f, got %.6f", want, score)
	}
}

func TestScoreWithMethod_TierSelection(t *testing.T) {
	tests := []struct {
		name       string
		a, b       string
		wantMethod Method
		wantCalls  int
	}{
		{"both short", "hello world", "hello", MethodJaccard, 0},
		{"one short", "hello world", "this has many more tokens", MethodJaccard, 0},
		{"empty", "", "", MethodJaccard, 0},
		{"exactly three", "one two three", "three two one", MethodTFIDF, 1},
		{"long", "a much longer sentence here", "another long sentence here", MethodTFIDF, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &recordingVectorizer{score: 0.25}
			_, method := NewScorerWithVectorizer(v).ScoreWithMethod(tt.a, tt.b)
			if method != tt.wantMethod {
				t.Errorf("method = %s, want %s", method, tt.wantMethod)
			}
			if v.calls != tt.wantCalls {
				t.Errorf("vectorizer calls = %d, want %d", v.calls, tt.wantCalls)
			}
		})
	}
}

func TestScore_FallbackOnVectorizerError(t *testing.T) {
	v := &recordingVectorizer{err: errors.New("degenerate")}
	score, method := NewScorerWithVectorizer(v).ScoreWithMethod("red green blue", "red green yellow purple")
	if method != MethodCommonWords {
		t.Fatalf("expected common_words fallback, got %s", method)
	}
	// 2 common words / max(3, 4)
	if score != 0.5 {
		t.Errorf("expected 0.5, got %v", score)
	}
}

func TestScore_FallbackOnVectorizerPanic(t *testing.T) {
	v := &recordingVectorizer{panic: true}
	score, method := NewScorerWithVectorizer(v).ScoreWithMethod("red green blue", "red green blue")
	if method != MethodCommonWords {
		t.Fatalf("expected common_words fallback, got %s", method)
	}
	if score != 1 {
		t.Errorf("expected 1, got %v", score)
	}
}

func TestScore_StopwordOnlyUsesFallback(t *testing.T) {
	score, method := NewScorer().ScoreWithMethod("the and of", "of the and")
	if method != MethodCommonWords {
		t.Errorf("expected common_words for stopword-only input, got %s", method)
	}
	if score != 1 {
		t.Errorf("expected 1, got %v", score)
	}
}

func TestScore_ClampsVectorizerOutput(t *testing.T) {
	v := &recordingVectorizer{score: 1.0000000002}
	if got := NewScorerWithVectorizer(v).Score("one two three", "one two three"); got != 1 {
		t.Errorf("expected clamp to 1, got %v", got)
	}

	v = &recordingVectorizer{score: -0.3}
	if got := NewScorerWithVectorizer(v).Score("one two three", "four five six"); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b []string
		want float64
	}{
		{nil, nil, 0},
		{[]string{"a"}, nil, 0},
		{[]string{"a", "b"}, []string{"a"}, 0.5},
		{[]string{"a", "b"}, []string{"c", "d"}, 0},
		{[]string{"a", "a", "b"}, []string{"b", "a"}, 1},
	}
	for _, tt := range tests {
		if got := Jaccard(tt.a, tt.b); got != tt.want {
			t.Errorf("Jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCommonWordRatio(t *testing.T) {
	tests := []struct {
		a, b []string
		want float64
	}{
		{nil, []string{"a"}, 0},
		{[]string{"a"}, nil, 0},
		{[]string{"a", "b", "c", "d"}, []string{"a", "b"}, 0.5},
		{[]string{"x"}, []string{"x"}, 1},
	}
	for _, tt := range tests {
		if got := CommonWordRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("CommonWordRatio(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Hello, World! It's 2024 -- don't panic.")
	want := []string{"hello", "world", "it's", "2024", "don't", "panic"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTFIDF_EmptyVocabulary(t *testing.T) {
	_, err := NewTFIDF().Cosine([]string{"the", "and"}, []string{"of", "a"})
	if !errors.Is(err, ErrEmptyVocabulary) {
		t.Errorf("expected ErrEmptyVocabulary, got %v", err)
	}
}

func TestTFIDF_OneSideStopwordsOnly(t *testing.T) {
	cos, err := NewTFIDF().Cosine([]string{"the", "and", "of"}, []string{"bananas", "yellow", "curved"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cos != 0 {
		t.Errorf("expected 0, got %v", cos)
	}
}
