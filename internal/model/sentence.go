package model

// Sentence is a normalized unit of checked text
type Sentence struct {
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
	Index     int    `json:"index"` // Position in the segmented input (0-based)
}

// SourceCandidate is a page reference discovered by web search
type SourceCandidate struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// MatchSource identifies where a matched sentence was found
type MatchSource struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"` // Most similar sentence on the source page
}

// MatchRecord pairs an input sentence with its best-matching source sentence.
// A record only exists when Similarity met the run's threshold.
type MatchRecord struct {
	Sentence   string      `json:"sentence"`
	Similarity float64     `json:"similarity"`
	Source     MatchSource `json:"source"`
}
