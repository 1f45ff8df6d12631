package detect

import (
	"math"

	"github.com/ppiankov/plagiscan/internal/model"
)

// Selection bounds for which input sentences get searched
type Selection struct {
	PreferredMinWords int // Inclusive lower bound of the preferred band
	PreferredMaxWords int // Inclusive upper bound of the preferred band
	MinPreferred      int // Below this many preferred sentences, fall back
	FallbackCount     int // Raw sentences taken on fallback
}

// DefaultSelection prefers 8 to 25 word sentences and falls back to the
// first 5 when fewer than 3 qualify.
func DefaultSelection() Selection {
	return Selection{
		PreferredMinWords: 8,
		PreferredMaxWords: 25,
		MinPreferred:      3,
		FallbackCount:     5,
	}
}

// SelectionFromConfig reads selection bounds, keeping defaults for unset fields
func SelectionFromConfig(cfg model.DetectionConfig) Selection {
	sel := DefaultSelection()
	if cfg.PreferredMinWords > 0 {
		sel.PreferredMinWords = cfg.PreferredMinWords
	}
	if cfg.PreferredMaxWords > 0 {
		sel.PreferredMaxWords = cfg.PreferredMaxWords
	}
	if cfg.MinPreferred > 0 {
		sel.MinPreferred = cfg.MinPreferred
	}
	if cfg.FallbackSentences > 0 {
		sel.FallbackCount = cfg.FallbackSentences
	}
	return sel
}

// SelectSentences picks the sentences to search for, in input order,
// capped at max. max <= 0 means no cap.
func SelectSentences(sents []model.Sentence, sel Selection, max int) []model.Sentence {
	preferred := make([]model.Sentence, 0, len(sents))
	for _, s := range sents {
		if s.WordCount >= sel.PreferredMinWords && s.WordCount <= sel.PreferredMaxWords {
			preferred = append(preferred, s)
		}
	}

	chosen := preferred
	if len(preferred) < sel.MinPreferred {
		n := sel.FallbackCount
		if n > len(sents) {
			n = len(sents)
		}
		chosen = sents[:n]
	}

	if max > 0 && len(chosen) > max {
		chosen = chosen[:max]
	}

	out := make([]model.Sentence, len(chosen))
	copy(out, chosen)
	return out
}

// Subsample bounds comparison cost on long sources. When there are more than
// limit items it keeps every ceil(n/limit)-th one starting from the first,
// so the whole document stays covered.
func Subsample(items []string, limit int) []string {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	stride := int(math.Ceil(float64(len(items)) / float64(limit)))
	out := make([]string, 0, (len(items)+stride-1)/stride)
	for i := 0; i < len(items); i += stride {
		out = append(out, items[i])
	}
	return out
}
