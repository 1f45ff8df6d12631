// Package report aggregates matches for presentation and renders reports.
package report

import (
	"math"

	"github.com/ppiankov/plagiscan/internal/model"
)

// Level is a coarse reading of the overall percentage
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
)

// Summarize groups matches by source URL in first-seen order, averages
// each group's similarity and computes the overall percentage as the mean
// similarity times 100, rounded to 2 decimals. No matches yields 0.
func Summarize(matches []model.MatchRecord) model.Summary {
	summary := model.Summary{
		Sources:      []model.SourceGroup{},
		TotalMatches: len(matches),
	}
	if len(matches) == 0 {
		return summary
	}

	index := make(map[string]int)
	sums := make([]float64, 0)
	var total float64

	for _, m := range matches {
		total += m.Similarity

		i, ok := index[m.Source.URL]
		if !ok {
			i = len(summary.Sources)
			index[m.Source.URL] = i
			summary.Sources = append(summary.Sources, model.SourceGroup{
				URL:              m.Source.URL,
				Title:            m.Source.Title,
				MatchedSentences: []model.MatchedSegment{},
			})
			sums = append(sums, 0)
		}

		group := &summary.Sources[i]
		group.MatchedSentences = append(group.MatchedSentences, model.MatchedSegment{
			Sentence:   m.Sentence,
			Similarity: m.Similarity,
			SourceText: m.Source.Text,
		})
		sums[i] += m.Similarity
	}

	for i := range summary.Sources {
		summary.Sources[i].AvgSimilarity = sums[i] / float64(len(summary.Sources[i].MatchedSentences))
	}

	summary.OverallPercentage = round2(total / float64(len(matches)) * 100)
	return summary
}

// Interpret maps an overall percentage to a level and a short reading
func Interpret(percentage float64) (Level, string) {
	switch {
	case percentage < 15:
		return LevelLow, "Content appears mostly original. Any matches are likely common phrases or coincidental similarities."
	case percentage < 30:
		return LevelModerate, "Some portions match existing content. Consider revising the highlighted sections."
	default:
		return LevelHigh, "Significant portions match existing content. Careful review and revision is recommended."
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
