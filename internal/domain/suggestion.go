package domain

import "math"

// NoKnowledgeAnswer is returned when retrieval finds nothing relevant.
const NoKnowledgeAnswer = "No relevant knowledge was found for this ticket. Please answer it manually or add documentation covering this topic."

// Suggestion is a drafted answer for an agent. It is never persisted.
type Suggestion struct {
	Answer     string
	Steps      []string
	Citations  []string
	Confidence float64
	Evidence   []ScoredChunk
	Note       string
}

// Confidence blends the best and mean evidence scores, weighted 0.7/0.3,
// clamped to [0,1]. No evidence means zero confidence.
func Confidence(evidence []ScoredChunk) float64 {
	if len(evidence) == 0 {
		return 0
	}
	best := math.Inf(-1)
	sum := 0.0
	for _, e := range evidence {
		if e.Score > best {
			best = e.Score
		}
		sum += e.Score
	}
	mean := sum / float64(len(evidence))
	return clamp01(0.7*best + 0.3*mean)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
