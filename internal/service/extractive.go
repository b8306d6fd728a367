package service

import (
	"strings"
	"unicode"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/hashembed"
)

const maxExtractiveSentences = 3

// extractiveDraft composes an answer from the evidence itself when no
// language model is configured: the sentences of the best chunk that share
// the most terms with the query, in their original order.
func extractiveDraft(query string, evidence []domain.ScoredChunk) draftResponse {
	best := evidence[0]
	terms := map[string]bool{}
	for _, tok := range hashembed.Tokenize(query) {
		terms[tok] = true
	}

	sentences := splitSentences(best.Text)
	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		n := 0
		for _, tok := range hashembed.Tokenize(s) {
			if terms[tok] {
				n++
			}
		}
		ranked = append(ranked, scored{idx: i, score: n})
	}

	keep := map[int]bool{}
	for len(keep) < maxExtractiveSentences && len(keep) < len(ranked) {
		top := -1
		for i, r := range ranked {
			if keep[r.idx] {
				continue
			}
			if top < 0 || r.score > ranked[top].score {
				top = i
			}
		}
		keep[ranked[top].idx] = true
	}

	var picked []string
	for i, s := range sentences {
		if keep[i] {
			picked = append(picked, s)
		}
	}

	steps := make([]string, 0, len(evidence))
	for _, e := range evidence {
		steps = append(steps, "Review \""+e.Title+"\" ("+e.ChunkID+")")
	}

	return draftResponse{
		Answer:    strings.Join(picked, " "),
		Steps:     steps,
		Citations: []string{best.ChunkID},
	}
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(strings.Join(strings.Fields(text), " "))
	for i, r := range runes {
		cur.WriteRune(r)
		end := r == '.' || r == '!' || r == '?'
		if end && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
