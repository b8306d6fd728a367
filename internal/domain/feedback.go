package domain

import (
	"sort"
	"time"
)

// DefaultGapListLimit bounds how many rejected events a gap report lists.
const DefaultGapListLimit = 50

// FeedbackEvent records an agent's accept or reject decision on a suggestion.
// UsedCitations are plain chunk ids and may outlive the chunks they name.
type FeedbackEvent struct {
	ID            string
	TicketText    string
	Accepted      bool
	Comment       string
	UsedCitations []string
	RecordedAt    time.Time
}

// Gap is a rejected suggestion, i.e. a query the knowledge base served badly.
type Gap struct {
	Query      string
	Comment    string
	RecordedAt time.Time
}

// ChunkFeedback aggregates decisions for suggestions that cited one chunk.
type ChunkFeedback struct {
	ChunkID  string
	Accepted int
	Rejected int
	Exists   bool
}

// GapReport summarizes feedback.
type GapReport struct {
	Total    int
	Rejected int
	GapRate  float64
	Gaps     []Gap
	Chunks   []ChunkFeedback
}

// ComputeGapReport derives the gap report from the full feedback history.
// exists reports whether a chunk id is still present; pass nil to skip the
// lookup. Gaps are listed newest first, at most gapLimit of them.
func ComputeGapReport(events []FeedbackEvent, exists func(chunkID string) bool, gapLimit int) GapReport {
	report := GapReport{Total: len(events), Gaps: []Gap{}, Chunks: []ChunkFeedback{}}
	byChunk := map[string]*ChunkFeedback{}

	for _, ev := range events {
		if !ev.Accepted {
			report.Rejected++
			report.Gaps = append(report.Gaps, Gap{Query: ev.TicketText, Comment: ev.Comment, RecordedAt: ev.RecordedAt})
		}
		seen := map[string]bool{}
		for _, id := range ev.UsedCitations {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			cf, ok := byChunk[id]
			if !ok {
				cf = &ChunkFeedback{ChunkID: id}
				byChunk[id] = cf
			}
			if ev.Accepted {
				cf.Accepted++
			} else {
				cf.Rejected++
			}
		}
	}

	if report.Total > 0 {
		report.GapRate = float64(report.Rejected) / float64(report.Total)
	}

	sort.SliceStable(report.Gaps, func(i, j int) bool {
		return report.Gaps[i].RecordedAt.After(report.Gaps[j].RecordedAt)
	})
	if gapLimit > 0 && len(report.Gaps) > gapLimit {
		report.Gaps = report.Gaps[:gapLimit]
	}

	for _, cf := range byChunk {
		cf.Exists = exists == nil || exists(cf.ChunkID)
		report.Chunks = append(report.Chunks, *cf)
	}
	sort.Slice(report.Chunks, func(i, j int) bool {
		a, b := report.Chunks[i], report.Chunks[j]
		if a.Rejected != b.Rejected {
			return a.Rejected > b.Rejected
		}
		return a.ChunkID < b.ChunkID
	})

	return report
}
