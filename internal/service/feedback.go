package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/rs/zerolog"
)

// FeedbackService records suggestion outcomes and derives gap analytics.
type FeedbackService struct {
	store     FeedbackStore
	knowledge KnowledgeStore
	uuidGen   UUIDGenerator
	gapLimit  int
	logger    zerolog.Logger
	now       func() time.Time
}

func NewFeedbackService(store FeedbackStore, knowledge KnowledgeStore, logger zerolog.Logger) *FeedbackService {
	return &FeedbackService{
		store:     store,
		knowledge: knowledge,
		uuidGen:   &DefaultUUIDGenerator{},
		gapLimit:  domain.DefaultGapListLimit,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type RecordFeedbackInput struct {
	TicketText    string
	Accepted      bool
	Comment       string
	UsedCitations []string
}

// Record appends a feedback event. Every call appends; retries produce
// duplicate events.
func (s *FeedbackService) Record(ctx context.Context, input RecordFeedbackInput) (*domain.FeedbackEvent, error) {
	if strings.TrimSpace(input.TicketText) == "" {
		return nil, domain.ErrMissingRequiredField
	}

	citations := make([]string, 0, len(input.UsedCitations))
	seen := map[string]bool{}
	for _, id := range input.UsedCitations {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		citations = append(citations, id)
	}

	ev := &domain.FeedbackEvent{
		ID:            s.uuidGen.NewString(),
		TicketText:    input.TicketText,
		Accepted:      input.Accepted,
		Comment:       input.Comment,
		UsedCitations: citations,
		RecordedAt:    s.now(),
	}
	if err := s.store.Append(ctx, ev); err != nil {
		return nil, err
	}

	s.logger.Debug().Bool("accepted", ev.Accepted).Int("citations", len(citations)).Msg("feedback recorded")
	return ev, nil
}

// GapReport computes gap metrics over the full feedback history. Cited chunks
// that have since been deleted are reported with Exists=false.
func (s *FeedbackService) GapReport(ctx context.Context) (*domain.GapReport, error) {
	events, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := map[string]bool{}
	for _, ev := range events {
		for _, id := range ev.UsedCitations {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	existing := map[string]bool{}
	if len(ids) > 0 && s.knowledge != nil {
		existing, err = s.knowledge.Existing(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	report := domain.ComputeGapReport(events, func(id string) bool { return existing[id] }, s.gapLimit)
	return &report, nil
}
