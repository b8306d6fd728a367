package memstore

import (
	"context"
	"sync"

	"github.com/cloo-solutions/ticketassist/internal/domain"
)

// FeedbackStore is an append-only in-memory feedback log.
type FeedbackStore struct {
	mu     sync.RWMutex
	events []domain.FeedbackEvent
}

func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{}
}

func (s *FeedbackStore) Append(ctx context.Context, ev *domain.FeedbackEvent) error {
	stored := *ev
	stored.UsedCitations = append([]string(nil), ev.UsedCitations...)

	s.mu.Lock()
	s.events = append(s.events, stored)
	s.mu.Unlock()
	return nil
}

func (s *FeedbackStore) All(ctx context.Context) ([]domain.FeedbackEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FeedbackEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}
