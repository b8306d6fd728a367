package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cloo-solutions/ticketassist/internal/domain"
)

// ticketEntry serializes all mutations of one ticket. Lock order is
// entry.mu before TicketStore.mu, and only Delete takes both.
type ticketEntry struct {
	mu      sync.Mutex
	ticket  *domain.Ticket
	deleted bool
}

// TicketStore keeps tickets in memory with one lock per ticket.
type TicketStore struct {
	mu      sync.RWMutex
	entries map[string]*ticketEntry
	byKey   map[string]string
}

func NewTicketStore() *TicketStore {
	return &TicketStore{
		entries: make(map[string]*ticketEntry),
		byKey:   make(map[string]string),
	}
}

func (s *TicketStore) Create(ctx context.Context, t *domain.Ticket) (*domain.Ticket, bool, error) {
	if t.ID == "" {
		return nil, false, domain.ErrMissingRequiredField
	}

	for {
		s.mu.Lock()
		if t.IdempotencyKey != "" {
			if id, ok := s.byKey[t.IdempotencyKey]; ok {
				entry := s.entries[id]
				s.mu.Unlock()
				if existing, ok := entry.snapshot(); ok {
					return existing, false, nil
				}
				// deleted between lookups; its key is gone now, try again
				continue
			}
			s.byKey[t.IdempotencyKey] = t.ID
		}
		s.entries[t.ID] = &ticketEntry{ticket: t.Clone()}
		s.mu.Unlock()
		return t.Clone(), true, nil
	}
}

func (s *TicketStore) lookup(id string) (*ticketEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (e *ticketEntry) snapshot() (*domain.Ticket, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, false
	}
	return e.ticket.Clone(), true
}

func (s *TicketStore) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	t, ok := entry.snapshot()
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return t, nil
}

func (s *TicketStore) List(ctx context.Context, filter domain.TicketFilter) ([]*domain.Ticket, error) {
	s.mu.RLock()
	entries := make([]*ticketEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*domain.Ticket, 0, len(entries))
	for _, e := range entries {
		t, ok := e.snapshot()
		if !ok || !filter.Matches(t) {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *TicketStore) Update(ctx context.Context, id string, fn func(t *domain.Ticket) error) (*domain.Ticket, error) {
	entry, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrTicketNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.deleted {
		return nil, domain.ErrTicketNotFound
	}

	working := entry.ticket.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	entry.ticket = working
	return working.Clone(), nil
}

func (s *TicketStore) Delete(ctx context.Context, id string, check func(t *domain.Ticket) error) error {
	entry, ok := s.lookup(id)
	if !ok {
		return domain.ErrTicketNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.deleted {
		return domain.ErrTicketNotFound
	}
	if check != nil {
		if err := check(entry.ticket.Clone()); err != nil {
			return err
		}
	}

	entry.deleted = true
	s.mu.Lock()
	delete(s.entries, id)
	if key := entry.ticket.IdempotencyKey; key != "" {
		delete(s.byKey, key)
	}
	s.mu.Unlock()
	return nil
}
