package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryBroker delivers events within one process. A subscriber that falls
// more than its buffer behind misses events rather than stalling publishers.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
	logger zerolog.Logger
}

type memorySub struct {
	ch   chan TicketEvent
	done chan struct{}
	once sync.Once
}

func NewMemoryBroker(logger zerolog.Logger) *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[string]map[*memorySub]struct{}),
		logger: logger,
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, ev TicketEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[ev.TicketID] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn().Str("ticket_id", ev.TicketID).Str("type", string(ev.Type)).Msg("events: subscriber buffer full, dropping event")
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, ticketID string) (<-chan TicketEvent, func(), error) {
	sub := &memorySub{
		ch:   make(chan TicketEvent, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}, nil
	}
	if b.subs[ticketID] == nil {
		b.subs[ticketID] = make(map[*memorySub]struct{})
	}
	b.subs[ticketID][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.removeLocked(ticketID, sub)
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub.ch, cancel, nil
}

func (b *MemoryBroker) removeLocked(ticketID string, sub *memorySub) {
	if set, ok := b.subs[ticketID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, ticketID)
		}
	}
	sub.once.Do(func() {
		close(sub.ch)
		close(sub.done)
	})
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for ticketID, set := range b.subs {
		for sub := range set {
			b.removeLocked(ticketID, sub)
		}
	}
	return nil
}
