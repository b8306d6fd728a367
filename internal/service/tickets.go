package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/events"
	"github.com/cloo-solutions/ticketassist/internal/telemetry"
	"github.com/rs/zerolog"
)

// EventPublisher receives committed ticket changes.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.TicketEvent) error
}

// TicketService enforces the ticket lifecycle: open tickets accept replies
// and may be resolved; only resolved tickets may be deleted.
type TicketService struct {
	store     TicketStore
	publisher EventPublisher
	uuidGen   UUIDGenerator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewTicketService(store TicketStore, publisher EventPublisher, logger zerolog.Logger) *TicketService {
	return NewTicketServiceWithUUIDGen(store, publisher, logger, &DefaultUUIDGenerator{})
}

// NewTicketServiceWithUUIDGen creates a TicketService with a custom UUID generator (for testing)
func NewTicketServiceWithUUIDGen(store TicketStore, publisher EventPublisher, logger zerolog.Logger, uuidGen UUIDGenerator) *TicketService {
	return &TicketService{
		store:     store,
		publisher: publisher,
		uuidGen:   uuidGen,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreateTicketInput struct {
	CustomerID     string
	Text           string
	IdempotencyKey string
}

// Create opens a ticket. A repeated idempotency key returns the ticket it
// created the first time.
func (s *TicketService) Create(ctx context.Context, input CreateTicketInput) (*domain.Ticket, bool, error) {
	if strings.TrimSpace(input.CustomerID) == "" || strings.TrimSpace(input.Text) == "" {
		return nil, false, domain.ErrMissingRequiredField
	}

	ticket := domain.NewTicket(s.uuidGen.NewString(), input.CustomerID, input.Text, Classify(input.Text), s.now())
	ticket.IdempotencyKey = input.IdempotencyKey

	ctx, span := telemetry.StartSpan(ctx, "TicketService.Create", telemetry.SpanAttributes{
		TicketID:  ticket.ID,
		Operation: "create",
	})
	defer span.End()

	stored, created, err := s.store.Create(ctx, ticket)
	if err != nil {
		span.SetError(err)
		return nil, false, err
	}

	if created {
		s.publish(ctx, events.TicketEvent{Type: events.TypeCreated, TicketID: stored.ID, Status: string(stored.Status), At: stored.CreatedAt})
		s.logger.Info().Str("ticket_id", stored.ID).Str("priority", string(stored.Priority)).Strs("tags", stored.Tags).Msg("ticket created")
	}
	return stored, created, nil
}

func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.store.Get(ctx, id)
}

func (s *TicketService) List(ctx context.Context, filter domain.TicketFilter) ([]*domain.Ticket, error) {
	return s.store.List(ctx, filter)
}

// Reply appends a message while the ticket is open. A customer reply also
// refreshes the ticket's sentiment and priority in the same step.
func (s *TicketService) Reply(ctx context.Context, id string, role domain.Role, content string) (*domain.Ticket, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "TicketService.Reply", telemetry.SpanAttributes{
		TicketID:  id,
		Operation: "reply",
	})
	defer span.End()

	var appended domain.Message
	updated, err := s.store.Update(ctx, id, func(t *domain.Ticket) error {
		if err := t.CanReply(); err != nil {
			return err
		}
		appended = t.Append(role, content, s.now())
		if role == domain.RoleCustomer {
			t.Reclassify(Classify(content))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TicketEvent{
		Type:     events.TypeMessage,
		TicketID: id,
		Status:   string(updated.Status),
		Message: &events.Message{
			Seq:     appended.Seq,
			Role:    string(appended.Role),
			Content: appended.Content,
			TS:      appended.TS,
		},
		At: appended.TS,
	})
	return updated, nil
}

// Resolve moves an open ticket to resolved.
func (s *TicketService) Resolve(ctx context.Context, id string) (*domain.Ticket, error) {
	updated, err := s.store.Update(ctx, id, func(t *domain.Ticket) error {
		if err := t.CanResolve(); err != nil {
			return err
		}
		t.Status = domain.TicketStatusResolved
		t.UpdatedAt = t.NextMessageTS(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TicketEvent{Type: events.TypeResolved, TicketID: id, Status: string(updated.Status), At: updated.UpdatedAt})
	s.logger.Info().Str("ticket_id", id).Msg("ticket resolved")
	return updated, nil
}

// Delete removes a resolved ticket.
func (s *TicketService) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id, func(t *domain.Ticket) error {
		return t.CanDelete()
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.TicketEvent{Type: events.TypeDeleted, TicketID: id, At: s.now()})
	s.logger.Info().Str("ticket_id", id).Msg("ticket deleted")
	return nil
}

// publish is best effort: a committed change is never rolled back because
// a subscriber could not be notified.
func (s *TicketService) publish(ctx context.Context, ev events.TicketEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("ticket_id", ev.TicketID).Str("type", string(ev.Type)).Msg("failed to publish ticket event")
	}
}
