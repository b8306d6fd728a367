package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/telemetry"
	"github.com/rs/zerolog"
)

const maxSummaryMessages = 3

// AssistService provides stateless text transforms over ticket content.
type AssistService struct {
	tickets TicketStore
	llm     CompletionClient
	logger  zerolog.Logger
}

// NewAssistService creates an AssistService. llm may be nil.
func NewAssistService(tickets TicketStore, llm CompletionClient, logger zerolog.Logger) *AssistService {
	return &AssistService{tickets: tickets, llm: llm, logger: logger}
}

// Summarize condenses a ticket and its conversation. Without a language
// model the summary is the opening text plus the latest messages.
func (s *AssistService) Summarize(ctx context.Context, ticketID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "AssistService.Summarize", telemetry.SpanAttributes{
		TicketID:  ticketID,
		Operation: "summarize",
	})
	defer span.End()

	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return "", err
	}

	if s.llm == nil {
		return extractiveSummary(ticket), nil
	}

	summary, err := s.llm.Complete(ctx, summarizeSystemPrompt, buildSummarizePrompt(ticket), 0)
	if err != nil {
		span.SetError(err)
		s.logger.Warn().Err(err).Str("ticket_id", ticketID).Msg("summarize failed")
		return "", domain.ErrGenerationUnavailable.WithCause(err)
	}
	return summary, nil
}

// Translate renders text in targetLang.
func (s *AssistService) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(targetLang) == "" {
		return "", domain.ErrMissingRequiredField
	}
	if s.llm == nil {
		return "", domain.ErrGenerationUnavailable
	}

	ctx, span := telemetry.StartSpan(ctx, "AssistService.Translate", telemetry.SpanAttributes{Operation: "translate"})
	defer span.End()

	out, err := s.llm.Complete(ctx, translateSystemPrompt(targetLang), text, 0)
	if err != nil {
		span.SetError(err)
		s.logger.Warn().Err(err).Str("target_lang", targetLang).Msg("translate failed")
		return "", domain.ErrGenerationUnavailable.WithCause(err)
	}
	return out, nil
}

func extractiveSummary(t *domain.Ticket) string {
	var b strings.Builder
	b.WriteString("Customer asked: ")
	b.WriteString(oneLine(t.Text))

	// The opening message is already covered by the ticket text.
	var rest []domain.Message
	if len(t.Messages) > 1 {
		rest = t.Messages[1:]
	}
	if len(rest) > maxSummaryMessages {
		rest = rest[len(rest)-maxSummaryMessages:]
	}
	for _, m := range rest {
		b.WriteString("\n")
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(oneLine(m.Content))
	}
	b.WriteString("\nStatus: ")
	b.WriteString(string(t.Status))
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
