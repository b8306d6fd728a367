package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/telemetry"
	"github.com/rs/zerolog"
)

const extractiveNote = "Drafted from knowledge excerpts without a language model."

// SuggestionService drafts answers for agents from retrieved knowledge.
type SuggestionService struct {
	tickets   TicketStore
	retriever *Retriever
	llm       CompletionClient
	topK      int
	minScore  float64
	logger    zerolog.Logger
}

// SuggestionServiceConfig configures a SuggestionService. LLM may be nil, in
// which case drafts are extractive.
type SuggestionServiceConfig struct {
	Tickets   TicketStore
	Retriever *Retriever
	LLM       CompletionClient
	TopK      int
	MinScore  float64
	Logger    zerolog.Logger
}

func NewSuggestionService(cfg SuggestionServiceConfig) *SuggestionService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &SuggestionService{
		tickets:   cfg.Tickets,
		retriever: cfg.Retriever,
		llm:       cfg.LLM,
		topK:      cfg.TopK,
		minScore:  cfg.MinScore,
		logger:    cfg.Logger,
	}
}

// Suggest drafts an answer for the ticket's current state. It works on a
// snapshot of the ticket and holds no locks while retrieving or generating.
func (s *SuggestionService) Suggest(ctx context.Context, ticketID string) (*domain.Suggestion, error) {
	ctx, span := telemetry.StartSpan(ctx, "SuggestionService.Suggest", telemetry.SpanAttributes{
		TicketID:  ticketID,
		Operation: "suggest",
	})
	defer span.End()

	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	suggestion, err := s.draft(ctx, ticket, s.topK)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return suggestion, nil
}

// MaxRecommendTopK caps the k a caller may ask Recommend for.
const MaxRecommendTopK = 20

// Recommend drafts an answer for free text that is not stored as a ticket.
// A k outside [1, MaxRecommendTopK] falls back to the configured top-k.
func (s *SuggestionService) Recommend(ctx context.Context, text string, k int) (*domain.Suggestion, error) {
	ctx, span := telemetry.StartSpan(ctx, "SuggestionService.Recommend", telemetry.SpanAttributes{
		Operation: "recommend",
	})
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if k < 1 || k > MaxRecommendTopK {
		k = s.topK
	}

	suggestion, err := s.draft(ctx, &domain.Ticket{Text: text}, k)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return suggestion, nil
}

// draft retrieves up to k chunks for ticket and turns those above the score
// floor into a suggestion.
func (s *SuggestionService) draft(ctx context.Context, ticket *domain.Ticket, k int) (*domain.Suggestion, error) {
	log := s.logger.With().Str("ticket_id", ticket.ID).Logger()

	query := ticket.RetrievalQuery()
	hits, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	evidence := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h.Score > s.minScore {
			evidence = append(evidence, h)
		}
	}

	if len(evidence) == 0 {
		log.Info().Msg("no relevant knowledge for ticket")
		return &domain.Suggestion{
			Answer:     domain.NoKnowledgeAnswer,
			Steps:      []string{},
			Citations:  []string{},
			Confidence: 0,
			Evidence:   []domain.ScoredChunk{},
		}, nil
	}

	var draft draftResponse
	note := ""
	if s.llm == nil {
		draft = extractiveDraft(query, evidence)
		note = extractiveNote
	} else {
		raw, err := s.llm.Complete(ctx, suggestSystemPrompt, buildSuggestPrompt(ticket, evidence), 0)
		if err != nil {
			log.Warn().Err(err).Msg("generation backend failed")
			return nil, domain.ErrGenerationUnavailable.WithCause(err)
		}
		draft = parseDraft(raw)
	}

	steps := draft.Steps
	if steps == nil {
		steps = []string{}
	}

	return &domain.Suggestion{
		Answer:     draft.Answer,
		Steps:      steps,
		Citations:  keepKnownCitations(draft.Citations, evidence),
		Confidence: domain.Confidence(evidence),
		Evidence:   evidence,
		Note:       note,
	}, nil
}
