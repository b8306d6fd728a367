package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/ticketassist/internal/api"
	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/go-chi/chi/v5"
)

type SuggestionService interface {
	Suggest(ctx context.Context, ticketID string) (*domain.Suggestion, error)
	Recommend(ctx context.Context, text string, k int) (*domain.Suggestion, error)
}

type AssistService interface {
	Summarize(ctx context.Context, ticketID string) (string, error)
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// AssistHandler serves the generation endpoints.
type AssistHandler struct {
	suggestions SuggestionService
	assist      AssistService
}

func NewAssistHandler(suggestions SuggestionService, assist AssistService) *AssistHandler {
	return &AssistHandler{suggestions: suggestions, assist: assist}
}

type EvidenceResponse struct {
	ChunkID string  `json:"chunk_id"`
	Title   string  `json:"title"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

type SuggestionResponse struct {
	Answer     string             `json:"answer"`
	Steps      []string           `json:"steps"`
	Citations  []string           `json:"citations"`
	Confidence float64            `json:"confidence"`
	Evidence   []EvidenceResponse `json:"evidence"`
	Note       string             `json:"note,omitempty"`
}

// RecommendRequest asks for a draft for text that is not a stored ticket.
// TopK of zero uses the server's configured top-k.
type RecommendRequest struct {
	TicketText string `json:"ticket_text" validate:"required,notblank"`
	TopK       int    `json:"top_k" validate:"min=0,max=20"`
}

type TranslateRequest struct {
	Text       string `json:"text" validate:"required,notblank"`
	TargetLang string `json:"target_lang" validate:"required,notblank,max=64"`
}

func suggestionToResponse(s *domain.Suggestion) *SuggestionResponse {
	evidence := make([]EvidenceResponse, 0, len(s.Evidence))
	for _, e := range s.Evidence {
		evidence = append(evidence, EvidenceResponse{ChunkID: e.ChunkID, Title: e.Title, Text: e.Text, Score: e.Score})
	}
	return &SuggestionResponse{
		Answer:     s.Answer,
		Steps:      tagsOrEmpty(s.Steps),
		Citations:  tagsOrEmpty(s.Citations),
		Confidence: s.Confidence,
		Evidence:   evidence,
		Note:       s.Note,
	}
}

func (h *AssistHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	s, err := h.suggestions.Suggest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, suggestionToResponse(s))
}

func (h *AssistHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	s, err := h.suggestions.Recommend(r.Context(), req.TicketText, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, suggestionToResponse(s))
}

func (h *AssistHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	summary, err := h.assist.Summarize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *AssistHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	out, err := h.assist.Translate(r.Context(), req.Text, req.TargetLang)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"translated_text": out})
}
