package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/api"
	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/service"
	"github.com/go-chi/chi/v5"
)

const idempotencyKeyHeader = "Idempotency-Key"

type TicketService interface {
	Create(ctx context.Context, input service.CreateTicketInput) (*domain.Ticket, bool, error)
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter domain.TicketFilter) ([]*domain.Ticket, error)
	Reply(ctx context.Context, id string, role domain.Role, content string) (*domain.Ticket, error)
	Resolve(ctx context.Context, id string) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
}

type TicketHandler struct {
	svc TicketService
}

func NewTicketHandler(svc TicketService) *TicketHandler {
	return &TicketHandler{svc: svc}
}

type CreateTicketRequest struct {
	CustomerID string `json:"customer_id" validate:"required,notblank,max=256"`
	Text       string `json:"text" validate:"required,notblank"`
}

type ReplyRequest struct {
	Role    string `json:"role" validate:"required,oneof=customer agent"`
	Content string `json:"content" validate:"required,notblank"`
}

type MessageResponse struct {
	Seq     int    `json:"seq"`
	Role    string `json:"role"`
	Content string `json:"content"`
	TS      string `json:"ts"`
}

type TicketResponse struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id"`
	Text       string            `json:"text"`
	Status     string            `json:"status"`
	Sentiment  string            `json:"sentiment"`
	Priority   string            `json:"priority"`
	Tags       []string          `json:"tags"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
	Messages   []MessageResponse `json:"messages"`
}

type TicketSummaryResponse struct {
	ID           string   `json:"id"`
	CustomerID   string   `json:"customer_id"`
	Text         string   `json:"text"`
	Status       string   `json:"status"`
	Sentiment    string   `json:"sentiment"`
	Priority     string   `json:"priority"`
	Tags         []string `json:"tags"`
	MessageCount int      `json:"message_count"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func ticketToResponse(t *domain.Ticket) *TicketResponse {
	msgs := make([]MessageResponse, 0, len(t.Messages))
	for _, m := range t.Messages {
		msgs = append(msgs, MessageResponse{
			Seq:     m.Seq,
			Role:    string(m.Role),
			Content: m.Content,
			TS:      formatTime(m.TS),
		})
	}
	return &TicketResponse{
		ID:         t.ID,
		CustomerID: t.CustomerID,
		Text:       t.Text,
		Status:     string(t.Status),
		Sentiment:  string(t.Sentiment),
		Priority:   string(t.Priority),
		Tags:       tagsOrEmpty(t.Tags),
		CreatedAt:  formatTime(t.CreatedAt),
		UpdatedAt:  formatTime(t.UpdatedAt),
		Messages:   msgs,
	}
}

func ticketToSummary(t *domain.Ticket) TicketSummaryResponse {
	return TicketSummaryResponse{
		ID:           t.ID,
		CustomerID:   t.CustomerID,
		Text:         t.Text,
		Status:       string(t.Status),
		Sentiment:    string(t.Sentiment),
		Priority:     string(t.Priority),
		Tags:         tagsOrEmpty(t.Tags),
		MessageCount: len(t.Messages),
		CreatedAt:    formatTime(t.CreatedAt),
		UpdatedAt:    formatTime(t.UpdatedAt),
	}
}

// Create opens a ticket. A replayed Idempotency-Key answers 200 with the
// ticket created by the first request.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTicketRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ticket, created, err := h.svc.Create(r.Context(), service.CreateTicketInput{
		CustomerID:     req.CustomerID,
		Text:           req.Text,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	api.Success(w, status, ticketToResponse(ticket))
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ticketToResponse(ticket))
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	status, err := domain.ParseTicketStatus(r.URL.Query().Get("status"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	tickets, err := h.svc.List(r.Context(), domain.TicketFilter{
		CustomerID: r.URL.Query().Get("customer_id"),
		Status:     status,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]TicketSummaryResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, ticketToSummary(t))
	}
	api.Success(w, http.StatusOK, out)
}

func (h *TicketHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ticket, err := h.svc.Reply(r.Context(), chi.URLParam(r, "id"), domain.Role(req.Role), req.Content)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ticketToResponse(ticket))
}

func (h *TicketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ticketToResponse(ticket))
}

func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]bool{"deleted": true})
}
