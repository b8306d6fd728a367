package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/ticketassist/internal/api"
	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/service"
)

type FeedbackService interface {
	Record(ctx context.Context, input service.RecordFeedbackInput) (*domain.FeedbackEvent, error)
	GapReport(ctx context.Context) (*domain.GapReport, error)
}

type FeedbackHandler struct {
	svc FeedbackService
}

func NewFeedbackHandler(svc FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

type RecordFeedbackRequest struct {
	TicketText    string   `json:"ticket_text" validate:"required,notblank"`
	Accepted      *bool    `json:"accepted" validate:"required"`
	Comment       string   `json:"comment" validate:"max=4000"`
	UsedCitations []string `json:"used_citations" validate:"max=100"`
}

type GapResponse struct {
	Query      string `json:"query"`
	Comment    string `json:"comment"`
	RecordedAt string `json:"recorded_at"`
}

type ChunkFeedbackResponse struct {
	ChunkID  string `json:"chunk_id"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Exists   bool   `json:"exists"`
}

type GapReportResponse struct {
	Total    int                     `json:"total"`
	Rejected int                     `json:"rejected"`
	GapRate  float64                 `json:"gap_rate"`
	Gaps     []GapResponse           `json:"gaps"`
	Chunks   []ChunkFeedbackResponse `json:"chunks"`
}

// Record stores an accept or reject decision. Every call appends a new event.
func (h *FeedbackHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordFeedbackRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	_, err := h.svc.Record(r.Context(), service.RecordFeedbackInput{
		TicketText:    req.TicketText,
		Accepted:      *req.Accepted,
		Comment:       req.Comment,
		UsedCitations: req.UsedCitations,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, map[string]bool{"saved": true})
}

func (h *FeedbackHandler) Gaps(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GapReport(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := GapReportResponse{
		Total:    report.Total,
		Rejected: report.Rejected,
		GapRate:  report.GapRate,
		Gaps:     make([]GapResponse, 0, len(report.Gaps)),
		Chunks:   make([]ChunkFeedbackResponse, 0, len(report.Chunks)),
	}
	for _, g := range report.Gaps {
		resp.Gaps = append(resp.Gaps, GapResponse{Query: g.Query, Comment: g.Comment, RecordedAt: formatTime(g.RecordedAt)})
	}
	for _, c := range report.Chunks {
		resp.Chunks = append(resp.Chunks, ChunkFeedbackResponse{ChunkID: c.ChunkID, Accepted: c.Accepted, Rejected: c.Rejected, Exists: c.Exists})
	}

	api.Success(w, http.StatusOK, resp)
}
