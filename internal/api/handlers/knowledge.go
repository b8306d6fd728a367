package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/ticketassist/internal/api"
	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/service"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

type KnowledgeService interface {
	Ingest(ctx context.Context, input service.IngestInput) *domain.IngestResult
	AddChunk(ctx context.Context, title, text string) (*domain.Chunk, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, input service.ListChunksInput) (*domain.ChunkPage, error)
	DocumentURL(ctx context.Context, documentID string) (string, error)
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type ChunkResponse struct {
	ID             string `json:"id"`
	DocumentID     string `json:"document_id,omitempty"`
	ChunkIndex     int    `json:"chunk_index"`
	Title          string `json:"title"`
	Text           string `json:"text"`
	EmbeddingModel string `json:"embedding_model"`
	CreatedAt      string `json:"created_at"`
}

type ChunkPageResponse struct {
	Items   []ChunkResponse `json:"items"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

type CreateChunkRequest struct {
	Title string `json:"title" validate:"max=200"`
	Text  string `json:"text" validate:"required,notblank"`
}

type UploadResponse struct {
	Status      string `json:"status"`
	ChunksAdded int    `json:"chunks_added"`
	DocumentID  string `json:"document_id"`
	Error       string `json:"error,omitempty"`
}

func chunkToResponse(c *domain.Chunk) ChunkResponse {
	return ChunkResponse{
		ID:             c.ID,
		DocumentID:     c.DocumentID,
		ChunkIndex:     c.ChunkIndex,
		Title:          c.Title,
		Text:           c.Text,
		EmbeddingModel: c.EmbeddingModel,
		CreatedAt:      formatTime(c.CreatedAt),
	}
}

// Create stores a single hand-written chunk.
func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateChunkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	c, err := h.svc.AddChunk(r.Context(), req.Title, req.Text)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, chunkToResponse(c))
}

// DownloadDocument returns a presigned link to the archived original of an
// uploaded document. Clients fetch the bytes from object storage directly.
func (h *KnowledgeHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.DocumentURL(r.Context(), chi.URLParam(r, "document_id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"url": url})
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			api.ValidationError(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	page, err := h.svc.List(r.Context(), service.ListChunksInput{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ChunkPageResponse{
		Items:   make([]ChunkResponse, 0, len(page.Items)),
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	}
	for _, c := range page.Items {
		resp.Items = append(resp.Items, chunkToResponse(c))
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Upload ingests a multipart document. The form carries the file under
// "file" and, for formats the server cannot read, the client's extracted
// text under "text". Ingestion failures are reported in the body with
// status "failure"; nothing is stored in that case.
func (h *KnowledgeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			api.HandleError(w, err)
			return
		}
		api.ValidationError(w, "expected multipart/form-data body")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.ValidationError(w, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	result := h.svc.Ingest(r.Context(), service.IngestInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Text:        r.FormValue("text"),
	})

	api.Success(w, http.StatusOK, UploadResponse{
		Status:      string(result.Status),
		ChunksAdded: result.ChunksAdded,
		DocumentID:  result.DocumentID,
		Error:       result.Error,
	})
}
