package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/ticketassist/internal/api/handlers"
	"github.com/cloo-solutions/ticketassist/internal/events"
	"github.com/cloo-solutions/ticketassist/internal/hashembed"
	"github.com/cloo-solutions/ticketassist/internal/memstore"
	"github.com/cloo-solutions/ticketassist/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zerolog.Nop()

	knowledgeStore := memstore.NewKnowledgeStore()
	ticketStore := memstore.NewTicketStore()
	feedbackStore := memstore.NewFeedbackStore()
	embedder := hashembed.New(256)
	broker := events.NewMemoryBroker(logger)
	t.Cleanup(func() { _ = broker.Close() })

	retriever := service.NewRetriever(knowledgeStore, embedder)
	tickets := service.NewTicketService(ticketStore, broker, logger)
	knowledge := service.NewKnowledgeService(service.KnowledgeServiceConfig{
		Store:    knowledgeStore,
		Embedder: embedder,
		Logger:   logger,
	})
	suggestions := service.NewSuggestionService(service.SuggestionServiceConfig{
		Tickets:   ticketStore,
		Retriever: retriever,
		Logger:    logger,
	})
	assist := service.NewAssistService(ticketStore, nil, logger)
	feedback := service.NewFeedbackService(feedbackStore, knowledgeStore, logger)

	return NewRouter(RouterConfig{
		Logger:           logger,
		MaxUploadBytes:   1 << 20,
		TicketHandler:    handlers.NewTicketHandler(tickets),
		AssistHandler:    handlers.NewAssistHandler(suggestions, assist),
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledge),
		FeedbackHandler:  handlers.NewFeedbackHandler(feedback),
		EventsHandler:    handlers.NewEventsHandler(tickets, broker, logger),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w, body := do(t, router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", data(t, body)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_TicketLifecycle(t *testing.T) {
	router := newTestRouter(t)

	w, body := do(t, router, http.MethodPost, "/tickets", `{"customer_id":"c-1","text":"I cannot reset my password"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := data(t, body)["id"].(string)

	w, _ = do(t, router, http.MethodPost, "/tickets/"+id+"/reply", `{"role":"agent","content":"Try the reset link"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, router, http.MethodDelete, "/tickets/"+id, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TICKET_NOT_RESOLVED", body["code"])

	w, _ = do(t, router, http.MethodPost, "/tickets/"+id+"/resolve", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, router, http.MethodPost, "/tickets/"+id+"/reply", `{"role":"customer","content":"thanks"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TICKET_CLOSED", body["code"])

	w, body = do(t, router, http.MethodPost, "/tickets/"+id+"/resolve", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", body["code"])

	w, body = do(t, router, http.MethodGet, "/tickets/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, body)["messages"], 2)

	w, _ = do(t, router, http.MethodDelete, "/tickets/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, router, http.MethodGet, "/tickets/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestRouter_IdempotentCreate(t *testing.T) {
	router := newTestRouter(t)

	create := func() (*httptest.ResponseRecorder, string) {
		req := httptest.NewRequest(http.MethodPost, "/tickets", bytes.NewBufferString(`{"customer_id":"c","text":"help"}`))
		req.Header.Set("Idempotency-Key", "abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w, data(t, body)["id"].(string)
	}

	w1, id1 := create()
	w2, id2 := create()
	assert.Equal(t, http.StatusCreated, w1.Code)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, id1, id2)

	_, body := do(t, router, http.MethodGet, "/tickets", "")
	assert.Len(t, body["data"], 1)
}

func TestRouter_UploadSuggestFeedbackGaps(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "passwords.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("To reset your password, open the login page and choose forgot password. The reset link expires after one hour."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/knowledge/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var upload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))
	assert.Equal(t, "success", data(t, upload)["status"])

	w, body := do(t, router, http.MethodPost, "/tickets", `{"customer_id":"c","text":"How do I reset my password?"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := data(t, body)["id"].(string)

	w, body = do(t, router, http.MethodPost, "/tickets/"+id+"/suggest", "")
	require.Equal(t, http.StatusOK, w.Code)
	sugg := data(t, body)
	citations := sugg["citations"].([]interface{})
	require.Len(t, citations, 1)
	assert.Greater(t, sugg["confidence"].(float64), 0.0)

	chunkID := citations[0].(string)
	w, _ = do(t, router, http.MethodPost, "/feedback",
		`{"ticket_text":"How do I reset my password?","accepted":false,"comment":"too vague","used_citations":["`+chunkID+`"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = do(t, router, http.MethodDelete, "/knowledge/"+chunkID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, router, http.MethodGet, "/analytics/gaps", "")
	require.Equal(t, http.StatusOK, w.Code)
	report := data(t, body)
	assert.Equal(t, float64(1), report["total"])
	assert.Equal(t, float64(1), report["gap_rate"])
	chunks := report["chunks"].([]interface{})
	require.Len(t, chunks, 1)
	assert.Equal(t, false, chunks[0].(map[string]interface{})["exists"])
}

func TestRouter_SuggestWithoutKnowledge(t *testing.T) {
	router := newTestRouter(t)

	_, body := do(t, router, http.MethodPost, "/tickets", `{"customer_id":"c","text":"Where is my parcel?"}`)
	id := data(t, body)["id"].(string)

	w, body := do(t, router, http.MethodPost, "/tickets/"+id+"/suggest", "")
	require.Equal(t, http.StatusOK, w.Code)
	sugg := data(t, body)
	assert.Equal(t, float64(0), sugg["confidence"])
	assert.Empty(t, sugg["citations"])
}

func TestRouter_TranslateWithoutModel(t *testing.T) {
	router := newTestRouter(t)

	w, body := do(t, router, http.MethodPost, "/translate", `{"text":"hello","target_lang":"fr"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "GENERATION_UNAVAILABLE", body["code"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/tickets", nil)
	req.Header.Set("Origin", "https://support.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router := newTestRouter(t)
	big := `{"customer_id":"c","text":"` + string(bytes.Repeat([]byte("a"), 2<<20)) + `"}`

	w, body := do(t, router, http.MethodPost, "/tickets", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestRouter_CreateChunkThenRecommend(t *testing.T) {
	router := newTestRouter(t)

	w, body := do(t, router, http.MethodPost, "/knowledge",
		`{"title":"Shipping Delays","text":"If an order is missing, check the tracking link in the confirmation email."}`)
	require.Equal(t, http.StatusCreated, w.Code)
	chunkID := data(t, body)["id"].(string)
	require.NotEmpty(t, chunkID)

	w, body = do(t, router, http.MethodPost, "/recommend", `{"ticket_text":"Order #123 missing","top_k":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	rec := data(t, body)
	assert.Greater(t, rec["confidence"].(float64), 0.0)
	assert.Contains(t, rec["citations"], chunkID)
	assert.NotEmpty(t, rec["answer"])

	w, body = do(t, router, http.MethodPost, "/recommend", `{"top_k":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestRouter_DocumentDownloadWithoutArchive(t *testing.T) {
	router := newTestRouter(t)

	w, body := do(t, router, http.MethodGet, "/knowledge/documents/doc-1", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}
