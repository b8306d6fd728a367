package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSuggestionService struct {
	mock.Mock
}

func (m *MockSuggestionService) Suggest(ctx context.Context, ticketID string) (*domain.Suggestion, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Suggestion), args.Error(1)
}

func (m *MockSuggestionService) Recommend(ctx context.Context, text string, k int) (*domain.Suggestion, error) {
	args := m.Called(ctx, text, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Suggestion), args.Error(1)
}

type MockAssistService struct {
	mock.Mock
}

func (m *MockAssistService) Summarize(ctx context.Context, ticketID string) (string, error) {
	args := m.Called(ctx, ticketID)
	return args.String(0), args.Error(1)
}

func (m *MockAssistService) Translate(ctx context.Context, text, targetLang string) (string, error) {
	args := m.Called(ctx, text, targetLang)
	return args.String(0), args.Error(1)
}

func TestAssistHandler_Suggest(t *testing.T) {
	sugg := new(MockSuggestionService)
	handler := NewAssistHandler(sugg, new(MockAssistService))
	sugg.On("Suggest", mock.Anything, "t-1").Return(&domain.Suggestion{
		Answer:     "Use the reset link.",
		Steps:      []string{"Send link"},
		Citations:  []string{"c1"},
		Confidence: 0.8,
		Evidence:   []domain.ScoredChunk{{ChunkID: "c1", Title: "Login", Text: "Reset link", Score: 0.8}},
	}, nil)

	w := httptest.NewRecorder()
	handler.Suggest(w, withURLParam(httptest.NewRequest(http.MethodPost, "/tickets/t-1/suggest", nil), "id", "t-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SuggestionResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "Use the reset link.", resp.Answer)
	assert.Equal(t, []string{"c1"}, resp.Citations)
	require.Len(t, resp.Evidence, 1)
	assert.Equal(t, 0.8, resp.Evidence[0].Score)
}

func TestAssistHandler_Suggest_NoKnowledgeHasEmptyArrays(t *testing.T) {
	sugg := new(MockSuggestionService)
	handler := NewAssistHandler(sugg, new(MockAssistService))
	sugg.On("Suggest", mock.Anything, "t-1").Return(&domain.Suggestion{Answer: domain.NoKnowledgeAnswer}, nil)

	w := httptest.NewRecorder()
	handler.Suggest(w, withURLParam(httptest.NewRequest(http.MethodPost, "/tickets/t-1/suggest", nil), "id", "t-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"citations":[]`)
	assert.Contains(t, w.Body.String(), `"evidence":[]`)
}

func TestAssistHandler_Suggest_Unavailable(t *testing.T) {
	sugg := new(MockSuggestionService)
	handler := NewAssistHandler(sugg, new(MockAssistService))
	sugg.On("Suggest", mock.Anything, "t-1").Return(nil, domain.ErrGenerationUnavailable.WithCause(errors.New("timeout")))

	w := httptest.NewRecorder()
	handler.Suggest(w, withURLParam(httptest.NewRequest(http.MethodPost, "/tickets/t-1/suggest", nil), "id", "t-1"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domain.ErrCodeGenerationUnavailable, decodeError(t, w).Code)
}

func TestAssistHandler_Summarize(t *testing.T) {
	assist := new(MockAssistService)
	handler := NewAssistHandler(new(MockSuggestionService), assist)
	assist.On("Summarize", mock.Anything, "t-1").Return("Customer cannot log in.", nil)

	w := httptest.NewRecorder()
	handler.Summarize(w, withURLParam(httptest.NewRequest(http.MethodPost, "/tickets/t-1/summarize", nil), "id", "t-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	decodeData(t, w, &resp)
	assert.Equal(t, "Customer cannot log in.", resp["summary"])
}

func TestAssistHandler_Translate(t *testing.T) {
	assist := new(MockAssistService)
	handler := NewAssistHandler(new(MockSuggestionService), assist)
	assist.On("Translate", mock.Anything, "Hello", "de").Return("Hallo", nil)

	w := httptest.NewRecorder()
	handler.Translate(w, jsonRequest(http.MethodPost, "/translate", `{"text":"Hello","target_lang":"de"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	decodeData(t, w, &resp)
	assert.Equal(t, "Hallo", resp["translated_text"])
}

func TestAssistHandler_Translate_MissingLang(t *testing.T) {
	assist := new(MockAssistService)
	handler := NewAssistHandler(new(MockSuggestionService), assist)

	w := httptest.NewRecorder()
	handler.Translate(w, jsonRequest(http.MethodPost, "/translate", `{"text":"Hello"}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "target_lang is required")
}

func TestAssistHandler_Recommend(t *testing.T) {
	sugg := new(MockSuggestionService)
	handler := NewAssistHandler(sugg, new(MockAssistService))
	sugg.On("Recommend", mock.Anything, "Order #123 missing", 2).Return(&domain.Suggestion{
		Answer:     "Check the tracking link.",
		Steps:      []string{"Open tracking"},
		Citations:  []string{"c9"},
		Confidence: 0.6,
		Evidence:   []domain.ScoredChunk{{ChunkID: "c9", Title: "Shipping Delays", Text: "Tracking link", Score: 0.6}},
		Note:       "extractive",
	}, nil)

	w := httptest.NewRecorder()
	handler.Recommend(w, jsonRequest(http.MethodPost, "/recommend", `{"ticket_text":"Order #123 missing","top_k":2}`))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp SuggestionResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "Check the tracking link.", resp.Answer)
	assert.Equal(t, []string{"Open tracking"}, resp.Steps)
	assert.Equal(t, []string{"c9"}, resp.Citations)
	assert.Equal(t, 0.6, resp.Confidence)
	assert.Equal(t, "extractive", resp.Note)
	require.Len(t, resp.Evidence, 1)
	assert.Equal(t, "Shipping Delays", resp.Evidence[0].Title)
}

func TestAssistHandler_Recommend_DefaultTopK(t *testing.T) {
	sugg := new(MockSuggestionService)
	handler := NewAssistHandler(sugg, new(MockAssistService))
	sugg.On("Recommend", mock.Anything, "reset password", 0).Return(&domain.Suggestion{Answer: domain.NoKnowledgeAnswer}, nil)

	w := httptest.NewRecorder()
	handler.Recommend(w, jsonRequest(http.MethodPost, "/recommend", `{"ticket_text":"reset password"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	sugg.AssertExpectations(t)
}

func TestAssistHandler_Recommend_Validation(t *testing.T) {
	cases := map[string]string{
		`{"top_k":2}`:                       "ticket_text is required",
		`{"ticket_text":"  "}`:              "ticket_text must not be blank",
		`{"ticket_text":"x","top_k":21}`:    "top_k must be at most 20",
		`{"ticket_text":"x","top_k":-1}`:    "top_k must be at least 0",
		`{"ticket_text":"x","top_k":"two"}`: "invalid request body",
	}
	for body, want := range cases {
		sugg := new(MockSuggestionService)
		handler := NewAssistHandler(sugg, new(MockAssistService))

		w := httptest.NewRecorder()
		handler.Recommend(w, jsonRequest(http.MethodPost, "/recommend", body))

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, decodeError(t, w).Error, want, body)
		sugg.AssertNotCalled(t, "Recommend", mock.Anything, mock.Anything, mock.Anything)
	}
}
