package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccess_WrapsData(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]string{"id": "t-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"t-1"}}`, w.Body.String())
}

func TestValidationError(t *testing.T) {
	w := httptest.NewRecorder()

	ValidationError(w, "text is required")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"text is required","code":"VALIDATION_ERROR"}`, w.Body.String())
}

func TestStatusFor(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"nil":            {nil, http.StatusOK},
		"validation":     {domain.ErrInvalidCursor, http.StatusBadRequest},
		"not found":      {domain.ErrChunkNotFound, http.StatusNotFound},
		"closed":         {domain.ErrTicketClosed, http.StatusConflict},
		"transition":     {domain.ErrInvalidTransition, http.StatusConflict},
		"not resolved":   {domain.ErrTicketNotResolved, http.StatusConflict},
		"model mismatch": {domain.ErrEmbeddingVersionMismatch, http.StatusConflict},
		"embedding down": {domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		"wrapped":        {fmt.Errorf("reply: %w", domain.ErrTicketClosed), http.StatusConflict},
		"body too large": {&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		"storage":        {domain.ErrStorageOperationFail, http.StatusInternalServerError},
		"unknown code":   {domain.NewDomainError("SOMETHING_ELSE", "?"), http.StatusInternalServerError},
		"plain error":    {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFor(tc.err))
		})
	}
}

func TestHandleError_Envelope(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{"domain message is surfaced", domain.ErrTicketNotResolved, domain.ErrCodeTicketNotResolved, domain.ErrTicketNotResolved.Message},
		{"cause is hidden", domain.ErrGenerationUnavailable.WithCause(errors.New("dial tcp 10.0.0.1")), domain.ErrCodeGenerationUnavailable, "generation backend unavailable"},
		{"internal detail is hidden", errors.New("pq: relation does not exist"), domain.ErrCodeInternalError, "internal server error"},
		{"storage detail is hidden", domain.ErrStorageOperationFail.WithCause(errors.New("conn reset")), domain.ErrCodeInternalError, "internal server error"},
		{"oversized body", &http.MaxBytesError{Limit: 1}, domain.ErrCodeValidation, "request body too large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			HandleError(w, tc.err)

			assert.Equal(t, StatusFor(tc.err), w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.wantCode, body.Code)
			assert.Equal(t, tc.wantMsg, body.Error)
		})
	}
}
