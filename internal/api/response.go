// Package api holds the JSON envelope every endpoint answers with.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/rs/zerolog/log"
)

// SuccessResponse is the body of every 2xx answer.
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse is the body of every error answer. Code is one of the
// domain error codes.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:               http.StatusBadRequest,
	domain.ErrCodeNotFound:                 http.StatusNotFound,
	domain.ErrCodeTicketClosed:             http.StatusConflict,
	domain.ErrCodeInvalidTransition:        http.StatusConflict,
	domain.ErrCodeTicketNotResolved:        http.StatusConflict,
	domain.ErrCodeEmbeddingVersionMismatch: http.StatusConflict,
	domain.ErrCodeGenerationUnavailable:    http.StatusServiceUnavailable,
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func Success(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, SuccessResponse{Data: data})
}

func ValidationError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: domain.ErrCodeValidation})
}

// StatusFor maps an error to the HTTP status it is reported with. Errors
// that carry no domain code are internal.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		if status, ok := statusByCode[de.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes err as an error envelope. Internal errors are logged
// and answered with a generic message so storage details never leak.
func HandleError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusRequestEntityTooLarge {
		writeJSON(w, status, ErrorResponse{Error: "request body too large", Code: domain.ErrCodeValidation})
		return
	}

	var de *domain.DomainError
	if status == http.StatusInternalServerError || !errors.As(err, &de) {
		log.Error().Err(err).Msg("internal error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: domain.ErrCodeInternalError})
		return
	}
	if status == http.StatusServiceUnavailable {
		log.Warn().Err(err).Msg("backend unavailable")
	}
	writeJSON(w, status, ErrorResponse{Error: de.Message, Code: de.Code})
}
