package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target carries the same code and message, so a sentinel
// still matches after it has been re-created with a cause attached.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause returns a copy of e wrapping err.
func (e *DomainError) WithCause(err error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, err)
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation               = "VALIDATION_ERROR"
	ErrCodeNotFound                 = "NOT_FOUND"
	ErrCodeInternalError            = "INTERNAL_ERROR"
	ErrCodeTicketClosed             = "TICKET_CLOSED"
	ErrCodeInvalidTransition        = "INVALID_TRANSITION"
	ErrCodeTicketNotResolved        = "TICKET_NOT_RESOLVED"
	ErrCodeGenerationUnavailable    = "GENERATION_UNAVAILABLE"
	ErrCodeEmbeddingVersionMismatch = "EMBEDDING_VERSION_MISMATCH"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidRole          = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrEmptyDocument        = NewDomainError(ErrCodeValidation, "document contains no extractable text")
	ErrInvalidCursor        = NewDomainError(ErrCodeValidation, "invalid cursor")
)

// Not found errors
var (
	ErrTicketNotFound = NewDomainError(ErrCodeNotFound, "ticket not found")
	ErrChunkNotFound  = NewDomainError(ErrCodeNotFound, "knowledge chunk not found")

	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document original not found")
)

// Lifecycle errors
var (
	ErrTicketClosed      = NewDomainError(ErrCodeTicketClosed, "ticket is resolved and no longer accepts replies")
	ErrInvalidTransition = NewDomainError(ErrCodeInvalidTransition, "ticket can only be resolved while open")
	ErrTicketNotResolved = NewDomainError(ErrCodeTicketNotResolved, "ticket must be resolved before it can be deleted")
)

// Backend errors
var (
	ErrGenerationUnavailable    = NewDomainError(ErrCodeGenerationUnavailable, "generation backend unavailable")
	ErrEmbeddingUnavailable     = NewDomainError(ErrCodeGenerationUnavailable, "embedding backend unavailable")
	ErrEmbeddingVersionMismatch = NewDomainError(ErrCodeEmbeddingVersionMismatch, "embedding model does not match stored chunks")
	ErrStorageOperationFail     = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
