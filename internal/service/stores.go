package service

import (
	"context"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/pagination"
	"github.com/google/uuid"
)

// KnowledgeStore persists chunks and answers similarity queries.
type KnowledgeStore interface {
	// Put stores one chunk. The chunk's ID must be set by the caller.
	Put(ctx context.Context, chunk *domain.Chunk) error
	// PutBatch stores all chunks or none of them.
	PutBatch(ctx context.Context, chunks []*domain.Chunk) error
	Delete(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*domain.Chunk, error)
	// Existing returns the subset of ids that are currently stored.
	Existing(ctx context.Context, ids []string) (map[string]bool, error)
	// List returns up to limit+1 chunks after cursor in insertion order.
	List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.Chunk, error)
	SimilaritySearch(ctx context.Context, query domain.QueryEmbedding, k int) ([]domain.ScoredChunk, error)
}

// TicketStore persists tickets. Update and Delete run their callback while
// holding the ticket's lock, so a status check and the mutation it guards are
// one atomic step.
type TicketStore interface {
	// Create inserts t. If t carries an idempotency key that is already in use,
	// the existing ticket is returned with created=false.
	Create(ctx context.Context, t *domain.Ticket) (ticket *domain.Ticket, created bool, err error)
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter domain.TicketFilter) ([]*domain.Ticket, error)
	// Update applies fn to a copy of the ticket and commits it only if fn
	// returns nil. Messages may only be appended.
	Update(ctx context.Context, id string, fn func(t *domain.Ticket) error) (*domain.Ticket, error)
	// Delete removes the ticket if check returns nil.
	Delete(ctx context.Context, id string, check func(t *domain.Ticket) error) error
}

// FeedbackStore is an append-only log of feedback events.
type FeedbackStore interface {
	Append(ctx context.Context, ev *domain.FeedbackEvent) error
	All(ctx context.Context) ([]domain.FeedbackEvent, error)
}

// EmbeddingClient produces vectors for text. Model identifies the function
// so vectors from different versions are never compared.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// CompletionClient runs single-turn LLM completions.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string, temperature float32) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
