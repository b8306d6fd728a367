package service

import (
	"context"
	"errors"
	"strings"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/hashembed"
	"github.com/cloo-solutions/ticketassist/internal/openai"
	"github.com/cloo-solutions/ticketassist/internal/telemetry"
)

// DefaultTopK is the number of chunks retrieved when the caller does not say.
const DefaultTopK = 4

// Retriever embeds a query with the ingestion embedder and searches the store.
type Retriever struct {
	store    KnowledgeStore
	embedder EmbeddingClient
}

func NewRetriever(store KnowledgeStore, embedder EmbeddingClient) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Retrieve returns up to k chunks ordered by descending similarity.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []domain.ScoredChunk{}, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{Operation: "retrieve"})
	defer span.End()

	vec, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		if errors.Is(err, hashembed.ErrEmptyText) || errors.Is(err, openai.ErrEmptyText) {
			return []domain.ScoredChunk{}, nil
		}
		span.SetError(err)
		return nil, domain.ErrEmbeddingUnavailable.WithCause(err)
	}

	results, err := r.store.SimilaritySearch(ctx, domain.QueryEmbedding{Vector: vec, Model: r.embedder.Model()}, k)
	if err != nil {
		return nil, err
	}
	return results, nil
}
