package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/pagination"
	"github.com/cloo-solutions/ticketassist/internal/storage"
	"github.com/cloo-solutions/ticketassist/internal/telemetry"
	"github.com/rs/zerolog"
)

// DocumentArchive keeps the original bytes of uploaded documents.
type DocumentArchive interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
	DeleteObject(ctx context.Context, key string) error
	FindDocumentKey(ctx context.Context, documentID string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// KnowledgeService owns the ingestion pipeline and chunk administration.
type KnowledgeService struct {
	store    KnowledgeStore
	embedder EmbeddingClient
	archive  DocumentArchive
	chunkCfg ChunkConfig
	uuidGen  UUIDGenerator
	logger   zerolog.Logger
	now      func() time.Time
}

// KnowledgeServiceConfig configures a KnowledgeService. Archive is optional.
type KnowledgeServiceConfig struct {
	Store    KnowledgeStore
	Embedder EmbeddingClient
	Archive  DocumentArchive
	Chunking ChunkConfig
	UUIDGen  UUIDGenerator
	Logger   zerolog.Logger
}

func NewKnowledgeService(cfg KnowledgeServiceConfig) *KnowledgeService {
	if cfg.UUIDGen == nil {
		cfg.UUIDGen = &DefaultUUIDGenerator{}
	}
	if cfg.Chunking.Window <= 0 {
		cfg.Chunking = DefaultChunkConfig()
	}
	return &KnowledgeService{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		archive:  cfg.Archive,
		chunkCfg: cfg.Chunking,
		uuidGen:  cfg.UUIDGen,
		logger:   cfg.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IngestInput is an uploaded document. Text, when set, is the client's
// extraction of Data and is used instead of decoding Data.
type IngestInput struct {
	Filename    string
	ContentType string
	Data        []byte
	Text        string
}

// Ingest splits a document into overlapping chunks, embeds all of them and
// only then writes them in one batch. Any failure leaves the store unchanged
// and is reported in the result rather than as an error.
func (s *KnowledgeService) Ingest(ctx context.Context, input IngestInput) *domain.IngestResult {
	documentID := s.uuidGen.NewString()
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Ingest", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	log := s.logger.With().Str("document_id", documentID).Str("filename", input.Filename).Logger()
	fail := func(err error) *domain.IngestResult {
		log.Warn().Err(err).Msg("ingestion failed")
		return &domain.IngestResult{Status: domain.IngestStatusFailure, DocumentID: documentID, Error: err.Error()}
	}

	text, err := ExtractText(input.Filename, input.ContentType, input.Data, input.Text)
	if err != nil {
		return fail(err)
	}

	pieces := chunkText(text, s.chunkCfg)
	if len(pieces) == 0 {
		return fail(domain.ErrEmptyDocument)
	}

	title := documentTitle(input.Filename)
	model := s.embedder.Model()
	chunks := make([]*domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		vec, err := s.embedder.GenerateEmbedding(ctx, buildChunkEmbeddingText(title, piece))
		if err != nil {
			span.SetError(err)
			return fail(domain.ErrEmbeddingUnavailable.WithCause(err))
		}
		chunks = append(chunks, &domain.Chunk{
			ID:             s.uuidGen.NewString(),
			DocumentID:     documentID,
			ChunkIndex:     i,
			Title:          title,
			Text:           piece,
			Embedding:      vec,
			EmbeddingModel: model,
			CreatedAt:      s.now(),
		})
	}

	archiveKey := ""
	if s.archive != nil && len(input.Data) > 0 {
		key := storage.DocumentKey(documentID, input.Filename)
		if err := s.archive.PutObject(ctx, key, input.ContentType, input.Data); err != nil {
			log.Warn().Err(err).Msg("failed to archive document original")
		} else {
			archiveKey = key
		}
	}

	if err := s.store.PutBatch(ctx, chunks); err != nil {
		if archiveKey != "" {
			if delErr := s.archive.DeleteObject(ctx, archiveKey); delErr != nil {
				log.Warn().Err(delErr).Str("key", archiveKey).Msg("failed to remove archived document after write failure")
			}
		}
		return fail(err)
	}

	log.Info().Int("chunks", len(chunks)).Str("model", model).Msg("document ingested")
	return &domain.IngestResult{
		Status:      domain.IngestStatusSuccess,
		ChunksAdded: len(chunks),
		DocumentID:  documentID,
	}
}

// AddChunk embeds and stores a single chunk, returning it with its new id.
func (s *KnowledgeService) AddChunk(ctx context.Context, title, text string) (*domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrMissingRequiredField
	}

	vec, err := s.embedder.GenerateEmbedding(ctx, buildChunkEmbeddingText(title, text))
	if err != nil {
		return nil, domain.ErrEmbeddingUnavailable.WithCause(err)
	}

	chunk := &domain.Chunk{
		ID:             s.uuidGen.NewString(),
		Title:          title,
		Text:           text,
		Embedding:      vec,
		EmbeddingModel: s.embedder.Model(),
		CreatedAt:      s.now(),
	}
	if err := s.store.Put(ctx, chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}

// DocumentURL returns a short-lived download link for the archived original
// of documentID. Without an archive every document is reported missing.
func (s *KnowledgeService) DocumentURL(ctx context.Context, documentID string) (string, error) {
	if s.archive == nil {
		return "", domain.ErrDocumentNotFound
	}

	key, err := s.archive.FindDocumentKey(ctx, documentID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", domain.ErrDocumentNotFound
		}
		return "", domain.ErrStorageOperationFail.WithCause(err)
	}

	url, err := s.archive.GenerateDownloadURL(ctx, key)
	if err != nil {
		return "", domain.ErrStorageOperationFail.WithCause(err)
	}
	return url, nil
}

// Delete removes a chunk. Feedback that cites it is left untouched.
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Delete", telemetry.SpanAttributes{
		ChunkID:   id,
		Operation: "delete",
	})
	defer span.End()

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		span.SetError(err)
		return err
	}
	if !deleted {
		return domain.ErrChunkNotFound
	}
	return nil
}

type ListChunksInput struct {
	Cursor string
	Limit  int
}

// List pages through chunks in insertion order.
func (s *KnowledgeService) List(ctx context.Context, input ListChunksInput) (*domain.ChunkPage, error) {
	cursor, err := pagination.Decode(input.Cursor)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, domain.ErrInvalidCursor
		}
		return nil, err
	}

	limit := pagination.ClampLimit(input.Limit)
	items, err := s.store.List(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}

	items, next, more := pagination.Trim(items, limit, func(c *domain.Chunk) pagination.Cursor {
		return pagination.Cursor{Seq: c.Seq, ID: c.ID}
	})
	return &domain.ChunkPage{Items: items, Cursor: next, HasMore: more}, nil
}

func documentTitle(filename string) string {
	name := strings.TrimSpace(filename)
	if name == "" {
		return "Untitled document"
	}
	return name
}

// buildChunkEmbeddingText prefixes the chunk with its document title.
func buildChunkEmbeddingText(title, chunk string) string {
	parts := make([]string, 0, 2)
	if title != "" {
		parts = append(parts, title)
	}
	parts = append(parts, chunk)
	return strings.Join(parts, "\n\n")
}
