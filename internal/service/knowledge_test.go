package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/hashembed"
	"github.com/cloo-solutions/ticketassist/internal/memstore"
	"github.com/cloo-solutions/ticketassist/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func longDocument() string {
	paragraphs := []string{
		"To reset your password open the login page and choose forgot password.",
		"A reset link is emailed to the address on file and expires after one hour.",
		"Refunds are issued to the original payment method within five business days.",
		"Invoices can be downloaded from the billing section of account settings.",
		"If the mobile app crashes on start, reinstall it and sign in again.",
	}
	return strings.Repeat(strings.Join(paragraphs, " ")+"\n\n", 3)
}

func newKnowledgeService(store KnowledgeStore, embedder EmbeddingClient, archive DocumentArchive) *KnowledgeService {
	cfg := KnowledgeServiceConfig{
		Store:    store,
		Embedder: embedder,
		Chunking: NewChunkConfig(200, 50, 0),
		UUIDGen:  &sequenceUUID{prefix: "id"},
		Logger:   zerolog.Nop(),
	}
	if archive != nil {
		cfg.Archive = archive
	}
	return NewKnowledgeService(cfg)
}

func TestIngest_Success(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewKnowledgeStore()
	archive := new(MockDocumentArchive)
	archive.On("PutObject", mock.Anything, "documents/id-1/faq.txt", "text/plain", mock.Anything).Return(nil)

	svc := newKnowledgeService(store, hashembed.New(64), archive)
	result := svc.Ingest(ctx, IngestInput{
		Filename:    "faq.txt",
		ContentType: "text/plain",
		Data:        []byte(longDocument()),
	})

	require.Equal(t, domain.IngestStatusSuccess, result.Status, result.Error)
	assert.Equal(t, "id-1", result.DocumentID)
	assert.Greater(t, result.ChunksAdded, 1)

	page, err := svc.List(ctx, ListChunksInput{Limit: 200})
	require.NoError(t, err)
	require.Len(t, page.Items, result.ChunksAdded)
	for i, c := range page.Items {
		assert.Equal(t, "id-1", c.DocumentID)
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "faq.txt", c.Title)
		assert.Equal(t, hashembed.Model, c.EmbeddingModel)
	}
	archive.AssertExpectations(t)
}

func TestIngest_EmptyDocument(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewKnowledgeStore()
	svc := newKnowledgeService(store, hashembed.New(64), nil)

	result := svc.Ingest(ctx, IngestInput{Filename: "blank.txt", Data: []byte("  \n\t ")})

	assert.Equal(t, domain.IngestStatusFailure, result.Status)
	assert.Equal(t, 0, result.ChunksAdded)
	assert.NotEmpty(t, result.Error)

	page, err := svc.List(ctx, ListChunksInput{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestIngest_UnsupportedBinary(t *testing.T) {
	svc := newKnowledgeService(memstore.NewKnowledgeStore(), hashembed.New(64), nil)

	result := svc.Ingest(context.Background(), IngestInput{
		Filename:    "manual.pdf",
		ContentType: "application/pdf",
		Data:        []byte{0x25, 0x50, 0x44, 0x46, 0xff, 0xfe},
	})

	assert.Equal(t, domain.IngestStatusFailure, result.Status)
	assert.Equal(t, ErrUnsupportedDocument.Error(), result.Error)
}

func TestIngest_ClientTextWinsOverBytes(t *testing.T) {
	ctx := context.Background()
	svc := newKnowledgeService(memstore.NewKnowledgeStore(), hashembed.New(64), nil)

	result := svc.Ingest(ctx, IngestInput{
		Filename:    "manual.pdf",
		ContentType: "application/pdf",
		Data:        []byte{0xff, 0xfe},
		Text:        "Hold the power button for ten seconds to restart the router.",
	})

	require.Equal(t, domain.IngestStatusSuccess, result.Status, result.Error)
	assert.Equal(t, 1, result.ChunksAdded)
}

func TestIngest_EmbeddingFailureLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewKnowledgeStore()
	embedder := new(MockEmbeddingClient)
	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil).Once()
	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	svc := newKnowledgeService(store, embedder, nil)
	result := svc.Ingest(ctx, IngestInput{Filename: "faq.md", Data: []byte(longDocument())})

	assert.Equal(t, domain.IngestStatusFailure, result.Status)
	assert.Equal(t, 0, result.ChunksAdded)

	page, err := svc.List(ctx, ListChunksInput{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestIngest_WriteFailureRemovesArchivedOriginal(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewKnowledgeStore()
	require.NoError(t, store.Put(ctx, &domain.Chunk{ID: "old", Text: "x", Embedding: []float32{1}, EmbeddingModel: "other-model"}))

	archive := new(MockDocumentArchive)
	archive.On("PutObject", mock.Anything, "documents/id-1/faq.txt", "", mock.Anything).Return(nil)
	archive.On("DeleteObject", mock.Anything, "documents/id-1/faq.txt").Return(nil)

	svc := newKnowledgeService(store, hashembed.New(64), archive)
	result := svc.Ingest(ctx, IngestInput{Filename: "faq.txt", Data: []byte("Refunds take five days.")})

	assert.Equal(t, domain.IngestStatusFailure, result.Status)
	assert.Equal(t, domain.ErrEmbeddingVersionMismatch.Error(), result.Error)
	archive.AssertExpectations(t)

	page, err := svc.List(ctx, ListChunksInput{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestIngest_ArchiveFailureDoesNotBlockIngestion(t *testing.T) {
	archive := new(MockDocumentArchive)
	archive.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket missing"))

	svc := newKnowledgeService(memstore.NewKnowledgeStore(), hashembed.New(64), archive)
	result := svc.Ingest(context.Background(), IngestInput{Filename: "faq.txt", Data: []byte("Refunds take five days.")})

	assert.Equal(t, domain.IngestStatusSuccess, result.Status)
	archive.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything)
}

func TestKnowledgeService_AddChunk(t *testing.T) {
	ctx := context.Background()
	svc := newKnowledgeService(memstore.NewKnowledgeStore(), hashembed.New(64), nil)

	c, err := svc.AddChunk(ctx, "Passwords", "Use the forgot password link.")
	require.NoError(t, err)
	assert.Equal(t, "id-1", c.ID)
	assert.Len(t, c.Embedding, 64)

	_, err = svc.AddChunk(ctx, "Empty", "   ")
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestKnowledgeService_Delete(t *testing.T) {
	ctx := context.Background()
	svc := newKnowledgeService(memstore.NewKnowledgeStore(), hashembed.New(64), nil)

	c, err := svc.AddChunk(ctx, "Refunds", "Refunds take five business days.")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, c.ID))
	assert.ErrorIs(t, svc.Delete(ctx, c.ID), domain.ErrChunkNotFound)
}

func TestKnowledgeService_ListPaginates(t *testing.T) {
	ctx := context.Background()
	svc := newKnowledgeService(memstore.NewKnowledgeStore(), hashembed.New(64), nil)
	for i := 0; i < 5; i++ {
		_, err := svc.AddChunk(ctx, "", "chunk text number "+string(rune('a'+i)))
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, ListChunksInput{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.Cursor)

	var seen []string
	page := first
	for {
		for _, c := range page.Items {
			seen = append(seen, c.ID)
		}
		if !page.HasMore {
			break
		}
		page, err = svc.List(ctx, ListChunksInput{Cursor: page.Cursor, Limit: 2})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"id-1", "id-2", "id-3", "id-4", "id-5"}, seen)
}

func TestKnowledgeService_ListInvalidCursor(t *testing.T) {
	svc := newKnowledgeService(memstore.NewKnowledgeStore(), hashembed.New(64), nil)

	_, err := svc.List(context.Background(), ListChunksInput{Cursor: "%%%"})
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestNewKnowledgeService_ZeroChunkingUsesDefault(t *testing.T) {
	svc := NewKnowledgeService(KnowledgeServiceConfig{
		Store:    memstore.NewKnowledgeStore(),
		Embedder: hashembed.New(64),
		Logger:   zerolog.Nop(),
	})
	assert.Equal(t, DefaultChunkConfig(), svc.chunkCfg)

	result := svc.Ingest(context.Background(), IngestInput{Filename: "faq.txt", Data: []byte(longDocument())})
	require.Equal(t, domain.IngestStatusSuccess, result.Status, result.Error)
	assert.Equal(t, 1, result.ChunksAdded)
}

func TestIngest_MaxChunksCapsDocument(t *testing.T) {
	ctx := context.Background()
	svc := NewKnowledgeService(KnowledgeServiceConfig{
		Store:    memstore.NewKnowledgeStore(),
		Embedder: hashembed.New(64),
		Chunking: NewChunkConfig(200, 50, 2),
		UUIDGen:  &sequenceUUID{prefix: "id"},
		Logger:   zerolog.Nop(),
	})

	result := svc.Ingest(ctx, IngestInput{Filename: "faq.txt", Data: []byte(longDocument())})
	require.Equal(t, domain.IngestStatusSuccess, result.Status, result.Error)
	assert.Equal(t, 2, result.ChunksAdded)
}

func TestKnowledgeService_DocumentURL(t *testing.T) {
	ctx := context.Background()
	archive := new(MockDocumentArchive)
	archive.On("FindDocumentKey", mock.Anything, "doc-1").Return("documents/doc-1/faq.md", nil)
	archive.On("GenerateDownloadURL", mock.Anything, "documents/doc-1/faq.md").Return("https://s3.local/documents/doc-1/faq.md?sig", nil)
	archive.On("FindDocumentKey", mock.Anything, "doc-2").Return("", storage.ErrObjectNotFound)
	archive.On("FindDocumentKey", mock.Anything, "doc-3").Return("", errors.New("connection refused"))

	svc := newKnowledgeService(memstore.NewKnowledgeStore(), hashembed.New(64), archive)

	url, err := svc.DocumentURL(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.local/documents/doc-1/faq.md?sig", url)

	_, err = svc.DocumentURL(ctx, "doc-2")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	_, err = svc.DocumentURL(ctx, "doc-3")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDocumentNotFound)
	archive.AssertExpectations(t)
}

func TestKnowledgeService_DocumentURLWithoutArchive(t *testing.T) {
	svc := newKnowledgeService(memstore.NewKnowledgeStore(), hashembed.New(64), nil)

	_, err := svc.DocumentURL(context.Background(), "doc-1")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
