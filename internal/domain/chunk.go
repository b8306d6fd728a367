package domain

import "time"

// Chunk is a unit of retrievable knowledge. Chunks are immutable once stored.
type Chunk struct {
	ID             string
	DocumentID     string
	ChunkIndex     int
	Title          string
	Text           string
	Embedding      []float32
	EmbeddingModel string
	Seq            int64
	CreatedAt      time.Time
}

// ScoredChunk is a search hit. It carries the chunk data by value so a
// concurrent delete can never leave the caller holding a dangling id.
type ScoredChunk struct {
	ChunkID string
	Title   string
	Text    string
	Score   float64
}

// QueryEmbedding is a query vector tagged with the model that produced it.
type QueryEmbedding struct {
	Vector []float32
	Model  string
}

// ChunkPage is one page of a chunk listing.
type ChunkPage struct {
	Items   []*Chunk
	Cursor  string
	HasMore bool
}

// IngestStatus is the outcome of a document ingestion.
type IngestStatus string

const (
	IngestStatusSuccess IngestStatus = "success"
	IngestStatusFailure IngestStatus = "failure"
)

// IngestResult reports how a document upload went.
type IngestResult struct {
	Status      IngestStatus
	ChunksAdded int
	DocumentID  string
	Error       string
}
