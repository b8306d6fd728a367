// Package memstore holds in-process implementations of the ticket, knowledge
// and feedback stores. They are used when no database is configured and back
// most service tests.
package memstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/pagination"
)

// KnowledgeStore keeps chunks in insertion order.
type KnowledgeStore struct {
	mu      sync.RWMutex
	chunks  []*domain.Chunk
	byID    map[string]*domain.Chunk
	models  map[string]int
	nextSeq int64
	now     func() time.Time
}

func NewKnowledgeStore() *KnowledgeStore {
	return &KnowledgeStore{
		byID:   make(map[string]*domain.Chunk),
		models: make(map[string]int),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *KnowledgeStore) Put(ctx context.Context, chunk *domain.Chunk) error {
	return s.PutBatch(ctx, []*domain.Chunk{chunk})
}

func (s *KnowledgeStore) PutBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if c.ID == "" || c.EmbeddingModel == "" {
			return domain.ErrMissingRequiredField
		}
		if err := s.checkModelLocked(c.EmbeddingModel); err != nil {
			return err
		}
	}

	now := s.now()
	for _, c := range chunks {
		s.nextSeq++
		stored := cloneChunk(c)
		stored.Seq = s.nextSeq
		stored.CreatedAt = now
		c.Seq = stored.Seq
		c.CreatedAt = now
		s.chunks = append(s.chunks, stored)
		s.byID[stored.ID] = stored
		s.models[stored.EmbeddingModel]++
	}
	return nil
}

// checkModelLocked rejects a model that differs from what is already stored.
func (s *KnowledgeStore) checkModelLocked(model string) error {
	for m, n := range s.models {
		if n > 0 && m != model {
			return domain.ErrEmbeddingVersionMismatch
		}
	}
	return nil
}

func (s *KnowledgeStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	delete(s.byID, id)
	s.models[c.EmbeddingModel]--
	if s.models[c.EmbeddingModel] <= 0 {
		delete(s.models, c.EmbeddingModel)
	}
	for i, existing := range s.chunks {
		if existing.ID == id {
			s.chunks = append(s.chunks[:i], s.chunks[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *KnowledgeStore) Get(ctx context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrChunkNotFound
	}
	return cloneChunk(c), nil
}

func (s *KnowledgeStore) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *KnowledgeStore) List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := sort.Search(len(s.chunks), func(i int) bool {
		return cursor == nil || s.chunks[i].Seq > cursor.Seq
	})

	out := make([]*domain.Chunk, 0, limit+1)
	for _, c := range s.chunks[start:] {
		if len(out) > limit {
			break
		}
		out = append(out, cloneChunk(c))
	}
	return out, nil
}

func (s *KnowledgeStore) SimilaritySearch(ctx context.Context, query domain.QueryEmbedding, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if err := s.checkModelLocked(query.Model); err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		scored = append(scored, domain.ScoredChunk{
			ChunkID: c.ID,
			Title:   c.Title,
			Text:    c.Text,
			Score:   Cosine(query.Vector, c.Embedding),
		})
	}

	// chunks are already in insertion order, so a stable sort keeps ties in it
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero
// vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func cloneChunk(c *domain.Chunk) *domain.Chunk {
	out := *c
	out.Embedding = append([]float32(nil), c.Embedding...)
	return &out
}
