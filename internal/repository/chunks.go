package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// chunkWriteLock serializes chunk writers so the embedding-model check and
// the insert see a consistent store.
const chunkWriteLock = 7_301_001

// ChunkRepository stores knowledge chunks and runs cosine searches with pgvector.
type ChunkRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool, tx: NewTxRunner(pool)}
}

func (r *ChunkRepository) Put(ctx context.Context, chunk *domain.Chunk) error {
	return r.PutBatch(ctx, []*domain.Chunk{chunk})
}

// PutBatch inserts every chunk in one transaction.
func (r *ChunkRepository) PutBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if c.ID == "" || c.EmbeddingModel == "" {
			return domain.ErrMissingRequiredField
		}
	}

	return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, chunkWriteLock); err != nil {
			return err
		}

		for _, c := range chunks {
			if err := checkModel(ctx, tx, c.EmbeddingModel); err != nil {
				return err
			}
		}

		for _, c := range chunks {
			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			err := tx.QueryRow(ctx,
				`INSERT INTO knowledge_chunks
					(id, document_id, chunk_index, title, content, embedding, embedding_model, created_at)
				 VALUES
					($1, $2, $3, $4, $5, $6, $7, $8)
				 RETURNING seq, created_at`,
				c.ID,
				nullableString(c.DocumentID),
				c.ChunkIndex,
				c.Title,
				c.Text,
				pgvector.NewVector(c.Embedding),
				c.EmbeddingModel,
				createdAt,
			).Scan(&c.Seq, &c.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// checkModel fails when any stored chunk was embedded with a different model.
func checkModel(ctx context.Context, db dbtx, model string) error {
	var mismatch bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM knowledge_chunks WHERE embedding_model <> $1)`,
		model,
	).Scan(&mismatch)
	if err != nil {
		return err
	}
	if mismatch {
		return domain.ErrEmbeddingVersionMismatch
	}
	return nil
}

func (r *ChunkRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM knowledge_chunks WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const chunkColumns = `id, document_id, chunk_index, title, content, embedding, embedding_model, seq, created_at`

func scanChunk(row pgx.Row) (*domain.Chunk, error) {
	var c domain.Chunk
	var documentID *string
	var embedding pgvector.Vector
	if err := row.Scan(&c.ID, &documentID, &c.ChunkIndex, &c.Title, &c.Text, &embedding, &c.EmbeddingModel, &c.Seq, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.DocumentID = derefString(documentID)
	c.Embedding = embedding.Slice()
	return &c, nil
}

func (r *ChunkRepository) Get(ctx context.Context, id string) (*domain.Chunk, error) {
	c, err := scanChunk(r.pool.QueryRow(ctx, `SELECT `+chunkColumns+` FROM knowledge_chunks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *ChunkRepository) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id FROM knowledge_chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// List returns up to limit+1 chunks after cursor in insertion order.
func (r *ChunkRepository) List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.Chunk, error) {
	var after int64
	if cursor != nil {
		after = cursor.Seq
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM knowledge_chunks
		 WHERE seq > $1
		 ORDER BY seq
		 LIMIT $2`,
		after, limit+1,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SimilaritySearch ranks chunks by cosine similarity (1 - cosine distance),
// breaking ties by insertion order.
func (r *ChunkRepository) SimilaritySearch(ctx context.Context, query domain.QueryEmbedding, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	var models []string
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT embedding_model FROM knowledge_chunks`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			rows.Close()
			return nil, err
		}
		models = append(models, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	for _, m := range models {
		if m != query.Model {
			return nil, domain.ErrEmbeddingVersionMismatch
		}
	}

	rows, err = r.pool.Query(ctx,
		`SELECT id, title, content, 1 - (embedding <=> $1) AS score
		 FROM knowledge_chunks
		 WHERE embedding_model = $2
		 ORDER BY embedding <=> $1, seq
		 LIMIT $3`,
		pgvector.NewVector(query.Vector), query.Model, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ScoredChunk, 0, k)
	for rows.Next() {
		var sc domain.ScoredChunk
		if err := rows.Scan(&sc.ChunkID, &sc.Title, &sc.Text, &sc.Score); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
