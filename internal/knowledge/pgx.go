package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgxQuerier implements Querier against PostgreSQL + pgvector via pgx.
// The pool is owned by the caller; PgxQuerier never closes it.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxQuerier wraps a connection pool.
func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

const insertChunkSQL = `
INSERT INTO chunks (id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata,
    created_at = EXCLUDED.created_at`

// InsertChunk upserts one chunk row, replacing any previous version.
func (q *PgxQuerier) InsertChunk(ctx context.Context, arg InsertChunkParams) error {
	createdAt := pgtype.Timestamptz{Time: arg.CreatedAt, Valid: !arg.CreatedAt.IsZero()}
	_, err := q.pool.Exec(ctx, insertChunkSQL,
		arg.ID, arg.Content, arg.Embedding, arg.Metadata, createdAt)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// Cosine distance (<=>) is 0 for identical direction; similarity is 1-distance.
// Ordering by distance ascending returns the closest chunks first.
const searchChunksSQL = `
SELECT id, content, metadata, created_at,
       1 - (embedding <=> $1) AS similarity
FROM chunks
ORDER BY embedding <=> $1
LIMIT $2`

// SearchChunks returns the topK nearest chunks to the given embedding.
func (q *PgxQuerier) SearchChunks(ctx context.Context, embedding pgvector.Vector, topK int32) ([]SearchChunksRow, error) {
	rows, err := q.pool.Query(ctx, searchChunksSQL, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var result []SearchChunksRow
	for rows.Next() {
		var row SearchChunksRow
		var createdAt pgtype.Timestamptz
		var similarity float64
		if err := rows.Scan(&row.ID, &row.Content, &row.Metadata, &createdAt, &similarity); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		if createdAt.Valid {
			row.CreatedAt = createdAt.Time
		}
		row.Similarity = float32(similarity)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return result, nil
}

// CountChunks returns the number of stored chunks.
func (q *PgxQuerier) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// TruncateChunks removes all chunk rows.
func (q *PgxQuerier) TruncateChunks(ctx context.Context) error {
	if _, err := q.pool.Exec(ctx, `TRUNCATE TABLE chunks`); err != nil {
		return fmt.Errorf("truncate chunks: %w", err)
	}
	return nil
}

// DeleteChunk removes one chunk row by ID.
func (q *PgxQuerier) DeleteChunk(ctx context.Context, id string) error {
	if _, err := q.pool.Exec(ctx, `DELETE FROM chunks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete chunk: %w", err)
	}
	return nil
}
