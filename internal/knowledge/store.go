// Package knowledge manages the chunks table: embedding generation on write
// and cosine-similarity search on read, backed by PostgreSQL + pgvector.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// Querier defines the database operations Store needs. The interface lives
// here, with the consumer, so tests can substitute a mock and the pgx
// implementation stays swappable.
type Querier interface {
	// InsertChunk inserts a chunk row with its embedding.
	InsertChunk(ctx context.Context, arg InsertChunkParams) error

	// SearchChunks returns the topK nearest chunks by cosine distance.
	SearchChunks(ctx context.Context, embedding pgvector.Vector, topK int32) ([]SearchChunksRow, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int64, error)

	// TruncateChunks removes all chunks.
	TruncateChunks(ctx context.Context) error

	// DeleteChunk removes one chunk by ID.
	DeleteChunk(ctx context.Context, id string) error
}

// InsertChunkParams carries one chunk row.
type InsertChunkParams struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
	Metadata  []byte
	CreatedAt time.Time
}

// SearchChunksRow is one row of a similarity search.
type SearchChunksRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  time.Time
	Similarity float32
}

// Store embeds chunk content on write and performs vector search on read.
// Safe for concurrent use: it holds no mutable state of its own.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds the chunk content and inserts the row.
func (s *Store) Add(ctx context.Context, chunk Chunk) error {
	embedding, err := s.embed(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embedding chunk %q: %w", chunk.ID, err)
	}

	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for chunk %q: %w", chunk.ID, err)
	}

	createdAt := chunk.CreateAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if err := s.queries.InsertChunk(ctx, InsertChunkParams{
		ID:        chunk.ID,
		Content:   chunk.Content,
		Embedding: embedding,
		Metadata:  metadataJSON,
		CreatedAt: createdAt,
	}); err != nil {
		return fmt.Errorf("inserting chunk %q: %w", chunk.ID, err)
	}

	s.logger.Debug("added chunk", "id", chunk.ID, "content_length", len(chunk.Content))
	return nil
}

// Search embeds the query and returns the most similar chunks, ordered by
// similarity descending. A per-search timeout keeps slow vector queries
// from blocking the pipeline.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.queries.SearchChunks(queryCtx, embedding, cfg.topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]string
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", row.ID, "error", err)
			metadata = make(map[string]string)
		}
		results = append(results, Result{
			Chunk: Chunk{
				ID:       row.ID,
				Content:  row.Content,
				Metadata: metadata,
				CreateAt: row.CreatedAt,
			},
			Similarity: row.Similarity,
		})
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	if count > math.MaxInt {
		return 0, fmt.Errorf("chunk count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Truncate removes every stored chunk. Used before re-indexing so stale
// chunks never survive an embedding run.
func (s *Store) Truncate(ctx context.Context) error {
	if err := s.queries.TruncateChunks(ctx); err != nil {
		return fmt.Errorf("truncating chunks: %w", err)
	}
	s.logger.Debug("truncated chunks table")
	return nil
}

// Delete removes one chunk by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.queries.DeleteChunk(ctx, id); err != nil {
		return fmt.Errorf("deleting chunk %q: %w", id, err)
	}
	s.logger.Debug("deleted chunk", "id", id)
	return nil
}

// embed generates one embedding vector for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("embedder returned an empty embedding")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
