// Package rag wires the retrieval-augmented-generation pipeline: indexing
// documents into the vector store and answering questions grounded on
// retrieved chunks.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ragstack/ragdemo/internal/chunker"
	"github.com/ragstack/ragdemo/internal/knowledge"
)

// ChunkStore defines the storage operations the Indexer needs. The
// interface is declared by the consumer so tests can substitute a mock;
// *knowledge.Store satisfies it.
type ChunkStore interface {
	// Add stores one chunk, generating its embedding.
	Add(ctx context.Context, chunk knowledge.Chunk) error

	// Truncate removes all stored chunks.
	Truncate(ctx context.Context) error
}

// defaultSupportedExtensions are the file types indexed by default.
var defaultSupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".go":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".java": true,
	".rs":   true,
	".sh":   true,
	".yaml": true,
	".yml":  true,
	".json": true,
	".html": true,
	".sql":  true,
}

// maxFileSize skips pathological inputs; chunking handles everything below.
const maxFileSize = 10 << 20 // 10MB

// IndexResult summarizes one indexing run.
type IndexResult struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	ChunksAdded  int
	TotalSize    int64
	Duration     time.Duration
}

// Indexer chunks source files and stores the chunks with embeddings.
type Indexer struct {
	store               ChunkStore
	chunking            chunker.Config
	supportedExtensions map[string]bool
	logger              *slog.Logger
}

// NewIndexer creates an Indexer. extensions optionally replaces the default
// supported file extensions; nil logger falls back to slog.Default().
func NewIndexer(store ChunkStore, chunking chunker.Config, extensions []string, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}

	extMap := make(map[string]bool)
	if len(extensions) > 0 {
		for _, ext := range extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		// Copy the defaults so instances never share a map.
		for k, v := range defaultSupportedExtensions {
			extMap[k] = v
		}
	}

	return &Indexer{
		store:               store,
		chunking:            chunking,
		supportedExtensions: extMap,
		logger:              logger,
	}
}

// IndexDirectory truncates the store and indexes every supported file under
// dir. Individual file failures are counted, not fatal; the walk continues.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string) (*IndexResult, error) {
	startTime := time.Now()
	result := &IndexResult{}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}

	// os.Root confines all reads to the data directory, preventing symlink
	// escapes and path traversal.
	root, err := os.OpenRoot(absDir)
	if err != nil {
		return nil, fmt.Errorf("opening data directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	// Stale chunks must not survive a re-index.
	if err := idx.store.Truncate(ctx); err != nil {
		return nil, fmt.Errorf("clearing chunk store: %w", err)
	}
	idx.logger.Info("cleared chunk store, indexing", "dir", absDir)

	err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.FilesFailed++
			return nil // keep walking
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !idx.supportedExtensions[ext] || info.Size() > maxFileSize {
			result.FilesSkipped++
			return nil
		}

		relPath, err := filepath.Rel(absDir, path)
		if err != nil {
			result.FilesFailed++
			return nil
		}

		content, err := root.ReadFile(relPath)
		if err != nil {
			result.FilesFailed++
			return nil
		}

		added, err := idx.indexContent(ctx, path, string(content))
		if err != nil {
			idx.logger.Warn("failed to index file", "file", relPath, "error", err)
			result.FilesFailed++
			return nil
		}

		result.FilesAdded++
		result.ChunksAdded += added
		result.TotalSize += info.Size()
		idx.logger.Debug("indexed file", "file", relPath, "chunks", added)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking data directory: %w", err)
	}

	result.Duration = time.Since(startTime)
	return result, nil
}

// IndexFile chunks and stores a single file without truncating the store.
// Returns the number of chunks added.
func (idx *Indexer) IndexFile(ctx context.Context, filePath string) (int, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("path is a directory, use IndexDirectory instead")
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if !idx.supportedExtensions[ext] {
		return 0, fmt.Errorf("unsupported file type: %s", ext)
	}
	if info.Size() > maxFileSize {
		return 0, fmt.Errorf("file %s (%d bytes) exceeds the %d byte limit", filepath.Base(absPath), info.Size(), maxFileSize)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	return idx.indexContent(ctx, absPath, string(content))
}

// indexContent chunks one document and stores each chunk.
func (idx *Indexer) indexContent(ctx context.Context, absPath, content string) (int, error) {
	chunks, err := chunker.Split(content, idx.chunking)
	if err != nil {
		return 0, fmt.Errorf("chunking %s: %w", filepath.Base(absPath), err)
	}

	docID := generateDocID(absPath)
	now := time.Now()

	for i, text := range chunks {
		chunk := knowledge.Chunk{
			ID:      docID + ":" + strconv.Itoa(i),
			Content: text,
			Metadata: map[string]string{
				"file_path":   absPath,
				"file_name":   filepath.Base(absPath),
				"chunk_index": strconv.Itoa(i),
				"strategy":    string(idx.chunking.Strategy),
				"indexed_at":  now.Format(time.RFC3339),
			},
			CreateAt: now,
		}
		if err := idx.store.Add(ctx, chunk); err != nil {
			return i, fmt.Errorf("storing chunk %d of %s: %w", i, filepath.Base(absPath), err)
		}
	}

	return len(chunks), nil
}

// generateDocID derives a stable document ID from the absolute file path,
// so re-indexing a file overwrites its previous chunks.
func generateDocID(absPath string) string {
	hash := sha256.Sum256([]byte(absPath))
	return "file_" + hex.EncodeToString(hash[:16])
}
