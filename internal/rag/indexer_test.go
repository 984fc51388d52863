package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ragstack/ragdemo/internal/chunker"
	"github.com/ragstack/ragdemo/internal/knowledge"
)

// mockChunkStore implements ChunkStore for testing.
type mockChunkStore struct {
	addErr      error
	truncateErr error

	addCalls      int
	truncateCalls int
	added         []knowledge.Chunk
}

func (m *mockChunkStore) Add(ctx context.Context, chunk knowledge.Chunk) error {
	m.addCalls++
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, chunk)
	return nil
}

func (m *mockChunkStore) Truncate(ctx context.Context) error {
	m.truncateCalls++
	return m.truncateErr
}

func testChunking() chunker.Config {
	return chunker.Config{
		ChunkSize:    100,
		ChunkOverlap: 20,
		Strategy:     chunker.StrategyRecursiveCharacter,
	}
}

func TestIndexer_IndexFile(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "notes.md")
	content := "Short document for indexing."
	if err := os.WriteFile(testFile, []byte(content), 0o600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	store := &mockChunkStore{}
	idx := NewIndexer(store, testChunking(), nil, nil)

	added, err := idx.IndexFile(context.Background(), testFile)
	if err != nil {
		t.Fatalf("IndexFile failed: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 chunk, got %d", added)
	}

	chunk := store.added[0]
	if chunk.Content != content {
		t.Errorf("content mismatch: got %q", chunk.Content)
	}
	if chunk.Metadata["file_name"] != "notes.md" {
		t.Errorf("file_name mismatch: got %q", chunk.Metadata["file_name"])
	}
	if chunk.Metadata["chunk_index"] != "0" {
		t.Errorf("chunk_index mismatch: got %q", chunk.Metadata["chunk_index"])
	}
	if chunk.Metadata["strategy"] != "recursive_character" {
		t.Errorf("strategy mismatch: got %q", chunk.Metadata["strategy"])
	}
	if !strings.HasPrefix(chunk.ID, "file_") || !strings.HasSuffix(chunk.ID, ":0") {
		t.Errorf("unexpected chunk ID format: %q", chunk.ID)
	}
}

func TestIndexer_IndexFile_StableIDs(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "doc.txt")
	if err := os.WriteFile(testFile, []byte("same file, indexed twice"), 0o600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	store := &mockChunkStore{}
	idx := NewIndexer(store, testChunking(), nil, nil)

	for range 2 {
		if _, err := idx.IndexFile(context.Background(), testFile); err != nil {
			t.Fatalf("IndexFile failed: %v", err)
		}
	}

	if store.added[0].ID != store.added[1].ID {
		t.Errorf("re-indexing produced different IDs: %q vs %q", store.added[0].ID, store.added[1].ID)
	}
}

func TestIndexer_IndexFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "image.png")
	if err := os.WriteFile(testFile, []byte("binary"), 0o600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	store := &mockChunkStore{}
	idx := NewIndexer(store, testChunking(), nil, nil)

	if _, err := idx.IndexFile(context.Background(), testFile); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if store.addCalls != 0 {
		t.Errorf("expected no Add calls, got %d", store.addCalls)
	}
}

func TestIndexer_IndexFile_CustomExtensions(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "data.csv")
	if err := os.WriteFile(testFile, []byte("a,b,c"), 0o600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	store := &mockChunkStore{}
	idx := NewIndexer(store, testChunking(), []string{".csv"}, nil)

	if _, err := idx.IndexFile(context.Background(), testFile); err != nil {
		t.Fatalf("IndexFile failed: %v", err)
	}
	if store.addCalls != 1 {
		t.Errorf("expected 1 Add call, got %d", store.addCalls)
	}
}

func TestIndexer_IndexFile_StoreError(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "doc.txt")
	if err := os.WriteFile(testFile, []byte("content"), 0o600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	wantErr := errors.New("embedding backend down")
	store := &mockChunkStore{addErr: wantErr}
	idx := NewIndexer(store, testChunking(), nil, nil)

	_, err := idx.IndexFile(context.Background(), testFile)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestIndexer_IndexDirectory(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	files := map[string]string{
		"a.txt":        "First document.",
		"b.md":         "Second document.",
		"sub/c.go":     "package main",
		"ignored.bin":  "\x00\x01",
		"ignored.jpeg": "not text",
	}
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	store := &mockChunkStore{}
	idx := NewIndexer(store, testChunking(), nil, nil)

	result, err := idx.IndexDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("IndexDirectory failed: %v", err)
	}

	if store.truncateCalls != 1 {
		t.Errorf("expected 1 Truncate call, got %d", store.truncateCalls)
	}
	if result.FilesAdded != 3 {
		t.Errorf("FilesAdded = %d, want 3", result.FilesAdded)
	}
	if result.FilesSkipped != 2 {
		t.Errorf("FilesSkipped = %d, want 2", result.FilesSkipped)
	}
	if result.ChunksAdded != len(store.added) {
		t.Errorf("ChunksAdded = %d, store holds %d", result.ChunksAdded, len(store.added))
	}
	if result.Duration <= 0 {
		t.Error("Duration should be positive")
	}
}

func TestIndexer_IndexDirectory_TruncateError(t *testing.T) {
	t.Parallel()

	store := &mockChunkStore{truncateErr: errors.New("connection refused")}
	idx := NewIndexer(store, testChunking(), nil, nil)

	if _, err := idx.IndexDirectory(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error when truncate fails")
	}
	if store.addCalls != 0 {
		t.Errorf("expected no Add calls after truncate failure, got %d", store.addCalls)
	}
}

func TestIndexer_IndexDirectory_MissingDir(t *testing.T) {
	t.Parallel()

	store := &mockChunkStore{}
	idx := NewIndexer(store, testChunking(), nil, nil)

	if _, err := idx.IndexDirectory(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestGenerateDocID_Deterministic(t *testing.T) {
	t.Parallel()

	a := generateDocID("/data/doc.txt")
	b := generateDocID("/data/doc.txt")
	c := generateDocID("/data/other.txt")

	if a != b {
		t.Errorf("same path produced different IDs: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different paths produced the same ID")
	}
}
