// Package chunker splits source text into chunks suitable for embedding.
//
// Three strategies are provided:
//   - recursive_character: splits on structural boundaries (paragraphs,
//     lines, sentences, words) with overlap; the default.
//   - sentence_transformer: sentence-boundary splitter with a token budget
//     per chunk, approximating token-based splitting without a model.
//   - naive: fixed-width character slices, kept for comparison only.
package chunker

import (
	"fmt"
	"strings"
)

// Strategy selects a chunking algorithm.
type Strategy string

const (
	// StrategyRecursiveCharacter splits on structural separators with overlap.
	StrategyRecursiveCharacter Strategy = "recursive_character"

	// StrategySentenceTransformer splits on sentence boundaries with a
	// token budget per chunk.
	StrategySentenceTransformer Strategy = "sentence_transformer"

	// StrategyNaive slices text into fixed-width chunks with no overlap.
	StrategyNaive Strategy = "naive"
)

// Default chunking parameters. 1024 with 200 overlap gives better retrieval
// granularity than large non-overlapping chunks.
const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 200
)

// ParseStrategy validates a strategy name from a CLI flag or config value.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRecursiveCharacter, StrategySentenceTransformer, StrategyNaive:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown chunking strategy: %q (valid: recursive_character, sentence_transformer, naive)", s)
	}
}

// Config holds chunking parameters.
type Config struct {
	// ChunkSize is the target chunk size: characters for recursive_character
	// and naive, approximate tokens for sentence_transformer.
	ChunkSize int

	// ChunkOverlap is the overlap between adjacent chunks, in the same unit
	// as ChunkSize. Ignored by naive.
	ChunkOverlap int

	Strategy Strategy
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Strategy:     StrategyRecursiveCharacter,
	}
}

// Validate checks parameter sanity.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	return nil
}

// Split chunks text using the configured strategy.
// Empty or whitespace-only text yields no chunks.
func Split(text string, cfg Config) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	switch cfg.Strategy {
	case StrategyNaive:
		return splitNaive(text, cfg.ChunkSize), nil
	case StrategyRecursiveCharacter:
		return splitRecursiveCharacter(text, cfg.ChunkSize, cfg.ChunkOverlap), nil
	case StrategySentenceTransformer:
		return splitSentences(text, cfg.ChunkSize, cfg.ChunkOverlap), nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy: %q", cfg.Strategy)
	}
}

// splitNaive slices text into fixed-width rune chunks. No overlap, no
// respect for boundaries. Kept for comparison with the smarter strategies.
func splitNaive(text string, size int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
