package knowledge

import (
	"time"
)

// Chunk is one embedded segment of a source document.
type Chunk struct {
	ID       string            // Unique identifier
	Content  string            // Chunk text
	Metadata map[string]string // Source file, chunk index, strategy, etc.
	CreateAt time.Time         // Creation timestamp
}

// Result is a single search hit with its similarity score.
type Result struct {
	Chunk      Chunk
	Similarity float32 // Cosine similarity (0-1, higher is closer)
}

// SearchOption configures Search using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int32
	timeout time.Duration
}

// WithTopK sets the maximum number of results. Default is 5.
func WithTopK(k int32) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithTimeout overrides the per-search timeout. Default is 10 seconds.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// ResolveTopK reports the result limit a set of options would apply,
// including the default. It lets alternative Searcher implementations
// honor the same limit the store would.
func ResolveTopK(opts ...SearchOption) int32 {
	return buildSearchConfig(opts).topK
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
