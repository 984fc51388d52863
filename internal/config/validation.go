package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/ragstack/ragdemo/internal/chunker"
)

// Sentinel errors for configuration validation. Callers branch with
// errors.Is; wrap with fmt.Errorf("%w: details", ErrXxx).
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidOllamaHost indicates the Ollama host is not a valid URL.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unknown SSL mode.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidChunking indicates chunking parameters are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates retrieval parameters are inconsistent.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")
)

// validSSLModes are the sslmode values libpq and pgx accept.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration and fails fast with a wrapped sentinel
// error on the first problem found.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini:
		// GEMINI_API_KEY is read directly by Genkit; verify presence here so
		// the failure happens before any pipeline work.
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if _, err := url.ParseRequestURI(c.OllamaHost); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (valid: gemini, ollama)", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidModelName)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	chunkCfg := chunker.Config{
		ChunkSize:    c.ChunkSize,
		ChunkOverlap: c.ChunkOverlap,
		Strategy:     chunker.Strategy(c.ChunkingStrategy),
	}
	if err := chunkCfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChunking, err)
	}

	if c.RetrievalTopK < 1 {
		return fmt.Errorf("%w: retrieval_top_k must be at least 1, got %d", ErrInvalidRetrieval, c.RetrievalTopK)
	}
	if c.RerankTopN < 1 {
		return fmt.Errorf("%w: rerank_top_n must be at least 1, got %d", ErrInvalidRetrieval, c.RerankTopN)
	}
	if c.UseReranker && c.RerankTopN > c.RetrievalTopK {
		return fmt.Errorf("%w: rerank_top_n (%d) must not exceed retrieval_top_k (%d)", ErrInvalidRetrieval, c.RerankTopN, c.RetrievalTopK)
	}
	if c.RouterMaxLength < 1 {
		return fmt.Errorf("%w: router_max_length must be positive, got %d", ErrInvalidRetrieval, c.RouterMaxLength)
	}

	return nil
}
