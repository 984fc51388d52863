// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragdemo/config.yaml or ./config.yaml)
//  3. Default values
//
// The loaded Config is constructed once and passed explicitly to every
// component; nothing reads configuration from globals after startup.
// Sensitive values (database password, inference API key) are masked in
// MarshalJSON so a printed Config never leaks secrets.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ragstack/ragdemo/internal/chunker"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

const (
	// DefaultEmbedderModel is the default embedding model.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultRetrievalTopK is the first-stage vector search width when
	// reranking is enabled. Wide retrieval maximizes recall; the reranker
	// narrows it down.
	DefaultRetrievalTopK = 25

	// DefaultRerankTopN is the number of chunks kept after reranking (and
	// the retrieval width when reranking is disabled).
	DefaultRerankTopN = 5
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON. When
// adding new secrets, update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"` // "gemini" (default) or "ollama"
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Indexing configuration
	DataDir          string `mapstructure:"data_dir" json:"data_dir"`
	ChunkingStrategy string `mapstructure:"chunking_strategy" json:"chunking_strategy"`
	ChunkSize        int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap     int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval configuration
	UseReranker   bool   `mapstructure:"use_reranker" json:"use_reranker"`
	RetrievalTopK int    `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	RerankTopN    int    `mapstructure:"rerank_top_n" json:"rerank_top_n"`
	RerankerModel string `mapstructure:"reranker_model" json:"reranker_model"`
	HFAPIKey      string `mapstructure:"hf_api_key" json:"hf_api_key"` // SENSITIVE: masked in MarshalJSON

	// Query router guardrail
	RouterEnabled   bool `mapstructure:"router_enabled" json:"router_enabled"`
	RouterMaxLength int  `mapstructure:"router_max_length" json:"router_max_length"`

	// MCP integration
	MCPConfigPath string `mapstructure:"mcp_config_path" json:"mcp_config_path"`

	// Observability (OTLP trace export, optional)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// TracingConfig configures optional OTLP trace export to a local agent.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"` // host:port of the OTLP HTTP receiver; empty disables tracing
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragdemo")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults plus env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL has highest priority for PostgreSQL settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 6432)
	viper.SetDefault("postgres_user", "postgres")
	viper.SetDefault("postgres_password", "postgres")
	viper.SetDefault("postgres_db_name", "rag_demo")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Indexing defaults
	viper.SetDefault("data_dir", "data")
	viper.SetDefault("chunking_strategy", string(chunker.StrategyRecursiveCharacter))
	viper.SetDefault("chunk_size", chunker.DefaultChunkSize)
	viper.SetDefault("chunk_overlap", chunker.DefaultChunkOverlap)

	// Retrieval defaults
	viper.SetDefault("use_reranker", false)
	viper.SetDefault("retrieval_top_k", DefaultRetrievalTopK)
	viper.SetDefault("rerank_top_n", DefaultRerankTopN)
	viper.SetDefault("reranker_model", "BAAI/bge-reranker-base")

	// Query router defaults
	viper.SetDefault("router_enabled", true)
	viper.SetDefault("router_max_length", 2048)

	// MCP defaults
	viper.SetDefault("mcp_config_path", "mcp.config.json")

	// Tracing defaults (disabled until an endpoint is configured)
	viper.SetDefault("tracing.endpoint", "")
	viper.SetDefault("tracing.service_name", "ragdemo")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
//
// Secrets:
//   - HF_API_KEY: inference API token for the reranker
//   - GEMINI_API_KEY: read directly by Genkit, validated in cfg.Validate()
//   - DATABASE_URL: parsed separately in parseDatabaseURL
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		// Hardcoded keys cannot fail to bind; a panic here is a bug.
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("hf_api_key", "HF_API_KEY")
	mustBind("provider", "RAGDEMO_PROVIDER")
	mustBind("model_name", "RAGDEMO_MODEL_NAME")
	mustBind("embedder_model", "RAGDEMO_EMBEDDER_MODEL")
	mustBind("ollama_host", "RAGDEMO_OLLAMA_HOST")
	mustBind("data_dir", "RAGDEMO_DATA_DIR")
	mustBind("tracing.endpoint", "RAGDEMO_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility. This defends against accidental logging, not log compromise.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.HFAPIKey = maskSecret(a.HFAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3". If ModelName
// already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	if c.Provider == ProviderOllama {
		return ProviderOllama + "/" + c.ModelName
	}
	return "googleai/" + c.ModelName
}

// ChunkerConfig assembles the chunking parameters for the chunker package.
func (c *Config) ChunkerConfig() chunker.Config {
	return chunker.Config{
		ChunkSize:    c.ChunkSize,
		ChunkOverlap: c.ChunkOverlap,
		Strategy:     chunker.Strategy(c.ChunkingStrategy),
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
