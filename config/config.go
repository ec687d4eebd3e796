package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for ragqa.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Answer    AnswerConfig    `yaml:"answer"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Listen         string        `yaml:"listen"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// IndexConfig controls which files the CLI picks up when indexing a directory.
type IndexConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ChunkerConfig holds chunking configuration.
type ChunkerConfig struct {
	Unit    string `yaml:"unit"` // "char" or "token"
	Size    int    `yaml:"chunk_size"`
	Overlap int    `yaml:"chunk_overlap"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // "ollama", "openai", "hash"
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"` // empty selects the provider default
	APIKeyEnv string        `yaml:"api_key_env"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Timeout   time.Duration `yaml:"timeout"`
}

// StoreConfig selects the session index backend.
type StoreConfig struct {
	Backend string       `yaml:"backend"` // "qdrant", "bolt", "memory"
	Qdrant  QdrantConfig `yaml:"qdrant"`
	Bolt    BoltConfig   `yaml:"bolt"`
}

// QdrantConfig contains connection details for a Qdrant server.
type QdrantConfig struct {
	URL       string        `yaml:"url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BoltConfig holds the location of the embedded index file.
type BoltConfig struct {
	Path string `yaml:"path"`
}

// MaxTopK bounds retrieve.top_k.
const MaxTopK = 100

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK      int           `yaml:"top_k"`
	Overfetch int           `yaml:"overfetch"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// AnswerConfig controls how references are displayed.
type AnswerConfig struct {
	PreviewRunes  int `yaml:"preview_runes"`
	MaxReferences int `yaml:"max_references"`
}

// LLMConfig holds language model configuration.
type LLMConfig struct {
	Provider      string        `yaml:"provider"` // "ollama", "openai"
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	ContextWindow int           `yaml:"context_window"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	Backoff       time.Duration `yaml:"backoff"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:         ":8000",
			RequestTimeout: 120 * time.Second,
			MaxUploadBytes: 64 << 20,
		},
		Index: IndexConfig{
			Includes: []string{"**/*.pdf", "**/*.PDF"},
			Excludes: []string{"**/.git/**", "**/node_modules/**", "**/.ragqa/**"},
		},
		Chunker: ChunkerConfig{
			Unit:    "char",
			Size:    500,
			Overlap: 50,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "all-minilm",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
			BatchSize: 32,
			Workers:   4,
			Timeout:   60 * time.Second,
		},
		Store: StoreConfig{
			Backend: "qdrant",
			Qdrant: QdrantConfig{
				URL:       "http://localhost:6333",
				APIKeyEnv: "QDRANT_API_KEY",
				Timeout:   15 * time.Second,
			},
			Bolt: BoltConfig{
				Path: ".ragqa/index.db",
			},
		},
		Retrieve: RetrieveConfig{
			TopK:      5,
			Overfetch: 2,
			CacheSize: 256,
			CacheTTL:  5 * time.Minute,
		},
		Answer: AnswerConfig{
			PreviewRunes:  300,
			MaxReferences: 3,
		},
		LLM: LLMConfig{
			Provider:      "ollama",
			Model:         "tinyllama",
			APIKeyEnv:     "OPENAI_API_KEY",
			Temperature:   0.2,
			MaxTokens:     512,
			ContextWindow: 2048,
			Timeout:       30 * time.Second,
			MaxRetries:    2,
			Backoff:       time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnv()
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides service endpoints from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.Store.Qdrant.URL = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		if c.LLM.Provider == "ollama" {
			c.LLM.BaseURL = v
		}
		if c.Embedding.Provider == "ollama" {
			c.Embedding.BaseURL = v
		}
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("RAGQA_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("RAGQA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	switch c.Chunker.Unit {
	case "char", "token":
	default:
		return fmt.Errorf("chunker.unit must be char or token, got %q", c.Chunker.Unit)
	}
	if c.Chunker.Size <= 0 {
		return fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.Size)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("chunker.chunk_overlap must be in [0, %d), got %d", c.Chunker.Size, c.Chunker.Overlap)
	}
	switch c.Embedding.Provider {
	case "ollama", "openai", "hash":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	switch c.Store.Backend {
	case "qdrant", "bolt", "memory":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	if c.Retrieve.TopK <= 0 || c.Retrieve.TopK > MaxTopK {
		return fmt.Errorf("retrieve.top_k must be between 1 and %d, got %d", MaxTopK, c.Retrieve.TopK)
	}
	if c.Retrieve.Overfetch < 1 {
		return fmt.Errorf("retrieve.overfetch must be at least 1, got %d", c.Retrieve.Overfetch)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BoltPath resolves the bolt index path relative to dir.
func (c *Config) BoltPath(dir string) string {
	if filepath.IsAbs(c.Store.Bolt.Path) {
		return c.Store.Bolt.Path
	}
	return filepath.Join(dir, c.Store.Bolt.Path)
}
