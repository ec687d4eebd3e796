package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "char", cfg.Chunker.Unit)
	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "http://localhost:6333", cfg.Store.Qdrant.URL)
	assert.Equal(t, 5, cfg.Retrieve.TopK)
	assert.Equal(t, 2, cfg.Retrieve.Overfetch)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, 300, cfg.Answer.PreviewRunes)
	assert.Equal(t, 3, cfg.Answer.MaxReferences)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultConfig().Chunker, cfg.Chunker)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ragqa.yaml")

	content := `
chunker:
  unit: token
  chunk_size: 300
store:
  backend: bolt
llm:
  timeout: 45s
  max_retries: 1
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.Chunker.Unit)
	assert.Equal(t, 300, cfg.Chunker.Size)
	// Unset values keep their defaults.
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, "bolt", cfg.Store.Backend)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1, cfg.LLM.MaxRetries)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ragqa.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("chunker: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadFromDir(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Chunker.Size, cfg.Chunker.Size)

	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".ragqa"), 0755))
	content := "chunker:\n  chunk_size: 800\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".ragqa", "config.yaml"), []byte(content), 0644))

	cfg, err = LoadFromDir(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Chunker.Size)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("OLLAMA_MODEL", "llama3.2")

	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "http://qdrant:6333", cfg.Store.Qdrant.URL)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "http://ollama:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.Chunker.Overlap = c.Chunker.Size }},
		{"negative overlap", func(c *Config) { c.Chunker.Overlap = -1 }},
		{"zero size", func(c *Config) { c.Chunker.Size = 0 }},
		{"unknown unit", func(c *Config) { c.Chunker.Unit = "word" }},
		{"unknown embedder", func(c *Config) { c.Embedding.Provider = "voyage" }},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "faiss" }},
		{"unknown llm", func(c *Config) { c.LLM.Provider = "anthropic" }},
		{"zero top k", func(c *Config) { c.Retrieve.TopK = 0 }},
		{"top k above max", func(c *Config) { c.Retrieve.TopK = MaxTopK + 1 }},
		{"zero overfetch", func(c *Config) { c.Retrieve.Overfetch = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragqa.yaml")
	cfg := DefaultConfig()
	cfg.Retrieve.TopK = 8

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Retrieve.TopK)
	assert.Equal(t, cfg.LLM.Timeout, loaded.LLM.Timeout)
}

func TestBoltPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("/data", ".ragqa", "index.db"), cfg.BoltPath("/data"))

	cfg.Store.Bolt.Path = "/var/lib/ragqa/index.db"
	assert.Equal(t, "/var/lib/ragqa/index.db", cfg.BoltPath("/data"))
}
