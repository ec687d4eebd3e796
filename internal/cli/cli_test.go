package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/config"
	"ragqa/internal/adapter/fs"
	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/port"
)

func offlineConfig(backend string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimension = 64
	cfg.Store.Backend = backend
	return cfg
}

func TestNewApp_Offline(t *testing.T) {
	for _, backend := range []string{"memory", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			a, err := newApp(offlineConfig(backend), dir, logging.Discard(), false)
			require.NoError(t, err)
			defer a.Close()

			ctx := context.Background()
			id, err := a.sessions.Start(ctx, "")
			require.NoError(t, err)

			answer, err := a.retrieve.Retrieve(ctx, id, "anything", 0, port.QueryFilter{})
			require.NoError(t, err)
			assert.Empty(t, answer)

			_, err = a.asker.Ask(ctx, id, "anything", 0, port.QueryFilter{})
			assert.ErrorIs(t, err, domain.ErrSynthesis)

			if backend == "bolt" {
				assert.FileExists(t, filepath.Join(dir, ".ragqa", "index.db"))
			}
		})
	}
}

func TestNewApp_WithLLM(t *testing.T) {
	a, err := newApp(offlineConfig("memory"), t.TempDir(), logging.Discard(), true)
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.asker)
}

func TestNewApp_MissingOpenAIKey(t *testing.T) {
	t.Setenv("RAGQA_TEST_MISSING_KEY", "")

	cfg := offlineConfig("memory")
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKeyEnv = "RAGQA_TEST_MISSING_KEY"
	_, err := newApp(cfg, t.TempDir(), logging.Discard(), true)
	assert.Error(t, err)

	cfg = offlineConfig("memory")
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKeyEnv = "RAGQA_TEST_MISSING_KEY"
	_, err = newApp(cfg, t.TempDir(), logging.Discard(), false)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestNewApp_InvalidChunker(t *testing.T) {
	cfg := offlineConfig("memory")
	cfg.Chunker.Overlap = cfg.Chunker.Size
	_, err := newApp(cfg, t.TempDir(), logging.Discard(), false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCollectDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	for _, name := range []string{"a.pdf", "sub/b.pdf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF"), 0644))
	}

	files, err := collectDocuments(fs.NewWalker([]string{"**/*.pdf"}, nil), []string{dir, filepath.Join(dir, "sub")})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.pdf", filepath.Base(files[0].Path))
	assert.Equal(t, "b.pdf", filepath.Base(files[1].Path))

	_, err = collectDocuments(fs.NewWalker(nil, nil), []string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "<1s", formatDuration(300*time.Millisecond))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "3m5s", formatDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h10m", formatDuration(2*time.Hour+10*time.Minute))
}

func TestSessionNewCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ragqa.yaml")
	require.NoError(t, offlineConfig("bolt").Save(cfgPath))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "--dir", dir, "session", "new", "docs"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "docs", strings.TrimSpace(out.String()))
	assert.FileExists(t, filepath.Join(dir, ".ragqa", "index.db"))
}
