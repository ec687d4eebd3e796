package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"ragqa/config"
	"ragqa/internal/adapter/analyzer"
	"ragqa/internal/adapter/cache"
	"ragqa/internal/adapter/chunker"
	"ragqa/internal/adapter/embedding"
	"ragqa/internal/adapter/llm"
	"ragqa/internal/adapter/metrics"
	"ragqa/internal/adapter/pdf"
	"ragqa/internal/adapter/qdrant"
	"ragqa/internal/adapter/retriever"
	"ragqa/internal/adapter/store"
	"ragqa/internal/domain"
	"ragqa/internal/port"
	"ragqa/internal/usecase"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	index   port.SessionIndex
	metrics *metrics.Recorder

	sessions *usecase.SessionUseCase
	indexer  *usecase.IndexUseCase
	retrieve *usecase.RetrieveUseCase
	asker    *usecase.AskUseCase
}

// newApp builds the pipeline described by cfg. Commands that never call the
// language model pass withLLM=false so a missing LLM key does not block them.
func newApp(cfg *config.Config, dir string, logger *slog.Logger, withLLM bool) (*app, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	index, err := newSessionIndex(cfg, dir, embedder, logger)
	if err != nil {
		return nil, err
	}

	wc, err := chunker.NewWindowChunker(chunker.Unit(cfg.Chunker.Unit), cfg.Chunker.Size, cfg.Chunker.Overlap, analyzer.NewTokenizer(0))
	if err != nil {
		index.Close()
		return nil, err
	}
	documents := chunker.NewDocumentChunker(pdf.NewExtractor(), wc)

	recorder := metrics.NewRecorder()
	semantic := retriever.NewSemanticRetriever(embedder, index, cfg.Retrieve.Overfetch, logger)
	cached := cache.NewCachedRetriever(semantic, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL))

	a := &app{
		cfg:      cfg,
		logger:   logger,
		index:    index,
		metrics:  recorder,
		sessions: usecase.NewSessionUseCase(index, cached, logger),
		indexer:  usecase.NewIndexUseCase(documents, embedder, index, cached, recorder, logger),
		retrieve: usecase.NewRetrieveUseCase(cached, cfg.Retrieve.TopK),
	}

	var model port.LLM = unavailableLLM{}
	if withLLM {
		model, err = newLLM(cfg, logger)
		if err != nil {
			index.Close()
			return nil, err
		}
	}
	answer := usecase.NewAnswerUseCase(model, cfg.Answer.PreviewRunes, cfg.Answer.MaxReferences, logger)
	a.asker = usecase.NewAskUseCase(a.retrieve, answer, recorder, logger)

	logger.Debug("pipeline ready",
		"embedder", embedder.ModelName(),
		"dimension", embedder.Dimension(),
		"store", cfg.Store.Backend,
		"llm", model.ModelName())
	return a, nil
}

func (a *app) Close() error {
	return a.index.Close()
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	ec := cfg.Embedding

	var inner port.Embedder
	switch ec.Provider {
	case "ollama":
		inner = embedding.NewOllamaEmbedder(embedding.OllamaConfig{
			BaseURL:   ec.BaseURL,
			Model:     ec.Model,
			Dimension: ec.Dimension,
			Timeout:   ec.Timeout,
		})
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKeyEnv: ec.APIKeyEnv,
			BaseURL:   ec.BaseURL,
			Model:     ec.Model,
			Dimension: ec.Dimension,
			Timeout:   ec.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		inner = e
	case "hash":
		inner = embedding.NewHashEmbedder(ec.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}

	return embedding.NewParallelEmbedder(inner, ec.BatchSize, ec.Workers, ec.RateLimit), nil
}

func newSessionIndex(cfg *config.Config, dir string, embedder port.Embedder, logger *slog.Logger) (port.SessionIndex, error) {
	switch cfg.Store.Backend {
	case "qdrant":
		qc := cfg.Store.Qdrant
		return qdrant.NewSessionIndex(qdrant.Config{
			URL:       qc.URL,
			APIKey:    os.Getenv(qc.APIKeyEnv),
			Dimension: embedder.Dimension(),
			Timeout:   qc.Timeout,
		}), nil
	case "bolt":
		path := cfg.BoltPath(dir)
		idx, migration, err := store.NewBoltSessionIndex(path, embedder.ModelName(), embedder.Dimension())
		if err != nil {
			return nil, fmt.Errorf("failed to open index store: %w", err)
		}
		if migration.Rebuilt {
			logger.Warn("embedding model changed, existing sessions discarded",
				"reason", migration.Reason,
				"dropped", migration.Dropped,
				"path", path)
		}
		return idx, nil
	case "memory":
		return store.NewMemorySessionIndex(embedder.Dimension()), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

func newLLM(cfg *config.Config, logger *slog.Logger) (port.LLM, error) {
	lc := cfg.LLM
	opts := llm.Options{
		Temperature:   lc.Temperature,
		MaxTokens:     lc.MaxTokens,
		ContextWindow: lc.ContextWindow,
	}

	var inner port.LLM
	switch lc.Provider {
	case "ollama":
		inner = llm.NewOllamaLLM(llm.OllamaConfig{
			BaseURL: lc.BaseURL,
			Model:   lc.Model,
			Timeout: lc.Timeout,
			Options: opts,
		})
	case "openai":
		l, err := llm.NewOpenAILLM(llm.OpenAIConfig{
			APIKeyEnv: lc.APIKeyEnv,
			BaseURL:   lc.BaseURL,
			Model:     lc.Model,
			Timeout:   lc.Timeout,
			Options:   opts,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create llm: %w", err)
		}
		inner = l
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", lc.Provider)
	}

	return llm.NewRetryingLLM(inner, lc.MaxRetries, lc.Backoff, logger), nil
}

// unavailableLLM stands in for the language model in commands that only
// retrieve.
type unavailableLLM struct{}

func (unavailableLLM) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: language model not configured for this command", domain.ErrSynthesis)
}

func (unavailableLLM) ModelName() string { return "none" }
