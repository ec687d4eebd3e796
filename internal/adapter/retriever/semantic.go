package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var _ port.Retriever = (*SemanticRetriever)(nil)

// SemanticRetriever embeds the question, over-fetches nearest neighbours
// from the session index, removes duplicate positions and returns the best
// k chunks in reading order.
type SemanticRetriever struct {
	embedder  port.Embedder
	index     port.SessionIndex
	overfetch int
	logger    *slog.Logger
}

func NewSemanticRetriever(embedder port.Embedder, index port.SessionIndex, overfetch int, logger *slog.Logger) *SemanticRetriever {
	if overfetch < 1 {
		overfetch = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticRetriever{
		embedder:  embedder,
		index:     index,
		overfetch: overfetch,
		logger:    logger,
	}
}

func (r *SemanticRetriever) Retrieve(ctx context.Context, sessionID, question string, k int, filter port.QueryFilter) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		if !errors.Is(err, domain.ErrEmbedding) {
			err = fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
		}
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: embedding returned empty result", domain.ErrEmbedding)
	}

	hits, err := r.index.Query(ctx, sessionID, embeddings[0], k*r.overfetch, filter)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn("session index query failed, continuing without context",
			"session", sessionID,
			"error", err)
		return nil, nil
	}

	candidates := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, domain.ScoredChunk{
			Chunk: h.Point.Chunk(),
			Score: h.Score,
		})
	}

	results := Dedup(candidates)
	if len(results) > k {
		results = results[:k]
	}
	ReadingOrder(results)

	r.logger.Debug("retrieved context",
		"session", sessionID,
		"candidates", len(hits),
		"returned", len(results))

	return results, nil
}
