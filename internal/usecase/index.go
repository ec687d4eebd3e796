package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// DocumentChunker turns a raw document into ordered chunks.
type DocumentChunker interface {
	ChunkDocument(ctx context.Context, source string, r io.ReaderAt, size int64) ([]domain.Chunk, error)
}

// DocumentInput is one document of an upload.
type DocumentInput struct {
	Source string
	Reader io.ReaderAt
	Size   int64
}

// ProgressFunc is called after each document with the number of documents
// processed so far.
type ProgressFunc func(done, total int, source string, err error)

// IndexUseCase handles document indexing into session collections.
type IndexUseCase struct {
	documents   DocumentChunker
	embedder    port.Embedder
	index       port.SessionIndex
	invalidator port.CacheInvalidator
	metrics     port.Metrics
	logger      *slog.Logger
}

// NewIndexUseCase creates a new index use case. invalidator and metrics may be nil.
func NewIndexUseCase(
	documents DocumentChunker,
	embedder port.Embedder,
	index port.SessionIndex,
	invalidator port.CacheInvalidator,
	metrics port.Metrics,
	logger *slog.Logger,
) *IndexUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexUseCase{
		documents:   documents,
		embedder:    embedder,
		index:       index,
		invalidator: invalidator,
		metrics:     metrics,
		logger:      logger,
	}
}

// IndexDocuments indexes every document into the session. A document that
// cannot be parsed is reported in Failures and the rest continue. Embedding
// and index failures stop the upload and return the partial result with the
// error.
func (u *IndexUseCase) IndexDocuments(ctx context.Context, sessionID string, docs []DocumentInput, progress ProgressFunc) (*domain.UploadResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}

	result := &domain.UploadResult{}
	defer func() {
		if result.TotalChunks > 0 && u.invalidator != nil {
			u.invalidator.Invalidate(sessionID)
		}
	}()

	for i, doc := range docs {
		n, err := u.indexDocument(ctx, sessionID, doc)
		if progress != nil {
			progress(i+1, len(docs), doc.Source, err)
		}

		if err != nil {
			if !errors.Is(err, domain.ErrDocumentParse) {
				return result, fmt.Errorf("failed to index %s: %w", doc.Source, err)
			}
			u.metrics.DocumentFailed()
			u.logger.Warn("skipping unreadable document",
				"session", sessionID,
				"source", doc.Source,
				"error", err)
			result.Failures = append(result.Failures, domain.DocumentFailure{
				Source: doc.Source,
				Error:  err.Error(),
			})
			continue
		}

		u.metrics.DocumentIndexed(n)
		result.DocumentsIndexed++
		result.TotalChunks += n
	}

	u.logger.Info("indexed documents",
		"session", sessionID,
		"documents", result.DocumentsIndexed,
		"chunks", result.TotalChunks,
		"failures", len(result.Failures))

	return result, nil
}

// indexDocument chunks, embeds and upserts one document as a single batch.
func (u *IndexUseCase) indexDocument(ctx context.Context, sessionID string, doc DocumentInput) (int, error) {
	chunks, err := u.documents.ChunkDocument(ctx, doc.Source, doc.Reader, doc.Size)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		u.logger.Warn("document has no extractable text", "session", sessionID, "source", doc.Source)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbedding) {
			err = fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
		}
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(chunks))
	}

	points := make([]domain.IndexedPoint, len(chunks))
	for i, c := range chunks {
		points[i] = domain.IndexedPoint{
			Vector: vectors[i],
			Text:   c.Text,
			Source: c.Source,
			Page:   c.Page,
			Order:  c.Order,
		}
	}

	n, err := u.index.Upsert(ctx, sessionID, points)
	if err != nil {
		return 0, err
	}

	u.logger.Debug("indexed document",
		"session", sessionID,
		"source", doc.Source,
		"chunks", n)
	return n, nil
}

type nopMetrics struct{}

func (nopMetrics) DocumentIndexed(int)     {}
func (nopMetrics) DocumentFailed()         {}
func (nopMetrics) QuestionAnswered(string) {}
