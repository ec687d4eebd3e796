package port

import (
	"context"
	"io"

	"ragqa/internal/domain"
)

// PageExtractor extracts per-page text from a raw document.
type PageExtractor interface {
	// Extract returns the pages in document order. Pages without text are
	// returned with empty Text. Corrupt input fails with domain.ErrDocumentParse.
	Extract(ctx context.Context, r io.ReaderAt, size int64) ([]domain.Page, error)
}

// Chunker splits extracted pages into ordered, bounded-size chunks.
type Chunker interface {
	Chunk(source string, pages []domain.Page) ([]domain.Chunk, error)
}
