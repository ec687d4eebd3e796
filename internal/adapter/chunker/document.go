package chunker

import (
	"context"
	"io"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// DocumentChunker turns a raw document into chunks by extracting its pages
// and windowing over them.
type DocumentChunker struct {
	extractor port.PageExtractor
	chunker   port.Chunker
}

// NewDocumentChunker creates a DocumentChunker.
func NewDocumentChunker(extractor port.PageExtractor, chunker port.Chunker) *DocumentChunker {
	return &DocumentChunker{extractor: extractor, chunker: chunker}
}

// ChunkDocument extracts and chunks one document. A document that cannot be
// parsed fails as a whole with domain.ErrDocumentParse.
func (d *DocumentChunker) ChunkDocument(ctx context.Context, source string, r io.ReaderAt, size int64) ([]domain.Chunk, error) {
	pages, err := d.extractor.Extract(ctx, r, size)
	if err != nil {
		return nil, err
	}
	return d.chunker.Chunk(source, pages)
}
