package domain

import "fmt"

// Page is the extracted text of one document page.
type Page struct {
	Number int // 1-based
	Text   string
}

// Chunk is the atomic retrievable unit of a document.
type Chunk struct {
	ID     string
	Text   string
	Source string
	Page   int
	Order  int
	// Start and End bound the chunk window in chunker units within the
	// concatenated document text. They are not persisted in the index.
	Start int
	End   int
}

// ChunkID derives the stable identity of a chunk from its position.
func ChunkID(source string, page, order int) string {
	return fmt.Sprintf("%s::p%d::o%d", source, page, order)
}

// Key returns the dedup identity of the chunk.
func (c Chunk) Key() ChunkKey {
	return ChunkKey{Source: c.Source, Page: c.Page, Order: c.Order}
}

// ChunkKey identifies a chunk position independent of its stored copy.
type ChunkKey struct {
	Source string
	Page   int
	Order  int
}

// IndexedPoint is the record stored in a session collection.
type IndexedPoint struct {
	Vector []float32
	Text   string
	Source string
	Page   int
	Order  int
}

// Chunk converts the stored point back into a chunk.
func (p IndexedPoint) Chunk() Chunk {
	return Chunk{
		ID:     ChunkID(p.Source, p.Page, p.Order),
		Text:   p.Text,
		Source: p.Source,
		Page:   p.Page,
		Order:  p.Order,
	}
}

// ScoredPoint is a nearest-neighbour hit returned by a session index.
type ScoredPoint struct {
	Point IndexedPoint
	Score float64
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Reference is a display snippet shown alongside an answer.
type Reference struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Order   int    `json:"order"`
	Snippet string `json:"snippet"`
}

// Answer is the synthesized response to a question.
type Answer struct {
	Text       string      `json:"answer"`
	References []Reference `json:"references"`
}

// DocumentFailure records a document that could not be indexed.
type DocumentFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// UploadResult summarises a multi-document indexing request.
type UploadResult struct {
	DocumentsIndexed int               `json:"documents_indexed"`
	TotalChunks      int               `json:"total_chunks"`
	Failures         []DocumentFailure `json:"failures,omitempty"`
}

// CollectionName derives the per-session collection name.
func CollectionName(sessionID string) string {
	return "session_" + sessionID
}
