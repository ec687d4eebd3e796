package retriever

import (
	"sort"

	"ragqa/internal/domain"
)

// Dedup keeps the first occurrence of each (source, page, order) position.
// With score-descending input the highest scoring copy survives.
func Dedup(chunks []domain.ScoredChunk) []domain.ScoredChunk {
	seen := make(map[domain.ChunkKey]struct{}, len(chunks))
	out := make([]domain.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		key := c.Chunk.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ReadingOrder sorts chunks ascending by page then order, so context reads
// like the source document. Source breaks remaining ties.
func ReadingOrder(chunks []domain.ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i].Chunk, chunks[j].Chunk
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Source < b.Source
	})
}
