package store

import (
	"math"
	"sort"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// topK scores every candidate against query and keeps the k best.
// Ties keep candidate order.
func topK(candidates []domain.IndexedPoint, query []float32, k int, filter port.QueryFilter) []domain.ScoredPoint {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	scored := make([]domain.ScoredPoint, 0, len(candidates))
	for _, p := range candidates {
		if filter.Source != "" && p.Source != filter.Source {
			continue
		}
		scored = append(scored, domain.ScoredPoint{
			Point: p,
			Score: cosineSimilarity(query, p.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
