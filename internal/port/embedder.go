package port

import (
	"context"

	"ragqa/internal/domain"
)

// Embedder maps texts to fixed-dimension dense vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	// Identical text yields an identical vector for the same model.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// QueryFilter narrows a session index query.
type QueryFilter struct {
	// Source restricts results to points from one document. Empty means all.
	Source string
}

// SessionIndex stores one vector collection per session.
type SessionIndex interface {
	// Provision ensures an empty collection exists for the session,
	// dropping any previous contents.
	Provision(ctx context.Context, sessionID string) error

	// Upsert adds points to the session collection, creating it on demand.
	// It returns the number of points written.
	Upsert(ctx context.Context, sessionID string, points []domain.IndexedPoint) (int, error)

	// Query returns nearest neighbours by cosine similarity, score descending.
	// A missing or empty collection yields an empty result, not an error.
	Query(ctx context.Context, sessionID string, vector []float32, k int, filter QueryFilter) ([]domain.ScoredPoint, error)

	// Drop deletes the session collection. Dropping a missing collection is not an error.
	Drop(ctx context.Context, sessionID string) error

	Close() error
}
