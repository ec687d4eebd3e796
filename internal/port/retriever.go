package port

import (
	"context"

	"ragqa/internal/domain"
)

// Retriever returns grounding context for a question within one session.
type Retriever interface {
	Retrieve(ctx context.Context, sessionID, question string, k int, filter QueryFilter) ([]domain.ScoredChunk, error)
}

// CacheInvalidator is notified when a session's contents change so cached
// retrievals for it are discarded.
type CacheInvalidator interface {
	Invalidate(sessionID string)
}
