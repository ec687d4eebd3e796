package usecase

import (
	"context"
	"fmt"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// MaxTopK is the largest number of chunks a single question may request.
const MaxTopK = 100

// RetrieveUseCase validates retrieval requests and applies the default k.
type RetrieveUseCase struct {
	retriever   port.Retriever
	defaultTopK int
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(retriever port.Retriever, defaultTopK int) *RetrieveUseCase {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &RetrieveUseCase{
		retriever:   retriever,
		defaultTopK: defaultTopK,
	}
}

// Retrieve returns up to topK chunks for the question in reading order.
// A non-positive topK selects the default. A topK above MaxTopK is rejected.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, sessionID, question string, topK int, filter port.QueryFilter) ([]domain.ScoredChunk, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	if topK > MaxTopK {
		return nil, fmt.Errorf("%w: top_k must be at most %d", domain.ErrInvalidInput, MaxTopK)
	}
	if topK <= 0 {
		topK = u.defaultTopK
	}
	return u.retriever.Retrieve(ctx, sessionID, question, topK, filter)
}

// Chunks drops scores, keeping order.
func Chunks(scored []domain.ScoredChunk) []domain.Chunk {
	out := make([]domain.Chunk, len(scored))
	for i, s := range scored {
		out[i] = s.Chunk
	}
	return out
}
