package store

import (
	"context"
	"fmt"
	"sync"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var _ port.SessionIndex = (*MemorySessionIndex)(nil)

// MemorySessionIndex keeps session collections in process memory.
type MemorySessionIndex struct {
	mu          sync.RWMutex
	dimension   int
	collections map[string][]domain.IndexedPoint
}

// NewMemorySessionIndex creates an in-memory index for vectors of the given dimension.
func NewMemorySessionIndex(dimension int) *MemorySessionIndex {
	return &MemorySessionIndex{
		dimension:   dimension,
		collections: make(map[string][]domain.IndexedPoint),
	}
}

func (s *MemorySessionIndex) Provision(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[domain.CollectionName(sessionID)] = []domain.IndexedPoint{}
	return nil
}

func (s *MemorySessionIndex) Upsert(ctx context.Context, sessionID string, points []domain.IndexedPoint) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkDimensions(points, s.dimension); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	name := domain.CollectionName(sessionID)
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		s.collections[name] = append(s.collections[name], p)
	}
	return len(points), nil
}

func (s *MemorySessionIndex) Query(ctx context.Context, sessionID string, vector []float32, k int, filter port.QueryFilter) ([]domain.ScoredPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension mismatch: expected %d, got %d", domain.ErrIndex, s.dimension, len(vector))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return topK(s.collections[domain.CollectionName(sessionID)], vector, k, filter), nil
}

func (s *MemorySessionIndex) Drop(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, domain.CollectionName(sessionID))
	return nil
}

func (s *MemorySessionIndex) Close() error {
	return nil
}

func checkDimensions(points []domain.IndexedPoint, dimension int) error {
	for _, p := range points {
		if len(p.Vector) != dimension {
			return fmt.Errorf("%w: vector dimension mismatch: expected %d, got %d", domain.ErrIndex, dimension, len(p.Vector))
		}
	}
	return nil
}
