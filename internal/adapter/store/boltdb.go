package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var (
	bucketSessions = []byte("sessions")
)

var _ port.SessionIndex = (*BoltSessionIndex)(nil)

// BoltSessionIndex persists session collections in a single bbolt file.
// Each collection is a nested bucket under "sessions"; search is brute force.
type BoltSessionIndex struct {
	db        *bbolt.DB
	dimension int
}

type storedPoint struct {
	Vector []float32 `json:"v"`
	Text   string    `json:"t"`
	Source string    `json:"s"`
	Page   int       `json:"p"`
	Order  int       `json:"o"`
}

// NewBoltSessionIndex opens (or creates) the index file at path. Collections
// written by a different embedding model or dimension are discarded.
func NewBoltSessionIndex(path, model string, dimension int) (*BoltSessionIndex, *MigrationResult, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("%w: create index directory: %v", domain.ErrIndex, err)
		}
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to open bolt db: %v", domain.ErrIndex, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSessions, bucketSchema} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrIndex, err)
	}

	s := &BoltSessionIndex{db: db, dimension: dimension}
	result, err := s.Migrate(model, dimension)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, result, nil
}

// OpenBoltSessionIndexReadOnly opens an existing index file without migrating
// it. The returned schema info lets callers compare the stored embedding space
// with their own; nothing is ever dropped.
func OpenBoltSessionIndexReadOnly(path string) (*BoltSessionIndex, *SchemaInfo, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to open bolt db: %v", domain.ErrIndex, err)
	}

	err = db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSessions, bucketSchema} {
			if tx.Bucket(b) == nil {
				return fmt.Errorf("bucket %s missing", b)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: %s is not a ragqa index: %v", domain.ErrIndex, path, err)
	}

	s := &BoltSessionIndex{db: db}
	info, err := s.GetSchemaInfo()
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: failed to get schema info: %v", domain.ErrIndex, err)
	}
	s.dimension = info.Dimension
	return s, info, nil
}

func (s *BoltSessionIndex) Provision(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := []byte(domain.CollectionName(sessionID))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		if err := sessions.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := sessions.CreateBucket(name)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: provision %s: %v", domain.ErrIndex, name, err)
	}
	return nil
}

func (s *BoltSessionIndex) Upsert(ctx context.Context, sessionID string, points []domain.IndexedPoint) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkDimensions(points, s.dimension); err != nil {
		return 0, err
	}
	name := []byte(domain.CollectionName(sessionID))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketSessions).CreateBucketIfNotExists(name)
		if err != nil {
			return err
		}

		for _, p := range points {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(storedPoint{
				Vector: p.Vector,
				Text:   p.Text,
				Source: p.Source,
				Page:   p.Page,
				Order:  p.Order,
			})
			if err != nil {
				return err
			}
			if err := b.Put(sequenceKey(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: upsert %s: %v", domain.ErrIndex, name, err)
	}
	return len(points), nil
}

func (s *BoltSessionIndex) Query(ctx context.Context, sessionID string, vector []float32, k int, filter port.QueryFilter) ([]domain.ScoredPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension mismatch: expected %d, got %d", domain.ErrIndex, s.dimension, len(vector))
	}
	name := []byte(domain.CollectionName(sessionID))

	var candidates []domain.IndexedPoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions).Bucket(name)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var sp storedPoint
			if err := json.Unmarshal(v, &sp); err != nil {
				return nil // Skip corrupted entries
			}
			if filter.Source != "" && sp.Source != filter.Source {
				return nil
			}
			candidates = append(candidates, domain.IndexedPoint{
				Vector: sp.Vector,
				Text:   sp.Text,
				Source: sp.Source,
				Page:   sp.Page,
				Order:  sp.Order,
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", domain.ErrIndex, name, err)
	}

	return topK(candidates, vector, k, filter), nil
}

func (s *BoltSessionIndex) Drop(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := []byte(domain.CollectionName(sessionID))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketSessions).DeleteBucket(name)
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: drop %s: %v", domain.ErrIndex, name, err)
	}
	return nil
}

// Sessions lists the ids of all stored sessions.
func (s *BoltSessionIndex) Sessions() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			if v == nil {
				ids = append(ids, strings.TrimPrefix(string(k), domain.CollectionName("")))
			}
			return nil
		})
	})
	return ids, err
}

func (s *BoltSessionIndex) Close() error {
	return s.db.Close()
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
