package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"ragqa/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	bucketSchema = []byte("_schema")
	keySchema    = []byte("info")
)

// SchemaInfo records the layout version and the embedding space stored vectors
// belong to.
type SchemaInfo struct {
	Version   int    `json:"version"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// Mismatch describes why vectors from model and dimension cannot be compared
// with the stored ones. It returns "" when they can.
func (i *SchemaInfo) Mismatch(model string, dimension int) string {
	switch {
	case i.Version == 0:
		return "index has no schema"
	case i.Version > CurrentSchemaVersion:
		return fmt.Sprintf("index created by newer version (v%d > v%d)", i.Version, CurrentSchemaVersion)
	case i.Model != model:
		return fmt.Sprintf("embedding model changed from %q to %q", i.Model, model)
	case i.Dimension != dimension:
		return fmt.Sprintf("embedding dimension changed from %d to %d", i.Dimension, dimension)
	}
	return ""
}

// MigrationResult describes what opening the index did to existing data.
type MigrationResult struct {
	Rebuilt bool
	Dropped int
	Reason  string
}

// GetSchemaInfo retrieves the stored schema info. A fresh file yields a zero value.
func (s *BoltSessionIndex) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSchema).Get(keySchema)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &info)
	})
	return &info, err
}

// Migrate compares the stored schema with the active embedding model.
// Vectors from another model or dimension are meaningless for queries, so
// every session is dropped when either differs.
func (s *BoltSessionIndex) Migrate(model string, dimension int) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get schema info: %v", domain.ErrIndex, err)
	}

	result := &MigrationResult{}
	switch reason := info.Mismatch(model, dimension); {
	case info.Version == 0:
		result.Reason = "initializing schema"
	case reason != "":
		result.Rebuilt = true
		result.Reason = reason
	default:
		return result, nil
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if result.Rebuilt {
			n, err := clearSessions(tx)
			if err != nil {
				return err
			}
			result.Dropped = n
		}

		data, err := json.Marshal(SchemaInfo{
			Version:   CurrentSchemaVersion,
			Model:     model,
			Dimension: dimension,
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSchema).Put(keySchema, data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: migrate: %v", domain.ErrIndex, err)
	}
	return result, nil
}

// clearSessions removes all session collections and returns how many existed.
func clearSessions(tx *bbolt.Tx) (int, error) {
	n := 0
	err := tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
		if v == nil {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tx.DeleteBucket(bucketSessions); err != nil {
		return 0, err
	}
	if _, err := tx.CreateBucket(bucketSessions); err != nil {
		return 0, err
	}
	return n, nil
}
