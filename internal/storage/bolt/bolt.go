// Package bolt implements the cache store on a single bbolt file.
// bbolt transactions give the atomic old-value-or-new-value publish the
// store contract requires; a killed process never leaves a torn entry.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goodtune/timebuddy/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketDays = "day_aggregates"
	bucketMeta = "meta"

	keySchemaVersion = "schema_version"
	schemaVersion    = "1"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store. A schema version mismatch drops the
// cached aggregates, which is safe because every day can be recomputed
// from the log source.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureSchema() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}

		stored := meta.Get([]byte(keySchemaVersion))
		if stored != nil && string(stored) != schemaVersion {
			// Older or corrupt schema: drop the aggregates and recompute.
			if tx.Bucket([]byte(bucketDays)) != nil {
				if err := tx.DeleteBucket([]byte(bucketDays)); err != nil {
					return fmt.Errorf("drop stale day bucket: %w", err)
				}
			}
		}

		if err := meta.Put([]byte(keySchemaVersion), []byte(schemaVersion)); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}

		if _, err := tx.CreateBucketIfNotExists([]byte(bucketDays)); err != nil {
			return fmt.Errorf("create day bucket: %w", err)
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDay returns the cached aggregate for a date key. An entry that no
// longer unmarshals is removed and reported as ErrNotFound so the caller
// recomputes it.
func (s *Store) GetDay(ctx context.Context, date string) (*storage.CachedDay, error) {
	var day storage.CachedDay
	var corrupt bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketDays))
		if b == nil {
			return storage.ErrNotFound
		}
		data := b.Get([]byte(date))
		if data == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(data, &day); err != nil {
			corrupt = true
			return storage.ErrNotFound
		}
		return nil
	})

	if corrupt {
		_ = s.DeleteDay(ctx, date)
	}
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// PutDay upserts one day's aggregate.
func (s *Store) PutDay(ctx context.Context, day storage.CachedDay) error {
	data, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("marshal cached day: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketDays))
		if b == nil {
			return fmt.Errorf("day bucket missing")
		}
		return b.Put([]byte(day.Date), data)
	})
}

// DeleteDay removes one day's aggregate.
func (s *Store) DeleteDay(ctx context.Context, date string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketDays))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(date))
	})
}

// Clear drops all cached days.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tx.Bucket([]byte(bucketDays)) != nil {
			if err := tx.DeleteBucket([]byte(bucketDays)); err != nil {
				return fmt.Errorf("drop day bucket: %w", err)
			}
		}
		if _, err := tx.CreateBucket([]byte(bucketDays)); err != nil {
			return fmt.Errorf("recreate day bucket: %w", err)
		}
		return nil
	})
}
