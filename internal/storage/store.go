package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store is the cache backend contract. Implementations must publish
// writes atomically: a reader may see the old value or the new value,
// never a torn entry. A corrupt or schema-mismatched record is reported
// as ErrNotFound so callers recompute and overwrite it.
type Store interface {
	// GetDay returns the cached aggregate for a date key (YYYY-MM-DD),
	// or ErrNotFound.
	GetDay(ctx context.Context, date string) (*CachedDay, error)

	// PutDay upserts one day's aggregate.
	PutDay(ctx context.Context, day CachedDay) error

	// DeleteDay removes one day's aggregate. Missing days are not an error.
	DeleteDay(ctx context.Context, date string) error

	// Clear drops all cached days.
	Clear(ctx context.Context) error

	Close() error
}
