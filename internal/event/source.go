package event

import (
	"context"
	"time"
)

// Source supplies screen lock events for single local days. Implementations
// convert timestamps to their reporting timezone before returning them and
// do not assume the underlying log deduplicates.
type Source interface {
	// Events returns the day's events sorted non-decreasing by timestamp,
	// along with the number of malformed log entries that were skipped.
	// A day with no events returns an empty slice, not an error.
	Events(ctx context.Context, day time.Time) ([]Event, int, error)
}
