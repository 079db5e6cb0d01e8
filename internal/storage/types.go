package storage

import (
	"time"

	"github.com/goodtune/timebuddy/internal/aggregate"
	"github.com/goodtune/timebuddy/internal/event"
)

// CachedDay is one historical day's aggregate together with the evidence
// it was computed from. The fingerprint covers the day's own event set;
// CarryIn records whether the previous day ended unlocked when this day
// was aggregated, and CarryOut whether this day itself ended unlocked.
// A mismatch on either invalidates only this day. The current open day
// is never stored.
type CachedDay struct {
	Date        string            `json:"date"`
	Fingerprint event.Fingerprint `json:"fingerprint"`
	CarryIn     bool              `json:"carry_in"`
	CarryOut    bool              `json:"carry_out"`
	Aggregate   aggregate.Day     `json:"aggregate"`
	ComputedAt  time.Time         `json:"computed_at"`
}
