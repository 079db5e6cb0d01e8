package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies what a log event did to the screen.
type Kind string

const (
	KindUnlock Kind = "UNLOCK"
	KindLock   Kind = "LOCK"
)

// UnmarshalJSON implements json.Unmarshaler to normalize kind to uppercase.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := Kind(strings.ToUpper(s))

	switch normalized {
	case KindUnlock, KindLock:
		*k = normalized
		return nil
	default:
		return fmt.Errorf("invalid event kind: %s (must be UNLOCK or LOCK)", s)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(k))
}

// Event is a single screen lock or unlock occurrence. The timestamp is
// already normalized to the reporting timezone by the source that
// produced it; day bucketing must never re-derive the location.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
}

// Day returns the midnight of the local calendar day the event belongs to.
func (e Event) Day() time.Time {
	year, month, day := e.Timestamp.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, e.Timestamp.Location())
}

// Fingerprint is a cheap content signature for one day's event set, used
// to detect whether the underlying log stream has grown since a day was
// cached (log retention catching up appends events).
type Fingerprint struct {
	Count  int       `json:"count"`
	Latest time.Time `json:"latest"`
}

// FingerprintOf computes the signature of an event slice.
func FingerprintOf(events []Event) Fingerprint {
	fp := Fingerprint{Count: len(events)}
	for _, ev := range events {
		if ev.Timestamp.After(fp.Latest) {
			fp.Latest = ev.Timestamp
		}
	}
	return fp
}

// Equal reports whether two fingerprints describe the same event set.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Count == other.Count && f.Latest.Equal(other.Latest)
}
