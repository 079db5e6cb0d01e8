package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/timebuddy/internal/event"
	"github.com/goodtune/timebuddy/internal/storage"
	"github.com/goodtune/timebuddy/internal/storage/bolt"
	"github.com/rs/zerolog"
)

// now is mid-afternoon on a fixed day so "today" is stable in tests.
var now = time.Date(2025, 8, 27, 15, 0, 0, 0, time.UTC)

// fakeSource serves canned events per date key and counts fetches.
type fakeSource struct {
	days    map[string][]event.Event
	skipped map[string]int
	fetches int
}

func (f *fakeSource) Events(_ context.Context, day time.Time) ([]event.Event, int, error) {
	f.fetches++
	key := day.Format("2006-01-02")
	return f.days[key], f.skipped[key], nil
}

func dayStart(offset int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, offset)
}

func at(dayOffset, hour, min int) time.Time {
	return dayStart(dayOffset).Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func unlock(dayOffset, hour, min int) event.Event {
	return event.Event{Timestamp: at(dayOffset, hour, min), Kind: event.KindUnlock}
}

func lock(dayOffset, hour, min int) event.Event {
	return event.Event{Timestamp: at(dayOffset, hour, min), Kind: event.KindLock}
}

func newTestEngine(t *testing.T, source event.Source, cache storage.Store) *Engine {
	t.Helper()
	clock := &TestClock{CurrentTime: now}
	return New(source, cache, time.UTC, clock, zerolog.Nop())
}

func openTestStore(t *testing.T) *bolt.Store {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "timebuddy.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunInvalidWindow(t *testing.T) {
	eng := newTestEngine(t, &fakeSource{}, nil)
	for _, days := range []int{0, -3} {
		if _, err := eng.Run(context.Background(), Options{Days: days}); err == nil {
			t.Errorf("expected error for day window %d", days)
		}
	}
}

func TestRunSingleDay(t *testing.T) {
	source := &fakeSource{days: map[string][]event.Event{
		dayStart(-1).Format("2006-01-02"): {
			unlock(-1, 9, 0), lock(-1, 12, 0), unlock(-1, 13, 0), lock(-1, 17, 30),
		},
	}}

	eng := newTestEngine(t, source, nil)
	result, err := eng.Run(context.Background(), Options{Days: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(result.Days))
	}
	d := result.Days[0]
	if d.Raw != 7*time.Hour+30*time.Minute {
		t.Errorf("raw = %v, want 7h30m", d.Raw)
	}
	if d.Block != 8*time.Hour+30*time.Minute {
		t.Errorf("block = %v, want 8h30m", d.Block)
	}
	if d.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", d.Sessions)
	}
}

func TestRunActiveSessionToday(t *testing.T) {
	source := &fakeSource{days: map[string][]event.Event{
		dayStart(0).Format("2006-01-02"): {unlock(0, 8, 0)},
	}}
	store := openTestStore(t)

	eng := newTestEngine(t, source, store)
	result, err := eng.Run(context.Background(), Options{Days: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(result.Days))
	}
	if want := now.Sub(at(0, 8, 0)); result.Days[0].Raw != want {
		t.Errorf("raw = %v, want %v (unlock to now)", result.Days[0].Raw, want)
	}

	// The current open day is never persisted.
	if _, err := store.GetDay(context.Background(), dayStart(0).Format("2006-01-02")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected today to be absent from cache, got %v", err)
	}
}

func TestRunCachesHistoricalDays(t *testing.T) {
	yesterday := dayStart(-1).Format("2006-01-02")
	source := &fakeSource{days: map[string][]event.Event{
		yesterday: {unlock(-1, 9, 0), lock(-1, 17, 0)},
	}}
	store := openTestStore(t)

	eng := newTestEngine(t, source, store)
	first, err := eng.Run(context.Background(), Options{Days: 2})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	cached, err := store.GetDay(context.Background(), yesterday)
	if err != nil {
		t.Fatalf("get cached day: %v", err)
	}
	if cached.Aggregate.Raw != 8*time.Hour {
		t.Errorf("cached raw = %v, want 8h", cached.Aggregate.Raw)
	}
	if cached.Fingerprint.Count != 2 {
		t.Errorf("cached fingerprint count = %d, want 2", cached.Fingerprint.Count)
	}

	// A second run with an unchanged fingerprint reuses the cached day.
	second, err := eng.Run(context.Background(), Options{Days: 2})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.Days) != len(first.Days) {
		t.Fatalf("second run produced %d days, want %d", len(second.Days), len(first.Days))
	}
	if second.Days[0].Raw != first.Days[0].Raw {
		t.Errorf("cached raw %v differs from computed %v", second.Days[0].Raw, first.Days[0].Raw)
	}
}

func TestRunFingerprintInvalidation(t *testing.T) {
	yesterday := dayStart(-1).Format("2006-01-02")
	source := &fakeSource{days: map[string][]event.Event{
		yesterday: {unlock(-1, 9, 0), lock(-1, 12, 0)},
	}}
	store := openTestStore(t)

	eng := newTestEngine(t, source, store)
	if _, err := eng.Run(context.Background(), Options{Days: 2}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Log retention catches up: new events appear for the cached day.
	source.days[yesterday] = append(source.days[yesterday], unlock(-1, 13, 0), lock(-1, 15, 0))

	result, err := eng.Run(context.Background(), Options{Days: 2})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(result.Days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(result.Days))
	}
	if result.Days[0].Raw != 5*time.Hour {
		t.Errorf("raw after invalidation = %v, want 5h", result.Days[0].Raw)
	}

	cached, err := store.GetDay(context.Background(), yesterday)
	if err != nil {
		t.Fatalf("get recomputed day: %v", err)
	}
	if cached.Fingerprint.Count != 4 {
		t.Errorf("recomputed fingerprint count = %d, want 4", cached.Fingerprint.Count)
	}
}

func TestRunNoCacheBypassMatchesCachedRun(t *testing.T) {
	events := map[string][]event.Event{
		dayStart(-2).Format("2006-01-02"): {unlock(-2, 10, 0), lock(-2, 16, 0)},
		dayStart(-1).Format("2006-01-02"): {unlock(-1, 9, 0), lock(-1, 18, 0)},
	}
	store := openTestStore(t)

	cachedEng := newTestEngine(t, &fakeSource{days: events}, store)
	cachedResult, err := cachedEng.Run(context.Background(), Options{Days: 3})
	if err != nil {
		t.Fatalf("cached run: %v", err)
	}

	bypassEng := newTestEngine(t, &fakeSource{days: events}, store)
	bypassResult, err := bypassEng.Run(context.Background(), Options{Days: 3, NoCache: true})
	if err != nil {
		t.Fatalf("bypass run: %v", err)
	}

	if len(bypassResult.Days) != len(cachedResult.Days) {
		t.Fatalf("bypass produced %d days, cached produced %d", len(bypassResult.Days), len(cachedResult.Days))
	}
	for i := range cachedResult.Days {
		a, b := cachedResult.Days[i], bypassResult.Days[i]
		if a.Raw != b.Raw || a.Block != b.Block || a.Sessions != b.Sessions {
			t.Errorf("day %d differs: cached %+v vs bypass %+v", i, a, b)
		}
	}
}

func TestRunCarryOverAcrossMidnight(t *testing.T) {
	source := &fakeSource{days: map[string][]event.Event{
		// Unlocked at 23:00 yesterday, locked at 01:00 today; no other events.
		dayStart(-1).Format("2006-01-02"): {unlock(-1, 23, 0)},
		dayStart(0).Format("2006-01-02"):  {lock(0, 1, 0)},
	}}

	eng := newTestEngine(t, source, nil)
	result, err := eng.Run(context.Background(), Options{Days: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(result.Days))
	}
	if result.Days[0].Raw != time.Hour {
		t.Errorf("yesterday raw = %v, want 1h (23:00 to midnight)", result.Days[0].Raw)
	}
	if result.Days[1].Raw != time.Hour {
		t.Errorf("today raw = %v, want 1h (midnight to 01:00)", result.Days[1].Raw)
	}
}

func TestRunCarryInMismatchInvalidates(t *testing.T) {
	yesterday := dayStart(-1).Format("2006-01-02")
	dayBefore := dayStart(-2).Format("2006-01-02")

	source := &fakeSource{days: map[string][]event.Event{
		yesterday: {lock(-1, 1, 0), unlock(-1, 9, 0), lock(-1, 17, 0)},
	}}
	store := openTestStore(t)

	eng := newTestEngine(t, source, store)

	// First run: yesterday's leading lock is spurious without carry-in,
	// leaving one 9:00-17:00 session. The day is cached with that state.
	first, err := eng.Run(context.Background(), Options{Days: 3})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first.Days) != 1 || first.Days[0].Raw != 8*time.Hour {
		t.Fatalf("unexpected first run result: %+v", first.Days)
	}

	cached, err := store.GetDay(context.Background(), yesterday)
	if err != nil {
		t.Fatalf("get cached day: %v", err)
	}
	if cached.CarryIn {
		t.Fatal("cached day unexpectedly recorded a carry-in")
	}

	// Retention catches up: the day before ended unlocked, so yesterday's
	// leading lock now closes a carried-over midnight session. The cached
	// entry's fingerprint is unchanged but its carry-in no longer matches.
	source.days[dayBefore] = []event.Event{unlock(-2, 22, 0)}

	second, err := eng.Run(context.Background(), Options{Days: 3})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(second.Days))
	}
	if want := 9 * time.Hour; second.Days[1].Raw != want {
		t.Errorf("yesterday raw = %v, want %v (carried hour plus 9:00-17:00)", second.Days[1].Raw, want)
	}
}

func TestRunSkippedEventsReported(t *testing.T) {
	source := &fakeSource{
		days: map[string][]event.Event{
			dayStart(-1).Format("2006-01-02"): {unlock(-1, 9, 0), lock(-1, 10, 0)},
		},
		skipped: map[string]int{
			dayStart(-1).Format("2006-01-02"): 3,
			dayStart(0).Format("2006-01-02"):  1,
		},
	}

	eng := newTestEngine(t, source, nil)
	result, err := eng.Run(context.Background(), Options{Days: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Skipped != 4 {
		t.Errorf("skipped = %d, want 4", result.Skipped)
	}
}

// erroringSource models an unavailable log subsystem.
type erroringSource struct{}

func (erroringSource) Events(context.Context, time.Time) ([]event.Event, int, error) {
	return nil, 0, errors.New("log subsystem unavailable")
}

func TestRunSourceUnavailableIsEmptyReport(t *testing.T) {
	eng := newTestEngine(t, erroringSource{}, nil)
	result, err := eng.Run(context.Background(), Options{Days: 3})
	if err != nil {
		t.Fatalf("expected empty report, got error: %v", err)
	}
	if len(result.Days) != 0 {
		t.Errorf("expected no days, got %d", len(result.Days))
	}
}

func TestRunEmptyWindow(t *testing.T) {
	eng := newTestEngine(t, &fakeSource{}, nil)
	result, err := eng.Run(context.Background(), Options{Days: 7})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Days) != 0 {
		t.Errorf("expected empty report, got %d days", len(result.Days))
	}
}
