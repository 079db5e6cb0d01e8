// Package engine drives one reporting run: fetch events per day, rebuild
// sessions, aggregate, and reuse cached days whose evidence is unchanged.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/timebuddy/internal/aggregate"
	"github.com/goodtune/timebuddy/internal/event"
	"github.com/goodtune/timebuddy/internal/session"
	"github.com/goodtune/timebuddy/internal/storage"
	"github.com/rs/zerolog"
)

const dateFormat = "2006-01-02"

// Options configure a single run.
type Options struct {
	// Days is the window size ending today. Must be positive.
	Days int
	// NoCache bypasses the cache store entirely, reads and writes.
	NoCache bool
}

// Result is the outcome of a run.
type Result struct {
	// Days holds one aggregate per day with activity, ordered by date.
	// Days without events are absent: no logs is not zero hours worked.
	Days []aggregate.Day
	// Skipped counts malformed log entries across the whole window.
	Skipped int
}

// Engine reconstructs daily working hours from a log event source.
type Engine struct {
	source event.Source
	cache  storage.Store // nil disables caching
	clock  Clock
	loc    *time.Location
	logger zerolog.Logger
}

// New creates an engine. A nil cache store disables caching.
func New(source event.Source, cache storage.Store, loc *time.Location, clock Clock, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = RealClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		source: source,
		cache:  cache,
		clock:  clock,
		loc:    loc,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Run processes the window chronologically. Days are handled oldest first
// so a session left open at midnight carries into the next day as a
// synthetic unlock at 00:00. Historical days whose fingerprint and
// carry-in state match the cache are reused without recomputation; the
// current day is always recomputed because it may still be accumulating
// an active session, and is never written back.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Days <= 0 {
		return nil, fmt.Errorf("invalid day window: %d", opts.Days)
	}

	now := e.clock.Now().In(e.loc)
	today := midnight(now)

	result := &Result{}
	carry := false

	for i := opts.Days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		isToday := day.Equal(today)
		dateKey := day.Format(dateFormat)

		events, skipped, err := e.source.Events(ctx, day)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// An unavailable source is "no data" for the day, not a crash.
			e.logger.Warn().Err(err).Str("date", dateKey).
				Msg("Log source unavailable, treating day as empty")
			carry = false
			continue
		}
		result.Skipped += skipped
		fp := event.FingerprintOf(events)

		if cached := e.lookup(ctx, dateKey, fp, carry, isToday, opts.NoCache); cached != nil {
			if cached.Aggregate.Sessions > 0 {
				result.Days = append(result.Days, cached.Aggregate)
			}
			carry = cached.CarryOut
			e.logger.Debug().Str("date", dateKey).Msg("Reused cached day")
			continue
		}

		if len(events) == 0 {
			// No logs for the day; any carried session has no evidence of
			// continuing, so the chain is reset rather than invented.
			carry = false
			continue
		}

		dayEvents := events
		if carry {
			synthetic := event.Event{Timestamp: day, Kind: event.KindUnlock}
			dayEvents = append([]event.Event{synthetic}, events...)
		}

		upTo := day.AddDate(0, 0, 1)
		if isToday {
			upTo = now
		}

		sessions := session.Build(dayEvents)
		carryIn := carry
		carry = len(sessions) > 0 && sessions[len(sessions)-1].Active

		dayAgg := pickDay(aggregate.Aggregate(sessions, upTo), day)
		if dayAgg == nil {
			continue
		}

		if e.logger.GetLevel() <= zerolog.DebugLevel {
			for _, s := range sessions {
				e.logger.Debug().
					Str("date", dateKey).
					Time("start", s.Start).
					Bool("active", s.Active).
					Dur("duration", s.Duration(upTo)).
					Msg("Reconstructed session")
			}
		}

		result.Days = append(result.Days, *dayAgg)

		if e.cache != nil && !opts.NoCache && !isToday {
			entry := storage.CachedDay{
				Date:        dateKey,
				Fingerprint: fp,
				CarryIn:     carryIn,
				CarryOut:    carry,
				Aggregate:   *dayAgg,
				ComputedAt:  now,
			}
			if err := e.cache.PutDay(ctx, entry); err != nil {
				e.logger.Warn().Err(err).Str("date", dateKey).
					Msg("Cache write failed, keeping in-memory result")
			}
		}
	}

	return result, nil
}

// lookup returns a usable cached day or nil. Today is never served from
// cache, and a fingerprint or carry-in mismatch invalidates just that day.
func (e *Engine) lookup(ctx context.Context, dateKey string, fp event.Fingerprint, carryIn, isToday, noCache bool) *storage.CachedDay {
	if e.cache == nil || noCache || isToday {
		return nil
	}

	cached, err := e.cache.GetDay(ctx, dateKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn().Err(err).Str("date", dateKey).
				Msg("Cache read failed, recomputing day")
		}
		return nil
	}

	if !cached.Fingerprint.Equal(fp) || cached.CarryIn != carryIn {
		e.logger.Debug().Str("date", dateKey).Msg("Cached day stale, recomputing")
		return nil
	}
	return cached
}

// pickDay selects the aggregate belonging to the given day. Per-day event
// fetching means the slice holds at most that one day.
func pickDay(days []aggregate.Day, day time.Time) *aggregate.Day {
	for i := range days {
		if days[i].Date.Equal(day) {
			return &days[i]
		}
	}
	return nil
}

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
