// Package logsource feeds screen lock events from the macOS unified log.
// It is deliberately thin: one bounded `log show` invocation per day,
// mapped to typed events, with everything unparseable skipped and counted
// rather than failing the run.
package logsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/goodtune/timebuddy/internal/event"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// predicate selects loginwindow screen lock state transitions.
const predicate = `process == "loginwindow" and eventMessage contains "com.apple.sessionagent.screenIs"`

const (
	messageUnlocked = "screenIsUnlocked"
	messageLocked   = "screenIsLocked"

	// timestampLayout matches `log show --style json` output.
	timestampLayout = "2006-01-02 15:04:05.000000-0700"

	dayCacheSize = 128
)

// Config holds log source settings.
type Config struct {
	Command  string
	Timeout  time.Duration
	Location *time.Location
}

// Source implements event.Source against the `log` command.
type Source struct {
	command string
	timeout time.Duration
	loc     *time.Location
	days    *lru.Cache[string, fetched]
	logger  zerolog.Logger

	// run is the command execution seam, replaced in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

type fetched struct {
	events  []event.Event
	skipped int
}

// logEntry is the subset of a unified log record the source consumes.
type logEntry struct {
	Timestamp    string `json:"timestamp"`
	EventMessage string `json:"eventMessage"`
}

// New creates a log source. Each day's fetch is memoized for the run so
// fingerprinting and aggregation share one invocation.
func New(cfg Config, logger zerolog.Logger) (*Source, error) {
	if cfg.Command == "" {
		cfg.Command = "log"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	days, err := lru.New[string, fetched](dayCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create day cache: %w", err)
	}

	return &Source{
		command: cfg.Command,
		timeout: cfg.Timeout,
		loc:     cfg.Location,
		days:    days,
		logger:  logger.With().Str("component", "log-source").Logger(),
		run:     runCommand,
	}, nil
}

// Events returns the day's screen lock events sorted by timestamp,
// normalized to the source location, plus the count of skipped entries.
func (s *Source) Events(ctx context.Context, day time.Time) ([]event.Event, int, error) {
	key := day.Format("2006-01-02")
	if hit, ok := s.days.Get(key); ok {
		return hit.events, hit.skipped, nil
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1).Add(-time.Second)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.run(ctx, s.command,
		"show", "--style", "json",
		"--predicate", predicate,
		"--start", start.Format("2006-01-02 15:04:05-0700"),
		"--end", end.Format("2006-01-02 15:04:05-0700"),
	)
	if err != nil {
		// `log show` exits 1 with no output when nothing matched.
		if exitErr, ok := err.(*exec.ExitError); ok &&
			exitErr.ExitCode() == 1 && len(bytes.TrimSpace(out)) == 0 {
			s.days.Add(key, fetched{})
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("log show for %s: %w", key, err)
	}

	events, skipped := s.parse(out, start)
	s.days.Add(key, fetched{events: events, skipped: skipped})

	s.logger.Debug().
		Str("date", key).
		Int("events", len(events)).
		Int("skipped", skipped).
		Msg("Fetched day from unified log")

	return events, skipped, nil
}

// parse maps raw log records to events, skipping anything malformed and
// anything that falls outside the requested local day.
func (s *Source) parse(out []byte, dayStart time.Time) ([]event.Event, int) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, 0
	}

	var entries []logEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		s.logger.Warn().Err(err).Msg("Unparseable log output, treating day as empty")
		return nil, 0
	}

	dayEnd := dayStart.AddDate(0, 0, 1)
	skipped := 0
	events := make([]event.Event, 0, len(entries))

	for _, entry := range entries {
		ts, err := parseTimestamp(entry.Timestamp)
		if err != nil {
			skipped++
			continue
		}

		var kind event.Kind
		switch {
		case strings.Contains(entry.EventMessage, messageUnlocked):
			kind = event.KindUnlock
		case strings.Contains(entry.EventMessage, messageLocked):
			kind = event.KindLock
		default:
			skipped++
			continue
		}

		ts = ts.In(s.loc)
		if ts.Before(dayStart) || !ts.Before(dayEnd) {
			continue
		}

		events = append(events, event.Event{Timestamp: ts, Kind: kind})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, skipped
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ts, err := time.Parse(timestampLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
