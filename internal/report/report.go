// Package report applies the expected-hours policy to day aggregates.
// Everything here is a pure function of its inputs: no I/O, no caching.
package report

import (
	"sort"
	"time"

	"github.com/goodtune/timebuddy/internal/aggregate"
)

// Status classifies a day's raw time against its expected hours.
type Status string

const (
	StatusUnder Status = "UNDER"
	StatusMet   Status = "MET"
	StatusOver  Status = "OVER"
)

// Options control the expected-hours policy.
type Options struct {
	// ExpectedPerDay is the working time expected on a counted day.
	ExpectedPerDay time.Duration
	// IncludeWeekends counts Saturdays and Sundays at full expected
	// hours; otherwise weekend days expect zero.
	IncludeWeekends bool
}

// Row is one day of the final report, in the shape handed to a renderer.
type Row struct {
	Date     time.Time
	Raw      time.Duration
	Block    time.Duration
	Sessions int
	Hourly   [24]time.Duration
	Expected time.Duration
	Status   Status
	Weekend  bool
}

// Summary totals the reporting window over days with activity.
type Summary struct {
	ActiveDays int
	Raw        time.Duration
	Block      time.Duration
	Expected   time.Duration
}

// Assemble produces the ordered-by-date report rows and window summary.
func Assemble(days []aggregate.Day, opts Options) ([]Row, Summary) {
	ordered := make([]aggregate.Day, len(days))
	copy(ordered, days)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	rows := make([]Row, 0, len(ordered))
	var sum Summary

	for _, d := range ordered {
		expected := opts.ExpectedPerDay
		if d.Weekend() && !opts.IncludeWeekends {
			expected = 0
		}

		row := Row{
			Date:     d.Date,
			Raw:      d.Raw,
			Block:    d.Block,
			Sessions: d.Sessions,
			Hourly:   d.Hourly,
			Expected: expected,
			Status:   statusOf(d.Raw, expected),
			Weekend:  d.Weekend(),
		}
		rows = append(rows, row)

		sum.ActiveDays++
		sum.Raw += d.Raw
		sum.Block += d.Block
		sum.Expected += expected
	}

	return rows, sum
}

// statusOf grades raw time: under expectation, met (up to 125%), or over.
// A zero-expectation day is met when idle and over once any time appears.
func statusOf(raw, expected time.Duration) Status {
	if expected == 0 {
		if raw > 0 {
			return StatusOver
		}
		return StatusMet
	}
	if raw < expected {
		return StatusUnder
	}
	if raw < expected+expected/4 {
		return StatusMet
	}
	return StatusOver
}
