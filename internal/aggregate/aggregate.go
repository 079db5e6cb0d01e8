// Package aggregate turns sessions into per-day screen time statistics.
package aggregate

import (
	"sort"
	"time"

	"github.com/goodtune/timebuddy/internal/session"
)

const dateFormat = "2006-01-02"

// Day is a single calendar day's aggregated screen time. Raw is the sum
// of unlocked durations clipped to the day; Block is the span from first
// to last activity, which may exceed Raw when there were locked gaps.
type Day struct {
	Date          time.Time         `json:"date"`
	Raw           time.Duration     `json:"raw"`
	Block         time.Duration     `json:"block"`
	Sessions      int               `json:"sessions"`
	FirstActivity time.Time         `json:"first_activity"`
	LastActivity  time.Time         `json:"last_activity"`
	Hourly        [24]time.Duration `json:"hourly"`
}

// Key returns the day's date key in YYYY-MM-DD form.
func (d Day) Key() string {
	return d.Date.Format(dateFormat)
}

// Weekend reports whether the day falls on a Saturday or Sunday.
func (d Day) Weekend() bool {
	wd := d.Date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Aggregate groups sessions by local calendar day. A session spanning
// midnight is split into per-day fragments at each boundary; the fragment
// durations sum exactly to the session duration. Active sessions are
// treated as extending to upTo, which the caller sets to the moment of
// computation for the current day or to the following midnight for a
// past day whose open session carries over. Days touched by no session
// are not emitted.
func Aggregate(sessions []session.Session, upTo time.Time) []Day {
	byDay := make(map[string]*Day)

	for _, s := range sessions {
		start := s.Start
		end := s.End
		if s.Active {
			end = upTo
		}
		if end.Before(start) {
			continue
		}

		if start.Equal(end) {
			// Instantaneous session: a valid data point that counts
			// toward the session count but adds no duration.
			addFragment(byDay, start, end)
			continue
		}

		for dayStart := midnight(start); dayStart.Before(end); dayStart = dayStart.AddDate(0, 0, 1) {
			fragStart := maxTime(start, dayStart)
			fragEnd := minTime(end, dayStart.AddDate(0, 0, 1))
			addFragment(byDay, fragStart, fragEnd)
		}
	}

	days := make([]Day, 0, len(byDay))
	for _, d := range byDay {
		d.Block = d.LastActivity.Sub(d.FirstActivity)
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})
	return days
}

// addFragment records one within-day session fragment.
func addFragment(byDay map[string]*Day, from, to time.Time) {
	dayStart := midnight(from)
	key := dayStart.Format(dateFormat)

	d, ok := byDay[key]
	if !ok {
		d = &Day{Date: dayStart, FirstActivity: from, LastActivity: to}
		byDay[key] = d
	}

	d.Raw += to.Sub(from)
	d.Sessions++
	if from.Before(d.FirstActivity) {
		d.FirstActivity = from
	}
	if to.After(d.LastActivity) {
		d.LastActivity = to
	}

	// Attribute duration to each local hour the fragment touches.
	for cur := from; cur.Before(to); {
		next := hourStart(cur).Add(time.Hour)
		segEnd := minTime(to, next)
		d.Hourly[cur.Hour()] += segEnd.Sub(cur)
		cur = next
	}
}

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func hourStart(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, t.Hour(), 0, 0, 0, t.Location())
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
