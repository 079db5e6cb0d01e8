// Package session reconstructs unlocked-screen intervals from raw lock events.
package session

import (
	"sort"
	"time"

	"github.com/goodtune/timebuddy/internal/event"
)

// Session is an interval of continuous unlocked screen time. An active
// session has no terminating lock yet; its End is the zero value.
type Session struct {
	Start  time.Time
	End    time.Time
	Active bool
}

// Duration returns the session length, treating an active session as
// extending to the supplied moment.
func (s Session) Duration(now time.Time) time.Duration {
	if s.Active {
		return now.Sub(s.Start)
	}
	return s.End.Sub(s.Start)
}

// Build reconstructs sessions from a sequence of events for one timeline.
// Events are sorted before scanning so minor out-of-order input is
// tolerated. The scan keeps a single "currently unlocked" state:
//
//   - an unlock while locked opens a session
//   - an unlock while already unlocked is a duplicate; the earliest known
//     start wins and no nested session is created
//   - a lock while unlocked closes the open session
//   - a lock while locked has no matching unlock and is ignored
//
// A session still open after the last event is emitted with Active set,
// representing the user currently working.
func Build(events []event.Event) []Session {
	ordered := make([]event.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var sessions []Session
	var openStart *time.Time

	for _, ev := range ordered {
		switch ev.Kind {
		case event.KindUnlock:
			if openStart == nil {
				start := ev.Timestamp
				openStart = &start
			}
		case event.KindLock:
			if openStart != nil {
				sessions = append(sessions, Session{Start: *openStart, End: ev.Timestamp})
				openStart = nil
			}
		}
	}

	if openStart != nil {
		sessions = append(sessions, Session{Start: *openStart, Active: true})
	}

	return sessions
}
