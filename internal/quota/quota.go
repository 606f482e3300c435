// Package quota holds the pure decision functions behind the two
// day-granularity gates: the request quota (bounded count of sends per
// calendar day) and the scheduling cadence (at most one scheduled
// delivery per calendar day). Callers resolve "now" to a calendar date
// in the bot's configured zone once and pass it in; nothing here reads
// the wall clock.
package quota

import "time"

// DefaultMaxDailyRequests is the default daily allowance of send
// operations per subscriber.
const DefaultMaxDailyRequests = 10

// State is the stored quota state of one subscriber. LastRequestDate
// is a time.DateOnly string in the configured zone; empty means no
// request was ever recorded. DateOnly strings compare correctly as
// plain strings.
type State struct {
	RequestsToday   int64
	LastRequestDate string
}

// Eligible reports whether one more send is allowed on the given day.
func Eligible(s State, today string, maxRequests int64) bool {
	if s.LastRequestDate == "" || s.LastRequestDate < today {
		return true
	}
	return s.RequestsToday < maxRequests
}

// Remaining returns how many sends are still allowed on the given day,
// in [0, maxRequests].
func Remaining(s State, today string, maxRequests int64) int64 {
	if s.LastRequestDate == "" || s.LastRequestDate < today {
		return maxRequests
	}
	return max(0, maxRequests-s.RequestsToday)
}

// RecordRequest counts one send against the given day. A stale or
// empty stored date rolls the counter over to 1; the rollover and the
// increment are a single step, never two.
func RecordRequest(s State, today string) State {
	if s.LastRequestDate == "" || s.LastRequestDate < today {
		return State{RequestsToday: 1, LastRequestDate: today}
	}
	return State{RequestsToday: s.RequestsToday + 1, LastRequestDate: today}
}

// NeedsScheduledSend reports whether the daily cycle should deliver to
// a subscriber whose last successful delivery was at lastSentAt: true
// if there was none, or if its calendar date in loc is strictly before
// now's. Independent of the request quota.
func NeedsScheduledSend(lastSentAt *time.Time, now time.Time, loc *time.Location) bool {
	if lastSentAt == nil {
		return true
	}
	return lastSentAt.In(loc).Format(time.DateOnly) < Today(now, loc)
}

// Today resolves now to a calendar date string in loc.
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(time.DateOnly)
}

// ResetTime returns the moment the daily quota rolls over: the next
// midnight in loc after now.
func ResetTime(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, loc)
}
