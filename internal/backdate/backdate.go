// Package backdate finds the moment a cumulative threshold was first crossed.
//
// Evaluators describe history as events (a time plus a contribution) and ask
// for the earliest prefix whose running total meets a threshold. Results
// depend only on the events, never on when the question is asked, so the same
// history always yields the same earned-at timestamp.
//
// Undated events (zero time) sort after every dated event and keep their
// relative order. A crossing caused by an undated event reports a zero time;
// callers substitute their discovery time.
package backdate

import (
	"sort"
	"time"
)

// Event is one contribution toward a threshold.
type Event struct {
	At     time.Time
	Weight float64
}

// Crossing returns the time of the event whose cumulative weight first
// reaches threshold. The slice is not modified.
//
// A non-positive threshold is never crossed.
func Crossing(events []Event, threshold float64) (time.Time, bool) {
	if threshold <= 0 || len(events) == 0 {
		return time.Time{}, false
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return before(ordered[i].At, ordered[j].At)
	})

	var sum float64
	for _, e := range ordered {
		sum += e.Weight
		if sum >= threshold {
			return e.At, true
		}
	}
	return time.Time{}, false
}

// Nth returns the n-th (1-based) time in chronological order.
func Nth(times []time.Time, n int) (time.Time, bool) {
	if n <= 0 || len(times) < n {
		return time.Time{}, false
	}
	events := make([]Event, len(times))
	for i, t := range times {
		events[i] = Event{At: t, Weight: 1}
	}
	return Crossing(events, float64(n))
}

// Earliest returns the earliest dated time, or the zero time if none is dated.
func Earliest(times ...time.Time) time.Time {
	var out time.Time
	for _, t := range times {
		if before(t, out) {
			out = t
		}
	}
	return out
}

// Latest returns the latest time. If any time is zero the result is zero,
// since a maximum over an unknown value is itself unknown.
func Latest(times ...time.Time) time.Time {
	var out time.Time
	for i, t := range times {
		if t.IsZero() {
			return time.Time{}
		}
		if i == 0 || t.After(out) {
			out = t
		}
	}
	return out
}

func before(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.Before(b)
	}
}
