package evaluate

import (
	"math"
	"sort"
	"time"

	"github.com/roach88/trophycase/internal/activity"
	"github.com/roach88/trophycase/internal/backdate"
	"github.com/roach88/trophycase/internal/rules"
)

// maxSessionSeconds caps a single session regardless of what was reported.
const maxSessionSeconds = 24 * 60 * 60

// day is a calendar date in the reference location.
type day struct {
	Year  int
	Month time.Month
	Day   int
}

func dayOf(t time.Time, loc *time.Location) day {
	y, m, d := t.In(loc).Date()
	return day{y, m, d}
}

func (d day) midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d day) next(loc *time.Location) day {
	return dayOf(time.Date(d.Year, d.Month, d.Day+1, 12, 0, 0, 0, loc), loc)
}

func (d day) before(o day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b day) int {
	ua := time.Date(a.Year, a.Month, a.Day, 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year, b.Month, b.Day, 0, 0, 0, 0, time.UTC)
	return int(math.Round(ub.Sub(ua).Hours() / 24))
}

func timeOfDay(in Input, r rules.TimeOfDay) Outcome {
	loc := in.loc()
	var found bool
	var best time.Time
	var sessionID string

	for _, sess := range in.Snapshot.Sessions {
		var at time.Time
		switch r.Pattern {
		case rules.LateNight:
			end := sessionEnd(sess).In(loc)
			wd := end.Weekday()
			if wd == time.Saturday || wd == time.Sunday || end.Hour() < 2 || end.Hour() >= 5 {
				continue
			}
			at = sessionEnd(sess)
		case rules.EarlyMorning:
			if sess.StartedAt.In(loc).Hour() >= 6 {
				continue
			}
			at = sess.StartedAt
		default:
			return notEarned
		}
		if !found || at.Before(best) {
			found, best, sessionID = true, at, sess.ID
		}
	}
	if !found {
		return notEarned
	}
	return earned(best, map[string]any{"sessionId": sessionID, "local": best.In(loc).Format("2006-01-02 15:04")})
}

// cappedSeconds bounds a session's listened time by the item duration, the
// wall-clock span and 24 hours. Sessions with no positive span count as zero.
func cappedSeconds(s *activity.Snapshot, sess activity.Session) float64 {
	if sess.ListenedSeconds <= 0 {
		return 0
	}
	wall := sessionEnd(sess).Sub(sess.StartedAt).Seconds()
	if wall <= 0 {
		return 0
	}
	secs := math.Min(sess.ListenedSeconds, wall)
	dur := sess.ItemDurationSeconds
	if dur <= 0 {
		dur = s.ItemDuration(sess.ItemID)
	}
	if dur > 0 {
		secs = math.Min(secs, dur)
	}
	return math.Min(secs, maxSessionSeconds)
}

func sessionBehavior(in Input, r rules.SessionBehavior) Outcome {
	switch r.Kind {
	case rules.SingleSession:
		return singleSession(in, r.Hours)
	case rules.WeekendMarathon:
		return weekendMarathon(in, r.Hours)
	case rules.SameDayFinish:
		return itemWindow(in, func(_ string, first, last day) bool { return first == last })
	case rules.SpeedFinish:
		limit := r.Hours * 3600
		return itemWindow(in, func(itemID string, first, last day) bool {
			return in.Snapshot.ItemDuration(itemID) >= limit && daysBetween(first, last)+1 <= r.Days
		})
	}
	return notEarned
}

func singleSession(in Input, hours float64) Outcome {
	s := in.Snapshot
	threshold := hours * 3600
	var found bool
	var best time.Time
	var secs float64
	for _, sess := range s.Sessions {
		c := cappedSeconds(s, sess)
		if c < threshold {
			continue
		}
		if end := sessionEnd(sess); !found || end.Before(best) {
			found, best, secs = true, end, c
		}
	}
	if !found {
		return notEarned
	}
	return earned(best, map[string]any{"hours": secs / 3600, "threshold": hours})
}

// weekendMarathon sums capped session time by weekend, keyed by the Saturday
// of each session's local start date, and finds the earliest crossing.
func weekendMarathon(in Input, hours float64) Outcome {
	s, loc := in.Snapshot, in.loc()
	weekends := map[day][]backdate.Event{}
	for _, sess := range s.Sessions {
		start := sess.StartedAt.In(loc)
		var sat time.Time
		switch start.Weekday() {
		case time.Saturday:
			sat = start
		case time.Sunday:
			sat = time.Date(start.Year(), start.Month(), start.Day()-1, 12, 0, 0, 0, loc)
		default:
			continue
		}
		c := cappedSeconds(s, sess)
		if c <= 0 {
			continue
		}
		key := dayOf(sat, loc)
		weekends[key] = append(weekends[key], backdate.Event{At: sessionEnd(sess), Weight: c})
	}

	var found bool
	var best time.Time
	var weekend day
	for key, events := range weekends {
		at, ok := backdate.Crossing(events, hours*3600)
		if !ok {
			continue
		}
		if !found || at.Before(best) || (at.Equal(best) && key.before(weekend)) {
			found, best, weekend = true, at, key
		}
	}
	if !found {
		return notEarned
	}
	return earned(best, map[string]any{
		"weekend":   weekend.midnight(loc).Format("2006-01-02"),
		"threshold": hours,
	})
}

// itemWindow checks each finished item's listening window (local date of its
// first session start and last session end) against match. The earliest
// qualifying item wins, dated at its finish or, if undated, its last session end.
func itemWindow(in Input, match func(itemID string, first, last day) bool) Outcome {
	s, loc := in.Snapshot, in.loc()

	type window struct {
		first, last time.Time
	}
	windows := map[string]*window{}
	for _, sess := range s.Sessions {
		if !s.IsFinished(sess.ItemID) {
			continue
		}
		w, ok := windows[sess.ItemID]
		if !ok {
			w = &window{first: sess.StartedAt, last: sessionEnd(sess)}
			windows[sess.ItemID] = w
		}
		if sess.StartedAt.Before(w.first) {
			w.first = sess.StartedAt
		}
		if end := sessionEnd(sess); end.After(w.last) {
			w.last = end
		}
	}

	var found bool
	var best time.Time
	var item string
	for _, f := range s.Finished {
		w, ok := windows[f.ItemID]
		if !ok {
			continue
		}
		first, last := dayOf(w.first, loc), dayOf(w.last, loc)
		if !match(f.ItemID, first, last) {
			continue
		}
		at := f.FinishedAt
		if at.IsZero() {
			at = w.last
		}
		if !found || at.Before(best) {
			found, best, item = true, at, f.ItemID
		}
	}
	if !found {
		return notEarned
	}
	return earned(best, map[string]any{"itemId": item, "title": s.Item(item).Title})
}

// listeningDays maps every local day covered by a session to the earliest
// moment of listening within it.
func listeningDays(s *activity.Snapshot, loc *time.Location) map[day]time.Time {
	days := map[day]time.Time{}
	for _, sess := range s.Sessions {
		end := sessionEnd(sess)
		if end.Before(sess.StartedAt) {
			end = sess.StartedAt
		}
		last := dayOf(end, loc)
		for d := dayOf(sess.StartedAt, loc); !last.before(d); d = d.next(loc) {
			moment := sess.StartedAt
			if m := d.midnight(loc); m.After(moment) {
				moment = m
			}
			if prev, ok := days[d]; !ok || moment.Before(prev) {
				days[d] = moment
			}
		}
	}
	return days
}

func sortedDays(days map[day]time.Time) []day {
	out := make([]day, 0, len(days))
	for d := range days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out
}

func streak(in Input, r rules.Streak) Outcome {
	s, loc := in.Snapshot, in.loc()
	if len(s.Sessions) == 0 {
		return notEarned
	}

	switch r.Kind {
	case rules.ConsecutiveDays:
		days := listeningDays(s, loc)
		ordered := sortedDays(days)
		run := 0
		for i, d := range ordered {
			if i > 0 && ordered[i-1].next(loc) == d {
				run++
			} else {
				run = 1
			}
			if float64(run) >= r.Threshold {
				return earned(days[d], map[string]any{"streak": run, "reachedOn": d.midnight(loc).Format("2006-01-02")})
			}
		}

	case rules.DistinctDaysInMonth:
		days := listeningDays(s, loc)
		counts := map[[2]int]int{}
		for _, d := range sortedDays(days) {
			key := [2]int{d.Year, int(d.Month)}
			counts[key]++
			if float64(counts[key]) >= r.Threshold {
				return earned(days[d], map[string]any{
					"month": d.midnight(loc).Format("2006-01"),
					"days":  counts[key],
				})
			}
		}

	case rules.HoursInMonth:
		months := map[[2]int][]backdate.Event{}
		for _, sess := range s.Sessions {
			if sess.ListenedSeconds <= 0 {
				continue
			}
			start := sess.StartedAt.In(loc)
			key := [2]int{start.Year(), int(start.Month())}
			months[key] = append(months[key], backdate.Event{At: sessionEnd(sess), Weight: sess.ListenedSeconds})
		}
		var found bool
		var best time.Time
		var month [2]int
		for key, events := range months {
			at, ok := backdate.Crossing(events, r.Threshold*3600)
			if !ok {
				continue
			}
			earlierMonth := key[0] < month[0] || (key[0] == month[0] && key[1] < month[1])
			if !found || at.Before(best) || (at.Equal(best) && earlierMonth) {
				found, best, month = true, at, key
			}
		}
		if found {
			return earned(best, map[string]any{
				"month":     time.Date(month[0], time.Month(month[1]), 1, 0, 0, 0, 0, loc).Format("2006-01"),
				"threshold": r.Threshold,
			})
		}
	}
	return notEarned
}
