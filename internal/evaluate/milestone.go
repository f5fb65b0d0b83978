package evaluate

import (
	"sort"
	"time"

	"github.com/roach88/trophycase/internal/activity"
	"github.com/roach88/trophycase/internal/backdate"
	"github.com/roach88/trophycase/internal/rules"
)

func countMilestone(in Input, r rules.CountMilestone) Outcome {
	s := in.Snapshot
	switch r.Kind {
	case rules.CountBooks:
		at, ok := backdate.Nth(finishTimes(s), r.Threshold)
		if !ok {
			return notEarned
		}
		return earned(at, map[string]any{"finished": len(s.Finished), "threshold": r.Threshold})

	case rules.CountSeries:
		completions := completedSeries(s)
		times := make([]time.Time, len(completions))
		for i, c := range completions {
			times[i] = c.at
		}
		at, ok := backdate.Nth(times, r.Threshold)
		if !ok {
			return notEarned
		}
		return earned(at, map[string]any{"completedSeries": len(completions), "threshold": r.Threshold})

	case rules.CountYearlyBooks:
		return yearlyBooks(in, r.Threshold)
	}
	return notEarned
}

// yearlyBooks finds the earliest calendar year with at least n dated
// finishes and dates the award at that year's last finish.
func yearlyBooks(in Input, n int) Outcome {
	byYear := map[int][]time.Time{}
	for _, f := range in.Snapshot.Finished {
		if !f.Dated() {
			continue
		}
		y := f.FinishedAt.In(in.loc()).Year()
		byYear[y] = append(byYear[y], f.FinishedAt)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, y := range years {
		times := byYear[y]
		if n <= 0 || len(times) < n {
			continue
		}
		last := times[0]
		for _, t := range times[1:] {
			if t.After(last) {
				last = t
			}
		}
		return earned(last, map[string]any{"year": y, "finished": len(times), "threshold": n})
	}
	return notEarned
}

func hoursMilestone(in Input, r rules.HoursMilestone) Outcome {
	s := in.Snapshot
	threshold := r.Hours * 3600

	if len(s.Sessions) == 0 {
		if s.ListeningSeconds > 0 && s.ListeningSeconds >= threshold {
			return earned(in.Now, map[string]any{
				"hours":     s.ListeningSeconds / 3600,
				"threshold": r.Hours,
				"source":    "listening_total",
			})
		}
		return notEarned
	}

	events := make([]backdate.Event, 0, len(s.Sessions))
	var total float64
	for _, sess := range s.Sessions {
		if sess.ListenedSeconds <= 0 {
			continue
		}
		total += sess.ListenedSeconds
		events = append(events, backdate.Event{At: sessionEnd(sess), Weight: sess.ListenedSeconds})
	}
	at, ok := backdate.Crossing(events, threshold)
	if !ok {
		return notEarned
	}
	return earned(at, map[string]any{"hours": total / 3600, "threshold": r.Hours, "source": "sessions"})
}

type seriesCompletionAt struct {
	series activity.Series
	at     time.Time
}

// completedSeries lists fully finished series in index order.
func completedSeries(s *activity.Snapshot) []seriesCompletionAt {
	var out []seriesCompletionAt
	for _, series := range s.Series {
		if at, ok := s.SeriesComplete(series); ok {
			out = append(out, seriesCompletionAt{series: series, at: at})
		}
	}
	return out
}
