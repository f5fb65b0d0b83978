package evaluate

import (
	"regexp"
	"strings"
	"time"

	"github.com/roach88/trophycase/internal/activity"
	"github.com/roach88/trophycase/internal/backdate"
	"github.com/roach88/trophycase/internal/rules"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeSeriesName lower-cases and collapses every non-alphanumeric run to a space.
func normalizeSeriesName(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

// findSeries resolves a name against the index: exact normalized match
// first, then the first series whose normalized name contains it.
func findSeries(index []activity.Series, name string) (activity.Series, bool) {
	target := normalizeSeriesName(name)
	if target == "" {
		return activity.Series{}, false
	}
	for _, s := range index {
		if normalizeSeriesName(s.Name) == target {
			return s, true
		}
	}
	for _, s := range index {
		if strings.Contains(normalizeSeriesName(s.Name), target) {
			return s, true
		}
	}
	return activity.Series{}, false
}

func seriesCompletion(in Input, r rules.SeriesCompletion) Outcome {
	series, ok := findSeries(in.Snapshot.Series, r.Name)
	if !ok {
		return notEarned
	}
	at, ok := in.Snapshot.SeriesComplete(series)
	if !ok {
		return notEarned
	}
	return earned(at, map[string]any{
		"series":   series.Name,
		"seriesId": series.ID,
		"books":    len(series.Items),
	})
}

func seriesShape(in Input, r rules.SeriesShape) Outcome {
	s := in.Snapshot
	if r.Shape == rules.ShapeFirstBook {
		return firstBooks(s, r.Size)
	}

	for _, c := range completedSeries(s) {
		size := len(c.series.Items)
		if (r.Shape == rules.ShapeExact && size == r.Size) || (r.Shape == rules.ShapeAtLeast && size >= r.Size) {
			return earned(c.at, map[string]any{"series": c.series.Name, "seriesId": c.series.ID, "books": size})
		}
	}
	return notEarned
}

// firstBooks counts series whose lowest-sequence item is finished and dates
// the award at the n-th such finish.
func firstBooks(s *activity.Snapshot, n int) Outcome {
	var times []time.Time
	for _, series := range s.Series {
		if len(series.Items) == 0 {
			continue
		}
		if at, ok := s.FinishedAt(series.Items[0].ItemID); ok {
			times = append(times, at)
		}
	}
	at, ok := backdate.Nth(times, n)
	if !ok {
		return notEarned
	}
	return earned(at, map[string]any{"started": len(times), "threshold": n})
}
