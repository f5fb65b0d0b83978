package evaluate

import (
	"time"

	"github.com/roach88/trophycase/internal/backdate"
	"github.com/roach88/trophycase/internal/rules"
)

func durationThreshold(in Input, r rules.DurationThreshold) Outcome {
	s := in.Snapshot
	limit := r.Hours * 3600

	var times []time.Time
	best := ""
	var bestDur float64
	for _, f := range s.Finished {
		d := s.ItemDuration(f.ItemID)
		if d <= 0 {
			continue
		}
		if (r.Over && d < limit) || (!r.Over && d > limit) {
			continue
		}
		times = append(times, f.FinishedAt)
		if best == "" || (r.Over && d > bestDur) || (!r.Over && d < bestDur) {
			best, bestDur = f.ItemID, d
		}
	}

	at, ok := backdate.Nth(times, r.Count)
	if !ok {
		return notEarned
	}
	mode := "under"
	if r.Over {
		mode = "over"
	}
	return earned(at, map[string]any{
		"matchedItemId":  best,
		"durationHours":  bestDur / 3600,
		"matchCount":     len(times),
		"requiredCount":  r.Count,
		"thresholdHours": r.Hours,
		"mode":           mode,
	})
}
