// Package evaluate decides whether a user has earned an achievement and when.
//
// Evaluate is a pure function of its Input and the Rule: it reads the
// snapshot, never mutates it, and keeps no state between calls. Missing or
// empty snapshot sections produce a NotEarned outcome rather than an error.
//
// Earned-at timestamps are backdated from history. An Outcome with a zero At
// means the deciding event is undated; the caller substitutes discovery time.
package evaluate

import (
	"time"

	"github.com/roach88/trophycase/internal/activity"
	"github.com/roach88/trophycase/internal/rules"
)

// Input is everything an evaluator may look at.
type Input struct {
	Snapshot *activity.Snapshot
	// Peers are the other tracked users' snapshots for the same cycle.
	Peers []*activity.Snapshot
	// Location is the reference timezone for calendar-based rules.
	Location *time.Location
	// AwardCount is how many awards the user already holds. Only meta rules read it.
	AwardCount int
	// Now is discovery time, used where history cannot date an award.
	Now time.Time
}

func (in Input) loc() *time.Location {
	if in.Location == nil {
		return time.UTC
	}
	return in.Location
}

// Outcome is the result of one evaluation.
type Outcome struct {
	Earned bool
	At     time.Time
	Detail map[string]any
}

var notEarned = Outcome{}

func earned(at time.Time, detail map[string]any) Outcome {
	return Outcome{Earned: true, At: at, Detail: detail}
}

// Evaluate runs the evaluator for r's category.
func Evaluate(in Input, r rules.Rule) Outcome {
	if in.Snapshot == nil || r == nil {
		return notEarned
	}

	switch r := r.(type) {
	case rules.CountMilestone:
		return countMilestone(in, r)
	case rules.HoursMilestone:
		return hoursMilestone(in, r)
	case rules.SeriesCompletion:
		return seriesCompletion(in, r)
	case rules.SeriesShape:
		return seriesShape(in, r)
	case rules.DurationThreshold:
		return durationThreshold(in, r)
	case rules.AuthorRule:
		return author(in, r)
	case rules.NarratorLoyalty:
		return narratorLoyalty(in, r)
	case rules.TitleKeyword:
		return titleKeyword(in, r)
	case rules.Social:
		return social(in, r)
	case rules.TimeOfDay:
		return timeOfDay(in, r)
	case rules.SessionBehavior:
		return sessionBehavior(in, r)
	case rules.Streak:
		return streak(in, r)
	case rules.Meta:
		return meta(in, r)
	default:
		return notEarned
	}
}

// finishTimes returns the snapshot's finish times in chronological order.
func finishTimes(s *activity.Snapshot) []time.Time {
	times := make([]time.Time, len(s.Finished))
	for i, f := range s.Finished {
		times[i] = f.FinishedAt
	}
	return times
}

func sessionEnd(s activity.Session) time.Time {
	if s.EndedAt.IsZero() {
		return s.StartedAt
	}
	return s.EndedAt
}
