package evaluate

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trophycase/internal/activity"
	"github.com/roach88/trophycase/internal/rules"
	"github.com/roach88/trophycase/internal/testutil"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func input(s *activity.Snapshot, peers ...*activity.Snapshot) Input {
	return Input{Snapshot: s, Peers: peers, Location: time.UTC, Now: now}
}

func jan(d int) time.Time {
	return testutil.Day(2024, 1, d)
}

func mustLoadNY(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestCountMilestone_ThresholdBoundary(t *testing.T) {
	rule := rules.CountMilestone{Kind: rules.CountBooks, Threshold: 3}

	twoBooks := testutil.NewSnapshot("u1").Finish("b1", jan(1)).Finish("b2", jan(2)).Build()
	assert.False(t, Evaluate(input(twoBooks), rule).Earned, "N-1 finishes never earn")

	threeBooks := testutil.NewSnapshot("u1").
		Finish("b3", jan(9)).Finish("b1", jan(1)).Finish("b2", jan(2)).Finish("b4", jan(12)).
		Build()
	out := Evaluate(input(threeBooks), rule)
	require.True(t, out.Earned)
	assert.Equal(t, jan(9), out.At, "earned at the Nth finish, not the latest")
}

func TestCountMilestone_UndatedCrossing(t *testing.T) {
	s := testutil.NewSnapshot("u1").Finish("b1", jan(1)).FinishUndated("b2").Build()

	out := Evaluate(input(s), rules.CountMilestone{Kind: rules.CountBooks, Threshold: 2})
	require.True(t, out.Earned)
	assert.True(t, out.At.IsZero(), "caller substitutes discovery time")
}

func TestCountMilestone_Series(t *testing.T) {
	s := testutil.NewSnapshot("u1").
		Series("s1", "Pair", "a1", "a2").
		Series("s2", "Solo", "b1").
		Series("s3", "Unfinished", "c1", "c2").
		Finish("a1", jan(1)).Finish("a2", jan(6)).
		Finish("b1", jan(3)).
		Finish("c1", jan(2)).
		Build()

	out := Evaluate(input(s), rules.CountMilestone{Kind: rules.CountSeries, Threshold: 2})
	require.True(t, out.Earned)
	assert.Equal(t, jan(6), out.At)

	assert.False(t, Evaluate(input(s), rules.CountMilestone{Kind: rules.CountSeries, Threshold: 3}).Earned)
}

func TestCountMilestone_YearlyUsesReferenceLocation(t *testing.T) {
	ny := mustLoadNY(t)
	newYearsEveInNY := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	s := testutil.NewSnapshot("u1").
		Finish("b1", testutil.Day(2023, 12, 10)).
		Finish("b2", testutil.Day(2023, 12, 20)).
		Finish("b3", newYearsEveInNY).
		Finish("b4", testutil.Day(2024, 3, 1)).
		Build()
	rule := rules.CountMilestone{Kind: rules.CountYearlyBooks, Threshold: 3}

	in := input(s)
	in.Location = ny
	out := Evaluate(in, rule)
	require.True(t, out.Earned)
	assert.Equal(t, newYearsEveInNY, out.At)
	assert.Equal(t, 2023, out.Detail["year"])

	assert.False(t, Evaluate(input(s), rule).Earned, "in UTC neither year has three finishes")
}

func TestCountMilestone_YearlyDatedAtLastFinishOfYear(t *testing.T) {
	s := testutil.NewSnapshot("u1").
		Finish("b1", testutil.Day(2023, 2, 1)).
		Finish("b4", testutil.Day(2023, 11, 1)).
		Finish("b2", testutil.Day(2023, 3, 1)).
		Finish("b3", testutil.Day(2023, 4, 1)).
		Finish("b5", testutil.Day(2024, 1, 5)).
		Build()

	out := Evaluate(input(s), rules.CountMilestone{Kind: rules.CountYearlyBooks, Threshold: 3})
	require.True(t, out.Earned)
	assert.Equal(t, testutil.Day(2023, 11, 1), out.At, "last finish of the year, not the third")
	assert.Equal(t, 2023, out.Detail["year"])
	assert.Equal(t, 4, out.Detail["finished"])
}

func TestHoursMilestone(t *testing.T) {
	s := testutil.NewSnapshot("u1").
		Session("b1", jan(1), jan(1).Add(2*time.Hour), 2*3600).
		Session("b1", jan(2), jan(2).Add(3*time.Hour), 3*3600).
		Session("b2", jan(3), jan(3).Add(time.Hour), 3600).
		Build()

	out := Evaluate(input(s), rules.HoursMilestone{Hours: 5})
	require.True(t, out.Earned)
	assert.Equal(t, jan(2).Add(3*time.Hour), out.At)

	assert.False(t, Evaluate(input(s), rules.HoursMilestone{Hours: 7}).Earned)
}

func TestHoursMilestone_FallsBackToProviderTotal(t *testing.T) {
	s := testutil.NewSnapshot("u1").ListeningSeconds(20000).Build()

	out := Evaluate(input(s), rules.HoursMilestone{Hours: 5})
	require.True(t, out.Earned)
	assert.Equal(t, now, out.At)

	assert.False(t, Evaluate(input(s), rules.HoursMilestone{Hours: 6}).Earned)
}

func TestMeta(t *testing.T) {
	s := testutil.NewSnapshot("u1").Build()
	in := input(s)
	in.AwardCount = 3

	out := Evaluate(in, rules.Meta{Count: 3})
	require.True(t, out.Earned)
	assert.Equal(t, now, out.At)

	assert.False(t, Evaluate(in, rules.Meta{Count: 4}).Earned)
}

func TestEvaluate_EmptySnapshotNeverEarns(t *testing.T) {
	empty := testutil.NewSnapshot("u1").Build()
	peer := testutil.NewSnapshot("u2").Build()

	all := []rules.Rule{
		rules.CountMilestone{Kind: rules.CountBooks, Threshold: 1},
		rules.CountMilestone{Kind: rules.CountSeries, Threshold: 1},
		rules.CountMilestone{Kind: rules.CountYearlyBooks, Threshold: 1},
		rules.HoursMilestone{Hours: 1},
		rules.SeriesCompletion{Name: "Cradle"},
		rules.SeriesShape{Shape: rules.ShapeExact, Size: 3},
		rules.SeriesShape{Shape: rules.ShapeFirstBook, Size: 1},
		rules.DurationThreshold{Over: true, Hours: 1, Count: 1},
		rules.AuthorRule{Kind: rules.SameAuthorBooks, Threshold: 1},
		rules.AuthorRule{Kind: rules.SameAuthorSeries, Threshold: 1},
		rules.AuthorRule{Kind: rules.DistinctAuthors, Threshold: 1},
		rules.AuthorRule{Kind: rules.SelfNarrated, Threshold: 1},
		rules.NarratorLoyalty{Threshold: 1},
		rules.TitleKeyword{Keywords: []string{"mage"}},
		rules.Social{Kind: rules.SocialOverlap},
		rules.Social{Kind: rules.SocialSameWeek},
		rules.TimeOfDay{Pattern: rules.LateNight},
		rules.TimeOfDay{Pattern: rules.EarlyMorning},
		rules.SessionBehavior{Kind: rules.SingleSession, Hours: 1},
		rules.SessionBehavior{Kind: rules.WeekendMarathon, Hours: 1},
		rules.SessionBehavior{Kind: rules.SameDayFinish},
		rules.SessionBehavior{Kind: rules.SpeedFinish, Hours: 1, Days: 7},
		rules.Streak{Kind: rules.ConsecutiveDays, Threshold: 1},
		rules.Streak{Kind: rules.DistinctDaysInMonth, Threshold: 1},
		rules.Streak{Kind: rules.HoursInMonth, Threshold: 1},
		rules.Meta{Count: 1},
	}
	for _, r := range all {
		assert.False(t, Evaluate(input(empty, peer), r).Earned, "%T %+v", r, r)
	}
	assert.False(t, Evaluate(Input{}, all[0]).Earned)
}
