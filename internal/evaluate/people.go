package evaluate

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/trophycase/internal/activity"
	"github.com/roach88/trophycase/internal/backdate"
	"github.com/roach88/trophycase/internal/rules"
)

// normalizeName composes, trims, collapses whitespace and case-folds a
// person's name so "Jane  Doe" and "JANE DOE" group together.
func normalizeName(s string) string {
	s = strings.Join(strings.Fields(norm.NFC.String(s)), " ")
	return cases.Fold().String(s)
}

func firstName(names []string) (key, display string) {
	for _, n := range names {
		if k := normalizeName(n); k != "" {
			return k, strings.TrimSpace(n)
		}
	}
	return "", ""
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if k := normalizeName(n); k != "" {
			set[k] = true
		}
	}
	return set
}

// group collects qualifying event times under one normalized name.
type group struct {
	display string
	times   []time.Time
}

type groups map[string]*group

func (g groups) add(key, display string, at time.Time) {
	if key == "" {
		return
	}
	gr, ok := g[key]
	if !ok {
		gr = &group{display: display}
		g[key] = gr
	}
	gr.times = append(gr.times, at)
}

// top returns the largest group meeting threshold and when it met it.
// Ties go to the group that crossed first, then to the lower key.
func (g groups) top(threshold int) (name string, count int, at time.Time, ok bool) {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var bestKey string
	for _, k := range keys {
		gr := g[k]
		crossed, hit := backdate.Nth(gr.times, threshold)
		if !hit {
			continue
		}
		n := len(gr.times)
		if !ok || n > count || (n == count && activity.TimeBefore(crossed, at)) {
			bestKey, count, at, ok = k, n, crossed, true
		}
	}
	if !ok {
		return "", 0, time.Time{}, false
	}
	return g[bestKey].display, count, at, true
}

func author(in Input, r rules.AuthorRule) Outcome {
	s := in.Snapshot
	switch r.Kind {
	case rules.SelfNarrated:
		for _, f := range s.Finished {
			meta := s.Item(f.ItemID)
			authors := nameSet(meta.Authors)
			for _, n := range meta.Narrators {
				if authors[normalizeName(n)] {
					return earned(f.FinishedAt, map[string]any{"itemId": f.ItemID, "title": meta.Title, "author": strings.TrimSpace(n)})
				}
			}
		}
		return notEarned

	case rules.DistinctAuthors:
		seen := map[string]bool{}
		var times []time.Time
		for _, f := range s.Finished {
			for _, a := range s.Item(f.ItemID).Authors {
				k := normalizeName(a)
				if k == "" || seen[k] {
					continue
				}
				seen[k] = true
				times = append(times, f.FinishedAt)
			}
		}
		at, ok := backdate.Nth(times, r.Threshold)
		if !ok {
			return notEarned
		}
		return earned(at, map[string]any{"authors": len(seen), "threshold": r.Threshold})

	case rules.SameAuthorSeries:
		g := groups{}
		for _, c := range completedSeries(s) {
			key, display := seriesAuthor(s, c.series)
			g.add(key, display, c.at)
		}
		return groupOutcome(g, r.Threshold, "author")

	default:
		g := groups{}
		for _, f := range s.Finished {
			key, display := firstName(s.Item(f.ItemID).Authors)
			g.add(key, display, f.FinishedAt)
		}
		return groupOutcome(g, r.Threshold, "author")
	}
}

// seriesAuthor attributes a series to the first-listed author of its first
// item that has author metadata.
func seriesAuthor(s *activity.Snapshot, series activity.Series) (string, string) {
	for _, e := range series.Items {
		if key, display := firstName(s.Item(e.ItemID).Authors); key != "" {
			return key, display
		}
	}
	return "", ""
}

func narratorLoyalty(in Input, r rules.NarratorLoyalty) Outcome {
	s := in.Snapshot
	g := groups{}
	for _, f := range s.Finished {
		key, display := firstName(s.Item(f.ItemID).Narrators)
		g.add(key, display, f.FinishedAt)
	}
	return groupOutcome(g, r.Threshold, "narrator")
}

func groupOutcome(g groups, threshold int, label string) Outcome {
	name, count, at, ok := g.top(threshold)
	if !ok {
		return notEarned
	}
	return earned(at, map[string]any{label: name, "count": count, "threshold": threshold})
}
