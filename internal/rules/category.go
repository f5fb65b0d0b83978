package rules

import "strings"

// Category selects the evaluator for a definition.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryMilestoneBooks
	CategoryMilestoneSeries
	CategoryMilestoneYearly
	CategoryMilestoneTime
	CategorySeriesComplete
	CategorySeriesShape
	CategoryDuration
	CategoryAuthor
	CategoryNarrator
	CategoryTitleKeyword
	CategorySocial
	CategoryBehaviorTime
	CategoryBehaviorSession
	CategoryBehaviorStreak
	CategoryMeta
)

var categoryNames = map[Category]string{
	CategoryMilestoneBooks:  "milestone_books",
	CategoryMilestoneSeries: "milestone_series",
	CategoryMilestoneYearly: "milestone_yearly",
	CategoryMilestoneTime:   "milestone_time",
	CategorySeriesComplete:  "series_complete",
	CategorySeriesShape:     "series_shape",
	CategoryDuration:        "duration",
	CategoryAuthor:          "author",
	CategoryNarrator:        "narrator",
	CategoryTitleKeyword:    "title_keyword",
	CategorySocial:          "social",
	CategoryBehaviorTime:    "behavior_time",
	CategoryBehaviorSession: "behavior_session",
	CategoryBehaviorStreak:  "behavior_streak",
	CategoryMeta:            "meta",
}

var categoryByName = func() map[string]Category {
	m := make(map[string]Category, len(categoryNames)+1)
	for c, name := range categoryNames {
		m[name] = c
	}
	m["duration_based"] = CategoryDuration
	return m
}()

// ParseCategory resolves a category string. Unknown strings map to
// CategoryUnknown.
func ParseCategory(s string) Category {
	return categoryByName[strings.ToLower(strings.TrimSpace(s))]
}

// String returns the canonical category name.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Known reports whether the category has an evaluator.
func (c Category) Known() bool {
	_, ok := categoryNames[c]
	return ok
}
