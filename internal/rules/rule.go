package rules

// Rule is the parsed form of a trigger. The set of implementations is closed;
// evaluators switch on the concrete type.
type Rule interface {
	Category() Category
	rule()
}

// CountKind selects what a CountMilestone counts.
type CountKind int

const (
	CountBooks CountKind = iota
	CountSeries
	CountYearlyBooks
)

// CountMilestone is earned at the Threshold-th qualifying event.
type CountMilestone struct {
	Kind      CountKind
	Threshold int
}

// HoursMilestone is earned when cumulative listening reaches Hours.
type HoursMilestone struct {
	Hours float64
}

// SeriesCompletion names one series that must be finished in full.
type SeriesCompletion struct {
	Name string
}

// ShapeKind classifies a SeriesShape rule.
type ShapeKind int

const (
	ShapeExact ShapeKind = iota
	ShapeAtLeast
	ShapeFirstBook
)

// SeriesShape matches completed series by size, or counts first books.
// For ShapeFirstBook, Size is the number of series whose first book is finished.
type SeriesShape struct {
	Shape ShapeKind
	Size  int
}

// DurationThreshold is earned at the Count-th finished item whose duration
// is at least (Over) or at most (!Over) Hours.
type DurationThreshold struct {
	Over  bool
	Hours float64
	Count int
}

// AuthorKind classifies an AuthorRule.
type AuthorKind int

const (
	SameAuthorBooks AuthorKind = iota
	SameAuthorSeries
	DistinctAuthors
	SelfNarrated
)

// AuthorRule groups finished items by author.
type AuthorRule struct {
	Kind      AuthorKind
	Threshold int
}

// NarratorLoyalty is earned when one narrator reaches Threshold finished items.
type NarratorLoyalty struct {
	Threshold int
}

// TitleKeyword matches whole words in the title or subtitle. Keywords are lower case.
type TitleKeyword struct {
	Keywords []string
}

// SocialKind classifies a Social rule.
type SocialKind int

const (
	SocialOverlap SocialKind = iota
	SocialSameWeek
)

// Social compares a user's finishes with the other tracked users.
type Social struct {
	Kind SocialKind
}

// TimePattern is one of the fixed time-of-day matchers.
type TimePattern int

const (
	// LateNight is a session ending between 02:00 and 05:00 on a weekday.
	LateNight TimePattern = iota
	// EarlyMorning is a session starting before 06:00.
	EarlyMorning
)

// TimeOfDay matches sessions by local clock time.
type TimeOfDay struct {
	Pattern TimePattern
}

// SessionKind classifies a SessionBehavior rule.
type SessionKind int

const (
	SingleSession SessionKind = iota
	WeekendMarathon
	SameDayFinish
	SpeedFinish
)

// SessionBehavior inspects individual sessions or short windows of them.
// Days is only used by SpeedFinish.
type SessionBehavior struct {
	Kind  SessionKind
	Hours float64
	Days  int
}

// StreakKind classifies a Streak rule.
type StreakKind int

const (
	ConsecutiveDays StreakKind = iota
	DistinctDaysInMonth
	HoursInMonth
)

// Streak measures listening consistency across calendar days.
type Streak struct {
	Kind      StreakKind
	Threshold float64
}

// Meta is earned once the user holds Count other awards.
type Meta struct {
	Count int
}

func (r CountMilestone) Category() Category {
	switch r.Kind {
	case CountSeries:
		return CategoryMilestoneSeries
	case CountYearlyBooks:
		return CategoryMilestoneYearly
	default:
		return CategoryMilestoneBooks
	}
}

func (HoursMilestone) Category() Category { return CategoryMilestoneTime }
func (SeriesCompletion) Category() Category { return CategorySeriesComplete }
func (SeriesShape) Category() Category { return CategorySeriesShape }
func (DurationThreshold) Category() Category { return CategoryDuration }
func (AuthorRule) Category() Category { return CategoryAuthor }
func (NarratorLoyalty) Category() Category { return CategoryNarrator }
func (TitleKeyword) Category() Category { return CategoryTitleKeyword }
func (Social) Category() Category { return CategorySocial }
func (TimeOfDay) Category() Category { return CategoryBehaviorTime }
func (SessionBehavior) Category() Category { return CategoryBehaviorSession }
func (Streak) Category() Category { return CategoryBehaviorStreak }
func (Meta) Category() Category { return CategoryMeta }

func (CountMilestone) rule() {}
func (HoursMilestone) rule() {}
func (SeriesCompletion) rule() {}
func (SeriesShape) rule() {}
func (DurationThreshold) rule() {}
func (AuthorRule) rule() {}
func (NarratorLoyalty) rule() {}
func (TitleKeyword) rule() {}
func (Social) rule() {}
func (TimeOfDay) rule() {}
func (SessionBehavior) rule() {}
func (Streak) rule() {}
func (Meta) rule() {}
