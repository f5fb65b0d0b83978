package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnparseable is returned when a trigger does not fit its category's grammar.
var ErrUnparseable = errors.New("trigger not parseable")

// ErrUnknownCategory is returned by Parse for categories with no evaluator.
var ErrUnknownCategory = errors.New("unknown category")

type grammar func(def Definition, trig string) (Rule, bool)

var grammars = map[Category]grammar{
	CategoryMilestoneBooks:  countGrammar(CountBooks),
	CategoryMilestoneSeries: countGrammar(CountSeries),
	CategoryMilestoneYearly: countGrammar(CountYearlyBooks),
	CategoryMilestoneTime:   parseHoursMilestone,
	CategorySeriesComplete:  parseSeriesCompletion,
	CategorySeriesShape:     parseSeriesShape,
	CategoryDuration:        parseDuration,
	CategoryAuthor:          parseAuthor,
	CategoryNarrator:        parseNarrator,
	CategoryTitleKeyword:    parseTitleKeyword,
	CategorySocial:          parseSocial,
	CategoryBehaviorTime:    parseTimeOfDay,
	CategoryBehaviorSession: parseSessionBehavior,
	CategoryBehaviorStreak:  parseStreak,
	CategoryMeta:            parseMeta,
}

// Parse turns a definition's trigger into a Rule.
func Parse(def Definition) (Rule, error) {
	cat := ParseCategory(def.Category)
	g, ok := grammars[cat]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, def.Category)
	}
	trig := strings.ToLower(strings.TrimSpace(def.Trigger))
	r, ok := g(def, trig)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrUnparseable, cat, def.Trigger)
	}
	return r, nil
}

var (
	intRe        = regexp.MustCompile(`(\d+)`)
	hourRe       = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*hours?`)
	bookCountRe  = regexp.MustCompile(`(\d+)\s+books?`)
	seriesNameRe = regexp.MustCompile(`(?i)(?:complete|finish)\s+all\s+books\s+in\s+(.+)$`)
	exactlyRe    = regexp.MustCompile(`exactly\s+(\d+)`)
	atLeastRe    = regexp.MustCompile(`(?:(\d+)\+\s*books?|more than\s+(\d+)|at least\s+(\d+))`)
	durationOpRe = regexp.MustCompile(`(>=|<=)\s*(\d+(?:\.\d+)?)\s*hours?`)
	durationRe   = regexp.MustCompile(`\b(over|under)\b\s*(\d+(?:\.\d+)?)\s*hours?`)
	speedHoursRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\+\s*hours?`)
	speedDaysRe  = regexp.MustCompile(`(\d+)\s*days?`)
	metaRe       = regexp.MustCompile(`earn(?:ed)?\s+(\d+)\s+(?:\w+\s+)?achievements?`)
)

// firstInt returns the first integer in s, ignoring thousands separators.
func firstInt(s string) (int, bool) {
	m := intRe.FindStringSubmatch(strings.ReplaceAll(s, ",", ""))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func firstHours(s string) (float64, bool) {
	m := hourRe.FindStringSubmatch(strings.ReplaceAll(s, ",", ""))
	if m == nil {
		return 0, false
	}
	h, err := strconv.ParseFloat(m[1], 64)
	return h, err == nil && h > 0
}

func submatchInt(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		return n, err == nil
	}
	return 0, false
}

func countGrammar(kind CountKind) grammar {
	return func(_ Definition, trig string) (Rule, bool) {
		n, ok := firstInt(trig)
		if !ok || n <= 0 {
			return nil, false
		}
		return CountMilestone{Kind: kind, Threshold: n}, true
	}
}

func parseHoursMilestone(_ Definition, trig string) (Rule, bool) {
	h, ok := firstHours(trig)
	if !ok {
		return nil, false
	}
	return HoursMilestone{Hours: h}, true
}

func parseSeriesCompletion(def Definition, _ string) (Rule, bool) {
	// The original casing is kept for display; matching normalizes it anyway.
	if m := seriesNameRe.FindStringSubmatch(strings.TrimSpace(def.Trigger)); m != nil {
		if name := strings.TrimRight(strings.TrimSpace(m[1]), ".!"); name != "" {
			return SeriesCompletion{Name: name}, true
		}
	}
	for _, fallback := range []string{def.Title, def.Achievement} {
		if name := strings.TrimSpace(fallback); name != "" {
			return SeriesCompletion{Name: name}, true
		}
	}
	return nil, false
}

func parseSeriesShape(_ Definition, trig string) (Rule, bool) {
	switch {
	case strings.Contains(trig, "first book of"):
		n, ok := firstInt(trig)
		if !ok || n <= 0 {
			n = 5
		}
		return SeriesShape{Shape: ShapeFirstBook, Size: n}, true
	case exactlyRe.MatchString(trig):
		n, _ := submatchInt(exactlyRe, trig)
		if n <= 0 {
			return nil, false
		}
		return SeriesShape{Shape: ShapeExact, Size: n}, true
	case strings.Contains(trig, "duology"):
		return SeriesShape{Shape: ShapeExact, Size: 2}, true
	case strings.Contains(trig, "trilogy"):
		return SeriesShape{Shape: ShapeExact, Size: 3}, true
	case atLeastRe.MatchString(trig):
		n, _ := submatchInt(atLeastRe, trig)
		if n <= 0 {
			return nil, false
		}
		return SeriesShape{Shape: ShapeAtLeast, Size: n}, true
	}
	return nil, false
}

func parseDuration(_ Definition, trig string) (Rule, bool) {
	t := strings.NewReplacer("longer than", "over", "shorter than", "under").Replace(trig)

	var over bool
	var hours string
	if m := durationOpRe.FindStringSubmatch(t); m != nil {
		over, hours = m[1] == ">=", m[2]
	} else if m := durationRe.FindStringSubmatch(t); m != nil {
		over, hours = m[1] == "over", m[2]
	} else {
		return nil, false
	}

	h, err := strconv.ParseFloat(hours, 64)
	if err != nil || h <= 0 {
		return nil, false
	}
	count := 1
	if n, ok := submatchInt(bookCountRe, t); ok && n > 0 {
		count = n
	}
	return DurationThreshold{Over: over, Hours: h, Count: count}, true
}

func parseAuthor(_ Definition, trig string) (Rule, bool) {
	if strings.Contains(trig, "narrated by the author") || strings.Contains(trig, "narrated by their author") {
		return AuthorRule{Kind: SelfNarrated, Threshold: 1}, true
	}

	var kind AuthorKind
	switch {
	case strings.Contains(trig, "different authors") || strings.Contains(trig, "distinct authors"):
		kind = DistinctAuthors
	case strings.Contains(trig, "series by the same author"):
		kind = SameAuthorSeries
	case strings.Contains(trig, "by the same author"):
		kind = SameAuthorBooks
	default:
		return nil, false
	}
	n, ok := firstInt(trig)
	if !ok || n <= 0 {
		return nil, false
	}
	return AuthorRule{Kind: kind, Threshold: n}, true
}

func parseNarrator(_ Definition, trig string) (Rule, bool) {
	n, ok := firstInt(trig)
	if !ok || n <= 0 {
		return nil, false
	}
	return NarratorLoyalty{Threshold: n}, true
}

func parseTitleKeyword(def Definition, trig string) (Rule, bool) {
	var raw []string
	if len(def.Keywords) > 0 {
		raw = def.Keywords
	} else if start := strings.Index(trig, "with "); start >= 0 {
		rest := trig[start+len("with "):]
		end := strings.Index(rest, " in the title")
		if end < 0 {
			return nil, false
		}
		raw = strings.Split(strings.ReplaceAll(rest[:end], " or ", ","), ",")
	}

	seen := map[string]bool{}
	var keywords []string
	for _, k := range raw {
		k = strings.ToLower(strings.Trim(strings.TrimSpace(k), `"'`))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
	}
	if len(keywords) == 0 {
		return nil, false
	}
	return TitleKeyword{Keywords: keywords}, true
}

func parseSocial(_ Definition, trig string) (Rule, bool) {
	if strings.Contains(trig, "same book") && strings.Contains(trig, "same week") {
		return Social{Kind: SocialSameWeek}, true
	}
	return Social{Kind: SocialOverlap}, true
}

func parseTimeOfDay(_ Definition, trig string) (Rule, bool) {
	switch {
	case strings.Contains(trig, "before 6:00 am"):
		return TimeOfDay{Pattern: EarlyMorning}, true
	case strings.Contains(trig, "2:00 am"):
		return TimeOfDay{Pattern: LateNight}, true
	}
	return nil, false
}

func parseSessionBehavior(_ Definition, trig string) (Rule, bool) {
	switch {
	case strings.Contains(trig, "single listening session"):
		h, ok := firstHours(trig)
		if !ok {
			return nil, false
		}
		return SessionBehavior{Kind: SingleSession, Hours: h}, true
	case strings.Contains(trig, "over a single weekend"):
		h, ok := firstHours(trig)
		if !ok {
			return nil, false
		}
		return SessionBehavior{Kind: WeekendMarathon, Hours: h}, true
	case strings.Contains(trig, "finish a book in a single day"):
		return SessionBehavior{Kind: SameDayFinish}, true
	}

	hm := speedHoursRe.FindStringSubmatch(trig)
	days, ok := submatchInt(speedDaysRe, trig)
	if hm == nil || !ok || days <= 0 {
		return nil, false
	}
	h, err := strconv.ParseFloat(hm[1], 64)
	if err != nil || h <= 0 {
		return nil, false
	}
	return SessionBehavior{Kind: SpeedFinish, Hours: h, Days: days}, true
}

func parseStreak(_ Definition, trig string) (Rule, bool) {
	n, ok := firstInt(trig)
	if !ok || n <= 0 {
		return nil, false
	}
	switch {
	case strings.Contains(trig, "consecutive") || strings.Contains(trig, "streak") || strings.Contains(trig, "in a row"):
		return Streak{Kind: ConsecutiveDays, Threshold: float64(n)}, true
	case strings.Contains(trig, "hours") && strings.Contains(trig, "month"):
		h, ok := firstHours(trig)
		if !ok {
			return nil, false
		}
		return Streak{Kind: HoursInMonth, Threshold: h}, true
	case strings.Contains(trig, "distinct days") && strings.Contains(trig, "month"):
		return Streak{Kind: DistinctDaysInMonth, Threshold: float64(n)}, true
	}
	return nil, false
}

func parseMeta(_ Definition, trig string) (Rule, bool) {
	n, ok := submatchInt(metaRe, trig)
	if !ok || n <= 0 {
		return nil, false
	}
	return Meta{Count: n}, true
}
