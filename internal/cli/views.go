package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/roach88/trophycase/internal/engine"
	"github.com/roach88/trophycase/internal/ledger"
	"github.com/roach88/trophycase/internal/rules"
)

// awardView is the wire form of a ledger row.
type awardView struct {
	UserID        string         `json:"user_id"`
	AchievementID string         `json:"achievement_id"`
	EarnedAt      time.Time      `json:"earned_at"`
	DiscoveredAt  time.Time      `json:"discovered_at"`
	CycleID       string         `json:"cycle_id,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}

func newAwardViews(awards []ledger.Award) []awardView {
	out := make([]awardView, len(awards))
	for i, a := range awards {
		out[i] = awardView{
			UserID:        a.UserID,
			AchievementID: a.AchievementID,
			EarnedAt:      a.EarnedAt.UTC(),
			DiscoveredAt:  a.DiscoveredAt.UTC(),
			CycleID:       a.CycleID,
			Detail:        a.Detail,
		}
	}
	return out
}

func writeAwards(w io.Writer, awards []awardView) {
	for _, a := range awards {
		fmt.Fprintf(w, "  %s  %-12s %s\n", a.EarnedAt.Format(time.RFC3339), a.UserID, a.AchievementID)
	}
}

// cycleView summarizes one evaluation cycle.
type cycleView struct {
	ID          string      `json:"id"`
	RuleVersion string      `json:"rule_version,omitempty"`
	Rules       int         `json:"rules"`
	Issues      int         `json:"issues"`
	Users       int         `json:"users"`
	Degraded    []string    `json:"degraded,omitempty"`
	NewAwards   []awardView `json:"new_awards"`
	Failures    []string    `json:"failures,omitempty"`
	NotifyError string      `json:"notify_error,omitempty"`
}

func newCycleView(r *engine.CycleReport) cycleView {
	v := cycleView{
		ID:          r.ID,
		RuleVersion: r.RuleVersion,
		Rules:       r.Rules,
		Issues:      r.Issues,
		Users:       r.Users,
		Degraded:    r.Degraded,
		NewAwards:   newAwardViews(r.NewAwards),
	}
	for _, f := range r.Failures {
		v.Failures = append(v.Failures, f.Error())
	}
	if r.NotifyErr != nil {
		v.NotifyError = r.NotifyErr.Error()
	}
	return v
}

func (v cycleView) renderText(w io.Writer) {
	fmt.Fprintf(w, "Cycle %s: %d user(s), %d rule(s), %d new award(s)\n", v.ID, v.Users, v.Rules, len(v.NewAwards))
	if v.Issues > 0 {
		fmt.Fprintf(w, "  %d definition(s) skipped, run `trophycase validate` for details\n", v.Issues)
	}
	for _, s := range v.Degraded {
		fmt.Fprintf(w, "  degraded: %s unavailable\n", s)
	}
	writeAwards(w, v.NewAwards)
	for _, f := range v.Failures {
		fmt.Fprintf(w, "  failed: %s\n", f)
	}
	if v.NotifyError != "" {
		fmt.Fprintf(w, "  notifications failed: %s\n", v.NotifyError)
	}
}

// awardList is the awards command payload.
type awardList struct {
	Awards []awardView `json:"awards"`
}

func (l awardList) renderText(w io.Writer) {
	if len(l.Awards) == 0 {
		fmt.Fprintln(w, "No awards recorded.")
		return
	}
	fmt.Fprintf(w, "%d award(s):\n", len(l.Awards))
	writeAwards(w, l.Awards)
}

// journalView is one journaled cycle.
type journalView struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	RuleVersion string     `json:"rule_version,omitempty"`
	Users       int        `json:"users"`
	NewAwards   int        `json:"new_awards"`
	Error       string     `json:"error,omitempty"`
}

type cycleList struct {
	Cycles []journalView `json:"cycles"`
}

func newCycleList(cycles []ledger.Cycle) cycleList {
	out := cycleList{Cycles: make([]journalView, len(cycles))}
	for i, c := range cycles {
		v := journalView{
			ID:          c.ID,
			Status:      c.Status,
			StartedAt:   c.StartedAt.UTC(),
			RuleVersion: c.RuleVersion,
			Users:       c.Users,
			NewAwards:   c.NewAwards,
			Error:       c.Error,
		}
		if !c.FinishedAt.IsZero() {
			fin := c.FinishedAt.UTC()
			v.FinishedAt = &fin
		}
		out.Cycles[i] = v
	}
	return out
}

func (l cycleList) renderText(w io.Writer) {
	if len(l.Cycles) == 0 {
		fmt.Fprintln(w, "No cycles journaled.")
		return
	}
	for _, c := range l.Cycles {
		fmt.Fprintf(w, "%s  %-9s %s  users=%d new=%d", c.StartedAt.Format(time.RFC3339), c.Status, c.ID, c.Users, c.NewAwards)
		if c.Error != "" {
			fmt.Fprintf(w, "  error=%q", c.Error)
		}
		fmt.Fprintln(w)
	}
}

// validationResult is the validate command payload.
type validationResult struct {
	Path        string            `json:"path"`
	Version     string            `json:"version"`
	Definitions int               `json:"definitions"`
	Active      int               `json:"active"`
	Issues      []rules.LoadIssue `json:"issues,omitempty"`
}

func (r validationResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s: %d definition(s), %d active\n", r.Path, r.Definitions, r.Active)
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  %s\n", issue.Error())
	}
}
