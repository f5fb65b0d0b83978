package activity

import (
	"sort"
	"time"
)

// User identifies a tracked listener.
type User struct {
	ID       string
	Username string
	Email    string
}

// FinishedItem records that a user finished a library item.
// FinishedAt is zero when the service has no date for the finish.
type FinishedItem struct {
	ItemID     string
	FinishedAt time.Time
}

// Dated reports whether the finish carries a timestamp.
func (f FinishedItem) Dated() bool {
	return !f.FinishedAt.IsZero()
}

// Session is one listening session as reported by the stats service.
type Session struct {
	ID                  string
	ItemID              string
	StartedAt           time.Time
	EndedAt             time.Time
	ListenedSeconds     float64
	ItemDurationSeconds float64
	DeviceTag           string
}

// SeriesEntry is one member of a series.
type SeriesEntry struct {
	ItemID   string
	Sequence float64
}

// Series is an ordered set of items. Items are sorted by Sequence.
type Series struct {
	ID    string
	Name  string
	Items []SeriesEntry
}

// ItemIDs returns member ids in sequence order.
func (s Series) ItemIDs() []string {
	ids := make([]string, len(s.Items))
	for i, e := range s.Items {
		ids[i] = e.ItemID
	}
	return ids
}

// ItemMeta is the metadata the evaluators need for one library item.
type ItemMeta struct {
	ID              string
	Title           string
	Subtitle        string
	Authors         []string
	Narrators       []string
	DurationSeconds float64
}

// Snapshot is one user's complete activity history for a single cycle.
type Snapshot struct {
	UserID   string
	Username string
	Email    string

	// Finished is ordered chronologically; undated finishes come last.
	Finished []FinishedItem
	// Sessions is ordered by StartedAt.
	Sessions []Session
	// Series is shared by every snapshot in the cycle and must not be mutated.
	Series []Series
	Items  map[string]ItemMeta

	// ListeningSeconds is the service's total, used only when there are no sessions.
	ListeningSeconds float64

	finishedAt map[string]time.Time
}

// NewSnapshot builds a snapshot and establishes its ordering invariants.
// The finished and sessions slices are copied.
func NewSnapshot(user User, finished []FinishedItem, sessions []Session, series []Series, items map[string]ItemMeta) *Snapshot {
	s := &Snapshot{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Series:   series,
		Items:    items,
	}
	if s.Items == nil {
		s.Items = map[string]ItemMeta{}
	}

	s.finishedAt = make(map[string]time.Time, len(finished))
	for _, f := range finished {
		if f.ItemID == "" {
			continue
		}
		prev, seen := s.finishedAt[f.ItemID]
		if seen && (f.FinishedAt.IsZero() || (!prev.IsZero() && !f.FinishedAt.Before(prev))) {
			continue
		}
		s.finishedAt[f.ItemID] = f.FinishedAt
	}
	s.Finished = make([]FinishedItem, 0, len(s.finishedAt))
	for id, at := range s.finishedAt {
		s.Finished = append(s.Finished, FinishedItem{ItemID: id, FinishedAt: at})
	}
	sort.Slice(s.Finished, func(i, j int) bool {
		a, b := s.Finished[i], s.Finished[j]
		if TimeBefore(a.FinishedAt, b.FinishedAt) {
			return true
		}
		if TimeBefore(b.FinishedAt, a.FinishedAt) {
			return false
		}
		return a.ItemID < b.ItemID
	})

	s.Sessions = make([]Session, len(sessions))
	copy(s.Sessions, sessions)
	sort.SliceStable(s.Sessions, func(i, j int) bool {
		return s.Sessions[i].StartedAt.Before(s.Sessions[j].StartedAt)
	})

	return s
}

// IsFinished reports whether the user finished the item.
func (s *Snapshot) IsFinished(itemID string) bool {
	_, ok := s.finishedAt[itemID]
	return ok
}

// FinishedAt returns the finish time of an item. The time is zero for
// undated finishes; ok is false when the item was never finished.
func (s *Snapshot) FinishedAt(itemID string) (time.Time, bool) {
	t, ok := s.finishedAt[itemID]
	return t, ok
}

// Item returns metadata for an item, or the zero value when unknown.
func (s *Snapshot) Item(itemID string) ItemMeta {
	return s.Items[itemID]
}

// ItemDuration returns the best known duration for an item: metadata first,
// then the largest duration any session reported.
func (s *Snapshot) ItemDuration(itemID string) float64 {
	if d := s.Items[itemID].DurationSeconds; d > 0 {
		return d
	}
	var best float64
	for _, sess := range s.Sessions {
		if sess.ItemID == itemID && sess.ItemDurationSeconds > best {
			best = sess.ItemDurationSeconds
		}
	}
	return best
}

// SeriesComplete reports whether every item of the series is finished and,
// if so, when the last one was. The time is zero if any member is undated.
func (s *Snapshot) SeriesComplete(series Series) (time.Time, bool) {
	if len(series.Items) == 0 {
		return time.Time{}, false
	}
	var last time.Time
	undated := false
	for _, e := range series.Items {
		at, ok := s.finishedAt[e.ItemID]
		if !ok {
			return time.Time{}, false
		}
		if at.IsZero() {
			undated = true
		} else if at.After(last) {
			last = at
		}
	}
	if undated {
		return time.Time{}, true
	}
	return last, true
}

// TimeBefore orders timestamps with zero (undated) values last.
func TimeBefore(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.Before(b)
	}
}
