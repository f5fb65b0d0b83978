package testutil

import (
	"strconv"
	"time"

	"github.com/roach88/trophycase/internal/activity"
)

// MustTime parses an RFC 3339 timestamp and panics on error.
func MustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Day returns noon UTC on the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

// SnapshotBuilder assembles an activity.Snapshot for evaluator tests.
//
// Example:
//
//	snap := testutil.NewSnapshot("u1").
//	    Item(activity.ItemMeta{ID: "b1", Title: "Unsouled", DurationSeconds: 36000}).
//	    Finish("b1", testutil.Day(2024, 1, 5)).
//	    Build()
//
// Build can be called more than once; each call returns a fresh snapshot.
type SnapshotBuilder struct {
	user     activity.User
	finished []activity.FinishedItem
	sessions []activity.Session
	series   []activity.Series
	items    map[string]activity.ItemMeta
	total    float64
}

// NewSnapshot starts a snapshot for userID. The username defaults to the id.
func NewSnapshot(userID string) *SnapshotBuilder {
	return &SnapshotBuilder{
		user:  activity.User{ID: userID, Username: userID},
		items: map[string]activity.ItemMeta{},
	}
}

// Username overrides the display name.
func (b *SnapshotBuilder) Username(name string) *SnapshotBuilder {
	b.user.Username = name
	return b
}

// Finish records a dated finish.
func (b *SnapshotBuilder) Finish(itemID string, at time.Time) *SnapshotBuilder {
	b.finished = append(b.finished, activity.FinishedItem{ItemID: itemID, FinishedAt: at})
	return b
}

// FinishUndated records a finish with no timestamp.
func (b *SnapshotBuilder) FinishUndated(itemID string) *SnapshotBuilder {
	b.finished = append(b.finished, activity.FinishedItem{ItemID: itemID})
	return b
}

// Session records a listening session. The id is derived from its position.
func (b *SnapshotBuilder) Session(itemID string, start, end time.Time, listened float64) *SnapshotBuilder {
	b.sessions = append(b.sessions, activity.Session{
		ID:              b.user.ID + "-s" + strconv.Itoa(len(b.sessions)+1),
		ItemID:          itemID,
		StartedAt:       start,
		EndedAt:         end,
		ListenedSeconds: listened,
	})
	return b
}

// Item registers metadata. An empty ID is rejected silently.
func (b *SnapshotBuilder) Item(meta activity.ItemMeta) *SnapshotBuilder {
	if meta.ID != "" {
		b.items[meta.ID] = meta
	}
	return b
}

// Series adds a series whose items are in sequence order.
func (b *SnapshotBuilder) Series(id, name string, itemIDs ...string) *SnapshotBuilder {
	s := activity.Series{ID: id, Name: name}
	for i, item := range itemIDs {
		s.Items = append(s.Items, activity.SeriesEntry{ItemID: item, Sequence: float64(i + 1)})
	}
	b.series = append(b.series, s)
	return b
}

// ListeningSeconds sets the provider-reported total.
func (b *SnapshotBuilder) ListeningSeconds(total float64) *SnapshotBuilder {
	b.total = total
	return b
}

// Build returns the snapshot.
func (b *SnapshotBuilder) Build() *activity.Snapshot {
	items := make(map[string]activity.ItemMeta, len(b.items))
	for k, v := range b.items {
		items[k] = v
	}
	snap := activity.NewSnapshot(b.user, b.finished, b.sessions, b.series, items)
	snap.ListeningSeconds = b.total
	return snap
}

