package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	finished    []UserFinished
	finishedErr error
	users       []User
	usersErr    error
	sessions    map[string][]Session
	sessionsErr error
	series      []Series
	seriesErr   error
	seriesCalls int
	items       map[string]ItemMeta
	totals      map[string]float64
}

func (s *stubSource) Users(context.Context) ([]User, error) { return s.users, s.usersErr }
func (s *stubSource) Finished(context.Context) ([]UserFinished, error) {
	return s.finished, s.finishedErr
}
func (s *stubSource) Sessions(context.Context) (map[string][]Session, error) {
	return s.sessions, s.sessionsErr
}
func (s *stubSource) SeriesIndex(context.Context) ([]Series, error) {
	s.seriesCalls++
	return s.series, s.seriesErr
}
func (s *stubSource) Item(_ context.Context, id string) (ItemMeta, error) {
	m, ok := s.items[id]
	if !ok {
		return ItemMeta{}, errors.New("not found")
	}
	return m, nil
}
func (s *stubSource) ListeningTime(context.Context) (map[string]float64, error) {
	return s.totals, nil
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestBuilder_Build(t *testing.T) {
	src := &stubSource{
		finished: []UserFinished{
			{User: User{ID: "u2", Username: "bob"}, Items: []FinishedItem{{ItemID: "b1", FinishedAt: t0}}},
			{User: User{ID: "u1", Username: "alice"}, Items: []FinishedItem{
				{ItemID: "b2"},
				{ItemID: "b1", FinishedAt: t0.Add(time.Hour)},
			}},
		},
		users:    []User{{ID: "u1", Username: "Alice", Email: "a@example.com"}},
		sessions: map[string][]Session{"u1": {{ID: "s1", ItemID: "b1", StartedAt: t0}}},
		series:   []Series{{ID: "s", Name: "S", Items: []SeriesEntry{{ItemID: "b1", Sequence: 1}}}},
		items:    map[string]ItemMeta{"b1": {ID: "b1", Title: "One"}},
		totals:   map[string]float64{"u1": 3600},
	}

	b := NewBuilder(src)
	batch, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Snapshots, 2)

	alice := batch.Snapshots[0]
	assert.Equal(t, "u1", alice.UserID)
	assert.Equal(t, "Alice", alice.Username)
	assert.Equal(t, "a@example.com", alice.Email)
	assert.Equal(t, []FinishedItem{{ItemID: "b1", FinishedAt: t0.Add(time.Hour)}, {ItemID: "b2"}}, alice.Finished)
	assert.Len(t, alice.Sessions, 1)
	assert.Equal(t, 3600.0, alice.ListeningSeconds)
	assert.Equal(t, "One", alice.Item("b1").Title)

	assert.Equal(t, []string{"items"}, batch.Degraded, "b2 has no metadata")
}

func TestBuilder_FinishedFeedFailureIsFatal(t *testing.T) {
	src := &stubSource{finishedErr: errors.New("connection refused")}

	_, err := NewBuilder(src).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestBuilder_SectionFailuresDegrade(t *testing.T) {
	src := &stubSource{
		finished:    []UserFinished{{User: User{ID: "u1", Username: "alice"}}},
		usersErr:    errors.New("boom"),
		sessionsErr: errors.New("boom"),
		seriesErr:   errors.New("boom"),
	}

	batch, err := NewBuilder(src).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Snapshots, 1)
	assert.Empty(t, batch.Snapshots[0].Sessions)
	assert.Empty(t, batch.Snapshots[0].Series)
	assert.ElementsMatch(t, []string{"users", "sessions", "series"}, batch.Degraded)
}

func TestBuilder_SeriesIndexCached(t *testing.T) {
	now := t0
	src := &stubSource{
		finished: []UserFinished{{User: User{ID: "u1", Username: "alice"}}},
		series:   []Series{{ID: "s"}},
	}
	b := NewBuilder(src, WithSeriesRefresh(time.Hour), WithNow(func() time.Time { return now }))

	_, err := b.Build(context.Background())
	require.NoError(t, err)
	_, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.seriesCalls)

	now = now.Add(2 * time.Hour)
	src.seriesErr = errors.New("down")
	batch, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.seriesCalls)
	assert.Len(t, batch.Snapshots[0].Series, 1, "stale index survives a failed refresh")
}

func TestSnapshot_SeriesComplete(t *testing.T) {
	series := Series{ID: "s", Items: []SeriesEntry{{ItemID: "a"}, {ItemID: "b"}, {ItemID: "c"}}}

	partial := NewSnapshot(User{ID: "u"}, []FinishedItem{{ItemID: "a", FinishedAt: t0}, {ItemID: "b"}}, nil, nil, nil)
	_, ok := partial.SeriesComplete(series)
	assert.False(t, ok, "an undated member must not hide a missing one")

	done := NewSnapshot(User{ID: "u"}, []FinishedItem{
		{ItemID: "a", FinishedAt: t0},
		{ItemID: "b", FinishedAt: t0.Add(48 * time.Hour)},
		{ItemID: "c", FinishedAt: t0.Add(time.Hour)},
	}, nil, nil, nil)
	at, ok := done.SeriesComplete(series)
	assert.True(t, ok)
	assert.Equal(t, t0.Add(48*time.Hour), at)

	_, ok = done.SeriesComplete(Series{ID: "empty"})
	assert.False(t, ok)
}

func TestNewSnapshot_DuplicateFinishKeepsEarliest(t *testing.T) {
	s := NewSnapshot(User{ID: "u"}, []FinishedItem{
		{ItemID: "a", FinishedAt: t0.Add(time.Hour)},
		{ItemID: "a"},
		{ItemID: "a", FinishedAt: t0},
	}, nil, nil, nil)

	require.Len(t, s.Finished, 1)
	assert.Equal(t, t0, s.Finished[0].FinishedAt)
}
