package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/trophycase/internal/worker"
)

// ErrSourceUnavailable marks a fetch failure that makes the whole cycle
// pointless (the finished-items feed could not be read).
var ErrSourceUnavailable = errors.New("activity source unavailable")

// DefaultSeriesRefresh is how long a fetched series index is reused.
const DefaultSeriesRefresh = 24 * time.Hour

// Batch is the set of snapshots for one cycle.
type Batch struct {
	Snapshots []*Snapshot
	// Degraded lists the sections that could not be fetched this cycle.
	Degraded []string
}

// Builder assembles per-user snapshots from a Source.
//
// The series index changes rarely and is expensive to produce, so it is
// cached for the refresh interval; a failed refresh keeps the stale copy.
// Everything else is fetched fresh every cycle.
type Builder struct {
	source        Source
	workers       int
	seriesRefresh time.Duration
	now           func() time.Time
	logger        *slog.Logger

	mu        sync.Mutex
	series    []Series
	seriesAge time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithWorkers bounds concurrent metadata fetches.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) { b.workers = n }
}

// WithSeriesRefresh sets the series index cache lifetime. Zero disables caching.
func WithSeriesRefresh(d time.Duration) BuilderOption {
	return func(b *Builder) { b.seriesRefresh = d }
}

// WithNow overrides the clock used for the series cache.
func WithNow(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// WithBuilderLogger sets the builder's logger.
func WithBuilderLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a snapshot builder over source.
func NewBuilder(source Source, opts ...BuilderOption) *Builder {
	b := &Builder{
		source:        source,
		workers:       4,
		seriesRefresh: DefaultSeriesRefresh,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build fetches every section and returns one snapshot per user in the
// finished-items feed, ordered by user id. Only a failure of that feed is
// returned as an error (wrapping ErrSourceUnavailable).
func (b *Builder) Build(ctx context.Context) (*Batch, error) {
	finished, err := b.source.Finished(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	batch := &Batch{}
	degrade := func(section string, err error) {
		batch.Degraded = append(batch.Degraded, section)
		b.logger.Warn("activity section unavailable, continuing without it", "section", section, "error", err)
	}

	profiles := map[string]User{}
	if users, err := b.source.Users(ctx); err != nil {
		degrade("users", err)
	} else {
		for _, u := range users {
			profiles[u.ID] = u
		}
	}

	sessions, err := b.source.Sessions(ctx)
	if err != nil {
		degrade("sessions", err)
		sessions = nil
	}

	series, err := b.seriesIndex(ctx)
	if err != nil {
		degrade("series", err)
	}

	totals, err := b.source.ListeningTime(ctx)
	if err != nil {
		degrade("listening_time", err)
		totals = nil
	}

	items, failed := b.fetchItems(ctx, finished)
	if failed > 0 {
		degrade("items", fmt.Errorf("%d item lookups failed", failed))
	}

	sort.Slice(finished, func(i, j int) bool { return finished[i].User.ID < finished[j].User.ID })
	for _, uf := range finished {
		user := uf.User
		if p, ok := profiles[user.ID]; ok {
			if p.Username != "" {
				user.Username = p.Username
			}
			if user.Email == "" {
				user.Email = p.Email
			}
		}
		snap := NewSnapshot(user, uf.Items, sessions[user.ID], series, items)
		snap.ListeningSeconds = totals[user.ID]
		batch.Snapshots = append(batch.Snapshots, snap)
	}

	return batch, nil
}

// seriesIndex returns the cached index or refreshes it. On refresh failure
// the stale index is returned together with the error.
func (b *Builder) seriesIndex(ctx context.Context) ([]Series, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.series != nil && b.seriesRefresh > 0 && now.Sub(b.seriesAge) < b.seriesRefresh {
		return b.series, nil
	}

	fresh, err := b.source.SeriesIndex(ctx)
	if err != nil {
		return b.series, err
	}
	b.series = fresh
	b.seriesAge = now
	return b.series, nil
}

// fetchItems loads metadata for every finished item of every user.
func (b *Builder) fetchItems(ctx context.Context, finished []UserFinished) (map[string]ItemMeta, int) {
	seen := map[string]bool{}
	var ids []string
	for _, uf := range finished {
		for _, it := range uf.Items {
			if !seen[it.ItemID] {
				seen[it.ItemID] = true
				ids = append(ids, it.ItemID)
			}
		}
	}
	sort.Strings(ids)

	pool := worker.NewPool[ItemMeta](b.workers)
	results := pool.Process(ctx, ids, b.source.Item)

	items := make(map[string]ItemMeta, len(ids))
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			b.logger.Debug("item metadata unavailable", "item", r.Key, "error", r.Err)
			continue
		}
		items[r.Key] = r.Value
	}
	return items, failed
}
