package activity

import "context"

// UserFinished is one user's entry in the finished-items feed.
type UserFinished struct {
	User  User
	Items []FinishedItem
}

// Source is the read-only view of the activity stats service.
// Client is the HTTP implementation; tests use in-memory fakes.
type Source interface {
	// Users lists tracked users.
	Users(ctx context.Context) ([]User, error)
	// Finished returns every user's finished items with finish times.
	Finished(ctx context.Context) ([]UserFinished, error)
	// Sessions returns listening sessions keyed by user id.
	Sessions(ctx context.Context) (map[string][]Session, error)
	// SeriesIndex returns every series with its members.
	SeriesIndex(ctx context.Context) ([]Series, error)
	// Item returns metadata for one library item.
	Item(ctx context.Context, itemID string) (ItemMeta, error)
	// ListeningTime returns total listened seconds keyed by user id.
	ListeningTime(ctx context.Context) (map[string]float64, error)
}
