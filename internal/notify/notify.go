// Package notify delivers newly recorded awards to people.
//
// Sinks only ever see awards the ledger inserted in the current cycle, so a
// notification is sent at most once per (user, achievement) unless delivery
// itself fails. Delivery failures are reported to the caller but never undo
// the award.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Notification is one newly recorded award with enough definition detail
// to render a message.
type Notification struct {
	UserID        string
	Username      string
	AchievementID string

	Title       string
	Achievement string
	FlavorText  string
	Points      int
	Rarity      string
	IconPath    string

	// ItemTitle names the book that decided the award, when there is one.
	ItemTitle string

	EarnedAt     time.Time
	DiscoveredAt time.Time
}

// Headline is the name shown for the award: the alternate display name
// when set, else the title.
func (n Notification) Headline() string {
	switch {
	case n.Achievement != "":
		return n.Achievement
	case n.Title != "":
		return n.Title
	default:
		return "Achievement"
	}
}

// Sink receives the awards recorded by one cycle.
type Sink interface {
	Notify(ctx context.Context, batch []Notification) error
}

// Multi fans a batch out to every sink. All sinks are tried; their errors are joined.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, batch []Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each award to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Notify implements Sink.
func (s LogSink) Notify(ctx context.Context, batch []Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, n := range batch {
		logger.InfoContext(ctx, "achievement unlocked",
			"user", n.UserID,
			"username", n.Username,
			"achievement", n.AchievementID,
			"title", n.Headline(),
			"points", n.Points,
			"rarity", n.Rarity,
			"earned_at", n.EarnedAt.Format(time.RFC3339),
		)
	}
	return nil
}
