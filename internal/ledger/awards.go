package ledger

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidAward is returned for awards that would violate ledger invariants.
var ErrInvalidAward = errors.New("invalid award")

// Award is one ledger row: the user earned the achievement at EarnedAt,
// and the engine first noticed at DiscoveredAt. EarnedAt never exceeds
// DiscoveredAt.
type Award struct {
	UserID        string
	AchievementID string
	EarnedAt      time.Time
	DiscoveredAt  time.Time
	CycleID       string
	Detail        map[string]any
}

func (a Award) validate() error {
	switch {
	case a.UserID == "" || a.AchievementID == "":
		return fmt.Errorf("%w: user and achievement ids are required", ErrInvalidAward)
	case a.EarnedAt.IsZero() || a.DiscoveredAt.IsZero():
		return fmt.Errorf("%w: %s/%s: timestamps are required", ErrInvalidAward, a.UserID, a.AchievementID)
	case a.EarnedAt.After(a.DiscoveredAt):
		return fmt.Errorf("%w: %s/%s: earned after discovery", ErrInvalidAward, a.UserID, a.AchievementID)
	}
	return nil
}

// RecordAward inserts the award if the (user, achievement) pair is not yet
// in the ledger. An existing row is left untouched and inserted is false.
func (s *Store) RecordAward(ctx context.Context, a Award) (inserted bool, err error) {
	if err := a.validate(); err != nil {
		return false, err
	}
	detail, err := marshalDetail(a.Detail)
	if err != nil {
		return false, fmt.Errorf("record award: %w", err)
	}

	err = s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO awards
			(user_id, achievement_id, earned_at, discovered_at, cycle_id, detail)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, achievement_id) DO NOTHING
		`,
			a.UserID,
			a.AchievementID,
			toMillis(a.EarnedAt),
			toMillis(a.DiscoveredAt),
			a.CycleID,
			detail,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("record award %s/%s: %w", a.UserID, a.AchievementID, err)
	}
	return inserted, nil
}

// HasAward reports whether the user already holds the achievement.
func (s *Store) HasAward(ctx context.Context, userID, achievementID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM awards
		WHERE user_id = ? AND achievement_id = ?
	`, userID, achievementID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check award: %w", err)
	}
	return count > 0, nil
}

// AwardedIDs returns the set of achievement ids the user holds.
func (s *Store) AwardedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT achievement_id FROM awards WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query awarded ids: %w", err)
	}
	defer rows.Close()

	ids := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan awarded id: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate awarded ids: %w", err)
	}
	return ids, nil
}

// CountAwards returns how many awards the user holds.
func (s *Store) CountAwards(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM awards WHERE user_id = ?
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count awards: %w", err)
	}
	return count, nil
}

// ListAwards returns the user's awards, or every award when userID is empty,
// ordered by earned_at, user_id, achievement_id.
//
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListAwards(ctx context.Context, userID string) ([]Award, error) {
	query := `
		SELECT user_id, achievement_id, earned_at, discovered_at, cycle_id, detail
		FROM awards`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY earned_at ASC, user_id COLLATE BINARY ASC, achievement_id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query awards: %w", err)
	}
	defer rows.Close()

	awards := []Award{}
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, err
		}
		awards = append(awards, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate awards: %w", err)
	}
	return awards, nil
}

func scanAward(rows *sql.Rows) (Award, error) {
	var (
		a                  Award
		earned, discovered int64
		detail             string
	)
	if err := rows.Scan(&a.UserID, &a.AchievementID, &earned, &discovered, &a.CycleID, &detail); err != nil {
		return Award{}, fmt.Errorf("scan award: %w", err)
	}
	a.EarnedAt = fromMillis(earned)
	a.DiscoveredAt = fromMillis(discovered)
	d, err := unmarshalDetail(detail)
	if err != nil {
		return Award{}, fmt.Errorf("award %s/%s: %w", a.UserID, a.AchievementID, err)
	}
	a.Detail = d
	return a, nil
}

// marshalDetail encodes award detail as JSON with sorted keys and no HTML
// escaping, so identical details produce identical rows.
func marshalDetail(detail map[string]any) (string, error) {
	if len(detail) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(detail); err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalDetail(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	var detail map[string]any
	if err := json.Unmarshal([]byte(data), &detail); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	return detail, nil
}
