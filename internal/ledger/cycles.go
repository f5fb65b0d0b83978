package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var errCycleNotBegun = errors.New("cycle not begun")

// Cycle status values.
const (
	CycleRunning   = "running"
	CycleSucceeded = "succeeded"
	CycleFailed    = "failed"
)

// Cycle is one journaled evaluation cycle.
type Cycle struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	Status      string
	RuleVersion string
	Users       int
	NewAwards   int
	Error       string
}

// BeginCycle journals the start of a cycle. Beginning an id twice is a no-op.
func (s *Store) BeginCycle(ctx context.Context, id string, startedAt time.Time) error {
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cycles (id, started_at, status)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, id, toMillis(startedAt), CycleRunning)
		return err
	})
	if err != nil {
		return fmt.Errorf("begin cycle %s: %w", id, err)
	}
	return nil
}

// FinishCycle records the outcome of a cycle started with BeginCycle.
func (s *Store) FinishCycle(ctx context.Context, c Cycle) error {
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE cycles
			SET finished_at = ?, status = ?, rule_version = ?, users = ?, new_awards = ?, error = ?
			WHERE id = ?
		`, toMillis(c.FinishedAt), c.Status, c.RuleVersion, c.Users, c.NewAwards, c.Error, c.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errCycleNotBegun
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("finish cycle %s: %w", c.ID, err)
	}
	return nil
}

// ListCycles returns the most recent cycles, newest first. A limit of zero
// or less returns all of them.
func (s *Store) ListCycles(ctx context.Context, limit int) ([]Cycle, error) {
	query := `
		SELECT id, started_at, finished_at, status, rule_version, users, new_awards, error
		FROM cycles
		ORDER BY started_at DESC, id COLLATE BINARY DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []Cycle{}
	for rows.Next() {
		var (
			c        Cycle
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &started, &finished, &c.Status, &c.RuleVersion, &c.Users, &c.NewAwards, &c.Error); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.StartedAt = fromMillis(started)
		if finished.Valid {
			c.FinishedAt = fromMillis(finished.Int64)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}
