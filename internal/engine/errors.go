package engine

import (
	"errors"
	"fmt"
)

// ErrCycleInProgress is returned by RunOnce while another cycle holds the lock.
var ErrCycleInProgress = errors.New("evaluation cycle already in progress")

// CycleError is a failure that aborted a whole cycle. Nothing was recorded
// for users the cycle did not reach; the next tick retries from scratch.
type CycleError struct {
	// Code identifies the failing stage.
	Code CycleErrorCode

	// CycleID identifies the aborted cycle.
	CycleID string

	// Err is the underlying cause.
	Err error
}

// CycleErrorCode categorizes cycle failures.
type CycleErrorCode string

const (
	// ErrCodeRulesUnavailable means no definitions document could be loaded.
	ErrCodeRulesUnavailable CycleErrorCode = "RULES_UNAVAILABLE"

	// ErrCodeSourceUnavailable means the activity snapshots could not be built.
	ErrCodeSourceUnavailable CycleErrorCode = "SOURCE_UNAVAILABLE"

	// ErrCodeJournal means the ledger refused to journal the cycle.
	ErrCodeJournal CycleErrorCode = "JOURNAL_FAILED"
)

// Error implements the error interface.
func (e *CycleError) Error() string {
	if e.CycleID != "" {
		return fmt.Sprintf("%s: %v (cycle=%s)", e.Code, e.Err, e.CycleID)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CycleError) Unwrap() error {
	return e.Err
}

// IsSourceError reports whether err aborted a cycle because activity data
// was unavailable. Uses errors.As to handle wrapped errors.
func IsSourceError(err error) bool {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeSourceUnavailable
	}
	return false
}

// UserFailure records a user whose evaluation did not complete. Other users
// in the same cycle are unaffected.
type UserFailure struct {
	UserID string
	Err    error
}

func (f UserFailure) Error() string {
	return fmt.Sprintf("user %s: %v", f.UserID, f.Err)
}
