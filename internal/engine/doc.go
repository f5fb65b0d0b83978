// Package engine runs evaluation cycles.
//
// A cycle reloads the achievement definitions, rebuilds every tracked
// user's activity snapshot, evaluates each (user, rule) pair, records new
// awards in the ledger and hands the newly recorded ones to the
// notification sink.
//
// Only one cycle runs at a time. RunOnce fails fast with
// ErrCycleInProgress when another cycle holds the lock, and Run drops
// ticks that arrive while a cycle is still going.
//
// Users are evaluated in parallel. The ledger is the only shared mutable
// state and its writes are atomic per (user, achievement), so an abandoned
// cycle leaves no partial awards and re-running it reproduces the same
// candidates.
//
// Earned-at timestamps come from history. An award whose deciding event is
// undated, or dated after discovery, is recorded at discovery time so that
// earned_at never exceeds discovered_at. Meta awards are evaluated last for
// each user because they count the user's other awards.
package engine
