// Package ledger is the durable record of awarded achievements.
//
// The ledger holds at most one row per (user, achievement). Inserts are
// insert-if-absent, so re-running an evaluation cycle over the same history
// never duplicates or rewrites an award. A second table journals each
// evaluation cycle for the CLI and operators.
//
// # Database Configuration
//
//   - WAL mode: readers (the CLI) do not block the running service
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - a single open connection; writes are serialized
//
// Timestamps are stored as UTC unix milliseconds.
package ledger
