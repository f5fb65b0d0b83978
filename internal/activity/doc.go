// Package activity normalizes listening data from the stats service into
// per-user snapshots for one evaluation cycle.
//
// A Snapshot is built from scratch every cycle and never mutated afterwards.
// There is no incremental diffing between cycles: evaluators always see the
// user's complete history, which is what lets them backdate awards.
//
// # Degradation
//
// The finished-items feed is the only section whose failure aborts a cycle.
// Every other section (sessions, series index, item metadata, listening
// totals) degrades to an empty collection and is logged, so a flaky endpoint
// delays achievements instead of producing wrong ones.
//
// # Timestamps
//
// The stats service reports epoch milliseconds. A finished item without a
// timestamp is kept with a zero FinishedAt ("undated"); ordering helpers sort
// undated entries after every dated one.
package activity
