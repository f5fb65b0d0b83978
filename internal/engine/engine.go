package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/trophycase/internal/activity"
	"github.com/roach88/trophycase/internal/evaluate"
	"github.com/roach88/trophycase/internal/ledger"
	"github.com/roach88/trophycase/internal/notify"
	"github.com/roach88/trophycase/internal/rules"
	"github.com/roach88/trophycase/internal/worker"
)

// DefaultInterval is the time between scheduled cycles.
const DefaultInterval = 5 * time.Minute

// RuleSource yields the definitions for one cycle. It is consulted at the
// start of every cycle so edits to the document take effect without a restart.
type RuleSource interface {
	Load(ctx context.Context) (*rules.RuleSet, error)
}

// RuleFile loads definitions from a file path.
type RuleFile string

// Load implements RuleSource.
func (p RuleFile) Load(context.Context) (*rules.RuleSet, error) {
	return rules.LoadFile(string(p))
}

// RuleSourceFunc adapts a function to RuleSource.
type RuleSourceFunc func(ctx context.Context) (*rules.RuleSet, error)

// Load implements RuleSource.
func (f RuleSourceFunc) Load(ctx context.Context) (*rules.RuleSet, error) {
	return f(ctx)
}

// SnapshotBuilder produces the per-user activity snapshots for a cycle.
// Implemented by *activity.Builder.
type SnapshotBuilder interface {
	Build(ctx context.Context) (*activity.Batch, error)
}

// Ledger is the award store the engine writes to.
// Implemented by *ledger.Store.
type Ledger interface {
	RecordAward(ctx context.Context, a ledger.Award) (bool, error)
	AwardedIDs(ctx context.Context, userID string) (map[string]bool, error)
	CountAwards(ctx context.Context, userID string) (int, error)
	BeginCycle(ctx context.Context, id string, startedAt time.Time) error
	FinishCycle(ctx context.Context, c ledger.Cycle) error
}

// Engine schedules and runs evaluation cycles.
//
// Thread-safety model:
//   - RunOnce(): safe from any goroutine; concurrent calls get ErrCycleInProgress
//   - Run(): blocks; call from one goroutine
type Engine struct {
	rules    RuleSource
	builder  SnapshotBuilder
	ledger   Ledger
	sink     notify.Sink
	clock    Clock
	ids      IDGenerator
	location *time.Location
	workers  int
	interval time.Duration
	logger   *slog.Logger

	running sync.Mutex

	// lastRules is the most recent successfully loaded rule set. A cycle
	// whose reload fails falls back to it.
	lastRules *rules.RuleSet
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets where newly recorded awards are delivered.
func WithSink(s notify.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock sets the source of discovery time.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets how cycles are named.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLocation sets the reference timezone for calendar-based rules.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithWorkers bounds how many users are evaluated concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithInterval sets the time between scheduled cycles.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine.
func New(rs RuleSource, b SnapshotBuilder, l Ledger, opts ...Option) *Engine {
	e := &Engine{
		rules:    rs,
		builder:  b,
		ledger:   l,
		sink:     notify.LogSink{},
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		location: time.UTC,
		workers:  4,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	RuleVersion string
	// Rules is the number of evaluable definitions.
	Rules int
	// Issues is the number of definitions skipped with a load issue.
	Issues   int
	Users    int
	Degraded []string
	// NewAwards holds the awards inserted by this cycle, in user order.
	NewAwards []ledger.Award
	Failures  []UserFailure
	// NotifyErr is the sink's error, if delivery failed. Awards stay recorded.
	NotifyErr error
}

// Run executes a cycle immediately and then one per interval until ctx is
// cancelled. Cycle errors are logged and retried at the next tick. A tick
// that comes due while a cycle is running is dropped, not queued.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "interval", e.interval.String())

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		// Drop a tick that fired during the cycle.
		select {
		case <-ticker.C:
			e.logger.Debug("tick skipped: previous cycle overran the interval")
		default:
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return nil
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	report, err := e.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		e.logger.Debug("tick skipped: cycle in progress")
	case err != nil:
		e.logger.Error("cycle failed, retrying next tick", "error", err)
	default:
		e.logger.Info("cycle complete",
			"cycle", report.ID,
			"users", report.Users,
			"rules", report.Rules,
			"new_awards", len(report.NewAwards),
			"failures", len(report.Failures),
			"duration", report.FinishedAt.Sub(report.StartedAt).String(),
		)
	}
}

// RunOnce runs a single cycle. A fatal error aborts the cycle and is
// returned as a *CycleError together with the partial report; per-user
// failures are reported in CycleReport.Failures instead.
func (e *Engine) RunOnce(ctx context.Context) (*CycleReport, error) {
	if !e.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer e.running.Unlock()

	report := &CycleReport{ID: e.ids.Generate(), StartedAt: e.clock.Now()}
	logger := e.logger.With("cycle", report.ID)

	if err := e.ledger.BeginCycle(ctx, report.ID, report.StartedAt); err != nil {
		return report, &CycleError{Code: ErrCodeJournal, CycleID: report.ID, Err: err}
	}

	rs, err := e.loadRules(ctx, logger)
	if err != nil {
		return report, e.abort(ctx, report, &CycleError{Code: ErrCodeRulesUnavailable, CycleID: report.ID, Err: err})
	}
	report.RuleVersion = rs.Version
	report.Rules = len(rs.Active)
	report.Issues = len(rs.Issues)

	batch, err := e.builder.Build(ctx)
	if err != nil {
		return report, e.abort(ctx, report, &CycleError{Code: ErrCodeSourceUnavailable, CycleID: report.ID, Err: err})
	}
	report.Users = len(batch.Snapshots)
	report.Degraded = batch.Degraded

	discovered := e.clock.Now()
	results := e.evaluateAll(ctx, rs, batch, report.ID, discovered, logger)

	var notes []notify.Notification
	for i, r := range results {
		snap := batch.Snapshots[i]
		for _, a := range r.Value.inserted {
			report.NewAwards = append(report.NewAwards, a)
			notes = append(notes, notification(rs, snap, a))
		}
		if r.Err != nil {
			report.Failures = append(report.Failures, UserFailure{UserID: snap.UserID, Err: r.Err})
			logger.Error("user evaluation incomplete", "user", snap.UserID, "error", r.Err)
		}
	}

	if len(notes) > 0 && e.sink != nil {
		if err := e.sink.Notify(ctx, notes); err != nil {
			report.NotifyErr = err
			logger.Warn("notification delivery failed", "error", err)
		}
	}

	report.FinishedAt = e.clock.Now()
	// The journal row must be closed even when shutdown cancelled the cycle.
	if err := e.ledger.FinishCycle(context.WithoutCancel(ctx), e.journal(report, ledger.CycleSucceeded, failureSummary(report.Failures))); err != nil {
		logger.Warn("could not journal cycle", "error", err)
	}
	return report, nil
}

// loadRules reloads the definitions, falling back to the last good set.
func (e *Engine) loadRules(ctx context.Context, logger *slog.Logger) (*rules.RuleSet, error) {
	rs, err := e.rules.Load(ctx)
	if err != nil {
		if e.lastRules == nil {
			return nil, err
		}
		logger.Warn("definitions reload failed, using previous set", "version", e.lastRules.Version, "error", err)
		return e.lastRules, nil
	}
	if e.lastRules == nil || e.lastRules.Version != rs.Version {
		for _, issue := range rs.Issues {
			logger.Warn("definition skipped", "code", issue.Code, "id", issue.ID, "index", issue.Index, "reason", issue.Message)
		}
		logger.Info("definitions loaded", "version", rs.Version, "active", len(rs.Active), "issues", len(rs.Issues))
	}
	e.lastRules = rs
	return rs, nil
}

func (e *Engine) abort(ctx context.Context, report *CycleReport, cerr *CycleError) error {
	report.FinishedAt = e.clock.Now()
	if err := e.ledger.FinishCycle(context.WithoutCancel(ctx), e.journal(report, ledger.CycleFailed, cerr.Error())); err != nil {
		e.logger.Warn("could not journal cycle", "cycle", report.ID, "error", err)
	}
	return cerr
}

func (e *Engine) journal(r *CycleReport, status, msg string) ledger.Cycle {
	return ledger.Cycle{
		ID:          r.ID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Status:      status,
		RuleVersion: r.RuleVersion,
		Users:       r.Users,
		NewAwards:   len(r.NewAwards),
		Error:       msg,
	}
}

func failureSummary(failures []UserFailure) string {
	if len(failures) == 0 {
		return ""
	}
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = f.Error()
	}
	return strings.Join(parts, "; ")
}

type userResult struct {
	inserted []ledger.Award
}

// evaluateAll evaluates every snapshot on the worker pool. Results are in
// snapshot order.
func (e *Engine) evaluateAll(ctx context.Context, rs *rules.RuleSet, batch *activity.Batch, cycleID string, discovered time.Time, logger *slog.Logger) []worker.Result[userResult] {
	keys := make([]string, len(batch.Snapshots))
	index := make(map[string]int, len(batch.Snapshots))
	for i, s := range batch.Snapshots {
		keys[i] = s.UserID
		index[s.UserID] = i
	}

	pool := worker.NewPool[userResult](e.workers)
	return pool.Process(ctx, keys, func(ctx context.Context, userID string) (userResult, error) {
		in := evaluate.Input{
			Snapshot: batch.Snapshots[index[userID]],
			Peers:    batch.Snapshots,
			Location: e.location,
			Now:      discovered,
		}
		return e.evaluateUser(ctx, rs, in, cycleID, logger.With("user", userID))
	})
}

// evaluateUser evaluates every active rule for one user and records what
// was earned. Ledger failures are collected; the remaining rules still run.
func (e *Engine) evaluateUser(ctx context.Context, rs *rules.RuleSet, in evaluate.Input, cycleID string, logger *slog.Logger) (userResult, error) {
	var (
		res  userResult
		errs []error
	)
	userID := in.Snapshot.UserID

	held, err := e.ledger.AwardedIDs(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("read awards: %w", err)
	}

	record := func(def rules.Definition, out evaluate.Outcome) {
		a := newAward(cycleID, userID, def.ID, out, in.Now)
		inserted, err := e.ledger.RecordAward(ctx, a)
		if err != nil {
			errs = append(errs, err)
			return
		}
		held[def.ID] = true
		if inserted {
			res.inserted = append(res.inserted, a)
			logger.Debug("award recorded", "achievement", def.ID, "earned_at", a.EarnedAt)
		}
	}

	var metas []rules.Active
	for _, active := range rs.Active {
		if active.Rule.Category() == rules.CategoryMeta {
			metas = append(metas, active)
			continue
		}
		if held[active.Definition.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, errors.Join(append(errs, err)...)
		}
		if out := evaluate.Evaluate(in, active.Rule); out.Earned {
			record(active.Definition, out)
		}
	}

	if len(metas) == 0 {
		return res, errors.Join(errs...)
	}

	// Meta awards count other awards, including meta awards recorded in
	// this pass, so repeat until nothing new is earned.
	for progressed := true; progressed; {
		progressed = false
		count, err := e.ledger.CountAwards(ctx, userID)
		if err != nil {
			return res, errors.Join(append(errs, fmt.Errorf("count awards: %w", err))...)
		}
		in.AwardCount = count
		for _, active := range metas {
			if held[active.Definition.ID] {
				continue
			}
			if out := evaluate.Evaluate(in, active.Rule); out.Earned {
				before := len(res.inserted)
				record(active.Definition, out)
				progressed = progressed || len(res.inserted) > before
			}
		}
	}

	return res, errors.Join(errs...)
}

// newAward resolves the earned-at timestamp: undated outcomes and anything
// dated after discovery are recorded at discovery time.
func newAward(cycleID, userID, achievementID string, out evaluate.Outcome, discovered time.Time) ledger.Award {
	discovered = discovered.UTC().Truncate(time.Millisecond)
	earnedAt := out.At.UTC().Truncate(time.Millisecond)
	if out.At.IsZero() || earnedAt.After(discovered) {
		earnedAt = discovered
	}
	return ledger.Award{
		UserID:        userID,
		AchievementID: achievementID,
		EarnedAt:      earnedAt,
		DiscoveredAt:  discovered,
		CycleID:       cycleID,
		Detail:        out.Detail,
	}
}

func notification(rs *rules.RuleSet, snap *activity.Snapshot, a ledger.Award) notify.Notification {
	def, _ := rs.Definition(a.AchievementID)
	n := notify.Notification{
		UserID:        a.UserID,
		Username:      snap.Username,
		AchievementID: a.AchievementID,
		Title:         def.Title,
		Achievement:   def.Achievement,
		FlavorText:    def.FlavorText,
		Points:        def.Points,
		Rarity:        def.Rarity,
		IconPath:      def.IconPath,
		EarnedAt:      a.EarnedAt,
		DiscoveredAt:  a.DiscoveredAt,
	}
	for _, key := range []string{"itemId", "matchedItemId"} {
		if itemID, ok := a.Detail[key].(string); ok {
			n.ItemTitle = snap.Item(itemID).Title
			break
		}
	}
	return n
}
