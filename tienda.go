package tienda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/tienda/advisor"
	"github.com/xraph/tienda/audit"
	"github.com/xraph/tienda/entitlement"
	"github.com/xraph/tienda/export"
	"github.com/xraph/tienda/plugin"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
	"github.com/xraph/tienda/store/memory"
	"github.com/xraph/tienda/transaction"
)

// Engine is the point-of-sale ledger. Every command clones the current
// state, applies its change to the clone, validates the result and publishes
// it in a single swap. Readers never observe a half-applied command.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   func() time.Time

	// Configuration
	auditCapacity  int
	resetOnCorrupt bool
	advisor        advisor.Advisor
	advisorOpts    []advisor.RefresherOption
	refresher      *advisor.Refresher

	mu      sync.Mutex // serializes commands and snapshot writes
	current atomic.Pointer[state.AppState]
	stopped atomic.Bool
}

// New creates a new Engine backed by s. A nil store keeps the snapshot in
// memory only.
func New(s store.Store, opts ...Option) *Engine {
	if s == nil {
		s = memory.New()
	}
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		clock:         time.Now,
		auditCapacity: audit.DefaultCapacity,
	}

	_ = e.plugins.Register(export.CSV{})                                            //nolint:errcheck // built-in, cannot collide
	_ = e.plugins.Register(export.ProductsCSVFormatter{})                           //nolint:errcheck // built-in, cannot collide
	_ = e.plugins.Register(export.XLSX{Clock: func() time.Time { return e.now() }}) //nolint:errcheck // built-in, cannot collide

	for _, opt := range opts {
		opt(e)
	}

	if e.advisor != nil {
		ropts := append([]advisor.RefresherOption{advisor.WithLogger(e.logger)}, e.advisorOpts...)
		e.refresher = advisor.NewRefresher(e.advisor, ropts...)
		if err := e.plugins.Register(e.refresher); err != nil {
			e.logger.Warn("advisor not registered", "error", err)
		}
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		if err := e.plugins.Register(p); err != nil {
			e.logger.Warn("plugin not registered", "plugin", p.Name(), "error", err)
		}
	}
}

// WithClock replaces the wall clock. Tests use it to pin "today".
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithAuditCapacity sets how many audit entries are kept.
func WithAuditCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.auditCapacity = n
		}
	}
}

// WithResetOnCorrupt makes Start fall back to first-run defaults when the
// stored snapshot is unusable, instead of failing.
func WithResetOnCorrupt() Option {
	return func(e *Engine) { e.resetOnCorrupt = true }
}

// WithAdvisor refreshes the insights text in the background after every
// state change.
func WithAdvisor(a advisor.Advisor, opts ...advisor.RefresherOption) Option {
	return func(e *Engine) {
		e.advisor = a
		e.advisorOpts = opts
	}
}

// WithPluginTimeout bounds every plugin callback.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Engine) { e.plugins.WithTimeout(d) }
}

// Start prepares the store and loads the snapshot. A missing snapshot
// starts from first-run defaults.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("tienda: migrate store: %w", err)
	}

	s, err := e.store.LoadSnapshot(ctx)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNoSnapshot):
		s = state.Default(e.now())
		e.logger.Info("no snapshot found, starting from defaults")
	case errors.Is(err, store.ErrCorruptSnapshot) && e.resetOnCorrupt:
		e.logger.Warn("snapshot is corrupt, starting from defaults", "error", err)
		s = state.Default(e.now())
	default:
		return fmt.Errorf("tienda: load snapshot: %w", err)
	}

	e.current.Store(&s)
	e.stopped.Store(false)

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	e.logger.Info("tienda started",
		"products", len(s.Products),
		"transactions", len(s.Transactions),
		"plan", s.ActivePlan().Level,
		"audit_capacity", e.auditCapacity,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down the Engine. Commands issued afterwards fail with ErrStopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.stopped.Store(true)
	e.mu.Unlock()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// State returns a private deep copy of the current state.
func (e *Engine) State() state.AppState {
	cur := e.current.Load()
	if cur == nil {
		return state.Default(e.now())
	}
	return cur.Clone()
}

// Flush writes the current state to the store and reports the outcome.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	cur := e.current.Load()
	if cur == nil {
		e.mu.Unlock()
		return ErrNotStarted
	}
	elapsed, err := e.save(ctx, *cur)
	e.mu.Unlock()

	e.reportSave(ctx, elapsed, err)
	return err
}

// ──────────────────────────────────────────────────
// Command pipeline
// ──────────────────────────────────────────────────

// errUnchanged ends a command that has nothing to do without publishing a
// new state.
var errUnchanged = errors.New("tienda: unchanged")

// change collects what a command did so it can be announced after the swap.
type change struct {
	now     time.Time
	events  []func(context.Context)
	denials []entitlement.Result
}

func (c *change) emit(fn func(context.Context)) { c.events = append(c.events, fn) }

func (c *change) deny(r entitlement.Result) { c.denials = append(c.denials, r) }

// apply runs fn against a clone of the current state and publishes the
// clone when fn and state validation succeed. On error nothing changes.
func (e *Engine) apply(ctx context.Context, op string, fn func(s *state.AppState, c *change) error) error {
	e.mu.Lock()

	if e.stopped.Load() {
		e.mu.Unlock()
		return ErrStopped
	}
	cur := e.current.Load()
	if cur == nil {
		e.mu.Unlock()
		return ErrNotStarted
	}

	next := cur.Clone()
	c := &change{now: e.now()}
	err := fn(&next, c)
	if errors.Is(err, errUnchanged) {
		e.mu.Unlock()
		return nil
	}
	if err == nil {
		err = next.Validate()
	}
	if err != nil {
		e.mu.Unlock()
		for _, r := range c.denials {
			e.plugins.EmitLimitExceeded(ctx, r)
		}
		e.logger.Debug("command rejected", "op", op, "error", err)
		return err
	}

	e.current.Store(&next)
	elapsed, saveErr := e.save(ctx, next)
	// State-changed hooks see states in commit order.
	e.plugins.EmitStateChanged(ctx, next)
	e.mu.Unlock()

	e.reportSave(ctx, elapsed, saveErr)
	for _, ev := range c.events {
		ev(ctx)
	}

	e.logger.Debug("command applied", "op", op)
	return nil
}

// save writes s while the command lock is held so snapshots land in order.
func (e *Engine) save(ctx context.Context, s state.AppState) (time.Duration, error) {
	start := time.Now()
	err := e.store.SaveSnapshot(ctx, s)
	return time.Since(start), err
}

// reportSave announces a snapshot write. A failed write does not undo the
// command that produced the state.
func (e *Engine) reportSave(ctx context.Context, elapsed time.Duration, err error) {
	if err != nil {
		e.logger.Error("failed to write snapshot",
			"error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		e.plugins.EmitSnapshotFailed(ctx, err)
		return
	}
	e.plugins.EmitSnapshotPersisted(ctx, elapsed)
}

// record appends an audit entry attributed to the current session.
func (e *Engine) record(s *state.AppState, c *change, event, details string, related *transaction.Transaction) {
	entry := audit.NewEntry(event, details, s.UserName(), c.now, related)
	s.AuditLogs = audit.Append(s.AuditLogs, entry, e.auditCapacity)
}

func (e *Engine) now() time.Time { return e.clock().UTC() }
