package advisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tienda/plugin"
	"github.com/xraph/tienda/state"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin         = (*Refresher)(nil)
	_ plugin.OnStateChanged = (*Refresher)(nil)
	_ plugin.OnShutdown     = (*Refresher)(nil)
)

// Refresher keeps the latest advisor text up to date. Registered as a plugin
// it starts one background request per state change. Requests are numbered;
// an answer is only shown if no newer request has been answered already.
type Refresher struct {
	advisor Advisor
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	text    string
	issued  uint64
	applied uint64
	updated time.Time

	wg sync.WaitGroup
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RefresherOption {
	return func(r *Refresher) { r.logger = logger }
}

// WithTimeout bounds each advisor call. Zero leaves the call unbounded.
func WithTimeout(d time.Duration) RefresherOption {
	return func(r *Refresher) { r.timeout = d }
}

// NewRefresher creates a Refresher showing IdleMessage until the first answer.
func NewRefresher(a Advisor, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		advisor: a,
		logger:  slog.Default(),
		text:    IdleMessage,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements plugin.Plugin.
func (r *Refresher) Name() string { return "advisor" }

// OnStateChanged starts a background refresh and returns immediately.
func (r *Refresher) OnStateChanged(ctx context.Context, s state.AppState) error {
	r.Start(context.WithoutCancel(ctx), s)
	return nil
}

// OnShutdown waits for in-flight requests or until ctx is done.
func (r *Refresher) OnShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start issues a request for s in its own goroutine.
func (r *Refresher) Start(ctx context.Context, s state.AppState) {
	seq := r.next()
	snap := SnapshotOf(s)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, seq, snap)
	}()
}

// Refresh issues a request for s and waits for it. It returns the text that
// is shown afterwards.
func (r *Refresher) Refresh(ctx context.Context, s state.AppState) string {
	r.run(ctx, r.next(), SnapshotOf(s))
	return r.Text()
}

// Wait blocks until every background request has finished.
func (r *Refresher) Wait() { r.wg.Wait() }

// Text returns the text currently shown.
func (r *Refresher) Text() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.text
}

// UpdatedAt returns when the text last changed; zero before the first answer.
func (r *Refresher) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updated
}

func (r *Refresher) next() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued++
	return r.issued
}

func (r *Refresher) run(ctx context.Context, seq uint64, snap Snapshot) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.advisor.Insights(ctx, snap)
	if err != nil {
		r.logger.Warn("advisor request failed", "error", err, "request", seq)
		text = FallbackMessage
	} else if text == "" {
		text = EmptyMessage
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq < r.applied {
		r.logger.Debug("advisor answer dropped as stale", "request", seq, "applied", r.applied)
		return
	}
	r.applied = seq
	r.text = text
	r.updated = time.Now()
}
