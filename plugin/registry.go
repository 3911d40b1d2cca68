package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/entitlement"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/transaction"
)

// DefaultTimeout bounds every plugin callback.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onStateChanged       []OnStateChanged
	onTransactionPosted  []OnTransactionPosted
	onTransactionSettled []OnTransactionSettled
	onExpenseRecorded    []OnExpenseRecorded
	onRatesUpdated       []OnRatesUpdated
	onProductAdded       []OnProductAdded
	onProductUpdated     []OnProductUpdated
	onProductDeleted     []OnProductDeleted
	onStockClamped       []OnStockClamped
	onLowStock           []OnLowStock
	onLimitExceeded      []OnLimitExceeded
	onSnapshotPersisted  []OnSnapshotPersisted
	onSnapshotFailed     []OnSnapshotFailed
	reportFormatters     map[string]ReportFormatter
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:           slog.Default(),
		timeout:          DefaultTimeout,
		reportFormatters: make(map[string]ReportFormatter),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-callback timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnStateChanged); ok {
		r.onStateChanged = append(r.onStateChanged, v)
	}
	if v, ok := p.(OnTransactionPosted); ok {
		r.onTransactionPosted = append(r.onTransactionPosted, v)
	}
	if v, ok := p.(OnTransactionSettled); ok {
		r.onTransactionSettled = append(r.onTransactionSettled, v)
	}
	if v, ok := p.(OnExpenseRecorded); ok {
		r.onExpenseRecorded = append(r.onExpenseRecorded, v)
	}
	if v, ok := p.(OnRatesUpdated); ok {
		r.onRatesUpdated = append(r.onRatesUpdated, v)
	}
	if v, ok := p.(OnProductAdded); ok {
		r.onProductAdded = append(r.onProductAdded, v)
	}
	if v, ok := p.(OnProductUpdated); ok {
		r.onProductUpdated = append(r.onProductUpdated, v)
	}
	if v, ok := p.(OnProductDeleted); ok {
		r.onProductDeleted = append(r.onProductDeleted, v)
	}
	if v, ok := p.(OnStockClamped); ok {
		r.onStockClamped = append(r.onStockClamped, v)
	}
	if v, ok := p.(OnLowStock); ok {
		r.onLowStock = append(r.onLowStock, v)
	}
	if v, ok := p.(OnLimitExceeded); ok {
		r.onLimitExceeded = append(r.onLimitExceeded, v)
	}
	if v, ok := p.(OnSnapshotPersisted); ok {
		r.onSnapshotPersisted = append(r.onSnapshotPersisted, v)
	}
	if v, ok := p.(OnSnapshotFailed); ok {
		r.onSnapshotFailed = append(r.onSnapshotFailed, v)
	}
	if v, ok := p.(ReportFormatter); ok {
		r.reportFormatters[v.Format()] = v
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnStateChanged)(nil)).Elem(), "OnStateChanged")
	checkInterface(reflect.TypeOf((*OnTransactionPosted)(nil)).Elem(), "OnTransactionPosted")
	checkInterface(reflect.TypeOf((*OnTransactionSettled)(nil)).Elem(), "OnTransactionSettled")
	checkInterface(reflect.TypeOf((*OnExpenseRecorded)(nil)).Elem(), "OnExpenseRecorded")
	checkInterface(reflect.TypeOf((*OnRatesUpdated)(nil)).Elem(), "OnRatesUpdated")
	checkInterface(reflect.TypeOf((*OnProductAdded)(nil)).Elem(), "OnProductAdded")
	checkInterface(reflect.TypeOf((*OnProductUpdated)(nil)).Elem(), "OnProductUpdated")
	checkInterface(reflect.TypeOf((*OnProductDeleted)(nil)).Elem(), "OnProductDeleted")
	checkInterface(reflect.TypeOf((*OnStockClamped)(nil)).Elem(), "OnStockClamped")
	checkInterface(reflect.TypeOf((*OnLowStock)(nil)).Elem(), "OnLowStock")
	checkInterface(reflect.TypeOf((*OnLimitExceeded)(nil)).Elem(), "OnLimitExceeded")
	checkInterface(reflect.TypeOf((*OnSnapshotPersisted)(nil)).Elem(), "OnSnapshotPersisted")
	checkInterface(reflect.TypeOf((*OnSnapshotFailed)(nil)).Elem(), "OnSnapshotFailed")
	checkInterface(reflect.TypeOf((*ReportFormatter)(nil)).Elem(), "ReportFormatter")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// GetReportFormatter returns the formatter registered for format, or nil.
func (r *Registry) GetReportFormatter(format string) ReportFormatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reportFormatters[format]
}

// ReportFormats lists the registered report formats, sorted.
func (r *Registry) ReportFormats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.reportFormatters))
	for f := range r.reportFormatters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch runs call for every plugin in hooks, logging failures.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, call func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	dispatch(ctx, r, "OnInit", plugins, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	dispatch(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitStateChanged emits a state changed event.
func (r *Registry) EmitStateChanged(ctx context.Context, s state.AppState) {
	r.mu.RLock()
	plugins := r.onStateChanged
	r.mu.RUnlock()

	dispatch(ctx, r, "OnStateChanged", plugins, func(p OnStateChanged) error {
		return p.OnStateChanged(ctx, s.Clone())
	})
}

// EmitTransactionPosted emits a transaction posted event.
func (r *Registry) EmitTransactionPosted(ctx context.Context, tx transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onTransactionPosted
	r.mu.RUnlock()

	dispatch(ctx, r, "OnTransactionPosted", plugins, func(p OnTransactionPosted) error {
		return p.OnTransactionPosted(ctx, tx.Clone())
	})
}

// EmitTransactionSettled emits a transaction settled event.
func (r *Registry) EmitTransactionSettled(ctx context.Context, tx transaction.Transaction, from transaction.Status) {
	r.mu.RLock()
	plugins := r.onTransactionSettled
	r.mu.RUnlock()

	dispatch(ctx, r, "OnTransactionSettled", plugins, func(p OnTransactionSettled) error {
		return p.OnTransactionSettled(ctx, tx.Clone(), from)
	})
}

// EmitExpenseRecorded emits an expense recorded event.
func (r *Registry) EmitExpenseRecorded(ctx context.Context, e state.Expense) {
	r.mu.RLock()
	plugins := r.onExpenseRecorded
	r.mu.RUnlock()

	dispatch(ctx, r, "OnExpenseRecorded", plugins, func(p OnExpenseRecorded) error {
		return p.OnExpenseRecorded(ctx, e)
	})
}

// EmitRatesUpdated emits a rates updated event.
func (r *Registry) EmitRatesUpdated(ctx context.Context, oldRates, newRates fx.Rates) {
	r.mu.RLock()
	plugins := r.onRatesUpdated
	r.mu.RUnlock()

	dispatch(ctx, r, "OnRatesUpdated", plugins, func(p OnRatesUpdated) error {
		return p.OnRatesUpdated(ctx, oldRates, newRates)
	})
}

// EmitProductAdded emits a product added event.
func (r *Registry) EmitProductAdded(ctx context.Context, prod catalog.Product) {
	r.mu.RLock()
	plugins := r.onProductAdded
	r.mu.RUnlock()

	dispatch(ctx, r, "OnProductAdded", plugins, func(p OnProductAdded) error {
		return p.OnProductAdded(ctx, prod)
	})
}

// EmitProductUpdated emits a product updated event.
func (r *Registry) EmitProductUpdated(ctx context.Context, oldProduct, newProduct catalog.Product) {
	r.mu.RLock()
	plugins := r.onProductUpdated
	r.mu.RUnlock()

	dispatch(ctx, r, "OnProductUpdated", plugins, func(p OnProductUpdated) error {
		return p.OnProductUpdated(ctx, oldProduct, newProduct)
	})
}

// EmitProductDeleted emits a product deleted event.
func (r *Registry) EmitProductDeleted(ctx context.Context, prod catalog.Product) {
	r.mu.RLock()
	plugins := r.onProductDeleted
	r.mu.RUnlock()

	dispatch(ctx, r, "OnProductDeleted", plugins, func(p OnProductDeleted) error {
		return p.OnProductDeleted(ctx, prod)
	})
}

// EmitStockClamped emits a stock clamped event.
func (r *Registry) EmitStockClamped(ctx context.Context, change catalog.StockChange) {
	r.mu.RLock()
	plugins := r.onStockClamped
	r.mu.RUnlock()

	dispatch(ctx, r, "OnStockClamped", plugins, func(p OnStockClamped) error {
		return p.OnStockClamped(ctx, change)
	})
}

// EmitLowStock emits a low stock event.
func (r *Registry) EmitLowStock(ctx context.Context, change catalog.StockChange) {
	r.mu.RLock()
	plugins := r.onLowStock
	r.mu.RUnlock()

	dispatch(ctx, r, "OnLowStock", plugins, func(p OnLowStock) error {
		return p.OnLowStock(ctx, change)
	})
}

// EmitLimitExceeded emits a limit exceeded event.
func (r *Registry) EmitLimitExceeded(ctx context.Context, result entitlement.Result) {
	r.mu.RLock()
	plugins := r.onLimitExceeded
	r.mu.RUnlock()

	dispatch(ctx, r, "OnLimitExceeded", plugins, func(p OnLimitExceeded) error {
		return p.OnLimitExceeded(ctx, result)
	})
}

// EmitSnapshotPersisted emits a snapshot persisted event.
func (r *Registry) EmitSnapshotPersisted(ctx context.Context, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSnapshotPersisted
	r.mu.RUnlock()

	dispatch(ctx, r, "OnSnapshotPersisted", plugins, func(p OnSnapshotPersisted) error {
		return p.OnSnapshotPersisted(ctx, elapsed)
	})
}

// EmitSnapshotFailed emits a snapshot failed event.
func (r *Registry) EmitSnapshotFailed(ctx context.Context, saveErr error) {
	r.mu.RLock()
	plugins := r.onSnapshotFailed
	r.mu.RUnlock()

	dispatch(ctx, r, "OnSnapshotFailed", plugins, func(p OnSnapshotFailed) error {
		return p.OnSnapshotFailed(ctx, saveErr)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the command pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
