// Package plugin provides an extensible plugin system for tienda.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"io"
	"time"

	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/entitlement"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/transaction"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// OnStateChanged is called with the new snapshot after every successful
// command, in commit order. The value is a private copy. The hook runs
// while the engine holds its command lock, so it must return quickly and
// must not issue commands.
type OnStateChanged interface {
	Plugin
	OnStateChanged(ctx context.Context, s state.AppState) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnTransactionPosted is called after a sale, supply, credit or expense
// transaction is recorded.
type OnTransactionPosted interface {
	Plugin
	OnTransactionPosted(ctx context.Context, tx transaction.Transaction) error
}

// OnTransactionSettled is called when a pending transaction is marked paid.
type OnTransactionSettled interface {
	Plugin
	OnTransactionSettled(ctx context.Context, tx transaction.Transaction, from transaction.Status) error
}

// OnExpenseRecorded is called when an operating expense is recorded.
type OnExpenseRecorded interface {
	Plugin
	OnExpenseRecorded(ctx context.Context, e state.Expense) error
}

// OnRatesUpdated is called when the exchange-rate set is replaced.
type OnRatesUpdated interface {
	Plugin
	OnRatesUpdated(ctx context.Context, oldRates, newRates fx.Rates) error
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnProductAdded is called when a product is added to the catalog.
type OnProductAdded interface {
	Plugin
	OnProductAdded(ctx context.Context, p catalog.Product) error
}

// OnProductUpdated is called when a product is edited.
type OnProductUpdated interface {
	Plugin
	OnProductUpdated(ctx context.Context, oldProduct, newProduct catalog.Product) error
}

// OnProductDeleted is called when a product is removed from the catalog.
type OnProductDeleted interface {
	Plugin
	OnProductDeleted(ctx context.Context, p catalog.Product) error
}

// OnStockClamped is called when a posting asked for more units than were
// in stock and the stock was floored at zero.
type OnStockClamped interface {
	Plugin
	OnStockClamped(ctx context.Context, change catalog.StockChange) error
}

// OnLowStock is called when a stock change moves a product to or below its
// reorder threshold.
type OnLowStock interface {
	Plugin
	OnLowStock(ctx context.Context, change catalog.StockChange) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnLimitExceeded is called when a plan limit or feature gate refuses a
// command.
type OnLimitExceeded interface {
	Plugin
	OnLimitExceeded(ctx context.Context, result entitlement.Result) error
}

// ──────────────────────────────────────────────────
// Persistence hooks
// ──────────────────────────────────────────────────

// OnSnapshotPersisted is called after the snapshot was written.
type OnSnapshotPersisted interface {
	Plugin
	OnSnapshotPersisted(ctx context.Context, elapsed time.Duration) error
}

// OnSnapshotFailed is called when writing the snapshot failed. The command
// that produced the state has already succeeded.
type OnSnapshotFailed interface {
	Plugin
	OnSnapshotFailed(ctx context.Context, err error) error
}

// ──────────────────────────────────────────────────
// Report formatters
// ──────────────────────────────────────────────────

// ReportFormatter renders a read-only snapshot into a document.
type ReportFormatter interface {
	Plugin
	Format() string // "csv", "xlsx", ...
	Render(ctx context.Context, s state.AppState, w io.Writer) error
}
