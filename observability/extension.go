// Package observability provides a metrics extension for tienda that records
// engine event counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/entitlement"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/plugin"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/transaction"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnTransactionPosted  = (*MetricsExtension)(nil)
	_ plugin.OnTransactionSettled = (*MetricsExtension)(nil)
	_ plugin.OnExpenseRecorded    = (*MetricsExtension)(nil)
	_ plugin.OnRatesUpdated       = (*MetricsExtension)(nil)
	_ plugin.OnProductAdded       = (*MetricsExtension)(nil)
	_ plugin.OnProductDeleted     = (*MetricsExtension)(nil)
	_ plugin.OnStockClamped       = (*MetricsExtension)(nil)
	_ plugin.OnLowStock           = (*MetricsExtension)(nil)
	_ plugin.OnLimitExceeded      = (*MetricsExtension)(nil)
	_ plugin.OnSnapshotPersisted  = (*MetricsExtension)(nil)
	_ plugin.OnSnapshotFailed     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records engine activity metrics.
// Register it as a tienda plugin to track sales, stock and persistence.
type MetricsExtension struct {
	factory MetricFactory

	// Ledger metrics
	SalesRecorded     Counter
	SalesAmountUSD    Histogram
	SupplyReceived    Counter
	SupplyAmountUSD   Histogram
	CreditsOpened     Counter
	CreditsSettled    Counter
	ExpensesRecorded  Counter
	ExpensesAmountUSD Histogram
	UnitsSold         Counter
	RatesUpdated      Counter

	// Catalog metrics
	ProductsAdded   Counter
	ProductsDeleted Counter
	StockClamped    Counter
	LowStockAlerts  Counter

	// Entitlement metrics
	LimitExceeded Counter

	// Persistence metrics
	SnapshotsPersisted Counter
	SnapshotLatency    Histogram
	SnapshotFailures   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Ledger metrics
		SalesRecorded:     factory.Counter("tienda.sales.recorded"),
		SalesAmountUSD:    factory.Histogram("tienda.sales.amount_usd"),
		SupplyReceived:    factory.Counter("tienda.supply.received"),
		SupplyAmountUSD:   factory.Histogram("tienda.supply.amount_usd"),
		CreditsOpened:     factory.Counter("tienda.credits.opened"),
		CreditsSettled:    factory.Counter("tienda.credits.settled"),
		ExpensesRecorded:  factory.Counter("tienda.expenses.recorded"),
		ExpensesAmountUSD: factory.Histogram("tienda.expenses.amount_usd"),
		UnitsSold:         factory.Counter("tienda.units.sold"),
		RatesUpdated:      factory.Counter("tienda.rates.updated"),

		// Catalog metrics
		ProductsAdded:   factory.Counter("tienda.products.added"),
		ProductsDeleted: factory.Counter("tienda.products.deleted"),
		StockClamped:    factory.Counter("tienda.stock.clamped"),
		LowStockAlerts:  factory.Counter("tienda.stock.low"),

		// Entitlement metrics
		LimitExceeded: factory.Counter("tienda.plan.limit_exceeded"),

		// Persistence metrics
		SnapshotsPersisted: factory.Counter("tienda.snapshot.persisted"),
		SnapshotLatency:    factory.Histogram("tienda.snapshot.latency_ms"),
		SnapshotFailures:   factory.Counter("tienda.snapshot.failures"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnTransactionPosted implements plugin.OnTransactionPosted.
func (m *MetricsExtension) OnTransactionPosted(_ context.Context, tx transaction.Transaction) error {
	amount := tx.TotalUSD.InexactFloat64()
	switch {
	case tx.Status == transaction.StatusPending:
		m.CreditsOpened.Inc()
	case tx.Category == transaction.CategorySale:
		m.SalesRecorded.Inc()
		m.SalesAmountUSD.Observe(amount)
		m.UnitsSold.Add(float64(tx.Units()))
	case tx.Category == transaction.CategorySupply:
		m.SupplyReceived.Inc()
		m.SupplyAmountUSD.Observe(amount)
	}
	return nil
}

// OnTransactionSettled implements plugin.OnTransactionSettled.
func (m *MetricsExtension) OnTransactionSettled(_ context.Context, _ transaction.Transaction, _ transaction.Status) error {
	m.CreditsSettled.Inc()
	return nil
}

// OnExpenseRecorded implements plugin.OnExpenseRecorded.
func (m *MetricsExtension) OnExpenseRecorded(_ context.Context, e state.Expense) error {
	m.ExpensesRecorded.Inc()
	m.ExpensesAmountUSD.Observe(e.AmountUSD.InexactFloat64())
	return nil
}

// OnRatesUpdated implements plugin.OnRatesUpdated.
func (m *MetricsExtension) OnRatesUpdated(_ context.Context, _, _ fx.Rates) error {
	m.RatesUpdated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnProductAdded implements plugin.OnProductAdded.
func (m *MetricsExtension) OnProductAdded(_ context.Context, _ catalog.Product) error {
	m.ProductsAdded.Inc()
	return nil
}

// OnProductDeleted implements plugin.OnProductDeleted.
func (m *MetricsExtension) OnProductDeleted(_ context.Context, _ catalog.Product) error {
	m.ProductsDeleted.Inc()
	return nil
}

// OnStockClamped implements plugin.OnStockClamped.
func (m *MetricsExtension) OnStockClamped(_ context.Context, _ catalog.StockChange) error {
	m.StockClamped.Inc()
	return nil
}

// OnLowStock implements plugin.OnLowStock.
func (m *MetricsExtension) OnLowStock(_ context.Context, _ catalog.StockChange) error {
	m.LowStockAlerts.Inc()
	return nil
}

// OnLimitExceeded implements plugin.OnLimitExceeded.
func (m *MetricsExtension) OnLimitExceeded(_ context.Context, _ entitlement.Result) error {
	m.LimitExceeded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Persistence hooks
// ──────────────────────────────────────────────────

// OnSnapshotPersisted implements plugin.OnSnapshotPersisted.
func (m *MetricsExtension) OnSnapshotPersisted(_ context.Context, elapsed time.Duration) error {
	m.SnapshotsPersisted.Inc()
	m.SnapshotLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnSnapshotFailed implements plugin.OnSnapshotFailed.
func (m *MetricsExtension) OnSnapshotFailed(_ context.Context, _ error) error {
	m.SnapshotFailures.Inc()
	return nil
}
