// Package audithook bridges tienda engine events to an external audit trail.
//
// The engine keeps its own bounded log inside the state. This package is for
// deployments that also ship events to a longer-lived backend. It defines a
// local Recorder interface; callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/entitlement"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/plugin"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnTransactionPosted  = (*Extension)(nil)
	_ plugin.OnTransactionSettled = (*Extension)(nil)
	_ plugin.OnExpenseRecorded    = (*Extension)(nil)
	_ plugin.OnRatesUpdated       = (*Extension)(nil)
	_ plugin.OnProductAdded       = (*Extension)(nil)
	_ plugin.OnProductUpdated     = (*Extension)(nil)
	_ plugin.OnProductDeleted     = (*Extension)(nil)
	_ plugin.OnStockClamped       = (*Extension)(nil)
	_ plugin.OnLowStock           = (*Extension)(nil)
	_ plugin.OnLimitExceeded      = (*Extension)(nil)
	_ plugin.OnSnapshotFailed     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension forwards engine events to a Recorder.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnTransactionPosted implements plugin.OnTransactionPosted.
func (e *Extension) OnTransactionPosted(ctx context.Context, tx transaction.Transaction) error {
	action, category := ActionSaleRecorded, CategorySales
	switch {
	case tx.Status == transaction.StatusPending:
		action, category = ActionCreditOpened, CategoryFinance
	case tx.Category == transaction.CategorySupply:
		action, category = ActionSupplyReceived, CategoryInventory
	}

	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), category, nil,
		"sale_code", tx.SaleCode,
		"type", string(tx.Type),
		"total_usd", tx.TotalUSD.StringFixed(2),
		"rate_ves", tx.RateAtTimeVES.String(),
		"items", len(tx.Items),
	)
}

// OnTransactionSettled implements plugin.OnTransactionSettled.
func (e *Extension) OnTransactionSettled(ctx context.Context, tx transaction.Transaction, from transaction.Status) error {
	return e.record(ctx, ActionTransactionSettled, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), CategoryFinance, nil,
		"sale_code", tx.SaleCode,
		"from", string(from),
		"to", string(tx.Status),
		"total_usd", tx.TotalUSD.StringFixed(2),
	)
}

// OnExpenseRecorded implements plugin.OnExpenseRecorded.
func (e *Extension) OnExpenseRecorded(ctx context.Context, exp state.Expense) error {
	return e.record(ctx, ActionExpenseRecorded, SeverityInfo, OutcomeSuccess,
		ResourceExpense, exp.ID.String(), CategoryFinance, nil,
		"category", exp.Category,
		"amount_usd", exp.AmountUSD.StringFixed(2),
	)
}

// OnRatesUpdated implements plugin.OnRatesUpdated.
func (e *Extension) OnRatesUpdated(ctx context.Context, oldRates, newRates fx.Rates) error {
	return e.record(ctx, ActionRatesUpdated, SeverityInfo, OutcomeSuccess,
		ResourceRates, "", CategoryFinance, nil,
		"old_ves_usd", oldRates.LocalPerUSD.String(),
		"new_ves_usd", newRates.LocalPerUSD.String(),
		"new_ves_eur", newRates.LocalPerEUR.String(),
		"new_ves_usdt", newRates.LocalPerStable.String(),
	)
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnProductAdded implements plugin.OnProductAdded.
func (e *Extension) OnProductAdded(ctx context.Context, p catalog.Product) error {
	return e.record(ctx, ActionProductAdded, SeverityInfo, OutcomeSuccess,
		ResourceProduct, p.ID.String(), CategoryInventory, nil,
		"name", p.Name,
		"stock", p.Stock,
	)
}

// OnProductUpdated implements plugin.OnProductUpdated. A change of sale
// price is reported as its own action.
func (e *Extension) OnProductUpdated(ctx context.Context, oldProduct, newProduct catalog.Product) error {
	action := ActionProductUpdated
	if !oldProduct.BasePriceUSD.Equal(newProduct.BasePriceUSD) {
		action = ActionPriceChanged
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceProduct, newProduct.ID.String(), CategoryInventory, nil,
		"name", newProduct.Name,
		"old_price_usd", oldProduct.BasePriceUSD.StringFixed(2),
		"new_price_usd", newProduct.BasePriceUSD.StringFixed(2),
	)
}

// OnProductDeleted implements plugin.OnProductDeleted.
func (e *Extension) OnProductDeleted(ctx context.Context, p catalog.Product) error {
	return e.record(ctx, ActionProductDeleted, SeverityWarning, OutcomeSuccess,
		ResourceProduct, p.ID.String(), CategoryInventory, nil,
		"name", p.Name,
		"stock", p.Stock,
	)
}

// OnStockClamped implements plugin.OnStockClamped.
func (e *Extension) OnStockClamped(ctx context.Context, c catalog.StockChange) error {
	return e.record(ctx, ActionStockClamped, SeverityWarning, OutcomePartial,
		ResourceProduct, c.ProductID.String(), CategoryInventory, nil,
		"name", c.Name,
		"before", c.Before,
		"delta", c.Delta,
	)
}

// OnLowStock implements plugin.OnLowStock.
func (e *Extension) OnLowStock(ctx context.Context, c catalog.StockChange) error {
	return e.record(ctx, ActionStockLow, SeverityWarning, OutcomeSuccess,
		ResourceProduct, c.ProductID.String(), CategoryInventory, nil,
		"name", c.Name,
		"stock", c.After,
		"min_stock", c.MinStock,
	)
}

// ──────────────────────────────────────────────────
// Entitlement and persistence hooks
// ──────────────────────────────────────────────────

// OnLimitExceeded implements plugin.OnLimitExceeded.
func (e *Extension) OnLimitExceeded(ctx context.Context, res entitlement.Result) error {
	return e.record(ctx, ActionLimitExceeded, SeverityWarning, OutcomeFailure,
		ResourcePlan, res.Feature, CategoryAccess, nil,
		"feature", res.Feature,
		"used", res.Used,
		"limit", res.Limit,
		"reason", res.Reason,
	)
}

// OnSnapshotFailed implements plugin.OnSnapshotFailed.
func (e *Extension) OnSnapshotFailed(ctx context.Context, err error) error {
	return e.record(ctx, ActionSnapshotFailed, SeverityCritical, OutcomeFailure,
		ResourceSnapshot, "", CategoryStorage, err,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
