package tienda

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/advisor"
	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/plan"
	"github.com/xraph/tienda/report"
	"github.com/xraph/tienda/transaction"
)

// Scan resolves a decoded barcode to a product.
func (e *Engine) Scan(code string) (catalog.Product, error) {
	p, ok := catalog.FindByBarcode(e.State().Products, code)
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: barcode %q", ErrProductNotFound, code)
	}
	return p, nil
}

// Search matches product names and barcodes.
func (e *Engine) Search(term string) []catalog.Product {
	return catalog.Search(e.State().Products, term)
}

// LowStock lists products at or below their reorder threshold.
func (e *Engine) LowStock() []catalog.Product {
	return catalog.LowStock(e.State().Products)
}

// Quote converts a USD amount with the current rates.
func (e *Engine) Quote(amountUSD decimal.Decimal) fx.Conversion {
	return fx.Convert(amountUSD, e.State().Rates)
}

// Dashboard summarizes today's activity.
func (e *Engine) Dashboard() report.Dashboard {
	return report.BuildDashboard(e.State(), e.now())
}

// SalesForDate lists every sale of the calendar day holding day, paid or
// pending.
func (e *Engine) SalesForDate(day time.Time) []transaction.Transaction {
	return report.SalesForDate(e.State().Transactions, day)
}

// SupplyHistory lists up to limit supply receipts, newest first. A limit
// <= 0 means report.DefaultSupplyHistory.
func (e *Engine) SupplyHistory(limit int) []transaction.Transaction {
	return report.SupplyHistory(e.State().Transactions, limit)
}

// Pending returns the open credits split by direction.
func (e *Engine) Pending() report.PendingAccounts {
	return report.Pending(e.State().Transactions)
}

// Insights returns the latest advisor text. Without an advisor it returns
// the fallback text.
func (e *Engine) Insights() string {
	if e.refresher == nil {
		return advisor.FallbackMessage
	}
	return e.refresher.Text()
}

// RefreshInsights asks the advisor for a new text and waits for it.
func (e *Engine) RefreshInsights(ctx context.Context) string {
	if e.refresher == nil {
		return advisor.FallbackMessage
	}
	return e.refresher.Refresh(ctx, e.State())
}

// Export renders the current state with the formatter registered for
// format. Formatters that name a plan feature are refused without it.
func (e *Engine) Export(ctx context.Context, format string, w io.Writer) error {
	f := e.plugins.GetReportFormatter(format)
	if f == nil {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	s := e.State()
	if gated, ok := f.(interface{ Feature() string }); ok {
		if res := s.ActivePlan().CheckFeature(gated.Feature()); !res.Allowed {
			e.plugins.EmitLimitExceeded(ctx, res)
			return fmt.Errorf("%w: %s", ErrFeatureDisabled, gated.Feature())
		}
	}
	return f.Render(ctx, s, w)
}

// ExportTransactionsCSV writes the transaction history as CSV. It requires
// the CSV export feature.
func (e *Engine) ExportTransactionsCSV(ctx context.Context, w io.Writer) error {
	return e.Export(ctx, "csv", w)
}

// Plans lists the subscription tiers.
func (e *Engine) Plans() []plan.Plan { return plan.Tiers() }
