package export

import (
	"context"
	"io"
	"time"

	"github.com/xraph/tienda/plan"
	"github.com/xraph/tienda/plugin"
	"github.com/xraph/tienda/state"
)

// Compile-time interface checks.
var (
	_ plugin.ReportFormatter = (*CSV)(nil)
	_ plugin.ReportFormatter = (*ProductsCSVFormatter)(nil)
	_ plugin.ReportFormatter = (*XLSX)(nil)
)

// CSV renders the transaction history.
type CSV struct{}

func (CSV) Name() string    { return "export-csv" }
func (CSV) Format() string  { return "csv" }
func (CSV) Feature() string { return plan.FeatureCSVExport }

func (CSV) Render(_ context.Context, s state.AppState, w io.Writer) error {
	return TransactionsCSV(w, s.Transactions)
}

// ProductsCSVFormatter renders the catalog with its low-stock flags.
type ProductsCSVFormatter struct{}

func (ProductsCSVFormatter) Name() string    { return "export-products" }
func (ProductsCSVFormatter) Format() string  { return "products" }
func (ProductsCSVFormatter) Feature() string { return plan.FeatureCSVExport }

func (ProductsCSVFormatter) Render(_ context.Context, s state.AppState, w io.Writer) error {
	return ProductsCSV(w, s.Products)
}

// XLSX renders the stock valuation workbook dated with Clock.
type XLSX struct {
	Clock func() time.Time
}

func (XLSX) Name() string    { return "export-xlsx" }
func (XLSX) Format() string  { return "xlsx" }
func (XLSX) Feature() string { return plan.FeatureAdvancedReports }

func (x XLSX) Render(_ context.Context, s state.AppState, w io.Writer) error {
	now := time.Now()
	if x.Clock != nil {
		now = x.Clock()
	}
	return ValuationXLSX(w, s, now)
}
