// Package export renders read-only snapshots into CSV and XLSX documents.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/transaction"
)

const timeLayout = "2006-01-02 15:04:05"

// TransactionRow is one CSV line of the transaction history.
type TransactionRow struct {
	Code      string `csv:"codigo"`
	Timestamp string `csv:"fecha"`
	Type      string `csv:"tipo"`
	Category  string `csv:"categoria"`
	Status    string `csv:"estado"`
	Items     string `csv:"articulos"`
	Units     int64  `csv:"unidades"`
	TotalUSD  string `csv:"total_usd"`
	Rate      string `csv:"tasa_ves"`
	TotalVES  string `csv:"total_ves"`
	Payments  string `csv:"pagos"`
	Reference string `csv:"referencia"`
	Client    string `csv:"cliente"`
}

// TransactionRows flattens records for tabular output. Money is rounded to
// cents; the stored values are untouched.
func TransactionRows(txs []transaction.Transaction) []TransactionRow {
	rows := make([]TransactionRow, 0, len(txs))
	for _, t := range txs {
		items := make([]string, 0, len(t.Items))
		for _, li := range t.Items {
			items = append(items, fmt.Sprintf("%dx %s", li.Quantity, li.Name))
		}
		pays := make([]string, 0, len(t.Payments))
		for _, p := range t.Payments {
			pays = append(pays, fmt.Sprintf("%s %s %s", p.Method, p.Amount.StringFixed(2), p.Currency))
		}
		row := TransactionRow{
			Code:      t.SaleCode,
			Timestamp: t.Timestamp.UTC().Format(timeLayout),
			Type:      string(t.Type),
			Category:  string(t.Category),
			Status:    string(t.Status),
			Items:     strings.Join(items, "; "),
			Units:     t.Units(),
			TotalUSD:  t.TotalUSD.StringFixed(2),
			Rate:      t.RateAtTimeVES.StringFixed(2),
			TotalVES:  t.TotalVES().StringFixed(2),
			Payments:  strings.Join(pays, "; "),
			Reference: t.ReferenceNumber,
		}
		if t.Identity != nil {
			row.Client = t.Identity.FullName() + " (" + t.Identity.IDNumber + ")"
		}
		rows = append(rows, row)
	}
	return rows
}

// TransactionsCSV writes the history as CSV with a header line.
func TransactionsCSV(w io.Writer, txs []transaction.Transaction) error {
	rows := TransactionRows(txs)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("export: transactions csv: %w", err)
	}
	return nil
}

// ProductRow is one CSV line of the catalog.
type ProductRow struct {
	ID              string `csv:"id"`
	Name            string `csv:"nombre"`
	Category        string `csv:"categoria"`
	Stock           int64  `csv:"stock"`
	MinStock        int64  `csv:"stock_minimo"`
	Unit            string `csv:"unidad"`
	BasePriceUSD    string `csv:"precio_usd"`
	SupplierCostUSD string `csv:"costo_usd"`
	Barcode         string `csv:"codigo_barras"`
	LowStock        bool   `csv:"stock_bajo"`
	LastPriceChange string `csv:"ultimo_cambio_precio"`
}

// ProductRows flattens the catalog for tabular output.
func ProductRows(products []catalog.Product) []ProductRow {
	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		row := ProductRow{
			ID:              p.ID.String(),
			Name:            p.Name,
			Category:        p.Category,
			Stock:           p.Stock,
			MinStock:        p.MinStock,
			Unit:            p.Unit,
			BasePriceUSD:    p.BasePriceUSD.StringFixed(2),
			SupplierCostUSD: p.SupplierCostUSD.StringFixed(2),
			Barcode:         p.Barcode,
			LowStock:        p.IsLowStock(),
		}
		if p.LastPriceChange != nil {
			row.LastPriceChange = p.LastPriceChange.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return rows
}

// ProductsCSV writes the catalog as CSV with a header line.
func ProductsCSV(w io.Writer, products []catalog.Product) error {
	rows := ProductRows(products)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("export: products csv: %w", err)
	}
	return nil
}
