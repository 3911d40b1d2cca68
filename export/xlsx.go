package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xraph/tienda/report"
	"github.com/xraph/tienda/state"
)

// ValuationSheet is the sheet name of the stock valuation workbook.
const ValuationSheet = "Valoración"

// ValuationXLSX writes a workbook valuing the stock at cost, one block per
// category with a subtotal row, and a grand total at the end.
func ValuationXLSX(w io.Writer, s state.AppState, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ValuationSheet); err != nil {
		return fmt.Errorf("export: valuation sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: valuation style: %w", err)
	}

	row := 1
	put := func(values []interface{}, style int) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ValuationSheet, cell, &values); err != nil {
			return err
		}
		if style != 0 {
			last, err := excelize.CoordinatesToCellName(len(values), row)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(ValuationSheet, cell, last, style); err != nil {
				return err
			}
		}
		row++
		return nil
	}

	rows := [][]interface{}{
		{s.BusinessInfo.Name},
		{"Valoración de inventario", now.UTC().Format("2006-01-02")},
		{},
		{"Categoría", "Producto", "Cantidad", "Costo USD", "Total costo USD", "Total venta USD"},
	}
	for i, r := range rows {
		style := 0
		if i == 0 || i == len(rows)-1 {
			style = bold
		}
		if err := put(r, style); err != nil {
			return fmt.Errorf("export: valuation header: %w", err)
		}
	}

	for _, g := range report.ValuationByCategory(s.Products) {
		for _, p := range g.Products {
			if err := put([]interface{}{
				g.Category, p.Name, p.Stock,
				p.SupplierCostUSD.StringFixed(2),
				p.CostValue().StringFixed(2),
				p.RetailValue().StringFixed(2),
			}, 0); err != nil {
				return fmt.Errorf("export: valuation row: %w", err)
			}
		}
		if err := put([]interface{}{
			"Subtotal " + g.Category, "", g.Units, "",
			g.CostUSD.StringFixed(2), g.RetailUSD.StringFixed(2),
		}, bold); err != nil {
			return fmt.Errorf("export: valuation subtotal: %w", err)
		}
	}

	total := report.InventoryValue(s.Products)
	if err := put([]interface{}{
		"Total", "", total.Units, "",
		total.CostUSD.StringFixed(2), total.RetailUSD.StringFixed(2),
	}, bold); err != nil {
		return fmt.Errorf("export: valuation total: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
