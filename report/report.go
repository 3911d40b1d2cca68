// Package report derives read-only figures from application state: daily
// sales and expenses, open credits, stock valuation and best sellers.
//
// Day filters compare the UTC calendar date of a timestamp with the UTC date
// of the reference instant, which is the date prefix of its RFC 3339 form.
// They are not time-zone aware.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/transaction"
)

// Uncategorized groups products without a category in valuations.
const Uncategorized = "Sin categoría"

// DefaultSupplyHistory is how many supply receipts SupplyHistory returns by default.
const DefaultSupplyHistory = 20

const dateLayout = "2006-01-02"

// SameDay reports whether ts falls on the UTC calendar date of day.
func SameDay(ts, day time.Time) bool {
	return ts.UTC().Format(dateLayout) == day.UTC().Format(dateLayout)
}

// TodaySales returns the paid outgoing sales posted on the date of now.
func TodaySales(txs []transaction.Transaction, now time.Time) []transaction.Transaction {
	var out []transaction.Transaction
	for _, t := range txs {
		if t.Category == transaction.CategorySale &&
			t.Type == transaction.TypeOut &&
			t.Status == transaction.StatusPaid &&
			SameDay(t.Timestamp, now) {
			out = append(out, t)
		}
	}
	return out
}

// SalesForDate returns every sale record of the given date, paid or not.
func SalesForDate(txs []transaction.Transaction, day time.Time) []transaction.Transaction {
	var out []transaction.Transaction
	for _, t := range txs {
		if t.Category == transaction.CategorySale && SameDay(t.Timestamp, day) {
			out = append(out, t)
		}
	}
	return out
}

// SupplyHistory returns up to limit supply records, newest first. A limit
// <= 0 means DefaultSupplyHistory.
func SupplyHistory(txs []transaction.Transaction, limit int) []transaction.Transaction {
	if limit <= 0 {
		limit = DefaultSupplyHistory
	}
	var out []transaction.Transaction
	for _, t := range txs {
		if t.Category != transaction.CategorySupply {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Total sums totalUSD.
func Total(txs []transaction.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.TotalUSD)
	}
	return sum
}

// GrossProfit is revenue minus the snapshotted cost of the items sold.
// Records without items contribute their full total.
func GrossProfit(txs []transaction.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.TotalUSD.Sub(t.CostUSD()))
	}
	return sum
}

// TodayExpenses returns the expenses dated on the date of now and their sum.
func TodayExpenses(expenses []state.Expense, now time.Time) ([]state.Expense, decimal.Decimal) {
	var out []state.Expense
	sum := decimal.Zero
	for _, e := range expenses {
		if SameDay(e.Date, now) {
			out = append(out, e)
			sum = sum.Add(e.AmountUSD)
		}
	}
	return out, sum
}

// PendingAccounts splits open credits by direction.
type PendingAccounts struct {
	Receivable    []transaction.Transaction `json:"receivable"`
	Payable       []transaction.Transaction `json:"payable"`
	ReceivableUSD decimal.Decimal           `json:"receivableUSD"`
	PayableUSD    decimal.Decimal           `json:"payableUSD"`
}

// Count is the number of open credits.
func (p PendingAccounts) Count() int { return len(p.Receivable) + len(p.Payable) }

// TotalUSD is the amount of every open credit regardless of direction.
func (p PendingAccounts) TotalUSD() decimal.Decimal { return p.ReceivableUSD.Add(p.PayableUSD) }

// Pending collects every PENDING record across all time.
func Pending(txs []transaction.Transaction) PendingAccounts {
	out := PendingAccounts{ReceivableUSD: decimal.Zero, PayableUSD: decimal.Zero}
	for _, t := range txs {
		switch {
		case t.IsReceivable():
			out.Receivable = append(out.Receivable, t)
			out.ReceivableUSD = out.ReceivableUSD.Add(t.TotalUSD)
		case t.IsPayable():
			out.Payable = append(out.Payable, t)
			out.PayableUSD = out.PayableUSD.Add(t.TotalUSD)
		}
	}
	return out
}

// Valuation is stock valued at sale price and at cost.
type Valuation struct {
	Units     int64           `json:"units"`
	RetailUSD decimal.Decimal `json:"retailUSD"`
	CostUSD   decimal.Decimal `json:"costUSD"`
}

// PotentialProfit is the margin if the whole stock sold at list price.
func (v Valuation) PotentialProfit() decimal.Decimal { return v.RetailUSD.Sub(v.CostUSD) }

func (v *Valuation) add(p catalog.Product) {
	v.Units += p.Stock
	v.RetailUSD = v.RetailUSD.Add(p.RetailValue())
	v.CostUSD = v.CostUSD.Add(p.CostValue())
}

// InventoryValue values the whole catalog.
func InventoryValue(products []catalog.Product) Valuation {
	v := Valuation{RetailUSD: decimal.Zero, CostUSD: decimal.Zero}
	for _, p := range products {
		v.add(p)
	}
	return v
}

// CategoryValuation is the valuation of one category.
type CategoryValuation struct {
	Category string            `json:"category"`
	Products []catalog.Product `json:"products"`
	Valuation
}

// ValuationByCategory groups the catalog by category, sorted by name.
func ValuationByCategory(products []catalog.Product) []CategoryValuation {
	groups := make(map[string]*CategoryValuation)
	for _, p := range products {
		name := p.Category
		if name == "" {
			name = Uncategorized
		}
		g, ok := groups[name]
		if !ok {
			g = &CategoryValuation{Category: name, Valuation: Valuation{RetailUSD: decimal.Zero, CostUSD: decimal.Zero}}
			groups[name] = g
		}
		g.Products = append(g.Products, p)
		g.add(p)
	}

	out := make([]CategoryValuation, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// ProductSales is the sold quantity and revenue of one product.
type ProductSales struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	Units      int64           `json:"units"`
	RevenueUSD decimal.Decimal `json:"revenueUSD"`
}

// TopSelling ranks products by units sold in paid outgoing sales. Line
// items are grouped by product id, and named by their most recent snapshot.
// n <= 0 returns every product.
func TopSelling(txs []transaction.Transaction, n int) []ProductSales {
	byID := make(map[string]*ProductSales)
	var order []string
	for _, t := range txs {
		if t.Category != transaction.CategorySale || t.Type != transaction.TypeOut || t.Status != transaction.StatusPaid {
			continue
		}
		for _, li := range t.Items {
			key := li.ProductID.String()
			ps, ok := byID[key]
			if !ok {
				ps = &ProductSales{ProductID: key, Name: li.Name, RevenueUSD: decimal.Zero}
				byID[key] = ps
				order = append(order, key)
			}
			ps.Units += li.Quantity
			ps.RevenueUSD = ps.RevenueUSD.Add(li.Subtotal())
		}
	}

	out := make([]ProductSales, 0, len(order))
	for _, key := range order {
		out = append(out, *byID[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		return out[i].RevenueUSD.GreaterThan(out[j].RevenueUSD)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Dashboard is the summary shown on the home screen.
type Dashboard struct {
	Date             string            `json:"date"`
	TodaySalesUSD    decimal.Decimal   `json:"todaySalesUSD"`
	TodaySales       fx.Conversion     `json:"todaySales"`
	TodaySalesCount  int               `json:"todaySalesCount"`
	TodayProfitUSD   decimal.Decimal   `json:"todayProfitUSD"`
	TodayExpensesUSD decimal.Decimal   `json:"todayExpensesUSD"`
	NetTodayUSD      decimal.Decimal   `json:"netTodayUSD"`
	Inventory        Valuation         `json:"inventory"`
	LowStock         []catalog.Product `json:"lowStock"`
	PendingCount     int               `json:"pendingCount"`
	PendingUSD       decimal.Decimal   `json:"pendingUSD"`
}

// BuildDashboard computes the home-screen figures for the date of now.
func BuildDashboard(s state.AppState, now time.Time) Dashboard {
	sales := TodaySales(s.Transactions, now)
	salesUSD := Total(sales)
	_, expensesUSD := TodayExpenses(s.Expenses, now)
	pending := Pending(s.Transactions)

	return Dashboard{
		Date:             now.UTC().Format(dateLayout),
		TodaySalesUSD:    salesUSD,
		TodaySales:       fx.Convert(salesUSD, s.Rates),
		TodaySalesCount:  len(sales),
		TodayProfitUSD:   GrossProfit(sales),
		TodayExpensesUSD: expensesUSD,
		NetTodayUSD:      salesUSD.Sub(expensesUSD),
		Inventory:        InventoryValue(s.Products),
		LowStock:         catalog.LowStock(s.Products),
		PendingCount:     pending.Count(),
		PendingUSD:       pending.TotalUSD(),
	}
}
