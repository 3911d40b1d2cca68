package tienda_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tienda"
	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/plan"
	"github.com/xraph/tienda/store/memory"
	"github.com/xraph/tienda/transaction"
	"github.com/xraph/tienda/types"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and behave as described.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use bbolt or PostgreSQL in production)
		store := memory.New()

		e := tienda.New(store,
			tienda.WithLogger(slog.Default()),
			tienda.WithPluginTimeout(2*time.Second),
		)

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		p, err := e.AddProduct(ctx, catalog.Product{
			Name:            "Harina PAN",
			Stock:           24,
			MinStock:        5,
			BasePriceUSD:    decimal.RequireFromString("1.25"),
			SupplierCostUSD: decimal.RequireFromString("0.90"),
		})
		if err != nil {
			t.Fatal(err)
		}

		tx, err := e.Sell(ctx, tienda.SaleRequest{
			Lines: []tienda.CartLine{{ProductID: p.ID, Quantity: 2}},
			Payments: []transaction.Payment{
				{Method: transaction.MethodCash, Amount: decimal.RequireFromString("2.50"), Currency: types.USD},
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		t.Logf("sold %s for $%s (Bs. %s)", tx.SaleCode, tx.TotalUSD.StringFixed(2), tx.TotalVES().StringFixed(2))
	})

	t.Run("CreditExample", func(t *testing.T) {
		e := tienda.New(memory.New())
		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		who := transaction.Identity{FirstName: "José", LastName: "Rivas", IDNumber: "V-20111222"}
		credit, err := e.RecordCredit(ctx, tienda.CreditRequest{
			Direction: tienda.Receivable,
			AmountUSD: decimal.NewFromInt(100),
			Identity:  who,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.SettleTransaction(ctx, credit.ID); err != nil {
			t.Fatal(err)
		}
		if n := e.Pending().Count(); n != 0 {
			t.Errorf("pending: got %d, want 0", n)
		}
	})

	t.Run("PlanExample", func(t *testing.T) {
		for _, p := range plan.Tiers() {
			limit, _ := p.Limit(plan.DimensionProducts)
			t.Logf("%s: $%s/mes, %d productos", p.Name, p.PriceUSD.StringFixed(2), limit)
		}
	})
}
