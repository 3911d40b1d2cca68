// Package tienda provides a multi-currency point-of-sale and inventory ledger
// for Go applications.
//
// Tienda is designed as a library, not a service. Import it directly into your
// Go application, or run it behind the bundled daemon in cmd/tiendad. It provides:
//
//   - A product catalog with stock that never goes negative
//   - Immutable sale, supply and credit records with frozen line items
//   - Conversion between the local currency, USD, EUR and a stablecoin
//   - A bounded, newest-first audit trail
//   - Plan tiers that gate catalog size and premium features
//   - Whole-state snapshots persisted to memory, bbolt, Redis, PostgreSQL or MongoDB
//   - Background business insights from a text-generation advisor
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/tienda"
//	    "github.com/xraph/tienda/store/bolt"
//	)
//
//	st, err := bolt.Open("tienda.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	e := tienda.New(st)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// Products carry stock, a reorder threshold and USD prices:
//
//	p, err := e.AddProduct(ctx, catalog.Product{
//	    Name:            "Harina PAN",
//	    Stock:           24,
//	    MinStock:        5,
//	    BasePriceUSD:    decimal.RequireFromString("1.25"),
//	    SupplierCostUSD: decimal.RequireFromString("0.90"),
//	})
//
// Sales copy the live product into each line item and move stock:
//
//	tx, err := e.Sell(ctx, tienda.SaleRequest{
//	    Lines:    []tienda.CartLine{{ProductID: p.ID, Quantity: 2}},
//	    Payments: []transaction.Payment{{Method: transaction.MethodCash, Amount: decimal.RequireFromString("2.50"), Currency: types.USD}},
//	})
//
// Credits are pending until settled. Settlement changes the status only:
//
//	credit, _ := e.RecordCredit(ctx, tienda.CreditRequest{Direction: tienda.Receivable, AmountUSD: decimal.NewFromInt(100), Identity: who})
//	_, err = e.SettleTransaction(ctx, credit.ID)
//
// # Consistency
//
// Every command works on a private copy of the state and publishes it in one
// swap, so stock, history and audit log never disagree. The snapshot is
// written after each swap; a failed write is logged and reported to plugins
// but does not undo the command. Call Flush to retry and observe the error.
//
// Money is held as shopspring decimals at full precision. Rounding to cents
// happens only when values are displayed or exported.
//
// # Integration
//
// Plugins observe engine events through the plugin package. The audit_hook
// package forwards them to an external audit recorder, observability exports
// Prometheus metrics, and extension mounts the engine in a Forge application.
package tienda
