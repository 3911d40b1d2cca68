package tienda

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/audit"
	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/id"
	"github.com/xraph/tienda/plan"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/transaction"
	"github.com/xraph/tienda/types"
)

// ──────────────────────────────────────────────────
// Posting
// ──────────────────────────────────────────────────

// PostTransaction records a sale, supply receipt or credit. Missing id,
// sale code, timestamp and rate are filled in. Items whose product is in
// the catalog move its stock (IN adds, OUT removes, floored at zero); other
// items are kept as recorded. Stock, history and audit log change together
// or not at all.
func (e *Engine) PostTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	var posted transaction.Transaction
	err := e.apply(ctx, "post_transaction", func(s *state.AppState, c *change) error {
		var err error
		posted, err = e.post(s, c, tx)
		return err
	})
	return posted, err
}

func (e *Engine) post(s *state.AppState, c *change, tx transaction.Transaction) (transaction.Transaction, error) {
	tx = tx.Clone()
	if tx.ID.IsNil() {
		tx.ID = id.NewTransactionID()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = c.now
	}
	tx.Timestamp = tx.Timestamp.UTC()
	if tx.SaleCode == "" {
		tx.SaleCode = transaction.NewCode(transaction.CodeFor(tx), tx.Timestamp)
	}
	if tx.RateAtTimeVES.IsZero() {
		tx.RateAtTimeVES = s.Rates.LocalPerUSD
	}

	if err := transaction.Validate(tx); err != nil {
		return transaction.Transaction{}, err
	}
	if s.FindTransaction(tx.ID) >= 0 {
		return transaction.Transaction{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidTransaction, tx.ID)
	}

	for _, li := range tx.Items {
		delta := li.Quantity
		if tx.Type == transaction.TypeOut {
			delta = -delta
		}
		sc, err := catalog.ApplyStockDelta(s.Products, li.ProductID, delta, c.now)
		if errors.Is(err, catalog.ErrProductNotFound) {
			continue
		}
		if err != nil {
			return transaction.Transaction{}, err
		}
		if sc.Clamped {
			e.logger.Warn("stock clamped at zero",
				"product", sc.Name,
				"before", sc.Before,
				"delta", sc.Delta,
				"sale_code", tx.SaleCode,
			)
			c.emit(func(ctx context.Context) { e.plugins.EmitStockClamped(ctx, sc) })
		}
		if sc.BecameLow() {
			c.emit(func(ctx context.Context) { e.plugins.EmitLowStock(ctx, sc) })
		}
	}

	s.Transactions = append([]transaction.Transaction{tx}, s.Transactions...)
	e.record(s, c, transaction.AuditEvent(tx), "Ticket: "+tx.SaleCode, &tx)

	posted := tx.Clone()
	c.emit(func(ctx context.Context) { e.plugins.EmitTransactionPosted(ctx, posted) })
	return posted, nil
}

// CartLine is one product and quantity of a sale or supply request.
type CartLine struct {
	ProductID id.ProductID
	Quantity  int64
	// CostUSD overrides the catalog cost on supply receipts when positive.
	CostUSD decimal.Decimal
}

// SaleRequest describes a checkout at the register.
type SaleRequest struct {
	Lines    []CartLine
	Payments []transaction.Payment
	// Credit records the sale as PENDING with no payments.
	Credit          bool
	Identity        *transaction.Identity
	ReferenceNumber string
}

// Sell posts an outgoing sale built from the live catalog. Line items copy
// the current name, price and cost of each product.
func (e *Engine) Sell(ctx context.Context, req SaleRequest) (transaction.Transaction, error) {
	if len(req.Lines) == 0 {
		return transaction.Transaction{}, ErrEmptyCart
	}
	if !req.Credit && len(req.Payments) == 0 {
		return transaction.Transaction{}, ErrPaymentRequired
	}

	var posted transaction.Transaction
	err := e.apply(ctx, "sell", func(s *state.AppState, c *change) error {
		items, err := lineItems(s.Products, req.Lines, false)
		if err != nil {
			return err
		}
		total, _ := transaction.ItemsTotal(transaction.CategorySale, items)

		tx := transaction.Transaction{
			Type:            transaction.TypeOut,
			Category:        transaction.CategorySale,
			Items:           items,
			TotalUSD:        total,
			Payments:        req.Payments,
			Status:          transaction.StatusPaid,
			ReferenceNumber: req.ReferenceNumber,
		}
		if req.Credit {
			tx.Status = transaction.StatusPending
			tx.Payments = nil
			tx.Identity = req.Identity
		}

		posted, err = e.post(s, c, tx)
		return err
	})
	return posted, err
}

// SupplyRequest describes goods received from a supplier.
type SupplyRequest struct {
	Lines    []CartLine
	Supplier string
	// Method is the payment method; empty means cash.
	Method string
}

// Receive posts an incoming supply receipt paid in USD. The catalog cost is
// used unless a line overrides it; the product itself keeps its cost.
func (e *Engine) Receive(ctx context.Context, req SupplyRequest) (transaction.Transaction, error) {
	if len(req.Lines) == 0 {
		return transaction.Transaction{}, ErrEmptyCart
	}
	supplier := strings.TrimSpace(req.Supplier)
	if supplier == "" {
		return transaction.Transaction{}, ValidationError{Field: "supplier", Message: "required"}
	}
	method := req.Method
	if method == "" {
		method = transaction.MethodCash
	}

	var posted transaction.Transaction
	err := e.apply(ctx, "receive", func(s *state.AppState, c *change) error {
		items, err := lineItems(s.Products, req.Lines, true)
		if err != nil {
			return err
		}
		total, _ := transaction.ItemsTotal(transaction.CategorySupply, items)

		posted, err = e.post(s, c, transaction.Transaction{
			Type:            transaction.TypeIn,
			Category:        transaction.CategorySupply,
			Items:           items,
			TotalUSD:        total,
			Payments:        []transaction.Payment{{Method: method, Amount: total, Currency: types.USD}},
			Status:          transaction.StatusPaid,
			ReferenceNumber: "Proveedor: " + supplier,
		})
		return err
	})
	return posted, err
}

func lineItems(products []catalog.Product, lines []CartLine, supply bool) ([]transaction.LineItem, error) {
	items := make([]transaction.LineItem, 0, len(lines))
	for _, l := range lines {
		p, ok := catalog.Find(products, l.ProductID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, l.ProductID)
		}
		li := transaction.NewLineItem(p, l.Quantity)
		if supply && l.CostUSD.IsPositive() {
			li.CostUSD = l.CostUSD
		}
		items = append(items, li)
	}
	return items, nil
}

// Credit directions.
const (
	Receivable = "CxC" // owed to the store
	Payable    = "CxP" // owed by the store
)

// CreditRequest describes a credit without goods.
type CreditRequest struct {
	Direction string
	AmountUSD decimal.Decimal
	Identity  transaction.Identity
}

// RecordCredit posts a pending amount owed to (Receivable) or by (Payable)
// the store. It carries no items and therefore moves no stock.
func (e *Engine) RecordCredit(ctx context.Context, req CreditRequest) (transaction.Transaction, error) {
	tx := transaction.Transaction{
		TotalUSD: req.AmountUSD,
		Status:   transaction.StatusPending,
		Identity: &req.Identity,
	}
	switch req.Direction {
	case Receivable:
		tx.Type, tx.Category = transaction.TypeOut, transaction.CategorySale
	case Payable:
		tx.Type, tx.Category = transaction.TypeIn, transaction.CategorySupply
	default:
		return transaction.Transaction{}, ValidationError{Field: "direction", Message: fmt.Sprintf("must be %s or %s", Receivable, Payable)}
	}
	if !req.AmountUSD.IsPositive() {
		return transaction.Transaction{}, ValidationError{Field: "amountUSD", Message: "must be > 0"}
	}
	tx.ReferenceNumber = req.Direction + ": " + req.Identity.FullName()

	return e.PostTransaction(ctx, tx)
}

// RecordExpense stores an operating expense. Expenses are kept apart from
// the transaction history and never move stock.
func (e *Engine) RecordExpense(ctx context.Context, exp state.Expense) (state.Expense, error) {
	if exp.Category == "" {
		exp.Category = state.ExpenseServices
	}
	if err := state.ValidateExpense(exp); err != nil {
		return state.Expense{}, err
	}

	err := e.apply(ctx, "record_expense", func(s *state.AppState, c *change) error {
		exp.ID = id.NewExpenseID()
		if exp.Date.IsZero() {
			exp.Date = c.now
		}
		exp.Date = exp.Date.UTC()

		s.Expenses = append([]state.Expense{exp}, s.Expenses...)
		e.record(s, c, audit.EventExpense, fmt.Sprintf("%s - $%s", exp.Description, exp.AmountUSD.StringFixed(2)), nil)

		recorded := exp
		c.emit(func(ctx context.Context) { e.plugins.EmitExpenseRecorded(ctx, recorded) })
		return nil
	})
	if err != nil {
		return state.Expense{}, err
	}
	return exp, nil
}

// ──────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────

// SettleTransaction marks a pending transaction as paid. Stock and amounts
// are not touched.
func (e *Engine) SettleTransaction(ctx context.Context, tid id.TransactionID) (transaction.Transaction, error) {
	return e.SetTransactionStatus(ctx, tid, transaction.StatusPaid)
}

// SetTransactionStatus changes the status of a posted transaction. Only
// PENDING to PAID is accepted; setting the current status again changes
// nothing. Unknown ids fail with ErrTransactionNotFound.
func (e *Engine) SetTransactionStatus(ctx context.Context, tid id.TransactionID, status transaction.Status) (transaction.Transaction, error) {
	var out transaction.Transaction
	err := e.apply(ctx, "set_transaction_status", func(s *state.AppState, c *change) error {
		i := s.FindTransaction(tid)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, tid)
		}
		tx := &s.Transactions[i]
		from := tx.Status
		if err := transaction.CheckTransition(from, status); err != nil {
			return err
		}
		if from == status {
			out = tx.Clone()
			return errUnchanged
		}

		tx.Status = status
		out = tx.Clone()
		e.record(s, c, audit.EventTransactionSettled, "Ticket: "+tx.SaleCode, &out)

		settled := out.Clone()
		c.emit(func(ctx context.Context) { e.plugins.EmitTransactionSettled(ctx, settled, from) })
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────

// AddProduct inserts a product with a fresh id. It fails with
// ErrLimitExceeded when the active plan has no room for another product.
func (e *Engine) AddProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	var added catalog.Product
	err := e.apply(ctx, "add_product", func(s *state.AppState, c *change) error {
		quota := s.ActivePlan().CheckLimit(plan.DimensionProducts, int64(len(s.Products)))
		if !quota.Allowed {
			c.deny(quota)
		}

		products, np, err := catalog.Add(s.Products, p, quota, c.now)
		if err != nil {
			return err
		}
		s.Products = products
		added = np
		e.record(s, c, audit.EventProductAdded, np.Name, nil)

		c.emit(func(ctx context.Context) { e.plugins.EmitProductAdded(ctx, np) })
		return nil
	})
	return added, err
}

// UpdateProduct replaces the product with p.ID, keeping its id and creation
// time. Unknown ids fail with ErrProductNotFound.
func (e *Engine) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	var updated catalog.Product
	err := e.apply(ctx, "update_product", func(s *state.AppState, c *change) error {
		old, ok := catalog.Find(s.Products, p.ID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrProductNotFound, p.ID)
		}
		products, next, err := catalog.Update(s.Products, p, c.now)
		if err != nil {
			return err
		}
		s.Products = products
		updated = next
		e.record(s, c, audit.EventProductUpdated, next.Name, nil)

		c.emit(func(ctx context.Context) { e.plugins.EmitProductUpdated(ctx, old, next) })
		return nil
	})
	return updated, err
}

// DeleteProduct removes a product from the catalog. Recorded transactions
// keep their own copy of it.
func (e *Engine) DeleteProduct(ctx context.Context, pid id.ProductID) error {
	return e.apply(ctx, "delete_product", func(s *state.AppState, c *change) error {
		products, removed, err := catalog.Delete(s.Products, pid)
		if err != nil {
			return err
		}
		s.Products = products
		e.record(s, c, audit.EventProductDeleted, fmt.Sprintf("%s (ID: %s)", removed.Name, removed.ID), nil)

		c.emit(func(ctx context.Context) { e.plugins.EmitProductDeleted(ctx, removed) })
		return nil
	})
}

// BulkPriceUpdate changes the sale price of every product in category (all
// products when empty) by percent. Requires the bulk price feature.
func (e *Engine) BulkPriceUpdate(ctx context.Context, category string, percent decimal.Decimal) ([]catalog.Product, error) {
	if percent.LessThanOrEqual(decimal.NewFromInt(-100)) {
		return nil, ValidationError{Field: "percent", Message: "must be greater than -100"}
	}

	var changed []catalog.Product
	err := e.apply(ctx, "bulk_price_update", func(s *state.AppState, c *change) error {
		if err := e.requireFeature(s, c, plan.FeatureBulkPriceUpdate); err != nil {
			return err
		}
		changed = catalog.BulkPriceUpdate(s.Products, category, percent, c.now)

		scope := category
		if scope == "" {
			scope = "Todas"
		}
		e.record(s, c, audit.EventBulkPriceUpdate,
			fmt.Sprintf("%s: %s%% (%d productos)", scope, percent.StringFixed(2), len(changed)), nil)
		return nil
	})
	return changed, err
}
