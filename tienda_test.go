package tienda

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/advisor"
	"github.com/xraph/tienda/audit"
	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/entitlement"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/id"
	"github.com/xraph/tienda/plan"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
	"github.com/xraph/tienda/store/memory"
	"github.com/xraph/tienda/transaction"
	"github.com/xraph/tienda/types"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// recorder is a plugin that remembers the events it saw.
type recorder struct {
	mu       sync.Mutex
	posted   []transaction.Transaction
	settled  []transaction.Status
	low      []catalog.StockChange
	clamped  []catalog.StockChange
	denied   []entitlement.Result
	deleted  []catalog.Product
	expenses []state.Expense
	failed   []error
	changes  int
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnTransactionPosted(_ context.Context, tx transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posted = append(r.posted, tx)
	return nil
}

func (r *recorder) OnTransactionSettled(_ context.Context, _ transaction.Transaction, from transaction.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, from)
	return nil
}

func (r *recorder) OnLowStock(_ context.Context, c catalog.StockChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.low = append(r.low, c)
	return nil
}

func (r *recorder) OnStockClamped(_ context.Context, c catalog.StockChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clamped = append(r.clamped, c)
	return nil
}

func (r *recorder) OnLimitExceeded(_ context.Context, res entitlement.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied = append(r.denied, res)
	return nil
}

func (r *recorder) OnProductDeleted(_ context.Context, p catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, p)
	return nil
}

func (r *recorder) OnExpenseRecorded(_ context.Context, e state.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expenses = append(r.expenses, e)
	return nil
}

func (r *recorder) OnSnapshotFailed(_ context.Context, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
	return nil
}

func (r *recorder) OnStateChanged(_ context.Context, _ state.AppState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes++
	return nil
}

// failingStore loads nothing and refuses every save.
type failingStore struct{}

func (failingStore) LoadSnapshot(context.Context) (state.AppState, error) {
	return state.AppState{}, store.ErrNoSnapshot
}
func (failingStore) SaveSnapshot(context.Context, state.AppState) error {
	return errors.New("disk full")
}
func (failingStore) Migrate(context.Context) error { return nil }
func (failingStore) Ping(context.Context) error    { return nil }
func (failingStore) Close() error                  { return nil }

func newTestEngine(t *testing.T, s store.Store, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	e := New(s, opts...)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

func addProduct(t *testing.T, e *Engine, name string, stock, minStock int64, price, cost string) catalog.Product {
	t.Helper()
	p, err := e.AddProduct(context.Background(), catalog.Product{
		Name:            name,
		Stock:           stock,
		MinStock:        minStock,
		BasePriceUSD:    decimal.RequireFromString(price),
		SupplierCostUSD: decimal.RequireFromString(cost),
	})
	if err != nil {
		t.Fatalf("AddProduct(%s): %v", name, err)
	}
	return p
}

func cash(amount string) []transaction.Payment {
	return []transaction.Payment{{Method: transaction.MethodCash, Amount: decimal.RequireFromString(amount), Currency: types.USD}}
}

func TestQuoteConvertsAtCurrentRates(t *testing.T) {
	e := newTestEngine(t, memory.New())

	c := e.Quote(decimal.NewFromInt(20)).Rounded()

	tests := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"usd", c.USD, "20"},
		{"local", c.Local, "930"},
		{"eur", c.EUR, "18.67"},
		{"stable", c.Stable, "19.7"},
	}
	for _, tt := range tests {
		if !tt.got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("%s: got %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestSellMovesStockAndFlagsLow(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newTestEngine(t, memory.New(), WithPlugin(rec))
	p := addProduct(t, e, "Harina PAN", 6, 5, "1.25", "0.90")

	tx, err := e.Sell(ctx, SaleRequest{
		Lines:    []CartLine{{ProductID: p.ID, Quantity: 2}},
		Payments: cash("2.50"),
	})
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}

	if !tx.TotalUSD.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("TotalUSD: got %s, want 2.5", tx.TotalUSD)
	}
	if tx.Type != transaction.TypeOut || tx.Status != transaction.StatusPaid {
		t.Errorf("record: got %s/%s", tx.Type, tx.Status)
	}
	if !tx.RateAtTimeVES.Equal(decimal.RequireFromString("46.5")) {
		t.Errorf("RateAtTimeVES: got %s", tx.RateAtTimeVES)
	}
	if !strings.HasPrefix(tx.SaleCode, transaction.CodeTicket+"-") {
		t.Errorf("SaleCode: got %q", tx.SaleCode)
	}

	s := e.State()
	got, _ := catalog.Find(s.Products, p.ID)
	if got.Stock != 4 {
		t.Errorf("stock: got %d, want 4", got.Stock)
	}
	if low := e.LowStock(); len(low) != 1 || low[0].ID.String() != p.ID.String() {
		t.Errorf("LowStock: got %v", low)
	}
	if len(s.Transactions) != 1 || s.Transactions[0].ID.String() != tx.ID.String() {
		t.Fatalf("history: got %d records", len(s.Transactions))
	}
	if s.AuditLogs[0].Event != audit.EventSale || s.AuditLogs[0].Details != "Ticket: "+tx.SaleCode {
		t.Errorf("audit: got %q %q", s.AuditLogs[0].Event, s.AuditLogs[0].Details)
	}
	if s.AuditLogs[0].RelatedTransaction == nil {
		t.Error("audit entry should carry the transaction")
	}

	if len(rec.posted) != 1 || len(rec.low) != 1 {
		t.Errorf("events: posted=%d low=%d, want 1/1", len(rec.posted), len(rec.low))
	}
}

func TestSellOversellClampsAtZero(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, memory.New(), WithPlugin(rec))
	p := addProduct(t, e, "Queso", 3, 1, "4", "3")

	tx, err := e.Sell(context.Background(), SaleRequest{
		Lines:    []CartLine{{ProductID: p.ID, Quantity: 5}},
		Payments: cash("20"),
	})
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}

	got, _ := catalog.Find(e.State().Products, p.ID)
	if got.Stock != 0 {
		t.Errorf("stock: got %d, want 0", got.Stock)
	}
	if tx.Items[0].Quantity != 5 {
		t.Errorf("recorded quantity: got %d, want 5", tx.Items[0].Quantity)
	}
	if len(rec.clamped) != 1 || !rec.clamped[0].Clamped {
		t.Errorf("clamp events: got %v", rec.clamped)
	}
}

func TestSellRejects(t *testing.T) {
	e := newTestEngine(t, memory.New())
	p := addProduct(t, e, "Arroz", 10, 2, "1", "0.5")

	tests := []struct {
		name string
		req  SaleRequest
		want error
	}{
		{"empty cart", SaleRequest{Payments: cash("1")}, ErrEmptyCart},
		{"no payment", SaleRequest{Lines: []CartLine{{ProductID: p.ID, Quantity: 1}}}, ErrPaymentRequired},
		{"unknown product", SaleRequest{Lines: []CartLine{{ProductID: id.NewProductID(), Quantity: 1}}, Payments: cash("1")}, ErrProductNotFound},
		{"zero quantity", SaleRequest{Lines: []CartLine{{ProductID: p.ID, Quantity: 0}}, Payments: cash("1")}, ErrInvalidTransaction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Sell(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if n := len(e.State().Transactions); n != 0 {
		t.Errorf("transactions: got %d, want 0", n)
	}
}

func TestInvalidTransactionChangesNothing(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	e := newTestEngine(t, mem)
	p := addProduct(t, e, "Aceite", 10, 2, "3", "2")
	before := e.State()
	saves := mem.Saves()

	_, err := e.PostTransaction(ctx, transaction.Transaction{
		Type:     transaction.TypeOut,
		Category: transaction.CategorySale,
		Items:    []transaction.LineItem{transaction.NewLineItem(p, 4)},
		TotalUSD: decimal.NewFromInt(1), // does not match 4 x 3
		Payments: cash("1"),
		Status:   transaction.StatusPaid,
	})
	if !errors.Is(err, ErrInvalidTransaction) {
		t.Fatalf("PostTransaction: got %v, want ErrInvalidTransaction", err)
	}

	after := e.State()
	got, _ := catalog.Find(after.Products, p.ID)
	if got.Stock != 10 {
		t.Errorf("stock: got %d, want 10", got.Stock)
	}
	if len(after.Transactions) != 0 {
		t.Errorf("transactions: got %d, want 0", len(after.Transactions))
	}
	if len(after.AuditLogs) != len(before.AuditLogs) {
		t.Errorf("audit: got %d, want %d", len(after.AuditLogs), len(before.AuditLogs))
	}
	if mem.Saves() != saves {
		t.Errorf("saves: got %d, want %d", mem.Saves(), saves)
	}
}

func TestPostTransactionKeepsUnknownItems(t *testing.T) {
	e := newTestEngine(t, memory.New())
	ghost := catalog.Product{ID: id.NewProductID(), Name: "Descontinuado", BasePriceUSD: decimal.NewFromInt(2)}

	tx, err := e.PostTransaction(context.Background(), transaction.Transaction{
		Type:     transaction.TypeOut,
		Category: transaction.CategorySale,
		Items:    []transaction.LineItem{transaction.NewLineItem(ghost, 3)},
		TotalUSD: decimal.NewFromInt(6),
		Payments: cash("6"),
		Status:   transaction.StatusPaid,
	})
	if err != nil {
		t.Fatalf("PostTransaction: %v", err)
	}
	if tx.ID.IsNil() || tx.SaleCode == "" || tx.Timestamp.IsZero() {
		t.Errorf("defaults not filled: %+v", tx)
	}
	if !tx.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp: got %v, want %v", tx.Timestamp, testNow)
	}
}

func TestPostTransactionRate(t *testing.T) {
	tests := []struct {
		name    string
		rate    string
		want    string
		wantErr bool
	}{
		{"zero uses current rate", "0", "46.5", false},
		{"caller rate kept", "50", "50", false},
		{"negative rejected", "-46.5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, memory.New())
			tx, err := e.PostTransaction(context.Background(), transaction.Transaction{
				Type:          transaction.TypeOut,
				Category:      transaction.CategorySale,
				TotalUSD:      decimal.NewFromInt(6),
				Payments:      cash("6"),
				RateAtTimeVES: decimal.RequireFromString(tt.rate),
				Status:        transaction.StatusPaid,
			})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransaction) {
					t.Fatalf("got %v, want ErrInvalidTransaction", err)
				}
				if n := len(e.State().Transactions); n != 0 {
					t.Errorf("transactions: got %d, want 0", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("PostTransaction: %v", err)
			}
			if !tx.RateAtTimeVES.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("RateAtTimeVES: got %s, want %s", tx.RateAtTimeVES, tt.want)
			}
		})
	}
}

func TestRecordCreditNamesCounterparty(t *testing.T) {
	e := newTestEngine(t, memory.New())

	credit, err := e.RecordCredit(context.Background(), CreditRequest{
		Direction: Receivable,
		AmountUSD: decimal.NewFromInt(100),
		Identity:  transaction.Identity{FirstName: "Ana", LastName: "Pérez", IDNumber: "V-12345678"},
	})
	if err != nil {
		t.Fatalf("RecordCredit: %v", err)
	}
	if credit.Status != transaction.StatusPending || credit.Type != transaction.TypeOut {
		t.Fatalf("credit: got %s/%s", credit.Type, credit.Status)
	}
	if credit.ReferenceNumber != "CxC: Ana Pérez" {
		t.Errorf("ReferenceNumber: got %q", credit.ReferenceNumber)
	}
	if p := e.Pending(); p.Count() != 1 || !p.ReceivableUSD.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Pending: got %d %s", p.Count(), p.ReceivableUSD)
	}
}

func TestCreditSettlementOnlyChangesStatus(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	mem := memory.New()
	e := newTestEngine(t, mem, WithPlugin(rec))
	harina := addProduct(t, e, "Harina PAN", 10, 2, "3", "2")
	arroz := addProduct(t, e, "Arroz", 10, 2, "1.50", "1")

	credit, err := e.Sell(ctx, SaleRequest{
		Lines: []CartLine{
			{ProductID: harina.ID, Quantity: 2},
			{ProductID: arroz.ID, Quantity: 1},
		},
		Credit:          true,
		Identity:        &transaction.Identity{FirstName: "Ana", LastName: "Pérez", IDNumber: "V-12345678", Phone: "0414-5550000"},
		ReferenceNumber: "fiado semanal",
	})
	if err != nil {
		t.Fatalf("Sell on credit: %v", err)
	}
	if credit.Status != transaction.StatusPending || len(credit.Items) != 2 {
		t.Fatalf("credit: got %s with %d items", credit.Status, len(credit.Items))
	}

	settled, err := e.SettleTransaction(ctx, credit.ID)
	if err != nil {
		t.Fatalf("SettleTransaction: %v", err)
	}
	if settled.Status != transaction.StatusPaid {
		t.Errorf("Status: got %s, want PAID", settled.Status)
	}

	want := credit.Clone()
	want.Status = transaction.StatusPaid
	if !reflect.DeepEqual(settled, want) {
		t.Errorf("settlement changed more than the status:\n got %+v\nwant %+v", settled, want)
	}
	stored := e.State().Transactions[e.State().FindTransaction(credit.ID)]
	if !reflect.DeepEqual(stored, want) {
		t.Errorf("stored record changed more than the status:\n got %+v\nwant %+v", stored, want)
	}
	if settled.Items[0].Name != "Harina PAN" || !settled.Items[1].PriceUSD.Equal(decimal.RequireFromString("1.50")) {
		t.Errorf("items: got %+v", settled.Items)
	}
	if settled.Identity == nil || settled.Identity.Phone != "0414-5550000" {
		t.Errorf("identity: got %+v", settled.Identity)
	}

	if p := e.Pending(); p.Count() != 0 {
		t.Errorf("Pending after settle: got %d", p.Count())
	}
	if len(rec.settled) != 1 || rec.settled[0] != transaction.StatusPending {
		t.Errorf("settled events: got %v", rec.settled)
	}

	// Settling again changes nothing.
	logs, saves := len(e.State().AuditLogs), mem.Saves()
	if _, err := e.SettleTransaction(ctx, credit.ID); err != nil {
		t.Fatalf("second SettleTransaction: %v", err)
	}
	if len(e.State().AuditLogs) != logs || mem.Saves() != saves {
		t.Error("repeated settlement should not write")
	}

	// PAID never goes back to PENDING.
	if _, err := e.SetTransactionStatus(ctx, credit.ID, transaction.StatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("PAID -> PENDING: got %v, want ErrInvalidTransition", err)
	}
	if _, err := e.SettleTransaction(ctx, id.NewTransactionID()); !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("unknown id: got %v, want ErrTransactionNotFound", err)
	}
}

func TestPayableCredit(t *testing.T) {
	e := newTestEngine(t, memory.New())

	credit, err := e.RecordCredit(context.Background(), CreditRequest{
		Direction: Payable,
		AmountUSD: decimal.RequireFromString("35.50"),
		Identity:  transaction.Identity{FirstName: "Distribuidora", IDNumber: "J-99"},
	})
	if err != nil {
		t.Fatalf("RecordCredit: %v", err)
	}
	if credit.Type != transaction.TypeIn || credit.Category != transaction.CategorySupply {
		t.Errorf("record: got %s/%s", credit.Type, credit.Category)
	}
	if !e.Pending().PayableUSD.Equal(decimal.RequireFromString("35.5")) {
		t.Errorf("PayableUSD: got %s", e.Pending().PayableUSD)
	}

	_, err = e.RecordCredit(context.Background(), CreditRequest{Direction: "other", AmountUSD: decimal.NewFromInt(1)})
	if !IsValidationError(err) {
		t.Errorf("bad direction: got %v", err)
	}
}

func TestDeleteProductKeepsHistory(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newTestEngine(t, memory.New(), WithPlugin(rec))
	p := addProduct(t, e, "Café", 10, 2, "5", "3")

	tx, err := e.Sell(ctx, SaleRequest{Lines: []CartLine{{ProductID: p.ID, Quantity: 1}}, Payments: cash("5")})
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if err := e.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}

	s := e.State()
	if len(s.Products) != 0 {
		t.Errorf("products: got %d, want 0", len(s.Products))
	}
	i := s.FindTransaction(tx.ID)
	if i < 0 {
		t.Fatal("transaction missing after delete")
	}
	if li := s.Transactions[i].Items[0]; li.Name != "Café" || !li.PriceUSD.Equal(decimal.NewFromInt(5)) {
		t.Errorf("line item: got %+v", li)
	}
	if !strings.Contains(s.AuditLogs[0].Details, "Café (ID: ") {
		t.Errorf("audit details: got %q", s.AuditLogs[0].Details)
	}
	if len(rec.deleted) != 1 {
		t.Errorf("deleted events: got %d, want 1", len(rec.deleted))
	}

	if err := e.DeleteProduct(ctx, p.ID); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("second delete: got %v, want ErrProductNotFound", err)
	}
}

func TestUpdateProductLeavesHistory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New())
	p := addProduct(t, e, "Pasta", 10, 2, "2", "1")

	if _, err := e.Sell(ctx, SaleRequest{Lines: []CartLine{{ProductID: p.ID, Quantity: 1}}, Payments: cash("2")}); err != nil {
		t.Fatalf("Sell: %v", err)
	}

	p.BasePriceUSD = decimal.NewFromInt(3)
	p.Name = "Pasta Larga"
	updated, err := e.UpdateProduct(ctx, p)
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if updated.Name != "Pasta Larga" {
		t.Errorf("Name: got %q", updated.Name)
	}

	li := e.State().Transactions[0].Items[0]
	if li.Name != "Pasta" || !li.PriceUSD.Equal(decimal.NewFromInt(2)) {
		t.Errorf("line item changed: %+v", li)
	}

	if _, err := e.UpdateProduct(ctx, catalog.Product{ID: id.NewProductID(), Name: "x"}); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("unknown id: got %v, want ErrProductNotFound", err)
	}
}

func TestAddProductRespectsPlanLimit(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newTestEngine(t, memory.New(), WithPlugin(rec))

	for i := 0; i < 100; i++ {
		addProduct(t, e, fmt.Sprintf("Producto %03d", i), 1, 0, "1", "1")
	}

	_, err := e.AddProduct(ctx, catalog.Product{Name: "Uno más", BasePriceUSD: decimal.NewFromInt(1)})
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("101st product: got %v, want ErrLimitExceeded", err)
	}
	if !IsQuotaError(err) {
		t.Error("IsQuotaError should report the limit")
	}
	if n := len(e.State().Products); n != 100 {
		t.Errorf("products: got %d, want 100", n)
	}
	if len(rec.denied) != 1 || rec.denied[0].Limit != 100 {
		t.Errorf("denials: got %+v", rec.denied)
	}

	if _, err := e.SelectPlan(ctx, plan.LevelPro); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	if _, err := e.AddProduct(ctx, catalog.Product{Name: "Uno más", BasePriceUSD: decimal.NewFromInt(1)}); err != nil {
		t.Errorf("after upgrade: %v", err)
	}
}

func TestReceiveAddsStockAtCost(t *testing.T) {
	e := newTestEngine(t, memory.New())
	p := addProduct(t, e, "Malta", 2, 5, "1", "0.60")

	tx, err := e.Receive(context.Background(), SupplyRequest{
		Lines:    []CartLine{{ProductID: p.ID, Quantity: 10, CostUSD: decimal.RequireFromString("0.50")}},
		Supplier: " Polar ",
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if tx.Type != transaction.TypeIn || tx.Category != transaction.CategorySupply {
		t.Errorf("record: got %s/%s", tx.Type, tx.Category)
	}
	if !tx.TotalUSD.Equal(decimal.NewFromInt(5)) {
		t.Errorf("TotalUSD: got %s, want 5", tx.TotalUSD)
	}
	if tx.ReferenceNumber != "Proveedor: Polar" {
		t.Errorf("ReferenceNumber: got %q", tx.ReferenceNumber)
	}
	if len(tx.Payments) != 1 || tx.Payments[0].Method != transaction.MethodCash || tx.Payments[0].Currency != types.USD {
		t.Errorf("Payments: got %+v", tx.Payments)
	}

	got, _ := catalog.Find(e.State().Products, p.ID)
	if got.Stock != 12 {
		t.Errorf("stock: got %d, want 12", got.Stock)
	}
	if !got.SupplierCostUSD.Equal(decimal.RequireFromString("0.6")) {
		t.Errorf("catalog cost changed: got %s", got.SupplierCostUSD)
	}

	if _, err := e.Receive(context.Background(), SupplyRequest{Lines: []CartLine{{ProductID: p.ID, Quantity: 1}}}); !IsValidationError(err) {
		t.Errorf("missing supplier: got %v", err)
	}
}

func TestSalesAndSupplyHistory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New())
	p := addProduct(t, e, "Malta", 20, 2, "1", "0.60")

	if _, err := e.Sell(ctx, SaleRequest{Lines: []CartLine{{ProductID: p.ID, Quantity: 1}}, Payments: cash("1")}); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if _, err := e.Sell(ctx, SaleRequest{
		Lines:    []CartLine{{ProductID: p.ID, Quantity: 2}},
		Credit:   true,
		Identity: &transaction.Identity{FirstName: "Ana", IDNumber: "V-1"},
	}); err != nil {
		t.Fatalf("Sell on credit: %v", err)
	}
	for _, supplier := range []string{"Polar", "Pepsi", "Nestlé"} {
		if _, err := e.Receive(ctx, SupplyRequest{Lines: []CartLine{{ProductID: p.ID, Quantity: 1}}, Supplier: supplier}); err != nil {
			t.Fatalf("Receive(%s): %v", supplier, err)
		}
	}

	if got := e.SalesForDate(testNow.Add(-3 * time.Hour)); len(got) != 2 {
		t.Errorf("SalesForDate today: got %d, want 2", len(got))
	}
	if got := e.SalesForDate(testNow.AddDate(0, 0, -1)); len(got) != 0 {
		t.Errorf("SalesForDate yesterday: got %d, want 0", len(got))
	}

	supplies := e.SupplyHistory(2)
	if len(supplies) != 2 {
		t.Fatalf("SupplyHistory(2): got %d", len(supplies))
	}
	if supplies[0].ReferenceNumber != "Proveedor: Nestlé" {
		t.Errorf("newest supply first: got %q", supplies[0].ReferenceNumber)
	}
	if got := e.SupplyHistory(0); len(got) != 3 {
		t.Errorf("SupplyHistory(0): got %d, want 3", len(got))
	}
}

func TestRecordExpense(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, memory.New(), WithPlugin(rec))

	exp, err := e.RecordExpense(context.Background(), state.Expense{
		Description: "Luz",
		AmountUSD:   decimal.RequireFromString("12.5"),
	})
	if err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}
	if exp.ID.IsNil() || exp.Category != state.ExpenseServices || !exp.Date.Equal(testNow) {
		t.Errorf("defaults: got %+v", exp)
	}

	s := e.State()
	if len(s.Expenses) != 1 || len(s.Transactions) != 0 {
		t.Errorf("expenses=%d transactions=%d, want 1/0", len(s.Expenses), len(s.Transactions))
	}
	if s.AuditLogs[0].Event != audit.EventExpense || s.AuditLogs[0].Details != "Luz - $12.50" {
		t.Errorf("audit: got %q %q", s.AuditLogs[0].Event, s.AuditLogs[0].Details)
	}
	if !e.Dashboard().TodayExpensesUSD.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("dashboard expenses: got %s", e.Dashboard().TodayExpensesUSD)
	}
	if len(rec.expenses) != 1 {
		t.Errorf("expense events: got %d", len(rec.expenses))
	}

	if _, err := e.RecordExpense(context.Background(), state.Expense{Description: "Nada"}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("zero amount: got %v", err)
	}
}

func TestUpdateRatesKeepsHistoricRate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New())
	p := addProduct(t, e, "Azúcar", 10, 2, "1", "0.5")

	tx, err := e.Sell(ctx, SaleRequest{Lines: []CartLine{{ProductID: p.ID, Quantity: 1}}, Payments: cash("1")})
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}

	next := fx.Rates{
		LocalPerUSD:    decimal.NewFromInt(50),
		LocalPerEUR:    decimal.NewFromInt(54),
		LocalPerStable: decimal.NewFromInt(51),
	}
	applied, err := e.UpdateRates(ctx, next)
	if err != nil {
		t.Fatalf("UpdateRates: %v", err)
	}
	if !applied.LastUpdated.Equal(testNow) {
		t.Errorf("LastUpdated: got %v", applied.LastUpdated)
	}

	got := e.State().Transactions[0]
	if got.ID.String() != tx.ID.String() || !got.RateAtTimeVES.Equal(decimal.RequireFromString("46.5")) {
		t.Errorf("rate on record: got %s, want 46.5", got.RateAtTimeVES)
	}
	if !e.Quote(decimal.NewFromInt(1)).Local.Equal(decimal.NewFromInt(50)) {
		t.Error("Quote should use the new rate")
	}

	bad := next
	bad.LocalPerEUR = decimal.Zero
	if _, err := e.UpdateRates(ctx, bad); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("zero rate: got %v, want ErrInvalidRate", err)
	}
}

func TestAuditLogIsBounded(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), WithAuditCapacity(3))

	for i := 0; i < 5; i++ {
		if err := e.Login(ctx, fmt.Sprintf("cajero%d", i)); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}

	logs := e.State().AuditLogs
	if len(logs) != 3 {
		t.Fatalf("audit: got %d entries, want 3", len(logs))
	}
	if logs[0].Details != "cajero4" || logs[2].Details != "cajero2" {
		t.Errorf("order: got %q ... %q", logs[0].Details, logs[2].Details)
	}
	if logs[0].User != "cajero4" {
		t.Errorf("User: got %q, want cajero4", logs[0].User)
	}
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New())

	if err := e.Logout(ctx); err != nil {
		t.Fatalf("Logout without session: %v", err)
	}
	if n := len(e.State().AuditLogs); n != 0 {
		t.Errorf("audit after no-op logout: got %d", n)
	}
	if err := e.Login(ctx, "  "); !IsValidationError(err) {
		t.Errorf("blank name: got %v", err)
	}

	if err := e.Login(ctx, "María"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := e.RecordExpense(ctx, state.Expense{Description: "Agua", AmountUSD: decimal.NewFromInt(3)}); err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}
	if u := e.State().AuditLogs[0].User; u != "María" {
		t.Errorf("User: got %q, want María", u)
	}

	if err := e.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if e.State().User != nil {
		t.Error("session should be closed")
	}
}

func TestSuppliers(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New())

	sup, err := e.AddSupplier(ctx, state.Supplier{Name: "Polar", TaxID: "J-000"})
	if err != nil {
		t.Fatalf("AddSupplier: %v", err)
	}
	if sup.ID.IsNil() {
		t.Error("supplier id should be set")
	}
	if err := e.DeleteSupplier(ctx, sup.ID); err != nil {
		t.Fatalf("DeleteSupplier: %v", err)
	}
	if err := e.DeleteSupplier(ctx, sup.ID); !errors.Is(err, ErrSupplierNotFound) {
		t.Errorf("second delete: got %v, want ErrSupplierNotFound", err)
	}
}

func TestFeatureGating(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newTestEngine(t, memory.New(), WithPlugin(rec))
	addProduct(t, e, "Harina", 10, 2, "1", "0.5")

	var buf bytes.Buffer
	if err := e.ExportTransactionsCSV(ctx, &buf); !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("CSV on Basic: got %v, want ErrFeatureDisabled", err)
	}
	if _, err := e.BulkPriceUpdate(ctx, "", decimal.NewFromInt(10)); !errors.Is(err, ErrFeatureDisabled) {
		t.Errorf("bulk price on Basic: got %v", err)
	}
	if err := e.UpdateBusinessInfo(ctx, state.BusinessInfo{Name: "Bodega", Logo: "data:image/png;base64,AA"}); !errors.Is(err, ErrFeatureDisabled) {
		t.Errorf("logo on Basic: got %v", err)
	}
	if len(rec.denied) != 3 {
		t.Errorf("denials: got %d, want 3", len(rec.denied))
	}
	if err := e.Export(ctx, "pdf", &buf); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("unknown format: got %v", err)
	}

	if _, err := e.SelectPlan(ctx, plan.LevelPro); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	if err := e.ExportTransactionsCSV(ctx, &buf); err != nil {
		t.Fatalf("CSV on Pro: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "codigo,") {
		t.Errorf("CSV header: got %q", buf.String())
	}
	if err := e.UpdateBusinessInfo(ctx, state.BusinessInfo{Name: "Bodega", Logo: "data:image/png;base64,AA"}); err != nil {
		t.Errorf("logo on Pro: %v", err)
	}

	if _, err := e.SelectPlan(ctx, plan.LevelPremium); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	changed, err := e.BulkPriceUpdate(ctx, "", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("BulkPriceUpdate: %v", err)
	}
	if len(changed) != 1 || !changed[0].BasePriceUSD.Equal(decimal.RequireFromString("1.1")) {
		t.Errorf("changed: got %+v", changed)
	}
	if _, err := e.BulkPriceUpdate(ctx, "", decimal.NewFromInt(-100)); !IsValidationError(err) {
		t.Errorf("-100%%: got %v", err)
	}

	if _, err := e.SelectPlan(ctx, plan.Level("GOLD")); !errors.Is(err, ErrUnknownPlan) {
		t.Errorf("unknown plan: got %v", err)
	}
}

func TestScanAndSearch(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New())

	p, err := e.AddProduct(ctx, catalog.Product{Name: "Harina PAN", Barcode: "7591002000011", BasePriceUSD: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	addProduct(t, e, "Arroz Mary", 10, 2, "1", "0.5")

	got, err := e.Scan("7591002000011")
	if err != nil || got.ID.String() != p.ID.String() {
		t.Errorf("Scan: got %v, %v", got.Name, err)
	}
	if _, err := e.Scan("000"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("unknown barcode: got %v", err)
	}
	if res := e.Search("harina"); len(res) != 1 {
		t.Errorf("Search: got %d results, want 1", len(res))
	}

	_, err = e.AddProduct(ctx, catalog.Product{Name: "Otra", Barcode: "7591002000011"})
	if !errors.Is(err, ErrDuplicateBarcode) {
		t.Errorf("duplicate barcode: got %v", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()

	e1 := New(mem, WithClock(func() time.Time { return testNow }))
	if err := e1.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p := addProduct(t, e1, "Leche", 8, 2, "2", "1.5")
	if _, err := e1.Sell(ctx, SaleRequest{Lines: []CartLine{{ProductID: p.ID, Quantity: 3}}, Payments: cash("6")}); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if err := e1.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	e2 := newTestEngine(t, mem)
	s := e2.State()
	got, ok := catalog.Find(s.Products, p.ID)
	if !ok || got.Stock != 5 {
		t.Errorf("product after reload: ok=%v stock=%d", ok, got.Stock)
	}
	if len(s.Transactions) != 1 || !s.Transactions[0].TotalUSD.Equal(decimal.NewFromInt(6)) {
		t.Errorf("transactions after reload: %+v", s.Transactions)
	}
	if len(s.AuditLogs) != 2 {
		t.Errorf("audit after reload: got %d, want 2", len(s.AuditLogs))
	}
}

func TestStartWithCorruptSnapshot(t *testing.T) {
	ctx := context.Background()

	mem := memory.New()
	mem.SetRaw([]byte("{not json"))
	e := New(mem)
	if err := e.Start(ctx); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("Start: got %v, want ErrCorruptSnapshot", err)
	}
	if err := e.Login(ctx, "Ana"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("command before start: got %v, want ErrNotStarted", err)
	}

	e = newTestEngine(t, mem, WithResetOnCorrupt())
	s := e.State()
	if len(s.Products) != 0 || s.BusinessInfo.Name != state.DefaultBusinessName {
		t.Errorf("reset state: got %+v", s.BusinessInfo)
	}
}

func TestFailedSnapshotDoesNotUndoCommand(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, failingStore{}, WithPlugin(rec))

	p, err := e.AddProduct(context.Background(), catalog.Product{Name: "Pan", BasePriceUSD: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	if _, ok := catalog.Find(e.State().Products, p.ID); !ok {
		t.Error("product should be in memory")
	}
	if len(rec.failed) != 1 {
		t.Errorf("snapshot failures: got %d, want 1", len(rec.failed))
	}
	if err := e.Flush(context.Background()); err == nil {
		t.Error("Flush should report the store error")
	}
}

func TestStateIsAPrivateCopy(t *testing.T) {
	e := newTestEngine(t, memory.New())
	addProduct(t, e, "Sal", 10, 2, "1", "0.5")

	s := e.State()
	s.Products[0].Stock = 999

	if got := e.State().Products[0].Stock; got != 10 {
		t.Errorf("stock: got %d, want 10", got)
	}
}

func TestStoppedEngineRefusesCommands(t *testing.T) {
	e := New(memory.New())
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := e.Login(context.Background(), "Ana"); !errors.Is(err, ErrStopped) {
		t.Errorf("Login after Stop: got %v, want ErrStopped", err)
	}
}

func TestStateChangedOncePerCommand(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, memory.New(), WithPlugin(rec))

	addProduct(t, e, "Vela", 10, 2, "1", "0.5")
	_ = e.Logout(context.Background()) // no session, no change

	if rec.changes != 1 {
		t.Errorf("state changes: got %d, want 1", rec.changes)
	}
}

// expenseCounter records how many expenses each announced state holds.
type expenseCounter struct {
	mu   sync.Mutex
	seen []int
}

func (c *expenseCounter) Name() string { return "expense-counter" }

func (c *expenseCounter) OnStateChanged(_ context.Context, s state.AppState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, len(s.Expenses))
	return nil
}

func TestStateChangedInCommitOrder(t *testing.T) {
	counter := &expenseCounter{}
	e := newTestEngine(t, memory.New(), WithPlugin(counter))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.RecordExpense(context.Background(), state.Expense{
				Description: fmt.Sprintf("Gasto %d", i),
				AmountUSD:   decimal.NewFromInt(1),
			})
			if err != nil {
				t.Errorf("RecordExpense: %v", err)
			}
		}(i)
	}
	wg.Wait()

	counter.mu.Lock()
	defer counter.mu.Unlock()
	if len(counter.seen) != n {
		t.Fatalf("state changes: got %d, want %d", len(counter.seen), n)
	}
	for i, got := range counter.seen {
		if got != i+1 {
			t.Fatalf("change %d announced a state with %d expenses, want %d", i, got, i+1)
		}
	}
}

func TestInsights(t *testing.T) {
	ctx := context.Background()

	plain := newTestEngine(t, memory.New())
	if got := plain.Insights(); got != advisor.FallbackMessage {
		t.Errorf("no advisor: got %q", got)
	}

	a := advisor.Func(func(_ context.Context, s advisor.Snapshot) (string, error) {
		return fmt.Sprintf("%d productos", len(s.Products)), nil
	})
	e := newTestEngine(t, memory.New(), WithAdvisor(a))
	addProduct(t, e, "Jabón", 10, 2, "1", "0.5")

	if got := e.RefreshInsights(ctx); got != "1 productos" {
		t.Errorf("RefreshInsights: got %q", got)
	}
	if e.Plugins().Get("advisor") == nil {
		t.Error("advisor should be registered as a plugin")
	}
}

func TestReportFormatsRegistered(t *testing.T) {
	e := New(nil)
	got := e.Plugins().ReportFormats()
	if len(got) != 3 || got[0] != "csv" || got[1] != "products" || got[2] != "xlsx" {
		t.Errorf("ReportFormats: got %v", got)
	}
}
