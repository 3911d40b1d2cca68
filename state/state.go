// Package state defines AppState, the aggregate that the engine replaces as a
// whole on every command and that the store persists as one snapshot.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/audit"
	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/id"
	"github.com/xraph/tienda/plan"
	"github.com/xraph/tienda/transaction"
)

// ErrInvalidState is returned by Validate.
var ErrInvalidState = errors.New("state: invalid")

var validate = validator.New()

// DefaultBusinessName is used on first run.
const DefaultBusinessName = "V-Inventory Pro"

// Expense categories.
const (
	ExpenseServices  = "Servicios"
	ExpenseSalaries  = "Sueldos"
	ExpenseRent      = "Alquiler"
	ExpenseTransport = "Transporte"
	ExpenseTaxes     = "Impuestos"
	ExpenseOther     = "Otros"
)

// ExpenseCategories lists the accepted expense categories.
func ExpenseCategories() []string {
	return []string{ExpenseServices, ExpenseSalaries, ExpenseRent, ExpenseTransport, ExpenseTaxes, ExpenseOther}
}

type Expense struct {
	ID          id.ExpenseID    `json:"id"`
	Description string          `json:"description" validate:"required,max=200"`
	AmountUSD   decimal.Decimal `json:"amountUSD"`
	Category    string          `json:"category" validate:"required,oneof=Servicios Sueldos Alquiler Transporte Impuestos Otros"`
	Date        time.Time       `json:"date"`
}

// ValidateExpense checks fields and requires a positive amount.
func ValidateExpense(e Expense) error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: expense: %w", ErrInvalidState, err)
	}
	if !e.AmountUSD.IsPositive() {
		return fmt.Errorf("%w: expense: amountUSD must be > 0", ErrInvalidState)
	}
	return nil
}

type Supplier struct {
	ID      id.SupplierID `json:"id"`
	Name    string        `json:"name" validate:"required,max=200"`
	TaxID   string        `json:"taxId"`
	Address string        `json:"address"`
	Phone   string        `json:"phone"`
}

// ValidateSupplier checks supplier fields.
func ValidateSupplier(s Supplier) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: supplier: %w", ErrInvalidState, err)
	}
	return nil
}

// BusinessInfo is the profile printed on tickets and exports.
type BusinessInfo struct {
	Name    string `json:"name" validate:"required,max=200"`
	TaxID   string `json:"taxId"`
	Address string `json:"address"`
	Logo    string `json:"logo,omitempty"`
}

// ValidateBusinessInfo checks profile fields.
func ValidateBusinessInfo(b BusinessInfo) error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: business info: %w", ErrInvalidState, err)
	}
	return nil
}

// Session is the name-only login stub.
type Session struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Name            string `json:"name" validate:"required,max=100"`
}

type AppState struct {
	Products     []catalog.Product         `json:"products"`
	Transactions []transaction.Transaction `json:"transactions"`
	Expenses     []Expense                 `json:"expenses"`
	AuditLogs    []audit.Entry             `json:"auditLogs"`
	Suppliers    []Supplier                `json:"suppliers"`
	Rates        fx.Rates                  `json:"rates"`
	BusinessInfo BusinessInfo              `json:"businessInfo"`
	Plan         *plan.Plan                `json:"plan"`
	User         *Session                  `json:"user"`
}

// Default is the first-run state: empty catalog and history, default
// rates, no plan and no session.
func Default(now time.Time) AppState {
	return AppState{
		Products:     []catalog.Product{},
		Transactions: []transaction.Transaction{},
		Expenses:     []Expense{},
		AuditLogs:    []audit.Entry{},
		Suppliers:    []Supplier{},
		Rates:        fx.DefaultRates(now),
		BusinessInfo: BusinessInfo{Name: DefaultBusinessName},
	}
}

// ActivePlan returns the selected plan, or the Basic tier when none has
// been selected yet.
func (s AppState) ActivePlan() plan.Plan {
	if s.Plan != nil {
		return *s.Plan
	}
	p, _ := plan.ForLevel(plan.LevelBasic)
	return p
}

// UserName is the session name, or the system user without a session.
func (s AppState) UserName() string {
	if s.User != nil && s.User.Name != "" {
		return s.User.Name
	}
	return audit.SystemUser
}

// FindTransaction returns the index of the transaction with id tid, or -1.
func (s AppState) FindTransaction(tid id.TransactionID) int {
	if tid.IsNil() {
		return -1
	}
	key := tid.String()
	for i := range s.Transactions {
		if s.Transactions[i].ID.String() == key {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s AppState) Clone() AppState {
	out := s

	out.Products = make([]catalog.Product, len(s.Products))
	for i, p := range s.Products {
		if p.LastPriceChange != nil {
			ts := *p.LastPriceChange
			p.LastPriceChange = &ts
		}
		out.Products[i] = p
	}

	out.Transactions = make([]transaction.Transaction, len(s.Transactions))
	for i, t := range s.Transactions {
		out.Transactions[i] = t.Clone()
	}

	out.Expenses = append(make([]Expense, 0, len(s.Expenses)), s.Expenses...)
	out.Suppliers = append(make([]Supplier, 0, len(s.Suppliers)), s.Suppliers...)

	out.AuditLogs = make([]audit.Entry, len(s.AuditLogs))
	for i, e := range s.AuditLogs {
		if e.RelatedTransaction != nil {
			c := e.RelatedTransaction.Clone()
			e.RelatedTransaction = &c
		}
		out.AuditLogs[i] = e
	}

	if s.Plan != nil {
		p := *s.Plan
		p.Features = append([]string(nil), s.Plan.Features...)
		out.Plan = &p
	}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}

// Validate checks the invariants a loaded snapshot must satisfy before the
// engine trusts it.
func (s AppState) Validate() error {
	var errs []error

	if err := s.Rates.Validate(); err != nil {
		errs = append(errs, err)
	}

	barcodes := make(map[string]string, len(s.Products))
	ids := make(map[string]struct{}, len(s.Products))
	for i, p := range s.Products {
		if p.ID.IsNil() {
			errs = append(errs, fmt.Errorf("products[%d]: missing id", i))
		} else if _, dup := ids[p.ID.String()]; dup {
			errs = append(errs, fmt.Errorf("products[%d]: duplicate id %s", i, p.ID))
		} else {
			ids[p.ID.String()] = struct{}{}
		}
		if err := catalog.Validate(p); err != nil {
			errs = append(errs, fmt.Errorf("products[%d]: %w", i, err))
		}
		if p.Barcode != "" {
			if other, dup := barcodes[p.Barcode]; dup {
				errs = append(errs, fmt.Errorf("products[%d]: barcode %s shared with %s", i, p.Barcode, other))
			}
			barcodes[p.Barcode] = p.Name
		}
	}

	for i, t := range s.Transactions {
		if t.ID.IsNil() {
			errs = append(errs, fmt.Errorf("transactions[%d]: missing id", i))
		}
		if err := transaction.ValidatePosted(t); err != nil {
			errs = append(errs, fmt.Errorf("transactions[%d]: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidState, errors.Join(errs...))
	}
	return nil
}
