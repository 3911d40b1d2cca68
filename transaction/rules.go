package transaction

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/catalog"
)

var validate = validator.New()

// NewLineItem copies the product fields a record needs to stay readable
// after the product changes or disappears.
func NewLineItem(p catalog.Product, quantity int64) LineItem {
	return LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  quantity,
		PriceUSD:  p.BasePriceUSD,
		CostUSD:   p.SupplierCostUSD,
	}
}

// ItemsTotal is Σ quantity×price for sales and Σ quantity×cost for supply.
// Other categories have no item-derived total and return false.
func ItemsTotal(category Category, items []LineItem) (decimal.Decimal, bool) {
	sum := decimal.Zero
	switch category {
	case CategorySale:
		for _, li := range items {
			sum = sum.Add(li.Subtotal())
		}
	case CategorySupply:
		for _, li := range items {
			sum = sum.Add(li.CostTotal())
		}
	default:
		return sum, false
	}
	return sum, true
}

// Validate checks a record before it is posted. It does not look at the
// catalog: items for unknown products are legal.
func Validate(t Transaction) error {
	var errs []error

	switch t.Type {
	case TypeIn, TypeOut:
	default:
		errs = append(errs, fmt.Errorf("type %q", t.Type))
	}
	switch t.Category {
	case CategorySale, CategorySupply, CategoryExpense:
	default:
		errs = append(errs, fmt.Errorf("category %q", t.Category))
	}
	switch t.Status {
	case StatusPaid, StatusPending:
	default:
		errs = append(errs, fmt.Errorf("status %q", t.Status))
	}

	for i, li := range t.Items {
		if li.Quantity <= 0 {
			errs = append(errs, fmt.Errorf("items[%d]: quantity must be > 0", i))
		}
		if li.PriceUSD.IsNegative() || li.CostUSD.IsNegative() {
			errs = append(errs, fmt.Errorf("items[%d]: price and cost must be >= 0", i))
		}
	}

	if !t.RateAtTimeVES.IsPositive() {
		errs = append(errs, fmt.Errorf("rateAtTimeVES must be > 0, got %s", t.RateAtTimeVES))
	}

	if t.TotalUSD.IsNegative() {
		errs = append(errs, errors.New("totalUSD must be >= 0"))
	}
	if len(t.Items) > 0 {
		if want, ok := ItemsTotal(t.Category, t.Items); ok && !want.Equal(t.TotalUSD) {
			errs = append(errs, fmt.Errorf("totalUSD %s does not match items total %s", t.TotalUSD, want))
		}
	}

	if t.Status == StatusPending && len(t.Payments) > 0 {
		errs = append(errs, errors.New("pending transaction cannot carry payments"))
	}
	for i, p := range t.Payments {
		if err := validate.Struct(p); err != nil {
			errs = append(errs, fmt.Errorf("payments[%d]: %w", i, err))
			continue
		}
		if !p.Currency.Valid() {
			errs = append(errs, fmt.Errorf("payments[%d]: currency %q", i, p.Currency))
		}
		if p.Amount.IsNegative() {
			errs = append(errs, fmt.Errorf("payments[%d]: amount must be >= 0", i))
		}
	}

	if t.Identity != nil {
		if t.Status != StatusPending {
			errs = append(errs, errors.New("identity is only recorded on credits"))
		} else if err := validate.Struct(t.Identity); err != nil {
			errs = append(errs, fmt.Errorf("identity: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTransaction, errors.Join(errs...))
	}
	return nil
}

// CheckTransition reports whether a record may move from one status to
// another. Re-applying the current status is allowed and changes nothing.
func CheckTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if from == StatusPending && to == StatusPaid {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Code prefixes.
const (
	CodeTicket     = "TICKET"
	CodeSupply     = "SUP"
	CodeReceivable = "CXC"
	CodePayable    = "CXP"
	CodeExpense    = "EXP"
)

// NewCode derives a short display code from the creation instant, e.g.
// "TICKET-482913". It is a label, not a key.
func NewCode(prefix string, at time.Time) string {
	digits := 4
	if prefix == CodeTicket {
		digits = 6
	}
	ms := strconv.FormatInt(at.UnixMilli(), 10)
	if len(ms) > digits {
		ms = ms[len(ms)-digits:]
	}
	return prefix + "-" + ms
}

// CodeFor picks the code prefix for a record.
func CodeFor(t Transaction) string {
	switch {
	case t.Category == CategoryExpense:
		return CodeExpense
	case t.Status == StatusPending && len(t.Items) == 0 && t.Type == TypeOut:
		return CodeReceivable
	case t.Status == StatusPending && len(t.Items) == 0 && t.Type == TypeIn:
		return CodePayable
	case t.Category == CategorySupply:
		return CodeSupply
	}
	return CodeTicket
}

// AuditEvent names the audit entry written when t is posted.
func AuditEvent(t Transaction) string {
	switch {
	case t.Category == CategoryExpense:
		return "Expense"
	case t.Status == StatusPending:
		return "Credit"
	case t.Type == TypeIn:
		return "Supply"
	}
	return "Sale"
}

// ValidatePosted checks a record read back from history. A settled credit
// keeps its identity and carries no payments, so it is checked as it was
// when it was posted.
func ValidatePosted(t Transaction) error {
	if t.Status == StatusPaid && len(t.Payments) == 0 {
		t.Status = StatusPending
	}
	return Validate(t)
}
