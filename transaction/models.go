// Package transaction defines ledger records: sales, supply receipts,
// credits and expenses, their line items and payments, and the rules that
// keep a posted record immutable apart from its settlement status.
package transaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/id"
	"github.com/xraph/tienda/types"
)

var (
	ErrTransactionNotFound = errors.New("transaction: not found")
	ErrInvalidTransaction  = errors.New("transaction: invalid")
	ErrInvalidTransition   = errors.New("transaction: invalid status transition")
	ErrEmptyCart           = errors.New("transaction: no items")
	ErrPaymentRequired     = errors.New("transaction: paid transaction needs a payment")
)

// Type is the direction of goods or money relative to the store.
type Type string

const (
	TypeIn  Type = "IN"
	TypeOut Type = "OUT"
)

type Category string

const (
	CategorySale    Category = "SALE"
	CategorySupply  Category = "SUPPLY"
	CategoryExpense Category = "EXPENSE"
)

type Status string

const (
	StatusPaid    Status = "PAID"
	StatusPending Status = "PENDING"
)

// Payment methods offered at the register.
const (
	MethodCash     = "Efectivo"
	MethodMobile   = "Pago Móvil"
	MethodZelle    = "Zelle"
	MethodCard     = "Punto"
	MethodForeign  = "Divisa"
	MethodUSDT     = "USDT"
	MethodGold     = "Oro"
	MethodTransfer = "Transferencia"
)

// Methods lists the accepted payment methods.
func Methods() []string {
	return []string{MethodCash, MethodMobile, MethodZelle, MethodCard, MethodForeign, MethodUSDT, MethodGold, MethodTransfer}
}

// LineItem is a value copy of a product taken when the transaction was
// created. Later catalog edits or deletions never reach it.
type LineItem struct {
	ProductID id.ProductID    `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	PriceUSD  decimal.Decimal `json:"priceUSD"`
	CostUSD   decimal.Decimal `json:"costUSD"`
}

// Subtotal is quantity times the snapshotted sale price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.PriceUSD.Mul(decimal.NewFromInt(li.Quantity))
}

// CostTotal is quantity times the snapshotted cost.
func (li LineItem) CostTotal() decimal.Decimal {
	return li.CostUSD.Mul(decimal.NewFromInt(li.Quantity))
}

type Payment struct {
	Method   string          `json:"method" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Currency types.Currency  `json:"currency" validate:"required"`
}

// Identity is the counterparty of a credit.
type Identity struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
	IDNumber  string `json:"idNumber" validate:"required"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// FullName joins first and last name.
func (i Identity) FullName() string {
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

type Transaction struct {
	ID              id.TransactionID `json:"id"`
	SaleCode        string           `json:"saleCode"`
	Type            Type             `json:"type"`
	Category        Category         `json:"category"`
	Items           []LineItem       `json:"items"`
	TotalUSD        decimal.Decimal  `json:"totalUSD"`
	Payments        []Payment        `json:"payments"`
	RateAtTimeVES   decimal.Decimal  `json:"rateAtTimeVES"`
	Status          Status           `json:"status"`
	Timestamp       time.Time        `json:"timestamp"`
	ReferenceNumber string           `json:"referenceNumber,omitempty"`
	Identity        *Identity        `json:"identity,omitempty"`
}

// TotalVES is the total at the rate frozen on the record.
func (t Transaction) TotalVES() decimal.Decimal { return t.TotalUSD.Mul(t.RateAtTimeVES) }

// CostUSD sums the snapshotted cost of every line item.
func (t Transaction) CostUSD() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range t.Items {
		sum = sum.Add(li.CostTotal())
	}
	return sum
}

// Units is the total quantity across line items.
func (t Transaction) Units() int64 {
	var n int64
	for _, li := range t.Items {
		n += li.Quantity
	}
	return n
}

// IsReceivable reports a pending amount owed to the store.
func (t Transaction) IsReceivable() bool { return t.Status == StatusPending && t.Type == TypeOut }

// IsPayable reports a pending amount the store owes.
func (t Transaction) IsPayable() bool { return t.Status == StatusPending && t.Type == TypeIn }

// Clone returns a deep copy; slices and the identity are not shared.
func (t Transaction) Clone() Transaction {
	out := t
	if t.Items != nil {
		out.Items = append([]LineItem(nil), t.Items...)
	}
	if t.Payments != nil {
		out.Payments = append([]Payment(nil), t.Payments...)
	}
	if t.Identity != nil {
		ident := *t.Identity
		out.Identity = &ident
	}
	return out
}
