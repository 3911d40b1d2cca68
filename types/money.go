// Package types provides common types used across tienda.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is one of the four currencies a store operates in.
type Currency string

// Supported currencies. VES is the local currency; USD is the base unit
// every stored total is expressed in.
const (
	VES  Currency = "VES"
	USD  Currency = "USD"
	EUR  Currency = "EUR"
	USDT Currency = "USDT"
)

// Currencies lists the supported currencies in display order.
func Currencies() []Currency { return []Currency{USD, VES, EUR, USDT} }

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	switch c {
	case VES, USD, EUR, USDT:
		return true
	}
	return false
}

// Money is an exact decimal amount in a currency. Amounts are kept at full
// precision; rounding only happens when formatting.
//
// Examples:
//   - NewMoney(decimal.NewFromInt(20), USD).String() = "$20.00"
//   - NewMoney(decimal.RequireFromString("930"), VES).String() = "Bs. 930.00"
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// NewMoney creates a Money value.
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// Dollars creates a USD Money value from a float. Intended for literals and tests.
func Dollars(amount float64) Money { return NewMoney(decimal.NewFromFloat(amount), USD) }

// Zero returns a zero Money value in the specified currency.
func Zero(currency Currency) Money { return Money{Amount: decimal.Zero, Currency: currency} }

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(qty)), Currency: m.Currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Equal returns true if both Money values have the same amount and currency.
// Trailing zeros are not significant: 20 and 20.00 are equal.
func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount) && m.Currency == other.Currency
}

// Rounded returns the amount rounded half-away-from-zero to the currency's
// display precision.
func (m Money) Rounded() Money {
	return Money{Amount: m.Amount.Round(currencyDecimals(m.Currency)), Currency: m.Currency}
}

// FormatMajor returns the rounded amount without currency symbol, e.g. "18.67".
func (m Money) FormatMajor() string {
	return m.Amount.StringFixed(currencyDecimals(m.Currency))
}

// String returns a human-readable string with currency symbol.
// Examples: "$20.00", "Bs. 930.00", "€18.67", "USDT 19.70"
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency Currency        `json:"currency"`
		Display  string          `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency Currency) string {
	switch currency {
	case USD:
		return "$"
	case EUR:
		return "€"
	case VES:
		return "Bs. "
	}
	return strings.ToUpper(string(currency)) + " "
}

func currencyDecimals(Currency) int32 {
	// All supported currencies display two decimal places.
	return 2
}

// Sum calculates the sum of multiple Money values. All must have the same currency.
func Sum(currency Currency, values ...Money) Money {
	result := Zero(currency)
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
