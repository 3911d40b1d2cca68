// Package fx converts USD amounts into the local currency, EUR and the
// stablecoin through a single shared rate set.
//
// USD is the base unit. Every rate is expressed as local-currency units per
// one unit of the foreign currency, so:
//
//	local  = usd * LocalPerUSD
//	eur    = local / LocalPerEUR
//	stable = local / LocalPerStable
//
// Figures are computed at full decimal precision. Rounding is a presentation
// concern handled by Conversion.Rounded and types.Money.String.
package fx

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/types"
)

// ErrInvalidRate is returned when a rate set carries a non-positive rate.
var ErrInvalidRate = errors.New("fx: rates must be greater than zero")

// Rates is the shared exchange-rate set. It is replaced wholesale; there is
// no partial update.
type Rates struct {
	LocalPerUSD    decimal.Decimal `json:"localPerUSD"`
	LocalPerEUR    decimal.Decimal `json:"localPerEUR"`
	LocalPerStable decimal.Decimal `json:"localPerStable"`
	LastUpdated    time.Time       `json:"lastUpdated"`
}

// DefaultRates returns the first-run rate set.
func DefaultRates(now time.Time) Rates {
	return Rates{
		LocalPerUSD:    decimal.RequireFromString("46.50"),
		LocalPerEUR:    decimal.RequireFromString("49.80"),
		LocalPerStable: decimal.RequireFromString("47.20"),
		LastUpdated:    now.UTC(),
	}
}

// Validate rejects any rate that is zero or negative.
func (r Rates) Validate() error {
	checks := []struct {
		name string
		v    decimal.Decimal
	}{
		{"localPerUSD", r.LocalPerUSD},
		{"localPerEUR", r.LocalPerEUR},
		{"localPerStable", r.LocalPerStable},
	}
	for _, c := range checks {
		if !c.v.IsPositive() {
			return fmt.Errorf("%w: %s = %s", ErrInvalidRate, c.name, c.v)
		}
	}
	return nil
}

// Per returns the local-currency units per one unit of currency c.
// The local currency itself is 1.
func (r Rates) Per(c types.Currency) (decimal.Decimal, error) {
	switch c {
	case types.USD:
		return r.LocalPerUSD, nil
	case types.EUR:
		return r.LocalPerEUR, nil
	case types.USDT:
		return r.LocalPerStable, nil
	case types.VES:
		return decimal.NewFromInt(1), nil
	}
	return decimal.Zero, fmt.Errorf("fx: unsupported currency %q", c)
}

// ToUSD converts an amount in currency c back to USD. Used to value payments
// tendered in a foreign currency.
func (r Rates) ToUSD(amount decimal.Decimal, c types.Currency) (decimal.Decimal, error) {
	if c == types.USD {
		return amount, nil
	}
	per, err := r.Per(c)
	if err != nil {
		return decimal.Zero, err
	}
	if !r.LocalPerUSD.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	return amount.Mul(per).Div(r.LocalPerUSD), nil
}

// Conversion holds the four equivalent figures for one USD amount.
type Conversion struct {
	USD    decimal.Decimal `json:"usd"`
	Local  decimal.Decimal `json:"local"`
	EUR    decimal.Decimal `json:"eur"`
	Stable decimal.Decimal `json:"stable"`
}

// Convert maps a USD amount onto the other three currencies. It is total for
// any rate set that passes Validate; zero rates are a caller error.
func Convert(amountUSD decimal.Decimal, r Rates) Conversion {
	local := amountUSD.Mul(r.LocalPerUSD)
	return Conversion{
		USD:    amountUSD,
		Local:  local,
		EUR:    local.Div(r.LocalPerEUR),
		Stable: local.Div(r.LocalPerStable),
	}
}

// Rounded returns the conversion rounded to two decimals for display.
func (c Conversion) Rounded() Conversion {
	return Conversion{
		USD:    c.USD.Round(2),
		Local:  c.Local.Round(2),
		EUR:    c.EUR.Round(2),
		Stable: c.Stable.Round(2),
	}
}

// Money returns the figure for currency cur as a types.Money.
func (c Conversion) Money(cur types.Currency) types.Money {
	switch cur {
	case types.VES:
		return types.NewMoney(c.Local, cur)
	case types.EUR:
		return types.NewMoney(c.EUR, cur)
	case types.USDT:
		return types.NewMoney(c.Stable, cur)
	}
	return types.NewMoney(c.USD, types.USD)
}
