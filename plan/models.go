// Package plan holds the static subscription tier table and answers limit
// and feature questions against it.
package plan

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/entitlement"
)

// ErrUnknownLevel is returned when a level is not in the tier table.
var ErrUnknownLevel = errors.New("plan: unknown level")

type Level string

const (
	LevelBasic   Level = "BASIC"
	LevelPro     Level = "PRO"
	LevelPremium Level = "PREMIUM"
)

// Dimension is a numeric limit carried by every tier.
type Dimension string

const (
	DimensionUsers     Dimension = "users"
	DimensionRegisters Dimension = "registers"
	DimensionCompanies Dimension = "companies"
	DimensionProducts  Dimension = "products"
)

// Dimensions lists every numeric limit in display order.
func Dimensions() []Dimension {
	return []Dimension{DimensionUsers, DimensionRegisters, DimensionCompanies, DimensionProducts}
}

// Feature flag keys.
const (
	FeatureSalesHistory    = "sales_history"
	FeatureMultiCurrency   = "multi_currency"
	FeatureAdvancedReports = "advanced_reports"
	FeatureLowStockAlerts  = "low_stock_alerts"
	FeatureCSVExport       = "csv_export"
	FeatureTicketLogo      = "ticket_logo"
	FeatureBulkPriceUpdate = "bulk_price_update"
	FeatureMultiCompany    = "multi_company"
	FeatureInsights        = "insights"
)

type Limits struct {
	Users     int64 `json:"users"`
	Registers int64 `json:"registers"`
	Companies int64 `json:"companies"`
	Products  int64 `json:"products"`
}

type Plan struct {
	Level    Level           `json:"level"`
	Name     string          `json:"name"`
	PriceUSD decimal.Decimal `json:"priceUSD"`
	Limits   Limits          `json:"limits"`
	Features []string        `json:"features"`
}

var tiers = []Plan{
	{
		Level:    LevelBasic,
		Name:     "Básico",
		PriceUSD: decimal.NewFromInt(15),
		Limits:   Limits{Users: 3, Registers: 1, Companies: 1, Products: 100},
		Features: []string{FeatureSalesHistory, FeatureMultiCurrency},
	},
	{
		Level:    LevelPro,
		Name:     "Pro",
		PriceUSD: decimal.NewFromInt(25),
		Limits:   Limits{Users: 10, Registers: 5, Companies: 1, Products: 1000},
		Features: []string{
			FeatureSalesHistory, FeatureMultiCurrency, FeatureAdvancedReports,
			FeatureLowStockAlerts, FeatureCSVExport, FeatureTicketLogo, FeatureInsights,
		},
	},
	{
		Level:    LevelPremium,
		Name:     "Premium",
		PriceUSD: decimal.NewFromInt(49),
		Limits:   Limits{Users: 20, Registers: 12, Companies: 3, Products: 99999},
		Features: []string{
			FeatureSalesHistory, FeatureMultiCurrency, FeatureAdvancedReports,
			FeatureLowStockAlerts, FeatureCSVExport, FeatureTicketLogo, FeatureInsights,
			FeatureBulkPriceUpdate, FeatureMultiCompany,
		},
	},
}

// Tiers returns a copy of the static tier table, cheapest first.
func Tiers() []Plan {
	out := make([]Plan, len(tiers))
	for i, p := range tiers {
		out[i] = p.clone()
	}
	return out
}

// ForLevel looks up a tier.
func ForLevel(level Level) (Plan, error) {
	for _, p := range tiers {
		if p.Level == level {
			return p.clone(), nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
}

// Limit returns the numeric limit for a dimension.
func (p Plan) Limit(d Dimension) (int64, bool) {
	switch d {
	case DimensionUsers:
		return p.Limits.Users, true
	case DimensionRegisters:
		return p.Limits.Registers, true
	case DimensionCompanies:
		return p.Limits.Companies, true
	case DimensionProducts:
		return p.Limits.Products, true
	}
	return 0, false
}

// CheckLimit reports whether one more unit of dimension d fits when current
// units are already in use. Every dimension is checked the same way.
func (p Plan) CheckLimit(d Dimension, current int64) entitlement.Result {
	limit, ok := p.Limit(d)
	if !ok {
		return entitlement.Denied(string(d), "unknown dimension")
	}
	return entitlement.Check(string(d), current, limit)
}

// HasFeature reports whether the tier carries feature flag key.
func (p Plan) HasFeature(key string) bool {
	for _, f := range p.Features {
		if f == key {
			return true
		}
	}
	return false
}

// CheckFeature is HasFeature expressed as an entitlement.Result.
func (p Plan) CheckFeature(key string) entitlement.Result {
	if !p.HasFeature(key) {
		return entitlement.Denied(key, fmt.Sprintf("not included in %s plan", p.Name))
	}
	return entitlement.Result{Allowed: true, Feature: key, Limit: entitlement.Unlimited, Remaining: entitlement.Unlimited}
}

// IsWithinLimit reports whether current usage of dimension d still leaves room
// under the tier's limit. Unknown levels and dimensions are never within limit.
func IsWithinLimit(current int64, level Level, d Dimension) bool {
	p, err := ForLevel(level)
	if err != nil {
		return false
	}
	return p.CheckLimit(d, current).Allowed
}

func (p Plan) clone() Plan {
	p.Features = append([]string(nil), p.Features...)
	return p
}
