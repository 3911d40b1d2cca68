// Package catalog manages the set of sellable and stockable products.
//
// Functions operate on a product slice owned by the caller. The engine hands
// them a cloned slice and publishes the result as a whole, so a failed call
// never leaves a half-applied change behind.
package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/id"
	"github.com/xraph/tienda/types"
)

var (
	ErrProductNotFound  = errors.New("catalog: product not found")
	ErrLimitExceeded    = errors.New("catalog: product limit exceeded")
	ErrDuplicateBarcode = errors.New("catalog: barcode already in use")
	ErrInvalidProduct   = errors.New("catalog: invalid product")
)

// Form defaults.
const (
	DefaultCategory = "General"
	DefaultUnit     = "Unidades"
	DefaultMinStock = 5
)

type Product struct {
	types.Entity
	ID              id.ProductID    `json:"id"`
	Name            string          `json:"name" validate:"required,max=200"`
	Category        string          `json:"category" validate:"max=100"`
	Stock           int64           `json:"stock" validate:"gte=0"`
	MinStock        int64           `json:"minStock" validate:"gte=0"`
	BasePriceUSD    decimal.Decimal `json:"basePriceUSD"`
	SupplierCostUSD decimal.Decimal `json:"supplierCostUSD"`
	Unit            string          `json:"unit" validate:"max=50"`
	Barcode         string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	LastPriceChange *time.Time      `json:"lastPriceChange,omitempty"`
}

// IsLowStock reports whether stock has reached the reorder threshold.
func (p Product) IsLowStock() bool { return p.Stock <= p.MinStock }

// RetailValue is stock valued at the sale price.
func (p Product) RetailValue() decimal.Decimal {
	return p.BasePriceUSD.Mul(decimal.NewFromInt(p.Stock))
}

// CostValue is stock valued at the supplier cost.
func (p Product) CostValue() decimal.Decimal {
	return p.SupplierCostUSD.Mul(decimal.NewFromInt(p.Stock))
}

// Margin is the unit sale price minus the unit cost.
func (p Product) Margin() decimal.Decimal { return p.BasePriceUSD.Sub(p.SupplierCostUSD) }

// StockChange describes the effect of one stock delta.
type StockChange struct {
	ProductID id.ProductID `json:"productId"`
	Name      string       `json:"name"`
	Before    int64        `json:"before"`
	After     int64        `json:"after"`
	Delta     int64        `json:"delta"`
	// Clamped is set when the requested delta would have driven stock
	// below zero and the result was floored at zero instead.
	Clamped  bool  `json:"clamped"`
	MinStock int64 `json:"minStock"`
}

// BecameLow reports whether this change moved the product into low stock.
func (c StockChange) BecameLow() bool {
	return c.Before > c.MinStock && c.After <= c.MinStock
}
