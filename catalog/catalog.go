package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xraph/tienda/entitlement"
	"github.com/xraph/tienda/id"
	"github.com/xraph/tienda/types"
)

var validate = validator.New()

// Validate checks field constraints and money bounds.
func Validate(p Product) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidProduct, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	if p.BasePriceUSD.IsNegative() {
		return fmt.Errorf("%w: basePriceUSD must be >= 0", ErrInvalidProduct)
	}
	if p.SupplierCostUSD.IsNegative() {
		return fmt.Errorf("%w: supplierCostUSD must be >= 0", ErrInvalidProduct)
	}
	return nil
}

// Add inserts p with a fresh id. It fails with ErrLimitExceeded when quota
// denies one more product; quota is computed by the caller from the active
// plan and the current product count.
func Add(products []Product, p Product, quota entitlement.Result, now time.Time) ([]Product, Product, error) {
	if !quota.Allowed {
		return products, Product{}, fmt.Errorf("%w: %d of %d", ErrLimitExceeded, quota.Used, quota.Limit)
	}

	p.Barcode = strings.TrimSpace(p.Barcode)
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.Unit == "" {
		p.Unit = DefaultUnit
	}
	if err := Validate(p); err != nil {
		return products, Product{}, err
	}
	if p.Barcode != "" {
		if _, ok := FindByBarcode(products, p.Barcode); ok {
			return products, Product{}, fmt.Errorf("%w: %s", ErrDuplicateBarcode, p.Barcode)
		}
	}

	p.ID = id.NewProductID()
	p.Entity = types.NewEntity(now)
	stamp := now.UTC()
	p.LastPriceChange = &stamp

	return append(products, p), p, nil
}

// Update replaces the product with p.ID. The id and creation time of the
// stored record are kept.
func Update(products []Product, p Product, now time.Time) ([]Product, Product, error) {
	i := indexOf(products, p.ID)
	if i < 0 {
		return products, Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, p.ID)
	}

	p.Barcode = strings.TrimSpace(p.Barcode)
	if err := Validate(p); err != nil {
		return products, Product{}, err
	}
	if p.Barcode != "" {
		if other, ok := FindByBarcode(products, p.Barcode); ok && other.ID.String() != p.ID.String() {
			return products, Product{}, fmt.Errorf("%w: %s", ErrDuplicateBarcode, p.Barcode)
		}
	}

	old := products[i]
	p.Entity = old.Entity
	p.Touch(now)
	p.LastPriceChange = old.LastPriceChange
	if !p.BasePriceUSD.Equal(old.BasePriceUSD) || !p.SupplierCostUSD.Equal(old.SupplierCostUSD) {
		stamp := now.UTC()
		p.LastPriceChange = &stamp
	}

	products[i] = p
	return products, p, nil
}

// Delete removes the product with id pid. Historical transactions are not
// touched; their line items carry their own copy of the product.
func Delete(products []Product, pid id.ProductID) ([]Product, Product, error) {
	i := indexOf(products, pid)
	if i < 0 {
		return products, Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, pid)
	}
	removed := products[i]
	out := make([]Product, 0, len(products)-1)
	out = append(out, products[:i]...)
	out = append(out, products[i+1:]...)
	return out, removed, nil
}

// ApplyStockDelta sets stock to max(0, stock+delta) in place. Oversell is
// floored at zero rather than rejected; the returned change says so. A sum
// past math.MaxInt64 saturates there.
func ApplyStockDelta(products []Product, pid id.ProductID, delta int64, now time.Time) (StockChange, error) {
	i := indexOf(products, pid)
	if i < 0 {
		return StockChange{}, fmt.Errorf("%w: %s", ErrProductNotFound, pid)
	}

	p := &products[i]
	change := StockChange{
		ProductID: p.ID,
		Name:      p.Name,
		Before:    p.Stock,
		Delta:     delta,
		MinStock:  p.MinStock,
	}
	next := p.Stock + delta
	switch {
	case delta > 0 && p.Stock > math.MaxInt64-delta:
		next = math.MaxInt64
	case next < 0:
		next = 0
		change.Clamped = true
	}
	p.Stock = next
	p.Touch(now)
	change.After = next
	return change, nil
}

// BulkPriceUpdate raises (or, with a negative percent, lowers) the sale price
// of every product in category by percent. An empty category selects all
// products. Prices are rounded to cents and never drop below zero.
func BulkPriceUpdate(products []Product, category string, percent decimal.Decimal, now time.Time) []Product {
	factor := decimal.NewFromInt(1).Add(percent.Div(decimal.NewFromInt(100)))
	stamp := now.UTC()
	var changed []Product
	for i := range products {
		p := &products[i]
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		price := p.BasePriceUSD.Mul(factor).Round(2)
		if price.IsNegative() {
			price = decimal.Zero
		}
		p.BasePriceUSD = price
		p.LastPriceChange = &stamp
		p.Touch(now)
		changed = append(changed, *p)
	}
	return changed
}

// Find returns the product with id pid.
func Find(products []Product, pid id.ProductID) (Product, bool) {
	if i := indexOf(products, pid); i >= 0 {
		return products[i], true
	}
	return Product{}, false
}

// FindByBarcode resolves a scanned code to a product by exact match.
func FindByBarcode(products []Product, code string) (Product, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Product{}, false
	}
	for _, p := range products {
		if p.Barcode == code {
			return p, true
		}
	}
	return Product{}, false
}

// Search matches term against product names (case-insensitive) and barcodes.
// An empty term matches everything.
func Search(products []Product, term string) []Product {
	term = strings.TrimSpace(term)
	if term == "" {
		return append([]Product(nil), products...)
	}
	lower := strings.ToLower(term)
	var out []Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), lower) ||
			(p.Barcode != "" && strings.Contains(p.Barcode, term)) {
			out = append(out, p)
		}
	}
	return out
}

// LowStock returns the products at or below their reorder threshold.
func LowStock(products []Product) []Product {
	var out []Product
	for _, p := range products {
		if p.IsLowStock() {
			out = append(out, p)
		}
	}
	return out
}

func indexOf(products []Product, pid id.ProductID) int {
	if pid.IsNil() {
		return -1
	}
	key := pid.String()
	for i := range products {
		if products[i].ID.String() == key {
			return i
		}
	}
	return -1
}
