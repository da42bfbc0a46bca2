// Package catalog holds the product catalog types consumed by the cart and
// order domains. Prices are decimals; stock levels are plain counters that
// only the order placement transaction decrements.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrVariantNotFound is returned when a requested variant does not exist or
// belongs to a different product.
var ErrVariantNotFound = errors.New("product variant not found")

// InactiveProductError indicates a cart references a product that has been
// deactivated since it was added.
type InactiveProductError struct {
	ProductID int64
}

func (e *InactiveProductError) Error() string {
	return fmt.Sprintf("product %d is not available", e.ProductID)
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID          int64
	Name        string
	Description string
	BasePrice   decimal.Decimal
	TaxRate     decimal.Decimal // percentage, 0-100
	CategoryID  int64
	StockLevel  int
	Active      bool
}

// Variant is an optional refinement of a product (size, colour) with its own
// stock level and a price adjustment relative to the product's base price.
type Variant struct {
	ID              int64
	ProductID       int64
	Name            string
	Value           string
	PriceAdjustment decimal.Decimal
	StockLevel      int
}

// UnitPrice returns the effective unit price for a product with an optional
// variant applied. The adjustment may be negative but is bounded by the base
// price, so the result never drops below zero.
func UnitPrice(p Product, v *Variant) decimal.Decimal {
	if v == nil {
		return p.BasePrice
	}
	price := p.BasePrice.Add(v.PriceAdjustment)
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	GetVariantsByIDs(ctx context.Context, ids []int64) ([]Variant, error)
}
