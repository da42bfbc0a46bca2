// Package order contains the Order Composer: the conversion of a shopping
// cart plus an optional coupon into a persisted order with frozen per-line
// pricing, executed as one atomic unit against the store.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tactiqa/storefront/internal/domain/coupon"
)

// ErrEmptyCart is returned when order placement is attempted with no active
// cart or a cart with zero lines. Because a successful placement clears the
// cart, a duplicate submission naturally fails with this error.
var ErrEmptyCart = errors.New("cart is empty")

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// InsufficientStockError indicates a line's requested quantity exceeds the
// available stock. VariantID is zero when the shortage is at product level.
type InsufficientStockError struct {
	ProductID int64
	VariantID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.VariantID != 0 {
		return fmt.Sprintf("insufficient stock for variant %d of product %d: requested %d, available %d",
			e.VariantID, e.ProductID, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Line is an immutable snapshot of a cart line at the moment of purchase.
// Prices, tax and the pro-rated discount share are frozen here and never
// recomputed from the live catalog.
type Line struct {
	ProductID int64
	VariantID int64 // 0 = no variant
	Quantity  int
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Discount  decimal.Decimal
}

// Order is a persisted customer order. Totals are derived at placement time
// and stored for audit.
type Order struct {
	ID                string
	UserID            int64
	Status            Status
	Lines             []Line
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	Tax               decimal.Decimal
	Total             decimal.Decimal
	CouponCode        string
	ShippingAddressID int64
	BillingAddressID  int64
	CreatedAt         time.Time
}

// Placement bundles everything the storage layer must persist atomically:
// the order with its lines, the cart to clear, and the coupon whose usage
// must be recorded.
type Placement struct {
	Order  *Order
	CartID int64
	Coupon *coupon.Coupon // nil when no coupon was applied
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Place persists the order and applies every side effect of placement
	// in a single transaction: stock decrements, cart clearing, coupon
	// usage recording and the pending payment row. On stock or coupon
	// contention it returns the corresponding domain error and nothing is
	// persisted.
	Place(ctx context.Context, p *Placement) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// UpdateStatus transitions an order from one status to another with a
	// compare-and-swap on the current status. Returns ErrStatusConflict
	// when the order is no longer in the expected status.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
