// Package cart holds the shopping cart types and the add/view service.
// Carts are mutable staging state: lines are deleted, not archived, when a
// cart converts into an order.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a user has no active cart.
var ErrNotFound = errors.New("no active cart")

// Line is one (product, optional variant, quantity) entry in a cart.
// At most one line exists per (cart, product, variant) combination; adding
// the same combination again increments the quantity.
type Line struct {
	ProductID int64
	VariantID int64 // 0 = no variant
	Quantity  int
}

// Cart is a user's active shopping cart. A user has at most one active cart;
// it is marked inactive once converted into an order.
type Cart struct {
	ID        int64
	UserID    int64
	Active    bool
	Lines     []Line
	CreatedAt time.Time
}

// View is a cart enriched with the computed pre-tax, pre-discount subtotal.
type View struct {
	Cart     Cart
	Subtotal decimal.Decimal
}

// Repository defines persistence operations for carts. Clearing a cart is
// not part of this interface: it happens inside the order placement
// transaction owned by the order repository.
type Repository interface {
	// GetActive returns the user's active cart with its lines, or
	// ErrNotFound when there is none.
	GetActive(ctx context.Context, userID int64) (*Cart, error)
	// AddLine adds a line to the user's active cart, creating the cart if
	// needed. An existing (product, variant) line has its quantity
	// incremented instead of being duplicated.
	AddLine(ctx context.Context, userID int64, line Line) (*Cart, error)
}
