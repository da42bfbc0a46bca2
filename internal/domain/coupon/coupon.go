// Package coupon holds promotional code rules and their pure validation
// logic. Usage counters are persisted and incremented by the order placement
// transaction, never here.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage applies a percentage-based discount to the order subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed applies a fixed monetary discount capped at the subtotal.
	KindFixed Kind = "fixed"
)

// Validation error kinds. Each maps to a distinct client-facing error so the
// caller can render a precise message.
var (
	ErrNotFound      = errors.New("coupon not found")
	ErrExpired       = errors.New("coupon expired")
	ErrMinimumNotMet = errors.New("order amount below coupon minimum")
	ErrExhausted     = errors.New("coupon usage limit reached")
	ErrAlreadyUsed   = errors.New("coupon already used by this customer")
)

// Coupon is a promotional code rule. Codes match case-insensitively;
// a nil MaxUses means unlimited aggregate uses.
type Coupon struct {
	ID                   int64
	Code                 string
	Kind                 Kind
	Value                decimal.Decimal
	ValidFrom            time.Time
	ValidUntil           time.Time
	MinOrderAmount       decimal.Decimal
	MaxUses              *int
	Uses                 int
	SingleUsePerCustomer bool
}

// Repository provides coupon lookups. The usage increment lives in the order
// repository so that it shares the placement transaction.
type Repository interface {
	// FindByCode looks up a coupon by code, case-insensitively.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// HasUsed reports whether the user has a recorded usage of the coupon.
	HasUsed(ctx context.Context, couponID, userID int64) (bool, error)
}
