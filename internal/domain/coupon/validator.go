package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validate is a pure function of the coupon snapshot, the pre-discount order
// subtotal, the current time and the prior-usage flag. It returns the
// computed discount amount, or exactly one of the package error kinds.
//
// It has no side effects: recording the usage and incrementing the counter
// belong to the order placement transaction.
func Validate(c *Coupon, subtotal decimal.Decimal, now time.Time, usedBefore bool) (decimal.Decimal, error) {
	if c == nil {
		return decimal.Zero, ErrNotFound
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return decimal.Zero, ErrExpired
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return decimal.Zero, ErrMinimumNotMet
	}
	if c.MaxUses != nil && c.Uses >= *c.MaxUses {
		return decimal.Zero, ErrExhausted
	}
	if c.SingleUsePerCustomer && usedBefore {
		return decimal.Zero, ErrAlreadyUsed
	}

	return discount(c, subtotal)
}

// discount computes the discount amount for an eligible coupon. Percentage
// discounts are taken from the subtotal; fixed discounts are capped at the
// subtotal so the total can never go negative.
func discount(c *Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch c.Kind {
	case KindPercentage:
		amount := subtotal.Mul(c.Value).Div(hundred)
		return floorAtZero(amount).RoundBank(2), nil
	case KindFixed:
		amount := decimal.Min(c.Value, subtotal)
		return floorAtZero(amount).RoundBank(2), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount kind: %q", c.Kind)
	}
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
