package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tactiqa/storefront/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_type, discount_value,
		valid_from, valid_until, min_order_amount, max_uses, uses, single_use_per_customer
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	hasUsedCouponSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_usage WHERE coupon_id = $1 AND user_id = $2)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// The usage counter increment lives in the order placement transaction
// (see OrderRepository.Place), not here.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// HasUsed reports whether the user has any recorded usage of the coupon.
func (r *CouponRepository) HasUsed(ctx context.Context, couponID, userID int64) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, hasUsedCouponSQL, couponID, userID).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("checking usage of coupon %d by user %d: %w", couponID, userID, err)
	}
	return used, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c       coupon.Coupon
		kind    string
		maxUses *int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &kind, &c.Value,
		&c.ValidFrom, &c.ValidUntil, &c.MinOrderAmount,
		&maxUses, &c.Uses, &c.SingleUsePerCustomer,
	)
	c.Kind = coupon.Kind(kind)
	if maxUses != nil {
		n := int(*maxUses)
		c.MaxUses = &n
	}
	return c, err
}
