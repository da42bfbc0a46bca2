package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tactiqa/storefront/internal/domain/coupon"
	"github.com/tactiqa/storefront/internal/domain/order"
)

const (
	// Compare-and-swap decrements: the WHERE clause re-checks availability
	// under the row lock, so two concurrent orders can never drive a stock
	// counter negative.
	decrementProductStockSQL = `UPDATE products
		SET stock_level = stock_level - $2
		WHERE id = $1 AND active AND stock_level >= $2`

	decrementVariantStockSQL = `UPDATE product_variants
		SET stock_level = stock_level - $2
		WHERE id = $1 AND stock_level >= $2`

	productStockSQL = `SELECT stock_level FROM products WHERE id = $1`
	variantStockSQL = `SELECT stock_level FROM product_variants WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (id, user_id, status, subtotal, discount, tax, total,
		coupon_code, shipping_address_id, billing_address_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, line_no, product_id, variant_id,
		quantity, unit_price, tax_rate, subtotal, tax, discount)
		VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, $7, $8, $9, $10)`

	insertPaymentSQL = `INSERT INTO payments (order_id, amount, status)
		VALUES ($1, $2, 'pending')`

	deleteCartLinesSQL   = `DELETE FROM cart_items WHERE cart_id = $1`
	deactivateCartSQL    = `UPDATE carts SET active = FALSE WHERE id = $1`
	incrementCouponSQL   = `UPDATE coupons SET uses = uses + 1
		WHERE id = $1 AND (max_uses IS NULL OR uses < max_uses)`
	couponUsedByUserSQL  = `SELECT EXISTS (
		SELECT 1 FROM coupon_usage WHERE coupon_id = $1 AND user_id = $2)`
	insertCouponUsageSQL = `INSERT INTO coupon_usage (coupon_id, user_id, order_id)
		VALUES ($1, $2, $3)`

	getOrderSQL = `SELECT id, user_id, status, subtotal, discount, tax, total,
		coupon_code, shipping_address_id, billing_address_id, created_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, status, subtotal, discount, tax, total,
		coupon_code, shipping_address_id, billing_address_id, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	getOrderLinesSQL = `SELECT product_id, COALESCE(variant_id, 0), quantity,
		unit_price, tax_rate, subtotal, tax, discount
		FROM order_items WHERE order_id = $1 ORDER BY line_no`

	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`
	orderExistsSQL       = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Place persists the order and all placement side effects in a single
// transaction: stock decrements, order and line inserts, the pending payment
// row, cart clearing, and coupon usage recording. Any failure rolls the
// whole unit back; contention on stock or the coupon counter surfaces as the
// corresponding domain error.
func (r *OrderRepository) Place(ctx context.Context, p *order.Placement) error {
	o := p.Order
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, line := range o.Lines {
			if err := decrementStock(ctx, tx, line); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, string(o.Status), o.Subtotal, o.Discount, o.Tax, o.Total,
			o.CouponCode, o.ShippingAddressID, o.BillingAddressID, o.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}

		for i, line := range o.Lines {
			if _, err := tx.Exec(ctx, insertOrderItemSQL,
				o.ID, i+1, line.ProductID, line.VariantID,
				line.Quantity, line.UnitPrice, line.TaxRate,
				line.Subtotal, line.Tax, line.Discount,
			); err != nil {
				return fmt.Errorf("inserting order %q line %d: %w", o.ID, i+1, err)
			}
		}

		if _, err := tx.Exec(ctx, insertPaymentSQL, o.ID, o.Total); err != nil {
			return fmt.Errorf("inserting payment for order %q: %w", o.ID, err)
		}

		if _, err := tx.Exec(ctx, deleteCartLinesSQL, p.CartID); err != nil {
			return fmt.Errorf("clearing cart %d: %w", p.CartID, err)
		}
		if _, err := tx.Exec(ctx, deactivateCartSQL, p.CartID); err != nil {
			return fmt.Errorf("deactivating cart %d: %w", p.CartID, err)
		}

		if p.Coupon != nil {
			if err := recordCouponUsage(ctx, tx, p.Coupon, o); err != nil {
				return err
			}
		}

		return nil
	})
}

// decrementStock applies the CAS stock decrement for one line. A zero-row
// update means the line lost a race since the precheck; the current level is
// read back for the error.
func decrementStock(ctx context.Context, tx pgx.Tx, line order.Line) error {
	ct, err := tx.Exec(ctx, decrementProductStockSQL, line.ProductID, line.Quantity)
	if err != nil {
		return fmt.Errorf("decrementing stock for product %d: %w", line.ProductID, err)
	}
	if ct.RowsAffected() == 0 {
		var available int
		_ = tx.QueryRow(ctx, productStockSQL, line.ProductID).Scan(&available)
		return &order.InsufficientStockError{
			ProductID: line.ProductID,
			Requested: line.Quantity,
			Available: available,
		}
	}

	if line.VariantID == 0 {
		return nil
	}

	ct, err = tx.Exec(ctx, decrementVariantStockSQL, line.VariantID, line.Quantity)
	if err != nil {
		return fmt.Errorf("decrementing stock for variant %d: %w", line.VariantID, err)
	}
	if ct.RowsAffected() == 0 {
		var available int
		_ = tx.QueryRow(ctx, variantStockSQL, line.VariantID).Scan(&available)
		return &order.InsufficientStockError{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Requested: line.Quantity,
			Available: available,
		}
	}
	return nil
}

// recordCouponUsage increments the aggregate usage counter with a CAS that
// also takes the coupon's row lock, serializing concurrent placements using
// the same code. The per-customer check therefore runs race-free behind it.
func recordCouponUsage(ctx context.Context, tx pgx.Tx, c *coupon.Coupon, o *order.Order) error {
	ct, err := tx.Exec(ctx, incrementCouponSQL, c.ID)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", c.Code, err)
	}
	if ct.RowsAffected() == 0 {
		return coupon.ErrExhausted
	}

	if c.SingleUsePerCustomer {
		var used bool
		if err := tx.QueryRow(ctx, couponUsedByUserSQL, c.ID, o.UserID).Scan(&used); err != nil {
			return fmt.Errorf("checking prior usage of coupon %q: %w", c.Code, err)
		}
		if used {
			return coupon.ErrAlreadyUsed
		}
	}

	if _, err := tx.Exec(ctx, insertCouponUsageSQL, c.ID, o.UserID, o.ID); err != nil {
		return fmt.Errorf("recording usage of coupon %q: %w", c.Code, err)
	}
	return nil
}

// GetByID returns a single order with its lines, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if o.Lines, err = r.getLines(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first, with their lines.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}

	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}

	for i := range out {
		if out[i].Lines, err = r.getLines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateStatus performs a compare-and-swap status transition. A zero-row
// update means either the order does not exist or its status changed since
// the caller observed it.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	ct, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking order %q: %w", id, err)
		}
		if !exists {
			return order.ErrNotFound
		}
		return order.ErrStatusConflict
	}
	return nil
}

func (r *OrderRepository) getLines(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := r.pool.Query(ctx, getOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q lines: %w", orderID, err)
	}
	lines, err := pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("getting order %q lines: %w", orderID, err)
	}
	return lines, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &status, &o.Subtotal, &o.Discount, &o.Tax, &o.Total,
		&o.CouponCode, &o.ShippingAddressID, &o.BillingAddressID, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var l order.Line
	err := row.Scan(
		&l.ProductID, &l.VariantID, &l.Quantity,
		&l.UnitPrice, &l.TaxRate, &l.Subtotal, &l.Tax, &l.Discount,
	)
	return l, err
}
