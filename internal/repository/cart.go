package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tactiqa/storefront/internal/domain/cart"
)

const (
	getActiveCartSQL = `SELECT id, user_id, active, created_at
		FROM carts WHERE user_id = $1 AND active`

	getCartLinesSQL = `SELECT product_id, COALESCE(variant_id, 0), quantity
		FROM cart_items WHERE cart_id = $1 ORDER BY added_at`

	ensureActiveCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) WHERE active DO NOTHING`

	upsertCartLineSQL = `INSERT INTO cart_items (cart_id, product_id, variant_id, quantity)
		VALUES ($1, $2, NULLIF($3, 0), $4)
		ON CONFLICT (cart_id, product_id, COALESCE(variant_id, 0))
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetActive returns the user's active cart with its lines, or cart.ErrNotFound.
func (r *CartRepository) GetActive(ctx context.Context, userID int64) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx, getActiveCartSQL, userID).
		Scan(&c.ID, &c.UserID, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting active cart for user %d: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, getCartLinesSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("getting cart %d lines: %w", c.ID, err)
	}
	c.Lines, err = pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("getting cart %d lines: %w", c.ID, err)
	}

	return &c, nil
}

// AddLine creates the user's active cart if needed and adds or increments
// the (product, variant) line. The unique index on (cart, product, variant)
// turns a duplicate add into a quantity increment.
func (r *CartRepository) AddLine(ctx context.Context, userID int64, line cart.Line) (*cart.Cart, error) {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, ensureActiveCartSQL, userID); err != nil {
			return fmt.Errorf("ensuring active cart: %w", err)
		}

		var cartID int64
		if err := tx.QueryRow(ctx, getActiveCartIDSQL, userID).Scan(&cartID); err != nil {
			return fmt.Errorf("resolving active cart: %w", err)
		}

		if _, err := tx.Exec(ctx, upsertCartLineSQL,
			cartID, line.ProductID, line.VariantID, line.Quantity,
		); err != nil {
			return fmt.Errorf("upserting cart line: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetActive(ctx, userID)
}

const getActiveCartIDSQL = `SELECT id FROM carts WHERE user_id = $1 AND active`

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.ProductID, &l.VariantID, &l.Quantity)
	return l, err
}
