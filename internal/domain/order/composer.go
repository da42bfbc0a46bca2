package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tactiqa/storefront/internal/domain/cart"
	"github.com/tactiqa/storefront/internal/domain/catalog"
	"github.com/tactiqa/storefront/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID            int64
	ShippingAddressID int64
	BillingAddressID  int64
	CouponCode        string
}

// Composer converts a user's active cart into a persisted order: it prices
// every line, computes tax and discounts, and hands the result to the order
// repository, which applies all side effects in one transaction.
type Composer struct {
	catalog catalog.Repository
	carts   cart.Repository
	coupons coupon.Repository
	orders  Repository
	now     func() time.Time
}

// NewComposer creates a Composer with the required domain dependencies.
func NewComposer(
	catalogRepo catalog.Repository,
	carts cart.Repository,
	coupons coupon.Repository,
	orders Repository,
) *Composer {
	return &Composer{
		catalog: catalogRepo,
		carts:   carts,
		coupons: coupons,
		orders:  orders,
		now:     time.Now,
	}
}

// PlaceOrder checks every precondition, computes the order's pricing, and
// persists it atomically. All precondition failures surface before any
// mutation; the repository re-checks stock and coupon counters under row
// locks so concurrent placements cannot oversubscribe either.
func (c *Composer) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	active, err := c.carts.GetActive(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "get active cart")
	}
	if len(active.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	products, variants, err := cart.FetchLineItems(ctx, c.catalog, active.Lines)
	if err != nil {
		return nil, err
	}

	lines, err := priceLines(active.Lines, products, variants)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Subtotal)
		tax = tax.Add(line.Tax)
	}

	// Coupon validation against the pre-discount subtotal.
	var applied *coupon.Coupon
	discountAmount := decimal.Zero
	if req.CouponCode != "" {
		applied, err = c.coupons.FindByCode(ctx, req.CouponCode)
		if err != nil {
			return nil, err
		}

		usedBefore := false
		if applied.SingleUsePerCustomer {
			usedBefore, err = c.coupons.HasUsed(ctx, applied.ID, req.UserID)
			if err != nil {
				return nil, errors.Wrap(err, "check coupon usage")
			}
		}

		discountAmount, err = coupon.Validate(applied, subtotal, c.now(), usedBefore)
		if err != nil {
			return nil, err
		}
	}

	// A discount larger than the subtotal (percentage value over 100) would
	// drive the total negative; cap it at the subtotal.
	if discountAmount.GreaterThan(subtotal) {
		discountAmount = subtotal
	}
	prorateDiscount(lines, discountAmount, subtotal)

	total := subtotal.Sub(discountAmount).Add(tax).RoundBank(2)
	if total.IsNegative() {
		return nil, errors.Errorf("computed negative total %s for user %d", total, req.UserID)
	}

	o := &Order{
		ID:                uuid.New().String(),
		UserID:            req.UserID,
		Status:            StatusNew,
		Lines:             lines,
		Subtotal:          subtotal.RoundBank(2),
		Discount:          discountAmount.RoundBank(2),
		Tax:               tax.RoundBank(2),
		Total:             total,
		CouponCode:        req.CouponCode,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		CreatedAt:         c.now(),
	}

	if err := c.orders.Place(ctx, &Placement{
		Order:  o,
		CartID: active.ID,
		Coupon: applied,
	}); err != nil {
		return nil, err
	}

	return o, nil
}

// priceLines freezes pricing for every cart line: unit price with variant
// adjustment, line subtotal, and line tax rounded half-even to 2 decimal
// places. It also prechecks product activity and stock; the storage layer
// recheck under locks is what makes the guarantee race-free.
func priceLines(
	cartLines []cart.Line,
	products map[int64]catalog.Product,
	variants map[int64]*catalog.Variant,
) ([]Line, error) {
	lines := make([]Line, 0, len(cartLines))
	for _, cl := range cartLines {
		p, ok := products[cl.ProductID]
		if !ok {
			return nil, errors.Wrapf(catalog.ErrNotFound, "product %d", cl.ProductID)
		}
		if !p.Active {
			return nil, &catalog.InactiveProductError{ProductID: p.ID}
		}
		if p.StockLevel < cl.Quantity {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Requested: cl.Quantity,
				Available: p.StockLevel,
			}
		}

		var v *catalog.Variant
		if cl.VariantID != 0 {
			v = variants[cl.VariantID]
			if v == nil || v.ProductID != cl.ProductID {
				return nil, errors.Wrapf(catalog.ErrVariantNotFound, "variant %d", cl.VariantID)
			}
			if v.StockLevel < cl.Quantity {
				return nil, &InsufficientStockError{
					ProductID: p.ID,
					VariantID: v.ID,
					Requested: cl.Quantity,
					Available: v.StockLevel,
				}
			}
		}

		unit := catalog.UnitPrice(p, v)
		qty := decimal.NewFromInt(int64(cl.Quantity))
		lineSubtotal := unit.Mul(qty)
		lineTax := lineSubtotal.Mul(p.TaxRate).Div(hundred).RoundBank(2)

		lines = append(lines, Line{
			ProductID: cl.ProductID,
			VariantID: cl.VariantID,
			Quantity:  cl.Quantity,
			UnitPrice: unit,
			TaxRate:   p.TaxRate,
			Subtotal:  lineSubtotal,
			Tax:       lineTax,
		})
	}
	return lines, nil
}

// prorateDiscount distributes the order-level discount across lines in
// proportion to each line's subtotal share. Rounding remainders go to the
// last line so the per-line discounts sum exactly to the order discount.
func prorateDiscount(lines []Line, discount, subtotal decimal.Decimal) {
	if discount.IsZero() || subtotal.IsZero() {
		return
	}

	allocated := decimal.Zero
	for i := range lines {
		if i == len(lines)-1 {
			lines[i].Discount = discount.Sub(allocated)
			break
		}
		share := discount.Mul(lines[i].Subtotal).Div(subtotal).RoundBank(2)
		lines[i].Discount = share
		allocated = allocated.Add(share)
	}
}
