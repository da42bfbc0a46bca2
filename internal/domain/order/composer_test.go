package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tactiqa/storefront/internal/domain/cart"
	"github.com/tactiqa/storefront/internal/domain/catalog"
	"github.com/tactiqa/storefront/internal/domain/coupon"
)

// --- Mock implementations ---

type mockCatalogRepo struct {
	products map[int64]catalog.Product
	variants map[int64]catalog.Variant
}

func (m *mockCatalogRepo) List(_ context.Context) ([]catalog.Product, error) { return nil, nil }

func (m *mockCatalogRepo) GetByID(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (m *mockCatalogRepo) GetByIDs(_ context.Context, ids []int64) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockCatalogRepo) GetVariantsByIDs(_ context.Context, ids []int64) ([]catalog.Variant, error) {
	out := make([]catalog.Variant, 0, len(ids))
	for _, id := range ids {
		if v, ok := m.variants[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type mockCartRepo struct {
	cart *cart.Cart
	err  error
}

func (m *mockCartRepo) GetActive(_ context.Context, _ int64) (*cart.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

func (m *mockCartRepo) AddLine(_ context.Context, _ int64, _ cart.Line) (*cart.Cart, error) {
	return m.cart, nil
}

type mockCouponRepo struct {
	coupon   *coupon.Coupon
	findErr  error
	hasUsed  bool
	usedErr  error
	lastCode string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.lastCode = code
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.coupon, nil
}

func (m *mockCouponRepo) HasUsed(_ context.Context, _, _ int64) (bool, error) {
	return m.hasUsed, m.usedErr
}

type mockOrderRepo struct {
	lastPlacement *Placement
	err           error
}

func (m *mockOrderRepo) Place(_ context.Context, p *Placement) error {
	m.lastPlacement = p
	return m.err
}

func (m *mockOrderRepo) GetByID(_ context.Context, _ string) (*Order, error) { return nil, nil }

func (m *mockOrderRepo) ListByUser(_ context.Context, _ int64) ([]Order, error) { return nil, nil }

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ string, _, _ Status) error { return nil }

// --- Helpers ---

var fixedNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestProduct(id int64, price string, taxRate int64, stock int) catalog.Product {
	return catalog.Product{
		ID:         id,
		Name:       "Product",
		BasePrice:  decimal.RequireFromString(price),
		TaxRate:    decimal.NewFromInt(taxRate),
		StockLevel: stock,
		Active:     true,
	}
}

func newComposer(
	products *mockCatalogRepo,
	carts *mockCartRepo,
	coupons *mockCouponRepo,
	orders *mockOrderRepo,
) *Composer {
	c := NewComposer(products, carts, coupons, orders)
	c.now = func() time.Time { return fixedNow }
	return c
}

func activeCart(lines ...cart.Line) *mockCartRepo {
	return &mockCartRepo{cart: &cart.Cart{ID: 7, UserID: 1, Active: true, Lines: lines}}
}

func validCoupon(c coupon.Coupon) *mockCouponRepo {
	if c.ValidFrom.IsZero() {
		c.ValidFrom = fixedNow.Add(-24 * time.Hour)
	}
	if c.ValidUntil.IsZero() {
		c.ValidUntil = fixedNow.Add(24 * time.Hour)
	}
	return &mockCouponRepo{coupon: &c}
}

func placeReq(code string) PlaceOrderRequest {
	return PlaceOrderRequest{
		UserID:            1,
		ShippingAddressID: 10,
		BillingAddressID:  11,
		CouponCode:        code,
	}
}

// --- Tests ---

func TestPlaceOrder_NoActiveCart(t *testing.T) {
	c := newComposer(
		&mockCatalogRepo{},
		&mockCartRepo{err: cart.ErrNotFound},
		&mockCouponRepo{},
		&mockOrderRepo{},
	)

	_, err := c.PlaceOrder(context.Background(), placeReq(""))
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	c := newComposer(&mockCatalogRepo{}, activeCart(), &mockCouponRepo{}, &mockOrderRepo{})

	_, err := c.PlaceOrder(context.Background(), placeReq(""))
	require.ErrorIs(t, err, ErrEmptyCart)
}

// Scenario: one line, unit price 100.00, tax 20%, quantity 2, no coupon.
func TestPlaceOrder_NoCoupon(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "100.00", 20, 10),
	}}
	orders := &mockOrderRepo{}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 2}), &mockCouponRepo{}, orders)

	o, err := c.PlaceOrder(context.Background(), placeReq(""))
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("200.00").Equal(o.Subtotal), "subtotal %s", o.Subtotal)
	assert.True(t, decimal.RequireFromString("40.00").Equal(o.Tax), "tax %s", o.Tax)
	assert.True(t, decimal.Zero.Equal(o.Discount))
	assert.True(t, decimal.RequireFromString("240.00").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, StatusNew, o.Status)
	require.NotNil(t, orders.lastPlacement)
	assert.Equal(t, int64(7), orders.lastPlacement.CartID)
	assert.Nil(t, orders.lastPlacement.Coupon)
}

// Scenario: same cart, 20% coupon. Tax stays computed on the pre-discount
// line subtotal, so total = 200 - 40 + 40 = 200.
func TestPlaceOrder_PercentageCoupon(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "100.00", 20, 10),
	}}
	coupons := validCoupon(coupon.Coupon{
		ID: 3, Code: "SAVE20", Kind: coupon.KindPercentage,
		Value:          decimal.NewFromInt(20),
		MinOrderAmount: decimal.NewFromInt(50),
	})
	orders := &mockOrderRepo{}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 2}), coupons, orders)

	o, err := c.PlaceOrder(context.Background(), placeReq("SAVE20"))
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("40.00").Equal(o.Discount), "discount %s", o.Discount)
	assert.True(t, decimal.RequireFromString("200.00").Equal(o.Total), "total %s", o.Total)
	require.NotNil(t, orders.lastPlacement.Coupon)
	assert.Equal(t, int64(3), orders.lastPlacement.Coupon.ID)
}

func TestPlaceOrder_CouponMinimumNotMet(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "80.00", 0, 10),
	}}
	coupons := validCoupon(coupon.Coupon{
		Code: "FLAT50", Kind: coupon.KindFixed,
		Value:          decimal.NewFromInt(50),
		MinOrderAmount: decimal.NewFromInt(100),
	})
	orders := &mockOrderRepo{}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 1}), coupons, orders)

	_, err := c.PlaceOrder(context.Background(), placeReq("FLAT50"))
	require.ErrorIs(t, err, coupon.ErrMinimumNotMet)
	assert.Nil(t, orders.lastPlacement, "nothing must be persisted on precondition failure")
}

func TestPlaceOrder_CouponNotFound(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "10.00", 0, 10),
	}}
	c := newComposer(
		products,
		activeCart(cart.Line{ProductID: 1, Quantity: 1}),
		&mockCouponRepo{findErr: coupon.ErrNotFound},
		&mockOrderRepo{},
	)

	_, err := c.PlaceOrder(context.Background(), placeReq("BOGUS"))
	require.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestPlaceOrder_SingleUseCouponAlreadyUsed(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "10.00", 0, 10),
	}}
	coupons := validCoupon(coupon.Coupon{
		Code: "ONCE", Kind: coupon.KindPercentage,
		Value:                decimal.NewFromInt(10),
		SingleUsePerCustomer: true,
	})
	coupons.hasUsed = true
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 1}), coupons, &mockOrderRepo{})

	_, err := c.PlaceOrder(context.Background(), placeReq("ONCE"))
	require.ErrorIs(t, err, coupon.ErrAlreadyUsed)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "10.00", 0, 1),
	}}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 2}), &mockCouponRepo{}, &mockOrderRepo{})

	_, err := c.PlaceOrder(context.Background(), placeReq(""))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(1), stockErr.ProductID)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)
}

func TestPlaceOrder_VariantStockAndAdjustment(t *testing.T) {
	products := &mockCatalogRepo{
		products: map[int64]catalog.Product{
			1: newTestProduct(1, "100.00", 20, 10),
		},
		variants: map[int64]catalog.Variant{
			5: {ID: 5, ProductID: 1, PriceAdjustment: decimal.RequireFromString("5.00"), StockLevel: 3},
		},
	}
	orders := &mockOrderRepo{}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, VariantID: 5, Quantity: 2}), &mockCouponRepo{}, orders)

	o, err := c.PlaceOrder(context.Background(), placeReq(""))
	require.NoError(t, err)

	// unit = 100 + 5; subtotal 210; tax 42; total 252.
	assert.True(t, decimal.RequireFromString("105.00").Equal(o.Lines[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("252.00").Equal(o.Total), "total %s", o.Total)
}

func TestPlaceOrder_VariantStockShortage(t *testing.T) {
	products := &mockCatalogRepo{
		products: map[int64]catalog.Product{
			1: newTestProduct(1, "100.00", 20, 10),
		},
		variants: map[int64]catalog.Variant{
			5: {ID: 5, ProductID: 1, StockLevel: 1},
		},
	}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, VariantID: 5, Quantity: 2}), &mockCouponRepo{}, &mockOrderRepo{})

	_, err := c.PlaceOrder(context.Background(), placeReq(""))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(5), stockErr.VariantID)
}

func TestPlaceOrder_InactiveProduct(t *testing.T) {
	p := newTestProduct(1, "10.00", 0, 10)
	p.Active = false
	products := &mockCatalogRepo{products: map[int64]catalog.Product{1: p}}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 1}), &mockCouponRepo{}, &mockOrderRepo{})

	_, err := c.PlaceOrder(context.Background(), placeReq(""))

	var inactiveErr *catalog.InactiveProductError
	require.ErrorAs(t, err, &inactiveErr)
}

func TestPlaceOrder_ProrationSumsExactly(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "10.00", 0, 10),
		2: newTestProduct(2, "10.00", 0, 10),
		3: newTestProduct(3, "10.00", 0, 10),
	}}
	// 10% of 30.00 = 3.00, split over three equal lines = 1.00 each; but a
	// skewed rate exercises the remainder path below.
	coupons := validCoupon(coupon.Coupon{
		Code: "ODD", Kind: coupon.KindPercentage,
		Value: decimal.RequireFromString("33.33"),
	})
	orders := &mockOrderRepo{}
	c := newComposer(products, activeCart(
		cart.Line{ProductID: 1, Quantity: 1},
		cart.Line{ProductID: 2, Quantity: 1},
		cart.Line{ProductID: 3, Quantity: 1},
	), coupons, orders)

	o, err := c.PlaceOrder(context.Background(), placeReq("ODD"))
	require.NoError(t, err)

	sum := decimal.Zero
	for _, line := range o.Lines {
		sum = sum.Add(line.Discount)
	}
	assert.True(t, sum.Equal(o.Discount), "per-line discounts %s must sum to %s", sum, o.Discount)
	assert.True(t, o.Subtotal.Sub(o.Discount).Add(o.Tax).Equal(o.Total))
}

func TestPlaceOrder_DiscountCappedAtSubtotal(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "10.00", 20, 10),
	}}
	coupons := validCoupon(coupon.Coupon{
		Code: "INSANE", Kind: coupon.KindPercentage,
		Value: decimal.NewFromInt(150),
	})
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 1}), coupons, &mockOrderRepo{})

	o, err := c.PlaceOrder(context.Background(), placeReq("INSANE"))
	require.NoError(t, err)

	// Discount capped at the 10.00 subtotal; total is the 2.00 tax.
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Discount), "discount %s", o.Discount)
	assert.True(t, decimal.RequireFromString("2.00").Equal(o.Total), "total %s", o.Total)
}

func TestPlaceOrder_RepositoryStockConflict(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "10.00", 0, 1),
	}}
	// Precheck passes (stock 1, quantity 1) but the transactional CAS loses
	// the race and reports the conflict.
	orders := &mockOrderRepo{err: &InsufficientStockError{ProductID: 1, Requested: 1, Available: 0}}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 1}), &mockCouponRepo{}, orders)

	_, err := c.PlaceOrder(context.Background(), placeReq(""))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
}

func TestPlaceOrder_PlaceErrorPropagates(t *testing.T) {
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "10.00", 0, 10),
	}}
	orders := &mockOrderRepo{err: errors.New("db write failed")}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 1}), &mockCouponRepo{}, orders)

	_, err := c.PlaceOrder(context.Background(), placeReq(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db write failed")
}

func TestPlaceOrder_TaxRoundsHalfEven(t *testing.T) {
	// 0.50 * 25% = 0.125 -> half-even rounding gives 0.12, not 0.13.
	products := &mockCatalogRepo{products: map[int64]catalog.Product{
		1: newTestProduct(1, "0.50", 25, 10),
	}}
	c := newComposer(products, activeCart(cart.Line{ProductID: 1, Quantity: 1}), &mockCouponRepo{}, &mockOrderRepo{})

	o, err := c.PlaceOrder(context.Background(), placeReq(""))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.12").Equal(o.Lines[0].Tax), "tax %s", o.Lines[0].Tax)
}
