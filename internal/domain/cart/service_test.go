package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tactiqa/storefront/internal/domain/catalog"
)

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
	cart     *Cart
	addErr   error
	lastLine Line
}

func (m *mockCartRepo) GetActive(_ context.Context, _ int64) (*Cart, error) {
	if m.cart == nil {
		return nil, ErrNotFound
	}
	return m.cart, nil
}

func (m *mockCartRepo) AddLine(_ context.Context, _ int64, line Line) (*Cart, error) {
	if m.addErr != nil {
		return nil, m.addErr
	}
	m.lastLine = line
	return m.cart, nil
}

func activeProduct(id int64, price string) catalog.Product {
	return catalog.Product{
		ID:        id,
		Name:      "Product",
		BasePrice: decimal.RequireFromString(price),
		TaxRate:   decimal.NewFromInt(20),
		Active:    true,
	}
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	svc := NewService(&mockCatalogRepo{}, &mockCartRepo{})

	_, err := svc.AddItem(context.Background(), 1, Line{ProductID: 1, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc := NewService(&mockCatalogRepo{}, &mockCartRepo{})

	_, err := svc.AddItem(context.Background(), 1, Line{ProductID: 99, Quantity: 1})
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestAddItem_InactiveProduct(t *testing.T) {
	p := activeProduct(1, "10.00")
	p.Active = false
	svc := NewService(
		&mockCatalogRepo{products: map[int64]catalog.Product{1: p}},
		&mockCartRepo{},
	)

	_, err := svc.AddItem(context.Background(), 1, Line{ProductID: 1, Quantity: 1})

	var inactiveErr *catalog.InactiveProductError
	require.ErrorAs(t, err, &inactiveErr)
}

func TestAddItem_VariantOfOtherProduct(t *testing.T) {
	svc := NewService(
		&mockCatalogRepo{
			products: map[int64]catalog.Product{1: activeProduct(1, "10.00")},
			variants: map[int64]catalog.Variant{5: {ID: 5, ProductID: 2}},
		},
		&mockCartRepo{},
	)

	_, err := svc.AddItem(context.Background(), 1, Line{ProductID: 1, VariantID: 5, Quantity: 1})
	require.ErrorIs(t, err, catalog.ErrVariantNotFound)
}

func TestAddItem_Succeeds(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{ID: 7, UserID: 1, Active: true}}
	svc := NewService(
		&mockCatalogRepo{products: map[int64]catalog.Product{1: activeProduct(1, "10.00")}},
		carts,
	)

	c, err := svc.AddItem(context.Background(), 1, Line{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, 3, carts.lastLine.Quantity)
}

func TestView_NoActiveCart(t *testing.T) {
	svc := NewService(&mockCatalogRepo{}, &mockCartRepo{})

	_, err := svc.View(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestView_ComputesSubtotal(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID: 7, UserID: 1, Active: true,
		Lines: []Line{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, VariantID: 5, Quantity: 1},
		},
	}}
	svc := NewService(
		&mockCatalogRepo{
			products: map[int64]catalog.Product{
				1: activeProduct(1, "10.00"),
				2: activeProduct(2, "20.00"),
			},
			variants: map[int64]catalog.Variant{
				5: {ID: 5, ProductID: 2, PriceAdjustment: decimal.RequireFromString("2.50")},
			},
		},
		carts,
	)

	view, err := svc.View(context.Background(), 1)
	require.NoError(t, err)

	// 2*10.00 + 1*(20.00+2.50) = 42.50
	assert.True(t, decimal.RequireFromString("42.50").Equal(view.Subtotal),
		"subtotal %s", view.Subtotal)
}

func TestUnitPrice_NegativeAdjustmentClamped(t *testing.T) {
	p := activeProduct(1, "10.00")
	v := &catalog.Variant{ID: 5, ProductID: 1, PriceAdjustment: decimal.RequireFromString("-15.00")}

	assert.True(t, decimal.Zero.Equal(catalog.UnitPrice(p, v)))
}
