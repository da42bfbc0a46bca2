package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tactiqa/storefront/internal/domain/catalog"
)

// ErrInvalidQuantity is returned when an add request carries a non-positive
// quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Service encapsulates cart business logic: adding items against the live
// catalog and computing view subtotals.
type Service struct {
	catalog catalog.Repository
	carts   Repository
}

// NewService creates a cart Service with the required dependencies.
func NewService(catalog catalog.Repository, carts Repository) *Service {
	return &Service{catalog: catalog, carts: carts}
}

// AddItem validates the product (and variant, when given) against the
// catalog and adds or increments the corresponding cart line.
func (s *Service) AddItem(ctx context.Context, userID int64, line Line) (*Cart, error) {
	if line.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.catalog.GetByID(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, &catalog.InactiveProductError{ProductID: p.ID}
	}

	if line.VariantID != 0 {
		variants, err := s.catalog.GetVariantsByIDs(ctx, []int64{line.VariantID})
		if err != nil {
			return nil, errors.Wrap(err, "get variant")
		}
		if len(variants) == 0 || variants[0].ProductID != line.ProductID {
			return nil, catalog.ErrVariantNotFound
		}
	}

	c, err := s.carts.AddLine(ctx, userID, line)
	if err != nil {
		return nil, errors.Wrap(err, "add cart line")
	}
	return c, nil
}

// View returns the user's active cart with the computed subtotal. The
// subtotal uses current catalog prices; prices are only frozen at order
// placement time.
func (s *Service) View(ctx context.Context, userID int64) (*View, error) {
	c, err := s.carts.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	products, variants, err := FetchLineItems(ctx, s.catalog, c.Lines)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, line := range c.Lines {
		p, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("cart references missing product %d: %w", line.ProductID, catalog.ErrNotFound)
		}
		unit := catalog.UnitPrice(p, variants[line.VariantID])
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return &View{Cart: *c, Subtotal: subtotal.Round(2)}, nil
}

// FetchLineItems batch-fetches the products and variants referenced by the
// given cart lines. Variants are keyed by variant ID; the zero key is never
// present, so indexing with VariantID == 0 yields nil.
func FetchLineItems(
	ctx context.Context,
	repo catalog.Repository,
	lines []Line,
) (map[int64]catalog.Product, map[int64]*catalog.Variant, error) {
	productIDs := make([]int64, 0, len(lines))
	variantIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		productIDs = append(productIDs, l.ProductID)
		if l.VariantID != 0 {
			variantIDs = append(variantIDs, l.VariantID)
		}
	}

	fetched, err := repo.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}
	products := make(map[int64]catalog.Product, len(fetched))
	for _, p := range fetched {
		products[p.ID] = p
	}

	variants := make(map[int64]*catalog.Variant, len(variantIDs))
	if len(variantIDs) > 0 {
		fetchedVariants, err := repo.GetVariantsByIDs(ctx, variantIDs)
		if err != nil {
			return nil, nil, errors.Wrap(err, "get variants")
		}
		for i := range fetchedVariants {
			variants[fetchedVariants[i].ID] = &fetchedVariants[i]
		}
	}

	return products, variants, nil
}
