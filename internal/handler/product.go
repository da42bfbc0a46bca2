package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/tactiqa/storefront/internal/domain/catalog"
)

// listProducts returns every product in the catalog.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		encodeProduct(&e, p)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// getProduct returns a single product by ID.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), pathInt64(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("base_price")
	money(e, p.BasePrice)
	e.FieldStart("tax_rate")
	e.RawStr(p.TaxRate.String())
	e.FieldStart("category_id")
	e.Int64(p.CategoryID)
	e.FieldStart("stock_level")
	e.Int(p.StockLevel)
	e.FieldStart("active")
	e.Bool(p.Active)
	e.ObjEnd()
}
