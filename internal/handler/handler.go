// Package handler exposes the HTTP JSON surface: products, cart, order
// placement and order management. Bodies are encoded and decoded with
// go-faster/jx; authentication is API-key based.
package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/tactiqa/storefront/internal/domain/cart"
	"github.com/tactiqa/storefront/internal/domain/catalog"
	"github.com/tactiqa/storefront/internal/domain/order"
)

// maxBodyBytes caps request body reads.
const maxBodyBytes = 1 << 20

// Handler implements the API endpoints, delegating business logic to the
// injected domain services and repositories.
type Handler struct {
	products catalog.Repository
	carts    *cart.Service
	composer *order.Composer
	orders   order.Repository
	security *Security
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products catalog.Repository,
	carts *cart.Service,
	composer *order.Composer,
	orders order.Repository,
	security *Security,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		composer: composer,
		orders:   orders,
		security: security,
	}
}

// Register attaches all routes to the mux. Paths are rooted under /api by
// the caller's mux configuration.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("GET /api/cart/{userId}", h.viewCart)
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("GET /api/users/{userId}/orders", h.listUserOrders)
	mux.HandleFunc("PATCH /api/orders/{id}/status", h.updateOrderStatus)
}

// readBody reads and returns the request body, bounded by maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// pathInt64 parses a path segment as int64, returning 0 on failure.
func pathInt64(r *http.Request, name string) int64 {
	n, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// writeJSON writes the encoder's buffer with the given status code.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// money encodes a decimal amount as a JSON number with two decimal places.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.StringFixed(2))
}
