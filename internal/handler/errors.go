package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tactiqa/storefront/internal/domain/cart"
	"github.com/tactiqa/storefront/internal/domain/catalog"
	"github.com/tactiqa/storefront/internal/domain/coupon"
	"github.com/tactiqa/storefront/internal/domain/order"
)

// Machine-readable error kinds carried in every error body, one per domain
// error so clients can render precise messages.
const (
	kindEmptyCart         = "empty_cart"
	kindInsufficientStock = "insufficient_stock"
	kindCouponNotFound    = "coupon_not_found"
	kindCouponExpired     = "coupon_expired"
	kindCouponMinimum     = "coupon_minimum_not_met"
	kindCouponExhausted   = "coupon_exhausted"
	kindCouponAlreadyUsed = "coupon_already_used"
	kindInvalidQuantity   = "invalid_quantity"
	kindNotFound          = "not_found"
	kindUnauthorized      = "unauthorized"
	kindForbidden         = "forbidden"
	kindIllegalTransition = "illegal_transition"
	kindBadRequest        = "bad_request"
	kindInternal          = "internal"
)

// writeError writes the standard error body:
// {"code": <http status>, "kind": "<kind>", "message": "<human readable>"}.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("kind")
	e.Str(kind)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// writeDomainError maps a domain error onto its HTTP status and error kind.
// Unrecognized errors are logged and reported as a generic internal error;
// they are never retried here.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, kindEmptyCart, err.Error())
	case errors.Is(err, cart.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, kindInvalidQuantity, err.Error())
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrVariantNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, err.Error())
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusBadRequest, kindCouponNotFound, err.Error())
	case errors.Is(err, coupon.ErrExpired):
		writeError(w, http.StatusBadRequest, kindCouponExpired, err.Error())
	case errors.Is(err, coupon.ErrMinimumNotMet):
		writeError(w, http.StatusBadRequest, kindCouponMinimum, err.Error())
	case errors.Is(err, coupon.ErrExhausted):
		writeError(w, http.StatusConflict, kindCouponExhausted, err.Error())
	case errors.Is(err, coupon.ErrAlreadyUsed):
		writeError(w, http.StatusConflict, kindCouponAlreadyUsed, err.Error())
	case errors.Is(err, order.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, kindBadRequest, err.Error())
	case errors.Is(err, order.ErrStatusConflict):
		writeError(w, http.StatusConflict, kindIllegalTransition, err.Error())
	default:
		var stockErr *order.InsufficientStockError
		if errors.As(err, &stockErr) {
			writeError(w, http.StatusConflict, kindInsufficientStock, stockErr.Error())
			return
		}
		var inactiveErr *catalog.InactiveProductError
		if errors.As(err, &inactiveErr) {
			writeError(w, http.StatusNotFound, kindNotFound, inactiveErr.Error())
			return
		}

		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, kindInternal, "internal error")
	}
}
