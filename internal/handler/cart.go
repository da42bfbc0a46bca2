package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/tactiqa/storefront/internal/domain/cart"
)

// addCartItem adds or increments a line in the caller's active cart.
// The cart owner is always the authenticated caller.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	identity := h.authenticate(w, r)
	if identity == nil {
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "read body: "+err.Error())
		return
	}

	var line cart.Line
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			line.ProductID, err = d.Int64()
		case "variant_id":
			line.VariantID, err = d.Int64()
		case "quantity":
			line.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "invalid json: "+err.Error())
		return
	}

	c, err := h.carts.AddItem(r.Context(), identity.UserID, line)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCart(&e, *c)
	writeJSON(w, http.StatusOK, &e)
}

// viewCart returns a user's active cart with its computed subtotal.
// Customers may only view their own cart; admins may view any.
func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	identity := h.authenticate(w, r)
	if identity == nil {
		return
	}

	userID := pathInt64(r, "userId")
	if !identity.CanAccessUser(userID) {
		writeError(w, http.StatusForbidden, kindForbidden, "cannot access another user's cart")
		return
	}

	view, err := h.carts.View(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("cart")
	encodeCart(&e, view.Cart)
	e.FieldStart("subtotal")
	money(&e, view.Subtotal)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeCart(e *jx.Encoder, c cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("user_id")
	e.Int64(c.UserID)
	e.FieldStart("active")
	e.Bool(c.Active)
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range c.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(l.ProductID)
		if l.VariantID != 0 {
			e.FieldStart("variant_id")
			e.Int64(l.VariantID)
		}
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
