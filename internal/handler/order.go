package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/tactiqa/storefront/internal/domain/order"
)

// placeOrder invokes the Order Composer for the caller's active cart and
// returns the persisted order with 201 on success.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	identity := h.authenticate(w, r)
	if identity == nil {
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "read body: "+err.Error())
		return
	}

	req := order.PlaceOrderRequest{UserID: identity.UserID}
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "shipping_address_id":
			req.ShippingAddressID, err = d.Int64()
		case "billing_address_id":
			req.BillingAddressID, err = d.Int64()
		case "coupon_code":
			req.CouponCode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "invalid json: "+err.Error())
		return
	}

	o, err := h.composer.PlaceOrder(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, *o)
	writeJSON(w, http.StatusCreated, &e)
}

// getOrder returns a single order. Customers may only fetch their own
// orders; admins may fetch any.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	identity := h.authenticate(w, r)
	if identity == nil {
		return
	}

	o, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !identity.CanAccessUser(o.UserID) {
		writeError(w, http.StatusForbidden, kindForbidden, "cannot access another user's order")
		return
	}

	var e jx.Encoder
	encodeOrder(&e, *o)
	writeJSON(w, http.StatusOK, &e)
}

// listUserOrders lists a user's orders, newest first. Customers may only
// list their own; admins may list anyone's.
func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	identity := h.authenticate(w, r)
	if identity == nil {
		return
	}

	userID := pathInt64(r, "userId")
	if !identity.CanAccessUser(userID) {
		writeError(w, http.StatusForbidden, kindForbidden, "cannot access another user's orders")
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, o := range orders {
		encodeOrder(&e, o)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// updateOrderStatus drives the status state machine. Admin only; the target
// status must be reachable from the order's current status.
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	identity := h.authenticate(w, r)
	if identity == nil {
		return
	}
	if !identity.IsAdmin() {
		writeError(w, http.StatusForbidden, kindForbidden, "admin role required")
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "read body: "+err.Error())
		return
	}

	var target string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		if key == "status" {
			target, err = d.Str()
			return err
		}
		return d.Skip()
	}); err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "invalid json: "+err.Error())
		return
	}

	next, err := order.ParseStatus(target)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	id := r.PathValue("id")
	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !o.Status.CanTransitionTo(next) {
		writeError(w, http.StatusConflict, kindIllegalTransition,
			"cannot transition from "+string(o.Status)+" to "+string(next))
		return
	}

	// CAS on the observed status: a concurrent transition loses here.
	if err := h.orders.UpdateStatus(r.Context(), id, o.Status, next); err != nil {
		writeDomainError(w, r, err)
		return
	}

	o.Status = next
	var e jx.Encoder
	encodeOrder(&e, *o)
	writeJSON(w, http.StatusOK, &e)
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("user_id")
	e.Int64(o.UserID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("subtotal")
	money(e, o.Subtotal)
	e.FieldStart("discount")
	money(e, o.Discount)
	e.FieldStart("tax")
	money(e, o.Tax)
	e.FieldStart("total")
	money(e, o.Total)
	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}
	e.FieldStart("shipping_address_id")
	e.Int64(o.ShippingAddressID)
	e.FieldStart("billing_address_id")
	e.Int64(o.BillingAddressID)
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(l.ProductID)
		if l.VariantID != 0 {
			e.FieldStart("variant_id")
			e.Int64(l.VariantID)
		}
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unit_price")
		money(e, l.UnitPrice)
		e.FieldStart("tax_rate")
		e.RawStr(l.TaxRate.String())
		e.FieldStart("subtotal")
		money(e, l.Subtotal)
		e.FieldStart("tax")
		money(e, l.Tax)
		e.FieldStart("discount")
		money(e, l.Discount)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
