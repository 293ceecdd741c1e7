package api

import (
	"net/http"

	"github.com/example/phone-storefront/internal/order"
)

// ShippingRequest carries the address form and, optionally, the shipping method
type ShippingRequest struct {
	order.ShippingDetails
	ShippingMethod order.ShippingMethod `json:"shipping_method,omitempty"`
}

type PaymentRequest struct {
	Method order.PaymentMethod `json:"method"`
}

func (h *Handlers) GetCheckout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentSession(r).Checkout.State())
}

func (h *Handlers) SetShipping(w http.ResponseWriter, r *http.Request) {
	var req ShippingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	co := currentSession(r).Checkout
	if req.ShippingMethod != "" {
		if err := co.SetShippingMethod(req.ShippingMethod); err != nil {
			h.respondErr(w, r, err)
			return
		}
	}
	if err := co.SetShipping(req.ShippingDetails); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, co.State())
}

func (h *Handlers) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	co := currentSession(r).Checkout
	if err := co.SetPaymentMethod(req.Method); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, co.State())
}

// AdvanceCheckout moves to the next step; on the payment step it places the order.
// An empty cart is reported in the outcome rather than as an error.
func (h *Handlers) AdvanceCheckout(w http.ResponseWriter, r *http.Request) {
	out, err := currentSession(r).Checkout.Advance(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	status := http.StatusOK
	if out.Order != nil {
		status = http.StatusCreated
	}
	respondJSON(w, status, out)
}

func (h *Handlers) BackCheckout(w http.ResponseWriter, r *http.Request) {
	co := currentSession(r).Checkout
	if _, err := co.Back(); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, co.State())
}

func (h *Handlers) ContinueShopping(w http.ResponseWriter, r *http.Request) {
	co := currentSession(r).Checkout
	co.ContinueShopping()
	respondJSON(w, http.StatusOK, co.State())
}
