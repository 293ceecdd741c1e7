package api

import (
	"net/http"

	"github.com/example/phone-storefront/internal/api/middleware"
	"github.com/example/phone-storefront/internal/order"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
