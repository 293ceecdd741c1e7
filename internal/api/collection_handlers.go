package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AddItemRequest adds a product by id; the snapshot is taken from the catalog
type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// Cart

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentSession(r).Cart.View())
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := h.composer.Product(r.Context(), req.ProductID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	cart := currentSession(r).Cart
	if err := cart.Add(p.ID, req.Quantity, p.Snapshot()); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart.View())
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	cart := currentSession(r).Cart
	if err := cart.UpdateQuantity(chi.URLParam(r, "productID"), req.Quantity); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart.View())
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cart := currentSession(r).Cart
	cart.Remove(chi.URLParam(r, "productID"))
	respondJSON(w, http.StatusOK, cart.View())
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart := currentSession(r).Cart
	cart.Clear()
	respondJSON(w, http.StatusOK, cart.View())
}

// Wishlist

func (h *Handlers) GetWishlist(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentSession(r).Wishlist.View())
}

func (h *Handlers) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	p, err := h.composer.Product(r.Context(), req.ProductID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	wishlist := currentSession(r).Wishlist
	if err := wishlist.Add(p.ID, p.Snapshot()); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wishlist.View())
}

func (h *Handlers) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	wishlist := currentSession(r).Wishlist
	wishlist.Remove(chi.URLParam(r, "productID"))
	respondJSON(w, http.StatusOK, wishlist.View())
}

func (h *Handlers) ClearWishlist(w http.ResponseWriter, r *http.Request) {
	wishlist := currentSession(r).Wishlist
	wishlist.Clear()
	respondJSON(w, http.StatusOK, wishlist.View())
}
