package api

import (
	"net/http"

	"github.com/example/phone-storefront/internal/catalog"
	"github.com/go-chi/chi/v5"
)

// SearchResponse pairs a result with the canonical query string of its filter
type SearchResponse struct {
	Query  string         `json:"query"`
	Filter catalog.Filter `json:"filter"`
	catalog.Result
}

func newSearchResponse(f catalog.Filter, res catalog.Result) SearchResponse {
	return SearchResponse{Query: f.Values().Encode(), Filter: f, Result: res}
}

// ListProducts runs the filter in the URL query once
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	res := h.composer.Query(r.Context(), f)
	status := http.StatusOK
	if res.State == catalog.StateError {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, newSearchResponse(f, res))
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.composer.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.composer.Categories(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

// SetLiveSearch replaces the session's live filter. The query runs after the debounce delay.
func (h *Handlers) SetLiveSearch(w http.ResponseWriter, r *http.Request) {
	f, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	s := currentSession(r)
	s.Live.Set(f)
	respondJSON(w, http.StatusAccepted, newSearchResponse(s.Live.Current()))
}

func (h *Handlers) GetLiveSearch(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newSearchResponse(currentSession(r).Live.Current()))
}
