package api

import (
	"net/http"

	"github.com/example/phone-storefront/internal/preferences"
	"github.com/go-chi/chi/v5"
)

type PreferenceRequest struct {
	Value string `json:"value"`
}

func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.prefs.All(r.Context(), currentSession(r).ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (h *Handlers) SetPreference(w http.ResponseWriter, r *http.Request) {
	var req PreferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	key := preferences.Key(chi.URLParam(r, "key"))
	if err := h.prefs.Set(r.Context(), currentSession(r).ID, key, req.Value); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{string(key): req.Value})
}
