package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/phone-storefront/internal/api/middleware"
	"github.com/example/phone-storefront/internal/auth"
	"github.com/example/phone-storefront/internal/catalog"
	"github.com/example/phone-storefront/internal/checkout"
	"github.com/example/phone-storefront/internal/collection"
	"github.com/example/phone-storefront/internal/identity"
	"github.com/example/phone-storefront/internal/order"
	"github.com/example/phone-storefront/internal/preferences"
	"github.com/example/phone-storefront/internal/remote"
	"github.com/example/phone-storefront/internal/session"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("invalid request body")

// Handlers serves the storefront API for the session attached to each request
type Handlers struct {
	composer *catalog.Composer
	orders   *order.Service
	prefs    *preferences.Store
	logger   *zap.Logger
}

func NewHandlers(composer *catalog.Composer, orders *order.Service, prefs *preferences.Store, logger *zap.Logger) *Handlers {
	return &Handlers{
		composer: composer,
		orders:   orders,
		prefs:    prefs,
		logger:   logger.Named("api"),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, collection.ErrInvalidQuantity),
		errors.Is(err, collection.ErrInvalidProduct),
		errors.Is(err, checkout.ErrIncompleteShippingDetails),
		errors.Is(err, checkout.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrInvalidShippingMethod),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, catalog.ErrInvalidSort),
		errors.Is(err, catalog.ErrInvalidPriceRange),
		errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, preferences.ErrUnknownKey),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrAuthenticationRequired),
		errors.Is(err, order.ErrUserRequired),
		errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, collection.ErrItemNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, preferences.ErrNotSet),
		errors.Is(err, identity.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, identity.ErrEmailTaken),
		errors.Is(err, checkout.ErrCheckoutComplete):
		return http.StatusConflict
	case errors.Is(err, remote.ErrReadFailure),
		errors.Is(err, remote.ErrWriteFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes err with its mapped status. Server-side failures are logged
// and their details withheld.
func (h *Handlers) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	writeErr(w, r, err, h.logger)
}

func writeErr(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}

	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, status, map[string]any{"error": checkout.ErrIncompleteShippingDetails.Error(), "fields": verr.Fields})
	case status == http.StatusInternalServerError:
		respondJSONError(w, "internal error", status)
	case status == http.StatusBadGateway:
		respondJSONError(w, "upstream service unavailable", status)
	default:
		respondJSONError(w, err.Error(), status)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest
	}
	return nil
}

// currentSession returns the request's session. The Sessions middleware guarantees one.
func currentSession(r *http.Request) *session.Session {
	s, _ := middleware.SessionFromContext(r.Context())
	return s
}
