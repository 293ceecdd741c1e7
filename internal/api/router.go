package api

import (
	"net/http"
	"time"

	"github.com/example/phone-storefront/internal/api/middleware"
	"github.com/example/phone-storefront/internal/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterDeps are the pieces the router wires together
type RouterDeps struct {
	Handlers      *Handlers
	Auth          *AuthHandlers
	Sessions      middleware.SessionResolver
	Accounts      middleware.AccountLookup
	JWT           *auth.JWTService
	SecureCookies bool
	Logger        *zap.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	h, ah := d.Handlers, d.Auth

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Sessions(d.Sessions, d.SecureCookies))
		r.Use(middleware.OptionalUser(d.JWT))
		r.Use(middleware.RestoreIdentity(d.Accounts, d.Logger))

		// Auth
		r.Post("/auth/register", ah.Register)
		r.Post("/auth/login", ah.Login)
		r.Post("/auth/logout", ah.Logout)
		r.Post("/auth/refresh", ah.Refresh)
		r.With(middleware.RequireUser(d.JWT)).Get("/auth/me", ah.Me)

		// Catalog
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/categories", h.ListCategories)
		r.Get("/search/live", h.GetLiveSearch)
		r.Put("/search/live", h.SetLiveSearch)

		// Cart
		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/items", h.AddToCart)
		r.Patch("/cart/items/{productID}", h.UpdateCartItem)
		r.Delete("/cart/items/{productID}", h.RemoveFromCart)

		// Wishlist
		r.Get("/wishlist", h.GetWishlist)
		r.Delete("/wishlist", h.ClearWishlist)
		r.Post("/wishlist/items", h.AddToWishlist)
		r.Delete("/wishlist/items/{productID}", h.RemoveFromWishlist)

		// Checkout
		r.Get("/checkout", h.GetCheckout)
		r.Put("/checkout/shipping", h.SetShipping)
		r.Put("/checkout/payment", h.SetPayment)
		r.Post("/checkout/advance", h.AdvanceCheckout)
		r.Post("/checkout/back", h.BackCheckout)
		r.Post("/checkout/continue", h.ContinueShopping)

		// Orders
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(d.JWT))
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/{id}", h.GetOrder)
		})

		// Preferences
		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences/{key}", h.SetPreference)
	})

	return r
}
