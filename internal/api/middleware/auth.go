package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/example/phone-storefront/internal/auth"
	"github.com/example/phone-storefront/internal/session"
)

// AccessTokenCookie carries the access token for browser clients
const AccessTokenCookie = "access_token"

type (
	claimsKey  struct{}
	sessionKey struct{}
)

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// TokenFromRequest returns the access token from the cookie, falling back to
// a bearer Authorization header for API clients.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// RequireUser rejects requests without a valid access token. Account routes
// (orders, profile) sit behind it.
func RequireUser(jwt *auth.JWTService) func(http.Handler) http.Handler {
	return authenticate(jwt, true)
}

// OptionalUser attaches the token's claims when one is valid and lets every
// request through. Browsing, cart and checkout sit behind it.
func OptionalUser(jwt *auth.JWTService) func(http.Handler) http.Handler {
	return authenticate(jwt, false)
}

func authenticate(jwt *auth.JWTService, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				if required {
					respondError(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := jwt.ValidateAccessToken(token)
			switch {
			case err == nil:
				r = r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims))
			case !required:
			case errors.Is(err, auth.ErrExpiredToken):
				respondError(w, "token expired", http.StatusUnauthorized)
				return
			default:
				respondError(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the claims attached by RequireUser or OptionalUser
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

// UserID returns the authenticated user's id, or "" for anonymous requests
func UserID(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.UserID
	}
	return ""
}

// SessionFromContext returns the session attached by Sessions
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session.Session)
	return s, ok
}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}
