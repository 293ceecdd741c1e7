package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/example/phone-storefront/internal/identity"
	"github.com/example/phone-storefront/internal/session"
	"go.uber.org/zap"
)

const SessionCookie = "sid"

// SessionResolver finds or creates the session behind a cookie value
type SessionResolver interface {
	Resolve(id string) (*session.Session, bool)
}

// AccountLookup loads the account a token was issued for
type AccountLookup interface {
	Lookup(ctx context.Context, userID string) (*identity.Account, error)
}

// Sessions attaches the caller's session to the request context, issuing a
// new session cookie when the presented one is missing or unknown.
func Sessions(reg SessionResolver, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
			s, created := reg.Resolve(id)
			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    s.ID,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure || r.TLS != nil,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s)))
		})
	}
}

// RestoreIdentity signs an anonymous session in when the request carries a
// valid access token. Collection load failures are logged; the request proceeds.
func RestoreIdentity(users AccountLookup, logger *zap.Logger) func(http.Handler) http.Handler {
	log := logger.Named("restore")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := SessionFromContext(r.Context())
			claims, authed := ClaimsFromContext(r.Context())
			if !ok || !authed {
				next.ServeHTTP(w, r)
				return
			}
			if cur, signedIn := s.Identity.Current(); signedIn && cur.ID == claims.UserID {
				// An earlier load failed; retry it with the known user
				if !s.Identity.Settled() {
					signIn(r.Context(), log, s, cur)
				}
				next.ServeHTTP(w, r)
				return
			}

			acct, err := users.Lookup(r.Context(), claims.UserID)
			switch {
			case errors.Is(err, identity.ErrUserNotFound):
				log.Warn("token for unknown user", zap.String("user_id", claims.UserID))
			case err != nil:
				log.Warn("identity restore failed", zap.String("user_id", claims.UserID), zap.Error(err))
			default:
				signIn(r.Context(), log, s, acct.User())
			}
			next.ServeHTTP(w, r)
		})
	}
}

func signIn(ctx context.Context, log *zap.Logger, s *session.Session, u identity.User) {
	if err := s.Identity.SignIn(ctx, u); err != nil {
		log.Warn("collections not loaded on restore",
			zap.String("session_id", s.ID),
			zap.String("user_id", u.ID),
			zap.Error(err))
	}
}
