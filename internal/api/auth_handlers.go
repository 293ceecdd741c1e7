package api

import (
	"net/http"
	"time"

	"github.com/example/phone-storefront/internal/api/middleware"
	"github.com/example/phone-storefront/internal/auth"
	"github.com/example/phone-storefront/internal/identity"
	"go.uber.org/zap"
)

const (
	refreshTokenCookie = "refresh_token"
	refreshCookiePath  = "/api/auth/refresh"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	authenticator *identity.Authenticator
	jwtService    *auth.JWTService
	secureCookies bool
	logger        *zap.Logger
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(authenticator *identity.Authenticator, jwtService *auth.JWTService, secureCookies bool, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authenticator: authenticator,
		jwtService:    jwtService,
		secureCookies: secureCookies,
		logger:        logger.Named("auth"),
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message,omitempty"`
	// SyncWarning is set when the saved cart or wishlist could not be loaded
	SyncWarning string `json:"sync_warning,omitempty"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponse(a *identity.Account) UserResponse {
	return UserResponse{ID: a.ID, Email: a.Email, Name: a.Name, CreatedAt: a.CreatedAt}
}

// Register handles user registration
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err, h.logger)
		return
	}

	acct, err := h.authenticator.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeErr(w, r, err, h.logger)
		return
	}

	if err := h.setAuthCookies(w, r, acct); err != nil {
		writeErr(w, r, err, h.logger)
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponse{
		User:        userResponse(acct),
		Message:     "Registration successful",
		SyncWarning: h.signIn(r, acct),
	})
}

// Login handles user login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err, h.logger)
		return
	}

	acct, err := h.authenticator.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErr(w, r, err, h.logger)
		return
	}

	if err := h.setAuthCookies(w, r, acct); err != nil {
		writeErr(w, r, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{
		User:        userResponse(acct),
		Message:     "Login successful",
		SyncWarning: h.signIn(r, acct),
	})
}

// signIn moves the session to acct. The returned warning is empty unless the
// user's saved collections failed to load.
func (h *AuthHandlers) signIn(r *http.Request, acct *identity.Account) string {
	s := currentSession(r)
	if err := s.Identity.SignIn(r.Context(), acct.User()); err != nil {
		h.logger.Warn("collections not loaded on sign-in",
			zap.String("session_id", s.ID),
			zap.String("user_id", acct.ID),
			zap.Error(err))
		return "saved cart or wishlist could not be loaded"
	}
	return ""
}

// Logout handles user logout. Local cart and wishlist items stay with the session.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)
	if err := s.Identity.SignOut(r.Context()); err != nil {
		h.logger.Warn("sign-out listener failed", zap.String("session_id", s.ID), zap.Error(err))
	}

	h.clearAuthCookies(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie(refreshTokenCookie)
	if err != nil {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	acct, err := h.authenticator.Lookup(r.Context(), userID)
	if err != nil {
		h.clearAuthCookies(w)
		writeErr(w, r, err, h.logger)
		return
	}

	if err := h.setAuthCookies(w, r, acct); err != nil {
		writeErr(w, r, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Token refreshed",
	})
}

// Me returns the current authenticated user's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	acct, err := h.authenticator.Lookup(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeErr(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, userResponse(acct))
}

// Helper methods

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, r *http.Request, acct *identity.Account) error {
	accessToken, accessExpiry, err := h.jwtService.GenerateAccessToken(acct.ID, acct.Email, acct.Name)
	if err != nil {
		return err
	}
	refreshToken, refreshExpiry, err := h.jwtService.GenerateRefreshToken(acct.ID)
	if err != nil {
		return err
	}

	secure := h.secureCookies || r.TLS != nil
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
