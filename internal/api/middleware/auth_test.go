package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/phone-storefront/internal/auth"
	"github.com/example/phone-storefront/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing-purposes", 15*time.Minute, 7*24*time.Hour)
}

func captureClaims(dst **auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			*dst = claims
		}
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================
// RequireUser Tests
// ============================================

func TestRequireUser_ValidToken_Header(t *testing.T) {
	jwtService := newTestJWTService()
	token, _, err := jwtService.GenerateAccessToken("user-123", "test@example.com", "Test User")
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	RequireUser(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-123", captured.UserID)
	assert.Equal(t, "test@example.com", captured.Email)
	assert.Equal(t, "Test User", captured.Name)
}

func TestRequireUser_ValidToken_Cookie(t *testing.T) {
	jwtService := newTestJWTService()
	token, _, err := jwtService.GenerateAccessToken("user-456", "cookie@example.com", "Cookie")
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()

	RequireUser(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-456", captured.UserID)
}

func TestRequireUser_Rejections(t *testing.T) {
	jwtService := newTestJWTService()
	expired := auth.NewJWTService("test-secret-key-for-testing-purposes", -time.Minute, time.Hour)
	expiredToken, _, err := expired.GenerateAccessToken("user-123", "test@example.com", "Test")
	require.NoError(t, err)
	foreign := auth.NewJWTService("another-secret-key-for-other-purposes", time.Minute, time.Hour)
	foreignToken, _, err := foreign.GenerateAccessToken("user-123", "test@example.com", "Test")
	require.NoError(t, err)
	refreshToken, _, err := jwtService.GenerateRefreshToken("user-123")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage", "not-a-jwt"},
		{"expired", expiredToken},
		{"wrong signature", foreignToken},
		{"refresh token as access token", refreshToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()

			RequireUser(jwtService)(handler).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestRequireUser_ExpiredTokenIsNamed(t *testing.T) {
	expired := auth.NewJWTService("test-secret-key-for-testing-purposes", -time.Minute, time.Hour)
	token, _, err := expired.GenerateAccessToken("user-123", "test@example.com", "Test")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	RequireUser(newTestJWTService())(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"token expired"}`, rec.Body.String())
}

func TestRequireUser_CookieTakesPrecedence(t *testing.T) {
	jwtService := newTestJWTService()
	cookieToken, _, _ := jwtService.GenerateAccessToken("cookie-user", "cookie@example.com", "C")
	headerToken, _, _ := jwtService.GenerateAccessToken("header-user", "header@example.com", "H")

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: cookieToken})
	req.Header.Set("Authorization", "Bearer "+headerToken)
	rec := httptest.NewRecorder()

	RequireUser(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

	require.NotNil(t, captured)
	assert.Equal(t, "cookie-user", captured.UserID)
}

// ============================================
// OptionalUser Tests
// ============================================

func TestOptionalUser_ValidToken(t *testing.T) {
	jwtService := newTestJWTService()
	token, _, _ := jwtService.GenerateAccessToken("user-123", "test@example.com", "Test")

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	OptionalUser(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-123", captured.UserID)
}

func TestOptionalUser_NoOrInvalidToken(t *testing.T) {
	jwtService := newTestJWTService()

	for _, header := range []string{"", "Bearer invalid-token"} {
		var captured *auth.Claims
		req := httptest.NewRequest(http.MethodGet, "/public", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()

		OptionalUser(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, captured)
	}
}

// ============================================
// Context Helper Tests
// ============================================

func TestClaimsFromContext(t *testing.T) {
	claims := &auth.Claims{UserID: "user-123", Email: "test@example.com"}
	ctx := context.WithValue(context.Background(), claimsKey{}, claims)

	got, ok := ClaimsFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, claims, got)
	assert.Equal(t, "user-123", UserID(ctx))

	_, ok = ClaimsFromContext(context.Background())
	assert.False(t, ok)
	assert.Empty(t, UserID(context.Background()))
}

func TestSessionFromContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	s := &session.Session{ID: "sess-1"}
	got, ok := SessionFromContext(withSession(context.Background(), s))
	assert.True(t, ok)
	assert.Same(t, s, got)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(req))
}
