package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/middleware"
	"github.com/exoticlogicbuilder/auth-service/app/token"
	"github.com/exoticlogicbuilder/auth-service/app/types"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/labstack/echo/v4"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessSecret:    "test-access-secret",
		RefreshSecret:   "test-refresh-secret",
		Issuer:          "auth-service-test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

func newMiddleware(t *testing.T) (*middleware.AuthMiddleware, *token.AccessTokenCodec) {
	t.Helper()

	codec := token.NewAccessTokenCodec(testJWTConfig())
	return middleware.NewAuthMiddleware(codecVerifier{codec}), codec
}

type codecVerifier struct {
	codec *token.AccessTokenCodec
}

func (v codecVerifier) VerifyAccessToken(tokenString string) (*token.Claims, error) {
	return v.codec.Verify(tokenString)
}

func runRequireAuth(t *testing.T, authMiddleware *middleware.AuthMiddleware, header string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := authMiddleware.RequireAuth(next)(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	authMiddleware, _ := newMiddleware(t)

	rec := runRequireAuth(t, authMiddleware, "", okHandler)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_InvalidHeaderFormat(t *testing.T) {
	authMiddleware, _ := newMiddleware(t)

	for _, header := range []string{"Token abc", "Bearer", "Bearer a b"} {
		rec := runRequireAuth(t, authMiddleware, header, okHandler)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401 for %q, got %d", header, rec.Code)
		}
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	authMiddleware, _ := newMiddleware(t)

	rec := runRequireAuth(t, authMiddleware, "Bearer invalid-token", okHandler)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "invalid token" {
		t.Fatalf("expected invalid token message, got %q", msg)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	issuer := token.NewAccessTokenCodec(testJWTConfig(), token.WithClock(func() time.Time { return past }))
	issued, err := issuer.Issue(token.AccessClaims{UserID: 1, Roles: []string{"USER"}})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	authMiddleware, _ := newMiddleware(t)
	rec := runRequireAuth(t, authMiddleware, "Bearer "+issued.Token, okHandler)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "token has expired" {
		t.Fatalf("expected expiry message, got %q", msg)
	}
}

func TestRequireAuth_SetsContextOnValidToken(t *testing.T) {
	authMiddleware, codec := newMiddleware(t)

	issued, err := codec.Issue(token.AccessClaims{UserID: 1, Roles: []string{"USER", "ADMIN"}})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	rec := runRequireAuth(t, authMiddleware, "bearer "+issued.Token, func(c echo.Context) error {
		userID, ok := c.Get(middleware.ContextKeyUserID).(uint64)
		if !ok || userID != 1 {
			t.Fatalf("expected user_id 1, got %v", c.Get(middleware.ContextKeyUserID))
		}
		roles, ok := c.Get(middleware.ContextKeyUserRoles).([]string)
		if !ok || len(roles) != 2 {
			t.Fatalf("expected 2 roles, got %v", c.Get(middleware.ContextKeyUserRoles))
		}
		if c.Get(middleware.ContextKeyTokenID) != issued.TokenID {
			t.Fatalf("expected token_id %q, got %v", issued.TokenID, c.Get(middleware.ContextKeyTokenID))
		}
		return c.NoContent(http.StatusOK)
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	authMiddleware, _ := newMiddleware(t)
	e := echo.New()

	cases := []struct {
		roles []string
		want  int
	}{
		{[]string{"USER", "ADMIN"}, http.StatusOK},
		{[]string{"USER"}, http.StatusForbidden},
		{nil, http.StatusForbidden},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)
		if tc.roles != nil {
			ctx.Set(middleware.ContextKeyUserRoles, tc.roles)
		}

		if err := authMiddleware.RequireRole("ADMIN")(okHandler)(ctx); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != tc.want {
			t.Fatalf("roles %v: expected status %d, got %d", tc.roles, tc.want, rec.Code)
		}
	}
}

func TestBearerToken(t *testing.T) {
	if got, ok := middleware.BearerToken("Bearer abc"); !ok || got != "abc" {
		t.Fatalf("expected abc, got %q %v", got, ok)
	}
	if got, ok := middleware.BearerToken("  BEARER   abc  "); !ok || got != "abc" {
		t.Fatalf("expected abc, got %q %v", got, ok)
	}
	if _, ok := middleware.BearerToken("Basic abc"); ok {
		t.Fatalf("expected Basic scheme to be rejected")
	}
}
