package controller_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/controller"
	"github.com/exoticlogicbuilder/auth-service/app/database"
	"github.com/exoticlogicbuilder/auth-service/app/middleware"
	"github.com/exoticlogicbuilder/auth-service/app/repository"
	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/app/token"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type httpEnv struct {
	e        *echo.Echo
	db       *sql.DB
	cfg      *config.Config
	auth     *service.AuthService
	internal service.InternalAuthService
}

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverSQLite},
		JWT: config.JWTConfig{
			AccessSecret:    "test-access-secret",
			RefreshSecret:   "test-refresh-secret",
			Issuer:          "auth-service-test",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Tokens: config.TokenConfig{
			VerifyTTL:          24 * time.Hour,
			ResetTTL:           time.Hour,
			RefreshReuseDetect: true,
			RefreshReuseGrace:  0, // immediate reuse revokes the family
			ExposeSecrets:      true,
			RefreshCookieName:  "refresh_token",
		},
		Password: config.PasswordConfig{
			BcryptCost: bcrypt.MinCost,
			Policy: config.PasswordPolicy{
				MinLength:        8,
				RequireUppercase: true,
				RequireNumber:    true,
			},
		},
	}
}

func newHTTPEnv(t *testing.T, mutate ...func(*config.Config)) *httpEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "auth.db"),
	})
	if err != nil {
		t.Fatalf("open database failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err = database.Migrate(ctx, db, config.DriverSQLite); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	authService := service.NewAuthService(db, cfg)
	internalAuthService := service.NewInternalAuthService(repository.NewInternalAPIKeyRepository(db))

	e := echo.New()
	controller.RegisterRoutes(e, controller.Routes{
		UserAuth:     controller.NewUserAuthController(authService, cfg),
		InternalAuth: controller.NewInternalAuthController(authService),
		Health:       controller.NewHealthController(db),
		Auth:         middleware.NewAuthMiddleware(authService),
		APIKey:       middleware.NewAPIKeyMiddleware(internalAuthService),
	})

	return &httpEnv{e: e, db: db, cfg: cfg, auth: authService, internal: internalAuthService}
}

type request struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
	cookies []*http.Cookie
}

func (env *httpEnv) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			t.Fatalf("marshal request failed: %v", err)
		}
	}

	req := httptest.NewRequest(r.method, r.path, bytes.NewReader(payload))
	if r.body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// expiredAccessToken signs a token for userID that expired an hour ago.
func expiredAccessToken(t *testing.T, cfg *config.Config, userID uint64) string {
	t.Helper()

	past := time.Now().Add(-cfg.JWT.AccessTokenTTL - time.Hour)
	codec := token.NewAccessTokenCodec(cfg.JWT, token.WithClock(func() time.Time { return past }))
	issued, err := codec.Issue(token.AccessClaims{UserID: userID, Roles: []string{"USER"}})
	if err != nil {
		t.Fatalf("issue expired token failed: %v", err)
	}
	return issued.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response failed: %v (body %s)", err, rec.Body.String())
	}
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	return nil
}

func bearer(accessToken string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + accessToken}
}
