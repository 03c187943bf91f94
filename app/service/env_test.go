package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/database"
	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	svc   *service.AuthService
	db    *sql.DB
	cfg   *config.Config
	clock *fakeClock
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
			RefreshReuseGrace:  30 * time.Second,
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

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "auth.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.Migrate(ctx, db, config.DriverSQLite)
	require.NoError(t, err)
	return db
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	db := openTestDB(t)
	clock := newFakeClock()
	svc := service.NewAuthService(db, cfg, service.WithClock(clock.Now))

	return &testEnv{svc: svc, db: db, cfg: cfg, clock: clock}
}

func (e *testEnv) register(t *testing.T, name, email string) uint64 {
	t.Helper()

	res, err := e.svc.RegisterUser(context.Background(), name, email, "Secret123")
	require.NoError(t, err)
	return res.User.ID
}

func (e *testEnv) count(t *testing.T, query string, args ...interface{}) int {
	t.Helper()

	var n int
	require.NoError(t, e.db.QueryRow(query, args...).Scan(&n))
	return n
}
