package grpc_test

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/database"
	authgrpc "github.com/exoticlogicbuilder/auth-service/app/grpc"
	"github.com/exoticlogicbuilder/auth-service/app/repository"
	"github.com/exoticlogicbuilder/auth-service/app/service"
	"github.com/exoticlogicbuilder/auth-service/app/token"
	"github.com/exoticlogicbuilder/auth-service/app/types"
	"github.com/exoticlogicbuilder/auth-service/config"

	"golang.org/x/crypto/bcrypt"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

const testPassword = "Secret123"

type grpcEnv struct {
	client   *authgrpc.AuthServiceClient
	conn     *gogrpc.ClientConn
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

func newGRPCEnv(t *testing.T, mutate ...func(*config.Config)) *grpcEnv {
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

	srv, _ := authgrpc.NewServer(authgrpc.NewAuthServer(authService, cfg), internalAuthService)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := gogrpc.NewClient("passthrough:///bufnet",
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &grpcEnv{
		client:   authgrpc.NewAuthServiceClient(conn),
		conn:     conn,
		cfg:      cfg,
		auth:     authService,
		internal: internalAuthService,
	}
}

func (env *grpcEnv) register(t *testing.T, email string) *types.RegisterResponse {
	t.Helper()

	resp, err := env.client.Register(context.Background(), &types.RegisterRequest{
		Name:     "Ann",
		Email:    email,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return resp
}

func (env *grpcEnv) login(t *testing.T, email string) *types.SessionResponse {
	t.Helper()

	resp, err := env.client.Login(context.Background(), &types.LoginRequest{Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return resp
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

func withBearer(accessToken string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+accessToken)
}

func withAPIKey(apiKey string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-api-key", apiKey)
}
