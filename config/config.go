package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	GRPC     ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Tokens   TokenConfig
	Password PasswordConfig
	Auth     AuthConfig
	Log      LogConfig
}

type AppConfig struct {
	Env string
}

type ServerConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

// JWTConfig holds the signing material for access tokens and refresh envelopes.
// Both secrets are read once at startup and must never be logged.
type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TokenConfig struct {
	VerifyTTL            time.Duration
	ResetTTL             time.Duration
	VerifyLinkTemplate   string
	ResetLinkTemplate    string
	RefreshReuseDetect   bool
	RefreshReuseGrace    time.Duration
	ExposeSecrets        bool
	RefreshCookieName    string
	RefreshCookieSecure  bool
	PurgeRetentionPeriod time.Duration
}

type PasswordConfig struct {
	BcryptCost int
	Policy     PasswordPolicy
}

type AuthConfig struct {
	RequireVerifiedEmail bool
}

type LogConfig struct {
	Level  string
	Format string
	File   string
	MaxAge time.Duration
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	accessSecret := os.Getenv("JWT_ACCESS_SECRET")
	if accessSecret == "" {
		return nil, errors.New("JWT_ACCESS_SECRET environment variable is required")
	}

	refreshSecret := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecret == "" {
		return nil, errors.New("JWT_REFRESH_SECRET environment variable is required")
	}
	if refreshSecret == accessSecret {
		return nil, errors.New("JWT_REFRESH_SECRET must differ from JWT_ACCESS_SECRET")
	}

	database, err := loadDatabase()
	if err != nil {
		return nil, err
	}

	return &Config{
		App: AppConfig{
			Env: getEnv("APP_ENV", "production"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Database: database,
		JWT: JWTConfig{
			AccessSecret:    accessSecret,
			RefreshSecret:   refreshSecret,
			Issuer:          getEnv("JWT_ISSUER", "auth-service"),
			AccessTokenTTL:  getDurationEnv("JWT_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getDurationEnv("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		Tokens: TokenConfig{
			VerifyTTL:            getDurationEnv("VERIFY_TOKEN_TTL", 24*time.Hour),
			ResetTTL:             getDurationEnv("RESET_TOKEN_TTL", time.Hour),
			VerifyLinkTemplate:   getEnv("VERIFY_LINK_TEMPLATE", "http://localhost:3000/verify-email?token={token}"),
			ResetLinkTemplate:    getEnv("RESET_LINK_TEMPLATE", "http://localhost:3000/reset-password?token={token}"),
			RefreshReuseDetect:   getBoolEnv("REFRESH_REUSE_DETECTION", true),
			RefreshReuseGrace:    getSecondsEnv("REFRESH_REUSE_GRACE_SECONDS", 30*time.Second),
			ExposeSecrets:        getBoolEnv("EXPOSE_TOKEN_SECRETS", false),
			RefreshCookieName:    getEnv("REFRESH_COOKIE_NAME", "refresh_token"),
			RefreshCookieSecure:  getBoolEnv("REFRESH_COOKIE_SECURE", true),
			PurgeRetentionPeriod: getDurationEnv("TOKEN_PURGE_RETENTION", 30*24*time.Hour),
		},
		Password: PasswordConfig{
			BcryptCost: getIntEnv("BCRYPT_COST", 12),
			Policy:     loadPasswordPolicy(),
		},
		Auth: AuthConfig{
			RequireVerifiedEmail: getBoolEnv("REQUIRE_VERIFIED_EMAIL", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   os.Getenv("LOG_FILE"),
			MaxAge: getDurationEnv("LOG_MAX_AGE", 7*24*time.Hour),
		},
	}, nil
}

// LoadDatabase reads only the database settings. The maintenance commands use
// it so they run without the JWT secrets.
func LoadDatabase() (DatabaseConfig, error) {
	_ = godotenv.Load()
	return loadDatabase()
}

func loadDatabase() (DatabaseConfig, error) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return DatabaseConfig{}, errors.New("DATABASE_DSN environment variable is required")
	}

	driver := strings.ToLower(getEnv("DATABASE_DRIVER", DriverMySQL))
	if driver != DriverMySQL && driver != DriverSQLite {
		return DatabaseConfig{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}

	return DatabaseConfig{
		Driver:      driver,
		DSN:         dsn,
		AutoMigrate: getBoolEnv("DATABASE_AUTO_MIGRATE", false),
	}, nil
}

func (c *Config) DSN() string {
	return c.Database.DSN
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 8),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", true),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", false),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", true),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", false),
	}
}
