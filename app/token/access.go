// Package token signs and verifies the self-contained JWTs issued by the
// service: short-lived access tokens and the envelopes that wrap refresh secrets.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token has expired")
	ErrMalformed        = errors.New("token is malformed")
)

type Claims struct {
	UserID uint64   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

type AccessClaims struct {
	UserID uint64
	Roles  []string
}

type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

type Option func(*clock)

type clock struct {
	now func() time.Time
}

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(c *clock) {
		if now != nil {
			c.now = now
		}
	}
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// AccessTokenCodec issues and verifies HS256 access tokens. Verification
// never touches storage.
type AccessTokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock
}

func NewAccessTokenCodec(cfg config.JWTConfig, opts ...Option) *AccessTokenCodec {
	return &AccessTokenCodec{
		secret: []byte(cfg.AccessSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTokenTTL,
		clock:  newClock(opts),
	}
}

func (c *AccessTokenCodec) TTL() time.Duration {
	return c.ttl
}

func (c *AccessTokenCodec) Issue(claims AccessClaims) (*IssuedToken, error) {
	now := c.clock.now()
	expiresAt := now.Add(c.ttl)
	tokenID := uuid.NewString()

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: claims.UserID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   strconv.FormatUint(claims.UserID, 10),
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &IssuedToken{
		Token:     signed,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

func (c *AccessTokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject != strconv.FormatUint(claims.UserID, 10) {
		return nil, ErrMalformed
	}

	return claims, nil
}

func (c *AccessTokenCodec) keyFunc(_ *jwt.Token) (interface{}, error) {
	return c.secret, nil
}

// classify folds jwt parse errors into the three failures callers act on.
// Signature checks run before claim validation, so ErrExpired is only
// reported for tokens that were genuinely signed by us.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
