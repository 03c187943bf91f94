package token

import (
	"fmt"
	"strconv"
	"time"

	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RefreshEnvelopeCodec wraps refresh secrets in a signed envelope naming the
// owning user, so lookups can be scoped to that user's rows. The envelope is
// not proof of validity on its own; the stored hash decides that.
type RefreshEnvelopeCodec struct {
	secret []byte
	issuer string
	clock  clock
}

func NewRefreshEnvelopeCodec(cfg config.JWTConfig, opts ...Option) *RefreshEnvelopeCodec {
	return &RefreshEnvelopeCodec{
		secret: []byte(cfg.RefreshSecret),
		issuer: cfg.Issuer,
		clock:  newClock(opts),
	}
}

func (c *RefreshEnvelopeCodec) Seal(userID uint64, expiresAt time.Time) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   strconv.FormatUint(userID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(c.clock.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign refresh envelope: %w", err)
	}
	return signed, nil
}

// Open returns the subject of a refresh envelope.
func (c *RefreshEnvelopeCodec) Open(raw string) (uint64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.now),
	)
	if err != nil {
		return 0, classify(err)
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, ErrMalformed
	}
	return userID, nil
}
