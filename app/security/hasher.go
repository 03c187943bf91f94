// Package security holds the one-way hashing and secret generation used for
// passwords and opaque token secrets.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 12

	// MaxSecretBytes is the bcrypt input limit; longer inputs would be truncated.
	MaxSecretBytes = 72

	// SecretBytes is the entropy of generated opaque secrets (256 bits).
	SecretBytes = 32
)

var ErrSecretTooLong = errors.New("secret exceeds 72 bytes")

// Hasher is a salted, adaptive one-way function over secrets. It keeps no
// state between calls apart from its immutable cost and timing decoy.
type Hasher struct {
	cost  int
	decoy []byte
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	decoy, err := bcrypt.GenerateFromPassword([]byte("timing-decoy"), cost)
	if err != nil {
		panic(err)
	}

	return &Hasher{cost: cost, decoy: decoy}
}

func (h *Hasher) Cost() int {
	return h.cost
}

func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) > MaxSecretBytes {
		return "", ErrSecretTooLong
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (h *Hasher) Verify(secret, digest string) bool {
	if len(secret) > MaxSecretBytes || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// DummyVerify spends the same CPU as a real Verify against a digest that can
// never match. Callers use it when there is no digest to compare against so
// response time does not reveal whether an account exists.
func (h *Hasher) DummyVerify(secret string) {
	if len(secret) > MaxSecretBytes {
		secret = secret[:MaxSecretBytes]
	}
	_ = bcrypt.CompareHashAndPassword(h.decoy, []byte(secret))
}

// Fingerprint reduces an arbitrary-length token to a fixed 64-character
// SHA-256 hex digest so it fits within the bcrypt input limit.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewSecret returns SecretBytes of crypto/rand entropy, hex encoded.
func NewSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
