package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/dto"
	"github.com/exoticlogicbuilder/auth-service/app/entity"
)

const (
	internalAPIKeyPrefix = "msint_"
	internalAPIKeyTTL    = 100 * 365 * 24 * time.Hour
	minRegenerationTTL   = 5 * time.Minute
)

var (
	ErrInvalidInternalAPIKey    = errors.New("invalid or expired internal api key")
	ErrServiceHasActiveAPIKey   = errors.New("service already has an active api key")
	ErrServiceHasNoActiveAPIKey = errors.New("service has no active api key")
	ErrInvalidRegenerationTTL   = errors.New("invalid regeneration ttl")
)

type InternalAPIKeyRepository interface {
	Create(ctx context.Context, key *entity.InternalAPIKey) error
	FindActiveByHash(ctx context.Context, keyHash string, now time.Time) (*entity.InternalAPIKey, error)
	FindActiveByServiceName(ctx context.Context, serviceName string, now time.Time) ([]*entity.InternalAPIKey, error)
	List(ctx context.Context) ([]*entity.InternalAPIKey, error)
	Update(ctx context.Context, key *entity.InternalAPIKey) error
}

// InternalAuthService authenticates other services calling the internal
// token verification endpoints.
type InternalAuthService interface {
	ValidateInternalAPIKey(ctx context.Context, apiKey string) (*dto.InternalAccessResult, error)
	GenerateInternalAPIKey(ctx context.Context, serviceName string) (string, error)
	DeactivateInternalAPIKeys(ctx context.Context, serviceName string) (int, error)
	RegenerateInternalAPIKey(ctx context.Context, serviceName string, oldKeyTTL time.Duration) (string, error)
	ListInternalAPIKeys(ctx context.Context) ([]*entity.InternalAPIKey, error)
}

type internalAuthService struct {
	internalAPIKeyRepo InternalAPIKeyRepository
	now                func() time.Time
}

func NewInternalAuthService(internalAPIKeyRepo InternalAPIKeyRepository) InternalAuthService {
	return &internalAuthService{internalAPIKeyRepo: internalAPIKeyRepo, now: time.Now}
}

func (s *internalAuthService) ValidateInternalAPIKey(ctx context.Context, apiKey string) (*dto.InternalAccessResult, error) {
	apiKey = strings.TrimSpace(apiKey)
	if !strings.HasPrefix(apiKey, internalAPIKeyPrefix) {
		return nil, ErrInvalidInternalAPIKey
	}

	key, err := s.internalAPIKeyRepo.FindActiveByHash(ctx, hashInternalAPIKey(apiKey), s.now())
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrInvalidInternalAPIKey
	}

	return &dto.InternalAccessResult{ServiceName: key.ServiceName}, nil
}

func (s *internalAuthService) GenerateInternalAPIKey(ctx context.Context, serviceName string) (string, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return "", fmt.Errorf("%w: service name is required", ErrValidation)
	}

	activeKeys, err := s.internalAPIKeyRepo.FindActiveByServiceName(ctx, serviceName, s.now())
	if err != nil {
		return "", err
	}
	if len(activeKeys) > 0 {
		return "", ErrServiceHasActiveAPIKey
	}

	return s.createKey(ctx, serviceName)
}

func (s *internalAuthService) DeactivateInternalAPIKeys(ctx context.Context, serviceName string) (int, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return 0, fmt.Errorf("%w: service name is required", ErrValidation)
	}

	now := s.now()
	activeKeys, err := s.internalAPIKeyRepo.FindActiveByServiceName(ctx, serviceName, now)
	if err != nil {
		return 0, err
	}
	if len(activeKeys) == 0 {
		return 0, ErrServiceHasNoActiveAPIKey
	}

	for _, key := range activeKeys {
		key.IsActive = false
		key.ExpiresAt = now
		key.UpdatedAt = now
		if err = s.internalAPIKeyRepo.Update(ctx, key); err != nil {
			return 0, err
		}
	}

	return len(activeKeys), nil
}

// RegenerateInternalAPIKey issues a new key and lets the current ones keep
// working for oldKeyTTL so callers can roll over.
func (s *internalAuthService) RegenerateInternalAPIKey(ctx context.Context, serviceName string, oldKeyTTL time.Duration) (string, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return "", fmt.Errorf("%w: service name is required", ErrValidation)
	}
	if oldKeyTTL <= minRegenerationTTL {
		return "", ErrInvalidRegenerationTTL
	}

	now := s.now()
	activeKeys, err := s.internalAPIKeyRepo.FindActiveByServiceName(ctx, serviceName, now)
	if err != nil {
		return "", err
	}
	if len(activeKeys) == 0 {
		return "", ErrServiceHasNoActiveAPIKey
	}

	expireOldAt := now.Add(oldKeyTTL)
	for _, key := range activeKeys {
		if key.ExpiresAt.Before(expireOldAt) {
			continue
		}
		key.ExpiresAt = expireOldAt
		key.UpdatedAt = now
		if err = s.internalAPIKeyRepo.Update(ctx, key); err != nil {
			return "", err
		}
	}

	return s.createKey(ctx, serviceName)
}

func (s *internalAuthService) ListInternalAPIKeys(ctx context.Context) ([]*entity.InternalAPIKey, error) {
	return s.internalAPIKeyRepo.List(ctx)
}

func (s *internalAuthService) createKey(ctx context.Context, serviceName string) (string, error) {
	rawKey, keyHash, err := generateInternalAPIKey()
	if err != nil {
		return "", err
	}

	now := s.now()
	key := &entity.InternalAPIKey{
		ServiceName: serviceName,
		KeyHash:     keyHash,
		IsActive:    true,
		ExpiresAt:   now.Add(internalAPIKeyTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.internalAPIKeyRepo.Create(ctx, key); err != nil {
		return "", err
	}

	return rawKey, nil
}

func generateInternalAPIKey() (string, string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	rawKey := internalAPIKeyPrefix + hex.EncodeToString(secret)
	return rawKey, hashInternalAPIKey(rawKey), nil
}

// hashInternalAPIKey is unsalted so keys can be looked up by index. Keys are
// full-entropy machine secrets, not passwords.
func hashInternalAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
