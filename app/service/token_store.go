package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/entity"
	"github.com/exoticlogicbuilder/auth-service/app/repository"
	"github.com/exoticlogicbuilder/auth-service/app/security"
	"github.com/exoticlogicbuilder/auth-service/app/token"
	"github.com/exoticlogicbuilder/auth-service/config"
)

// reuseScanLimit bounds how many revoked rows are bcrypt-checked when a
// presented refresh token matches no active row.
const reuseScanLimit = 20

// IssuedSecret is a raw opaque secret as handed to its owner. It is never
// persisted.
type IssuedSecret struct {
	Raw       string
	ExpiresAt time.Time
}

// TokenStore issues and consumes single-use secrets. Only bcrypt digests are
// persisted, so consumption scans the candidate rows and verifies each one.
//
// Refresh secrets are signed envelopes naming their owner, which scopes the
// scan to that user's active rows. Email secrets are 256 random bits and are
// matched against every unused row of the purpose.
type TokenStore struct {
	refreshRepo *repository.RefreshTokenRepository
	emailRepo   *repository.EmailTokenRepository
	hasher      *security.Hasher
	envelopes   *token.RefreshEnvelopeCodec
	cfg         *config.Config
	now         func() time.Time
}

func NewTokenStore(
	db repository.DBTX,
	hasher *security.Hasher,
	envelopes *token.RefreshEnvelopeCodec,
	cfg *config.Config,
	now func() time.Time,
) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{
		refreshRepo: repository.NewRefreshTokenRepository(db),
		emailRepo:   repository.NewEmailTokenRepository(db),
		hasher:      hasher,
		envelopes:   envelopes,
		cfg:         cfg,
		now:         now,
	}
}

// WithTx returns a copy of the store whose reads and writes go through tx.
func (s *TokenStore) WithTx(tx repository.DBTX) *TokenStore {
	clone := *s
	clone.refreshRepo = repository.NewRefreshTokenRepository(tx)
	clone.emailRepo = repository.NewEmailTokenRepository(tx)
	return &clone
}

func (s *TokenStore) TTL(purpose entity.TokenPurpose) (time.Duration, error) {
	switch purpose {
	case entity.PurposeRefresh:
		return s.cfg.JWT.RefreshTokenTTL, nil
	case entity.PurposeVerify:
		return s.cfg.Tokens.VerifyTTL, nil
	case entity.PurposeReset:
		return s.cfg.Tokens.ResetTTL, nil
	}
	return 0, fmt.Errorf("%w: unknown token purpose %q", ErrValidation, purpose)
}

func (s *TokenStore) Issue(ctx context.Context, ownerID uint64, purpose entity.TokenPurpose) (*IssuedSecret, error) {
	ttl, err := s.TTL(purpose)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(ttl)

	if purpose == entity.PurposeRefresh {
		raw, err := s.envelopes.Seal(ownerID, expiresAt)
		if err != nil {
			return nil, err
		}
		digest, err := s.hasher.Hash(security.Fingerprint(raw))
		if err != nil {
			return nil, err
		}

		row := &entity.RefreshToken{
			UserID:    ownerID,
			TokenHash: digest,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}
		if err := s.refreshRepo.Create(ctx, row); err != nil {
			return nil, err
		}
		return &IssuedSecret{Raw: raw, ExpiresAt: expiresAt}, nil
	}

	raw, err := security.NewSecret()
	if err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(raw)
	if err != nil {
		return nil, err
	}

	row := &entity.EmailToken{
		UserID:    ownerID,
		Purpose:   purpose,
		TokenHash: digest,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.emailRepo.Create(ctx, row); err != nil {
		return nil, err
	}
	return &IssuedSecret{Raw: raw, ExpiresAt: expiresAt}, nil
}

// Consume redeems raw exactly once and returns its owner. A matching but
// expired secret fails with ErrTokenExpired and stays unconsumed. Losing a
// race against a concurrent consumer fails with ErrTokenNotFound.
func (s *TokenStore) Consume(ctx context.Context, raw string, purpose entity.TokenPurpose) (uint64, error) {
	switch purpose {
	case entity.PurposeRefresh:
		return s.consumeRefresh(ctx, raw)
	case entity.PurposeVerify, entity.PurposeReset:
		return s.consumeEmail(ctx, raw, purpose)
	}
	return 0, fmt.Errorf("%w: unknown token purpose %q", ErrValidation, purpose)
}

// Revoke marks the active refresh row matching raw as revoked regardless of
// its expiry. It reports false when nothing matched.
func (s *TokenStore) Revoke(ctx context.Context, raw string) (bool, error) {
	row, err := s.matchActiveRefresh(ctx, raw)
	if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrTokenExpired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return s.refreshRepo.Revoke(ctx, row.ID, s.now())
}

func (s *TokenStore) RevokeAll(ctx context.Context, ownerID uint64) (int64, error) {
	return s.refreshRepo.RevokeAllByUserID(ctx, ownerID, s.now())
}

// MatchRevokedRefresh returns the row of raw when it is a genuine envelope
// that has already been rotated or revoked, and nil otherwise.
func (s *TokenStore) MatchRevokedRefresh(ctx context.Context, raw string) (*entity.RefreshToken, error) {
	ownerID, err := s.envelopes.Open(raw)
	if err != nil {
		return nil, nil
	}

	rows, err := s.refreshRepo.FindRecentRevokedByUserID(ctx, ownerID, s.now(), reuseScanLimit)
	if err != nil {
		return nil, err
	}

	fingerprint := security.Fingerprint(raw)
	for _, row := range rows {
		if s.hasher.Verify(fingerprint, row.TokenHash) {
			return row, nil
		}
	}
	return nil, nil
}

// Purge deletes rows of every purpose that expired before the cutoff.
func (s *TokenStore) Purge(ctx context.Context, before time.Time) (refresh int64, email int64, err error) {
	refresh, err = s.refreshRepo.DeleteExpired(ctx, before)
	if err != nil {
		return 0, 0, err
	}
	email, err = s.emailRepo.DeleteExpired(ctx, before)
	if err != nil {
		return refresh, 0, err
	}
	return refresh, email, nil
}

func (s *TokenStore) consumeRefresh(ctx context.Context, raw string) (uint64, error) {
	row, err := s.matchActiveRefresh(ctx, raw)
	if err != nil {
		return 0, err
	}

	if !row.ExpiresAt.After(s.now()) {
		return 0, ErrTokenExpired
	}

	won, err := s.refreshRepo.Revoke(ctx, row.ID, s.now())
	if err != nil {
		return 0, err
	}
	if !won {
		return 0, ErrTokenNotFound
	}
	return row.UserID, nil
}

func (s *TokenStore) matchActiveRefresh(ctx context.Context, raw string) (*entity.RefreshToken, error) {
	ownerID, err := s.envelopes.Open(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenNotFound
	}

	rows, err := s.refreshRepo.FindActiveByUserID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	fingerprint := security.Fingerprint(raw)
	for _, row := range rows {
		if s.hasher.Verify(fingerprint, row.TokenHash) {
			return row, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (s *TokenStore) consumeEmail(ctx context.Context, raw string, purpose entity.TokenPurpose) (uint64, error) {
	row, err := s.MatchEmailToken(ctx, raw, purpose)
	if err != nil {
		return 0, err
	}
	return s.RedeemEmailToken(ctx, row)
}

// MatchEmailToken finds the unused, unexpired row of purpose whose digest
// matches raw without consuming it. The bcrypt scan happens here, so callers
// run it before opening a write transaction.
func (s *TokenStore) MatchEmailToken(ctx context.Context, raw string, purpose entity.TokenPurpose) (*entity.EmailToken, error) {
	if !purpose.IsEmail() {
		return nil, fmt.Errorf("%w: unknown email token purpose %q", ErrValidation, purpose)
	}

	rows, err := s.emailRepo.FindUnusedByPurpose(ctx, purpose)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if !s.hasher.Verify(raw, row.TokenHash) {
			continue
		}
		if !row.ExpiresAt.After(s.now()) {
			return nil, ErrTokenExpired
		}
		return row, nil
	}
	return nil, ErrTokenNotFound
}

// RedeemEmailToken marks a matched row used. Only one caller can redeem a
// row; the others get ErrTokenNotFound.
func (s *TokenStore) RedeemEmailToken(ctx context.Context, row *entity.EmailToken) (uint64, error) {
	won, err := s.emailRepo.MarkUsed(ctx, row.ID)
	if err != nil {
		return 0, err
	}
	if !won {
		return 0, ErrTokenNotFound
	}
	return row.UserID, nil
}
