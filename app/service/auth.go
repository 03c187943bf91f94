package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/database"
	"github.com/exoticlogicbuilder/auth-service/app/dto"
	"github.com/exoticlogicbuilder/auth-service/app/entity"
	"github.com/exoticlogicbuilder/auth-service/app/notify"
	"github.com/exoticlogicbuilder/auth-service/app/repository"
	"github.com/exoticlogicbuilder/auth-service/app/security"
	"github.com/exoticlogicbuilder/auth-service/app/token"
	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/sirupsen/logrus"
)

const maxNameLength = 255

type AuthServiceOption func(*AuthService)

// WithClock replaces time.Now for every expiry decision the service and its
// codecs make.
func WithClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDispatcher delivers verification and reset links after the secret has
// been committed. Without it callers deliver the returned secrets themselves.
func WithDispatcher(dispatcher *notify.Dispatcher) AuthServiceOption {
	return func(s *AuthService) {
		s.dispatcher = dispatcher
	}
}

// AuthService owns registration, credential checks and the lifecycle of
// refresh and email tokens. It keeps no mutable state of its own; everything
// shared lives in the database.
type AuthService struct {
	db     *sql.DB
	users  *repository.UserRepository
	store  *TokenStore
	hasher *security.Hasher
	access *token.AccessTokenCodec
	cfg    *config.Config
	now    func() time.Time

	dispatcher *notify.Dispatcher
}

func NewAuthService(db *sql.DB, cfg *config.Config, opts ...AuthServiceOption) *AuthService {
	svc := &AuthService{
		db:  db,
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	svc.users = repository.NewUserRepository(db)
	svc.hasher = security.NewHasher(cfg.Password.BcryptCost)
	svc.access = token.NewAccessTokenCodec(cfg.JWT, token.WithClock(svc.now))
	envelopes := token.NewRefreshEnvelopeCodec(cfg.JWT, token.WithClock(svc.now))
	svc.store = NewTokenStore(db, svc.hasher, envelopes, cfg, svc.now)

	return svc
}

// RegisterUser creates an unverified USER account and returns the raw
// verification secret for out-of-band delivery.
func (s *AuthService) RegisterUser(ctx context.Context, name, email, password string) (*dto.RegisterResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLength)
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validatePassword(password); err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	canonicalEmail := CanonicalizeEmail(email)

	existing, err := s.users.FindByCanonicalEmail(ctx, canonicalEmail)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entity.User{
		Email:          email,
		CanonicalEmail: canonicalEmail,
		Name:           name,
		PasswordHash:   passwordHash,
		EmailVerified:  false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var verification *IssuedSecret
	err = database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		users := repository.NewUserRepository(tx)
		if err := users.Create(ctx, user); err != nil {
			if repository.IsDuplicateKey(err) {
				return ErrDuplicateEmail
			}
			return err
		}

		if err := users.AddRole(ctx, user.ID, entity.RoleUser); err != nil {
			return err
		}

		issued, err := s.store.WithTx(tx).Issue(ctx, user.ID, entity.PurposeVerify)
		if err != nil {
			return err
		}
		verification = issued
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.Roles = []string{entity.RoleUser}
	if s.dispatcher != nil {
		s.dispatcher.Verification(user, verification.Raw, verification.ExpiresAt)
	}

	return &dto.RegisterResult{
		User:              user,
		VerificationToken: verification.Raw,
	}, nil
}

// ValidateCredentials fails with ErrInvalidCredentials for both an unknown
// email and a wrong password, and spends the same bcrypt work on either.
func (s *AuthService) ValidateCredentials(ctx context.Context, email, password string) (*entity.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.users.FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.DummyVerify(password)
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *AuthService) IssueSession(ctx context.Context, userID uint64, roles []string) (*dto.SessionResult, error) {
	return s.issueSession(ctx, s.store, userID, roles)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*dto.SessionResult, error) {
	user, err := s.ValidateCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if s.cfg.Auth.RequireVerifiedEmail && !user.EmailVerified {
		return nil, ErrAccountNotConfirmed
	}

	return s.IssueSession(ctx, user.ID, user.Roles)
}

// RotateRefreshToken exchanges raw for a new session. Revoking the old row,
// inserting the new one and re-reading the user's roles happen in one
// transaction, and the revoke only succeeds for one of any concurrent callers.
func (s *AuthService) RotateRefreshToken(ctx context.Context, raw string) (*dto.SessionResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrValidation)
	}

	var session *dto.SessionResult
	err := database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		store := s.store.WithTx(tx)

		userID, err := store.Consume(ctx, raw, entity.PurposeRefresh)
		if err != nil {
			return err
		}

		user, err := repository.NewUserRepository(tx).FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrTokenNotFound
		}

		session, err = s.issueSession(ctx, store, user.ID, user.Roles)
		return err
	})
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrTokenExpired) {
		return nil, ErrInvalidRefreshToken
	}
	if errors.Is(err, ErrTokenNotFound) {
		if reuseErr := s.revokeOnReuse(ctx, raw); reuseErr != nil {
			return nil, reuseErr
		}
		return nil, ErrInvalidRefreshToken
	}
	return nil, err
}

// RevokeRefreshToken logs a session out. It reports whether an active row
// matched and never fails for an unknown token.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, raw string) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return false, nil
	}
	return s.store.Revoke(ctx, raw)
}

func (s *AuthService) RevokeAllSessions(ctx context.Context, userID uint64) (int64, error) {
	return s.store.RevokeAll(ctx, userID)
}

func (s *AuthService) VerifyEmailToken(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}

	row, err := s.store.MatchEmailToken(ctx, raw, entity.PurposeVerify)
	if err != nil {
		return err
	}

	return database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		userID, err := s.store.WithTx(tx).RedeemEmailToken(ctx, row)
		if err != nil {
			return err
		}
		return repository.NewUserRepository(tx).MarkEmailVerified(ctx, userID, s.now())
	})
}

// ResendVerification issues a fresh verification secret. Unknown and already
// verified addresses yield an empty result so the response does not reveal
// which accounts exist.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (*dto.EmailTokenResult, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.users.FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.EmailVerified {
		s.hasher.DummyVerify(email)
		return &dto.EmailTokenResult{}, nil
	}

	issued, err := s.store.Issue(ctx, user.ID, entity.PurposeVerify)
	if err != nil {
		return nil, err
	}
	if s.dispatcher != nil {
		s.dispatcher.Verification(user, issued.Raw, issued.ExpiresAt)
	}

	return &dto.EmailTokenResult{User: user, Token: issued.Raw, ExpiresAt: issued.ExpiresAt}, nil
}

// RequestPasswordReset issues a reset secret. An unknown address yields an
// empty result and a nil error.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*dto.EmailTokenResult, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.users.FindByCanonicalEmail(ctx, CanonicalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.DummyVerify(email)
		return &dto.EmailTokenResult{}, nil
	}

	issued, err := s.store.Issue(ctx, user.ID, entity.PurposeReset)
	if err != nil {
		return nil, err
	}
	if s.dispatcher != nil {
		s.dispatcher.PasswordReset(user, issued.Raw, issued.ExpiresAt)
	}

	return &dto.EmailTokenResult{User: user, Token: issued.Raw, ExpiresAt: issued.ExpiresAt}, nil
}

// ResetPassword redeems a reset secret, stores the new password and revokes
// every refresh token of the user. A password rejected by policy leaves the
// secret unconsumed.
func (s *AuthService) ResetPassword(ctx context.Context, raw, newPassword string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	row, err := s.store.MatchEmailToken(ctx, raw, entity.PurposeReset)
	if err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	var userID uint64
	err = database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		store := s.store.WithTx(tx)

		var err error
		userID, err = store.RedeemEmailToken(ctx, row)
		if err != nil {
			return err
		}

		if err := repository.NewUserRepository(tx).UpdatePassword(ctx, userID, passwordHash, s.now()); err != nil {
			return err
		}

		_, err = store.RevokeAll(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	logrus.WithField("user_id", userID).Info("Password reset, all sessions revoked")
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return fmt.Errorf("%w: old password is required", ErrValidation)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return ErrPasswordMismatch
	}

	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	return database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if err := repository.NewUserRepository(tx).UpdatePassword(ctx, user.ID, passwordHash, s.now()); err != nil {
			return err
		}
		_, err := s.store.WithTx(tx).RevokeAll(ctx, user.ID)
		return err
	})
}

func (s *AuthService) GetProfile(ctx context.Context, userID uint64) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// VerifyAccessToken checks signature and expiry only. Errors are the token
// package's ErrInvalidSignature, ErrExpired and ErrMalformed.
func (s *AuthService) VerifyAccessToken(tokenString string) (*token.Claims, error) {
	return s.access.Verify(tokenString)
}

// PurgeExpiredTokens deletes token rows that expired more than olderThan ago.
// Consumption scans unused rows, so purging keeps that scan short.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context, olderThan time.Duration) (*dto.PurgeResult, error) {
	if olderThan < 0 {
		return nil, fmt.Errorf("%w: retention must not be negative", ErrValidation)
	}

	refresh, email, err := s.store.Purge(ctx, s.now().Add(-olderThan))
	if err != nil {
		return nil, err
	}

	return &dto.PurgeResult{RefreshTokens: refresh, EmailTokens: email}, nil
}

func (s *AuthService) issueSession(ctx context.Context, store *TokenStore, userID uint64, roles []string) (*dto.SessionResult, error) {
	access, err := s.access.Issue(token.AccessClaims{UserID: userID, Roles: roles})
	if err != nil {
		return nil, err
	}

	refresh, err := store.Issue(ctx, userID, entity.PurposeRefresh)
	if err != nil {
		return nil, err
	}

	if roles == nil {
		roles = []string{}
	}

	return &dto.SessionResult{
		UserID:                userID,
		Roles:                 roles,
		AccessToken:           access.Token,
		AccessTokenID:         access.TokenID,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshToken:          refresh.Raw,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
	}, nil
}

// revokeOnReuse treats a genuine but already-revoked refresh token as a sign
// the chain leaked and revokes every active session of its owner. A row
// revoked less than RefreshReuseGrace ago is a lost rotation race, not a
// leak, and leaves the family alone.
func (s *AuthService) revokeOnReuse(ctx context.Context, raw string) error {
	if !s.cfg.Tokens.RefreshReuseDetect {
		return nil
	}

	row, err := s.store.MatchRevokedRefresh(ctx, raw)
	if err != nil || row == nil {
		return err
	}

	if !row.RevokedAt.IsZero() && s.now().Sub(row.RevokedAt) < s.cfg.Tokens.RefreshReuseGrace {
		logrus.WithFields(logrus.Fields{
			"user_id":  row.UserID,
			"token_id": row.ID,
		}).Info("Refresh token presented again within the reuse grace window")
		return nil
	}

	revoked, err := s.store.RevokeAll(ctx, row.UserID)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": row.UserID,
		"revoked": revoked,
	}).Warn("Revoked refresh token presented again, all sessions revoked")
	return nil
}

func (s *AuthService) validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	if err := s.cfg.Password.Policy.Validate(password); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if len(password) > security.MaxSecretBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, security.MaxSecretBytes)
	}
	return nil
}
