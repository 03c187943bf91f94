package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/entity"
)

type RefreshTokenRepository struct {
	db DBTX
}

func NewRefreshTokenRepository(db DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *entity.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, revoked, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.TokenHash,
		token.Revoked,
		toMillis(token.ExpiresAt),
		toMillis(token.CreatedAt),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

// FindActiveByUserID returns the user's non-revoked rows, expired ones included,
// oldest first.
func (r *RefreshTokenRepository) FindActiveByUserID(ctx context.Context, userID uint64) ([]*entity.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, revoked, revoked_at, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = ? AND revoked = 0
		ORDER BY id
	`
	return r.findMany(ctx, query, userID)
}

// FindRecentRevokedByUserID returns up to limit revoked, unexpired rows of the
// user, newest first.
func (r *RefreshTokenRepository) FindRecentRevokedByUserID(ctx context.Context, userID uint64, now time.Time, limit int) ([]*entity.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, revoked, revoked_at, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = ? AND revoked = 1 AND expires_at > ?
		ORDER BY id DESC
		LIMIT ?
	`
	return r.findMany(ctx, query, userID, toMillis(now), limit)
}

// Revoke flips a single row to revoked at the given instant. It reports false
// when the row was already revoked, which means a concurrent caller consumed
// it first.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uint64, at time.Time) (bool, error) {
	query := `UPDATE refresh_tokens SET revoked = 1, revoked_at = ? WHERE id = ? AND revoked = 0`
	result, err := r.db.ExecContext(ctx, query, toMillis(at), id)
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RefreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID uint64, at time.Time) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked = 1, revoked_at = ? WHERE user_id = ? AND revoked = 0`
	result, err := r.db.ExecContext(ctx, query, toMillis(at), userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < ?`
	result, err := r.db.ExecContext(ctx, query, toMillis(before))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *RefreshTokenRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*entity.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]*entity.RefreshToken, 0)
	for rows.Next() {
		token := &entity.RefreshToken{}
		var revokedAt sql.NullInt64
		var expiresAt, createdAt int64
		if err := rows.Scan(
			&token.ID,
			&token.UserID,
			&token.TokenHash,
			&token.Revoked,
			&revokedAt,
			&expiresAt,
			&createdAt,
		); err != nil {
			return nil, err
		}
		if revokedAt.Valid {
			token.RevokedAt = fromMillis(revokedAt.Int64)
		}
		token.ExpiresAt = fromMillis(expiresAt)
		token.CreatedAt = fromMillis(createdAt)
		tokens = append(tokens, token)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tokens, nil
}
