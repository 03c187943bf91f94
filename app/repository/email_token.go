package repository

import (
	"context"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/entity"
)

type EmailTokenRepository struct {
	db DBTX
}

func NewEmailTokenRepository(db DBTX) *EmailTokenRepository {
	return &EmailTokenRepository{db: db}
}

func (r *EmailTokenRepository) Create(ctx context.Context, token *entity.EmailToken) error {
	query := `
		INSERT INTO email_tokens (user_id, purpose, token_hash, used, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.Purpose.String(),
		token.TokenHash,
		token.Used,
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

// FindUnusedByPurpose returns every unused row of the purpose across all
// users, expired ones included.
func (r *EmailTokenRepository) FindUnusedByPurpose(ctx context.Context, purpose entity.TokenPurpose) ([]*entity.EmailToken, error) {
	query := `
		SELECT id, user_id, purpose, token_hash, used, expires_at, created_at
		FROM email_tokens
		WHERE purpose = ? AND used = 0
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, purpose.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]*entity.EmailToken, 0)
	for rows.Next() {
		token := &entity.EmailToken{}
		var purposeValue string
		var expiresAt, createdAt int64
		if err := rows.Scan(
			&token.ID,
			&token.UserID,
			&purposeValue,
			&token.TokenHash,
			&token.Used,
			&expiresAt,
			&createdAt,
		); err != nil {
			return nil, err
		}
		token.Purpose = entity.TokenPurpose(purposeValue)
		token.ExpiresAt = fromMillis(expiresAt)
		token.CreatedAt = fromMillis(createdAt)
		tokens = append(tokens, token)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return tokens, nil
}

// MarkUsed reports false when the row was already used.
func (r *EmailTokenRepository) MarkUsed(ctx context.Context, id uint64) (bool, error) {
	query := `UPDATE email_tokens SET used = 1 WHERE id = ? AND used = 0`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *EmailTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM email_tokens WHERE expires_at < ?`
	result, err := r.db.ExecContext(ctx, query, toMillis(before))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
