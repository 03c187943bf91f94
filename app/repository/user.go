package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/entity"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (email, canonical_email, name, password_hash, email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.CanonicalEmail,
		user.Name,
		user.PasswordHash,
		user.EmailVerified,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

func (r *UserRepository) FindByCanonicalEmail(ctx context.Context, canonicalEmail string) (*entity.User, error) {
	query := `
		SELECT id, email, canonical_email, name, password_hash, email_verified, created_at, updated_at
		FROM users WHERE canonical_email = ?
	`
	return r.findOne(ctx, query, canonicalEmail)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	query := `
		SELECT id, email, canonical_email, name, password_hash, email_verified, created_at, updated_at
		FROM users WHERE id = ?
	`
	return r.findOne(ctx, query, id)
}

func (r *UserRepository) AddRole(ctx context.Context, userID uint64, role string) error {
	query := `INSERT INTO user_roles (user_id, role) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, query, userID, role)
	return err
}

func (r *UserRepository) ListRoles(ctx context.Context, userID uint64) ([]string, error) {
	query := `SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return roles, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID uint64, passwordHash string, now time.Time) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, passwordHash, toMillis(now), userID)
	return err
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, userID uint64, now time.Time) error {
	query := `UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, toMillis(now), userID)
	return err
}

// findOne returns (nil, nil) when no row matches.
func (r *UserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.User, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	user, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	roles, err := r.ListRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return user, nil
}

func scanUser(scan rowScanner) (*entity.User, error) {
	user := &entity.User{}
	var createdAt, updatedAt int64
	if err := scan(
		&user.ID,
		&user.Email,
		&user.CanonicalEmail,
		&user.Name,
		&user.PasswordHash,
		&user.EmailVerified,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}
