package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/entity"
)

type InternalAPIKeyRepository struct {
	db DBTX
}

func NewInternalAPIKeyRepository(db DBTX) *InternalAPIKeyRepository {
	return &InternalAPIKeyRepository{db: db}
}

func (r *InternalAPIKeyRepository) Create(ctx context.Context, key *entity.InternalAPIKey) error {
	query := `
		INSERT INTO internal_api_keys (service_name, key_hash, is_active, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		key.ServiceName,
		key.KeyHash,
		key.IsActive,
		toMillis(key.ExpiresAt),
		toMillis(key.CreatedAt),
		toMillis(key.UpdatedAt),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	key.ID = uint64(id)
	return nil
}

func (r *InternalAPIKeyRepository) FindActiveByHash(ctx context.Context, keyHash string, now time.Time) (*entity.InternalAPIKey, error) {
	query := `
		SELECT id, service_name, key_hash, is_active, expires_at, created_at, updated_at
		FROM internal_api_keys
		WHERE key_hash = ? AND is_active = 1 AND expires_at > ?
		ORDER BY id DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, keyHash, toMillis(now))
	key, err := scanInternalAPIKey(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (r *InternalAPIKeyRepository) FindActiveByServiceName(ctx context.Context, serviceName string, now time.Time) ([]*entity.InternalAPIKey, error) {
	query := `
		SELECT id, service_name, key_hash, is_active, expires_at, created_at, updated_at
		FROM internal_api_keys
		WHERE service_name = ? AND is_active = 1 AND expires_at > ?
		ORDER BY id DESC
	`
	return r.findMany(ctx, query, serviceName, toMillis(now))
}

func (r *InternalAPIKeyRepository) List(ctx context.Context) ([]*entity.InternalAPIKey, error) {
	query := `
		SELECT id, service_name, key_hash, is_active, expires_at, created_at, updated_at
		FROM internal_api_keys
		ORDER BY service_name, id DESC
	`
	return r.findMany(ctx, query)
}

func (r *InternalAPIKeyRepository) Update(ctx context.Context, key *entity.InternalAPIKey) error {
	query := `
		UPDATE internal_api_keys SET
			service_name = ?,
			is_active = ?,
			expires_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		key.ServiceName,
		key.IsActive,
		toMillis(key.ExpiresAt),
		toMillis(key.UpdatedAt),
		key.ID,
	)
	return err
}

func (r *InternalAPIKeyRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*entity.InternalAPIKey, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*entity.InternalAPIKey, 0)
	for rows.Next() {
		key, err := scanInternalAPIKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

func scanInternalAPIKey(scan rowScanner) (*entity.InternalAPIKey, error) {
	key := &entity.InternalAPIKey{}
	var expiresAt, createdAt, updatedAt int64
	if err := scan(
		&key.ID,
		&key.ServiceName,
		&key.KeyHash,
		&key.IsActive,
		&expiresAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	key.ExpiresAt = fromMillis(expiresAt)
	key.CreatedAt = fromMillis(createdAt)
	key.UpdatedAt = fromMillis(updatedAt)
	return key, nil
}
