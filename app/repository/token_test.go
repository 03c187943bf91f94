package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/exoticlogicbuilder/auth-service/app/entity"
	"github.com/exoticlogicbuilder/auth-service/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	insertRefreshTokenQuery   = `(?s)INSERT INTO refresh_tokens \(user_id, token_hash, revoked, expires_at, created_at\)\s+VALUES \(\?, \?, \?, \?, \?\)`
	findActiveRefreshQuery    = `(?s)SELECT id, user_id, token_hash, revoked, revoked_at, expires_at, created_at\s+FROM refresh_tokens\s+WHERE user_id = \? AND revoked = 0\s+ORDER BY id`
	findRevokedRefreshQuery   = `(?s)SELECT id, user_id, token_hash, revoked, revoked_at, expires_at, created_at\s+FROM refresh_tokens\s+WHERE user_id = \? AND revoked = 1 AND expires_at > \?\s+ORDER BY id DESC\s+LIMIT \?`
	revokeRefreshTokenQuery   = `(?s)UPDATE refresh_tokens SET revoked = 1, revoked_at = \? WHERE id = \? AND revoked = 0`
	revokeAllRefreshQuery     = `(?s)UPDATE refresh_tokens SET revoked = 1, revoked_at = \? WHERE user_id = \? AND revoked = 0`
	deleteExpiredRefreshQuery = `(?s)DELETE FROM refresh_tokens WHERE expires_at < \?`
	insertEmailTokenQuery     = `(?s)INSERT INTO email_tokens \(user_id, purpose, token_hash, used, expires_at, created_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?\)`
	findUnusedEmailQuery      = `(?s)SELECT id, user_id, purpose, token_hash, used, expires_at, created_at\s+FROM email_tokens\s+WHERE purpose = \? AND used = 0\s+ORDER BY id`
	markEmailTokenUsedQuery   = `(?s)UPDATE email_tokens SET used = 1 WHERE id = \? AND used = 0`
)

var refreshTokenColumns = []string{"id", "user_id", "token_hash", "revoked", "revoked_at", "expires_at", "created_at"}

var emailTokenColumns = []string{"id", "user_id", "purpose", "token_hash", "used", "expires_at", "created_at"}

func TestRefreshTokenRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	now := time.UnixMilli(1700000000000)
	token := &entity.RefreshToken{
		UserID:    2,
		TokenHash: "digest",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		CreatedAt: now,
	}

	mock.ExpectExec(insertRefreshTokenQuery).
		WithArgs(uint64(2), "digest", false, now.Add(7*24*time.Hour).UnixMilli(), now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(11, 1))

	if err := repo.Create(context.Background(), token); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if token.ID != 11 {
		t.Fatalf("expected ID 11, got %d", token.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_FindActiveByUserID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)

	mock.ExpectQuery(findActiveRefreshQuery).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).
			AddRow(int64(1), int64(2), "d1", false, nil, int64(1700000600000), int64(1700000000000)).
			AddRow(int64(3), int64(2), "d3", false, nil, int64(1700000900000), int64(1700000300000)))

	tokens, err := repo.FindActiveByUserID(context.Background(), 2)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(tokens) != 2 || tokens[0].ID != 1 || tokens[1].TokenHash != "d3" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
	if !tokens[0].ExpiresAt.Equal(time.UnixMilli(1700000600000)) {
		t.Fatalf("unexpected expiry: %v", tokens[0].ExpiresAt)
	}
	if !tokens[0].RevokedAt.IsZero() {
		t.Fatalf("expected zero revoked_at on active row, got %v", tokens[0].RevokedAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_FindRecentRevokedByUserID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	now := time.UnixMilli(1700000000000)

	mock.ExpectQuery(findRevokedRefreshQuery).
		WithArgs(uint64(2), int64(1700000000000), 20).
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).
			AddRow(int64(4), int64(2), "d4", true, int64(1699999990000), int64(1700000600000), int64(1699999900000)))

	tokens, err := repo.FindRecentRevokedByUserID(context.Background(), 2, now, 20)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(tokens) != 1 || !tokens[0].Revoked {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
	if !tokens[0].RevokedAt.Equal(time.UnixMilli(1699999990000)) {
		t.Fatalf("unexpected revoked_at: %v", tokens[0].RevokedAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_RevokeReportsLostRace(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	at := time.UnixMilli(1700000000000)

	mock.ExpectExec(revokeRefreshTokenQuery).
		WithArgs(int64(1700000000000), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(revokeRefreshTokenQuery).
		WithArgs(int64(1700000000000), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.Revoke(context.Background(), 5, at)
	if err != nil || !won {
		t.Fatalf("expected first revoke to win, got %v %v", won, err)
	}
	won, err = repo.Revoke(context.Background(), 5, at)
	if err != nil || won {
		t.Fatalf("expected second revoke to lose, got %v %v", won, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenRepository_RevokeAllAndPurge(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewRefreshTokenRepository(db)
	before := time.UnixMilli(1700000000000)

	mock.ExpectExec(revokeAllRefreshQuery).
		WithArgs(int64(1700000000000), uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(deleteExpiredRefreshQuery).
		WithArgs(int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.RevokeAllByUserID(context.Background(), 2, before)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 revoked, got %d %v", n, err)
	}
	n, err = repo.DeleteExpired(context.Background(), before)
	if err != nil || n != 4 {
		t.Fatalf("expected 4 deleted, got %d %v", n, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmailTokenRepository_CreateAndFind(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewEmailTokenRepository(db)
	now := time.UnixMilli(1700000000000)
	token := &entity.EmailToken{
		UserID:    4,
		Purpose:   entity.PurposeReset,
		TokenHash: "digest",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	mock.ExpectExec(insertEmailTokenQuery).
		WithArgs(uint64(4), "reset", "digest", false, now.Add(time.Hour).UnixMilli(), now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(findUnusedEmailQuery).
		WithArgs("reset").
		WillReturnRows(sqlmock.NewRows(emailTokenColumns).
			AddRow(int64(9), int64(4), "reset", "digest", false, now.Add(time.Hour).UnixMilli(), now.UnixMilli()))

	if err := repo.Create(context.Background(), token); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if token.ID != 9 {
		t.Fatalf("expected ID 9, got %d", token.ID)
	}

	tokens, err := repo.FindUnusedByPurpose(context.Background(), entity.PurposeReset)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Purpose != entity.PurposeReset || tokens[0].UserID != 4 {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmailTokenRepository_MarkUsed(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewEmailTokenRepository(db)

	mock.ExpectExec(markEmailTokenUsedQuery).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.MarkUsed(context.Background(), 9)
	if err != nil {
		t.Fatalf("mark used failed: %v", err)
	}
	if won {
		t.Fatalf("expected already-used token to report false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
