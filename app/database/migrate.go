package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/exoticlogicbuilder/auth-service/config"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrations embed.FS

func newProvider(db *sql.DB, driver string) (*goose.Provider, error) {
	var dialect goose.Dialect
	switch driver {
	case config.DriverMySQL:
		dialect = goose.DialectMySQL
	case config.DriverSQLite:
		dialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	fsys, err := fs.Sub(migrations, "migrations/"+driver)
	if err != nil {
		return nil, err
	}

	return goose.NewProvider(dialect, db, fsys)
}

// Migrate applies every pending migration for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) ([]*goose.MigrationResult, error) {
	provider, err := newProvider(db, driver)
	if err != nil {
		return nil, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("apply migrations: %w", err)
	}
	return results, nil
}

func MigrationStatus(ctx context.Context, db *sql.DB, driver string) ([]*goose.MigrationStatus, error) {
	provider, err := newProvider(db, driver)
	if err != nil {
		return nil, err
	}
	return provider.Status(ctx)
}
