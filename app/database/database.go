// Package database opens the configured SQL backend, applies embedded
// migrations and runs transactional units of work.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/exoticlogicbuilder/auth-service/config"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// sqlitePragmas make concurrent writers queue on a lock instead of failing
// fast, and start write transactions with a RESERVED lock so two rotations
// cannot both read before either writes.
var sqlitePragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
	"_pragma=journal_mode(WAL)",
	"_txlock=immediate",
}

func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	driverName, dsn, err := driverDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Driver, err)
	}

	return db, nil
}

func driverDSN(cfg config.DatabaseConfig) (string, string, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		return "mysql", cfg.DSN, nil
	case config.DriverSQLite:
		return "sqlite", SQLiteDSN(cfg.DSN), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// SQLiteDSN appends the service's pragmas to a SQLite path or URI unless the
// caller already set them.
func SQLiteDSN(dsn string) string {
	var missing []string
	for _, param := range sqlitePragmas {
		if strings.Contains(dsn, paramName(param)) {
			continue
		}
		missing = append(missing, param)
	}
	if len(missing) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}

// paramName returns "busy_timeout" for "_pragma=busy_timeout(5000)" and
// "_txlock" for "_txlock=immediate".
func paramName(param string) string {
	key, value, _ := strings.Cut(param, "=")
	if key != "_pragma" {
		return key
	}
	name, _, _ := strings.Cut(value, "(")
	return name
}

// WithTx begins a transaction, runs fn with it and commits on success or
// rolls back on error or panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
