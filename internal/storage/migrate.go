package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// baseSchemaVersion is the migration that creates the tables. Legacy column
// upgrades run after it and before the index migration that needs them.
const baseSchemaVersion = 1

// EnsureSchema creates or upgrades the ledger schema in the database file at
// dbPath. It is idempotent and meant to run on every process start; files
// written by older releases (no account_id on transactions, no archived flag
// on accounts) are upgraded in place.
func EnsureSchema(ctx context.Context, dbPath string) error {
	if err := ensureDir(dbPath); err != nil {
		return err
	}

	// Separate connection so the migrate driver can close it when done.
	migrateDB, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	if err := migrateDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{ctx: ctx}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		if err := m.Migrate(baseSchemaVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply base schema: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		return fmt.Errorf("schema version %d is dirty, manual repair required", version)
	}

	if err := upgradeLegacyColumns(ctx, migrateDB); err != nil {
		return fmt.Errorf("upgrade legacy columns: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// upgradeLegacyColumns adds the columns that older files lack. SQLite has no
// ADD COLUMN IF NOT EXISTS, so presence is checked through pragma_table_info.
func upgradeLegacyColumns(ctx context.Context, db *sql.DB) error {
	return WithTx(ctx, db, func(ctx context.Context, tx DBTX) error {
		hasAccountID, err := columnExists(ctx, tx, "transactions", "account_id")
		if err != nil {
			return err
		}
		if !hasAccountID {
			slog.InfoContext(ctx, "Upgrading legacy transactions table", "column", "account_id")
			if _, err := tx.ExecContext(ctx,
				`ALTER TABLE transactions ADD COLUMN account_id INTEGER NOT NULL DEFAULT 1`); err != nil {
				return fmt.Errorf("add transactions.account_id: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET account_id = 1 WHERE account_id IS NULL`); err != nil {
			return fmt.Errorf("backfill transactions.account_id: %w", err)
		}

		hasArchived, err := columnExists(ctx, tx, "accounts", "archived")
		if err != nil {
			return err
		}
		if !hasArchived {
			slog.InfoContext(ctx, "Upgrading legacy accounts table", "column", "archived")
			if _, err := tx.ExecContext(ctx,
				`ALTER TABLE accounts ADD COLUMN archived INTEGER NOT NULL DEFAULT 0`); err != nil {
				return fmt.Errorf("add accounts.archived: %w", err)
			}
		}
		return nil
	})
}

func columnExists(ctx context.Context, q DBTX, table, column string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	return nil
}

// migrateLogger routes golang-migrate progress into slog.
type migrateLogger struct {
	ctx context.Context
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	slog.DebugContext(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "storage")
}

func (l migrateLogger) Verbose() bool {
	return false
}
