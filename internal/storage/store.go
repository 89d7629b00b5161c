package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// SQLiteStore owns the database handle and the repositories built on it.
type SQLiteStore struct {
	db           *sql.DB
	Accounts     *AccountRepository
	Transactions *TransactionRepository
}

// NewSQLiteStore brings the schema at path up to date and opens it.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := EnsureSchema(ctx, path); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "SQLite store ready", "path", path)

	return &SQLiteStore{
		db:           db,
		Accounts:     NewAccountRepository(db),
		Transactions: NewTransactionRepository(db),
	}, nil
}

// Ping checks that the database still answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
