package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger/internal/core"
)

const accountColumns = `id, name, archived, created_at, updated_at`

// AccountRepository persists accounts. Each method runs in its own
// transaction.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// List returns active accounts by id, or every account with active ones
// first when includeArchived is set.
func (r *AccountRepository) List(ctx context.Context, includeArchived bool) ([]core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE archived = 0 ORDER BY id`
	if includeArchived {
		query = `SELECT ` + accountColumns + ` FROM accounts ORDER BY archived ASC, id ASC`
	}

	var accounts []core.Account
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAccount(rows)
			if err != nil {
				return err
			}
			accounts = append(accounts, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) Get(ctx context.Context, id int64) (core.Account, error) {
	var account core.Account
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		var err error
		account, err = getAccount(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return account, nil
}

// Create inserts an account with the trimmed name and returns its id.
func (r *AccountRepository) Create(ctx context.Context, name string) (int64, error) {
	name, err := core.NormalizeAccountName(name)
	if err != nil {
		return 0, err
	}

	var id int64
	err = WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		taken, err := nameTaken(ctx, tx, name, 0)
		if err != nil {
			return err
		}
		if taken {
			return core.ErrDuplicateName
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO accounts(name) VALUES (?)`, name)
		if err != nil {
			return mapConstraintError(err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create account %q: %w", name, err)
	}
	return id, nil
}

// Rename changes the account name. Renaming to the current name succeeds.
func (r *AccountRepository) Rename(ctx context.Context, id int64, name string) error {
	name, err := core.NormalizeAccountName(name)
	if err != nil {
		return err
	}

	err = WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		if _, err := getAccount(ctx, tx, id); err != nil {
			return err
		}
		taken, err := nameTaken(ctx, tx, name, id)
		if err != nil {
			return err
		}
		if taken {
			return core.ErrDuplicateName
		}
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET name = ? WHERE id = ?`, name, id); err != nil {
			return mapConstraintError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rename account %d: %w", id, err)
	}
	return nil
}

func (r *AccountRepository) Archive(ctx context.Context, id int64) error {
	if id == core.DefaultAccountID {
		return fmt.Errorf("archive account %d: %w", id, core.ErrProtected)
	}

	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		account, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if account.Archived {
			return core.ErrAlreadyArchived
		}
		_, err = tx.ExecContext(ctx, `UPDATE accounts SET archived = 1 WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("archive account %d: %w", id, err)
	}
	return nil
}

func (r *AccountRepository) Restore(ctx context.Context, id int64) error {
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		account, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if !account.Archived {
			return core.ErrNotArchived
		}
		_, err = tx.ExecContext(ctx, `UPDATE accounts SET archived = 0 WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("restore account %d: %w", id, err)
	}
	return nil
}

// Delete removes an account that owns no transactions.
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	if id == core.DefaultAccountID {
		return fmt.Errorf("delete account %d: %w", id, core.ErrProtected)
	}

	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		if _, err := getAccount(ctx, tx, id); err != nil {
			return err
		}
		n, err := countTransactions(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return core.ErrHasTransactions
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return mapConstraintError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	return nil
}

func getAccount(ctx context.Context, q DBTX, id int64) (core.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	return account, err
}

// nameTaken reports whether another account (id != exceptID) has name.
func nameTaken(ctx context.Context, q DBTX, name string, exceptID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE name = ? AND id != ?`, name, exceptID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner) (core.Account, error) {
	var (
		a        core.Account
		archived int64
	)
	if err := s.Scan(&a.ID, &a.Name, &archived, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return core.Account{}, err
	}
	a.Archived = archived != 0
	return a, nil
}
