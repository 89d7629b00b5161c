package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger/internal/core"
)

const transactionColumns = `id, account_id, date, direction, amount_cents, category, note, created_at, updated_at`

// TransactionRepository persists transactions. Rows are immutable once
// written; they are only ever inserted or deleted.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts t and returns the new id. A non-positive account id
// targets the default account. Dates are stored as given.
func (r *TransactionRepository) Create(ctx context.Context, t core.NewTransaction) (int64, error) {
	if t.AccountID <= 0 {
		t.AccountID = core.DefaultAccountID
	}

	var id int64
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions(account_id, date, direction, amount_cents, category, note)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			t.AccountID, t.Date, string(t.Direction), t.AmountCents, t.Category, t.Note)
		if err != nil {
			return mapConstraintError(err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

func (r *TransactionRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	var t core.Transaction
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		row := tx.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
		var err error
		t, err = scanTransaction(row)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrTransactionNotFound
		}
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// List returns the account's transactions dated within [start, end],
// newest first.
func (r *TransactionRepository) List(ctx context.Context, accountID int64, start, end string) ([]core.Transaction, error) {
	var out []core.Transaction
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+transactionColumns+`
			 FROM transactions
			 WHERE account_id = ? AND date BETWEEN ? AND ?
			 ORDER BY date DESC, id DESC`,
			accountID, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// Delete removes the transaction only when it belongs to accountID.
// A mismatched or unknown pair reports false without error.
func (r *TransactionRepository) Delete(ctx context.Context, id, accountID int64) (bool, error) {
	var deleted bool
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE id = ? AND account_id = ?`, id, accountID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return deleted, nil
}

// Summarize totals income and expense for the account over [start, end]
// and breaks expenses down by category.
func (r *TransactionRepository) Summarize(ctx context.Context, accountID int64, start, end string) (core.Summary, error) {
	var s core.Summary
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		err := tx.QueryRowContext(ctx,
			`SELECT
			   COALESCE(SUM(CASE WHEN direction = 'income' THEN amount_cents END), 0),
			   COALESCE(SUM(CASE WHEN direction = 'expense' THEN amount_cents END), 0)
			 FROM transactions
			 WHERE account_id = ? AND date BETWEEN ? AND ?`,
			accountID, start, end).Scan(&s.IncomeCents, &s.ExpenseCents)
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT category, COALESCE(SUM(amount_cents), 0) AS total
			 FROM transactions
			 WHERE account_id = ? AND direction = 'expense' AND date BETWEEN ? AND ?
			 GROUP BY category
			 ORDER BY total DESC, category ASC`,
			accountID, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c core.CategoryAmount
			if err := rows.Scan(&c.Category, &c.AmountCents); err != nil {
				return err
			}
			s.ByCategory = append(s.ByCategory, c)
		}
		return rows.Err()
	})
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize transactions: %w", err)
	}
	return s, nil
}

// CountByAccount returns how many transactions the account owns.
func (r *TransactionRepository) CountByAccount(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		var err error
		n, err = countTransactions(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func countTransactions(ctx context.Context, q DBTX, accountID int64) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		direction string
	)
	err := s.Scan(&t.ID, &t.AccountID, &t.Date, &direction, &t.AmountCents,
		&t.Category, &t.Note, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Direction = core.Direction(direction)
	return t, nil
}
