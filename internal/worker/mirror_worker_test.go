package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/sheets/memory"
	"ledger/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingMirror struct{ err error }

func (m failingMirror) AppendTransaction(context.Context, core.Transaction) (string, error) {
	return "", m.err
}

func (m failingMirror) DeleteTransaction(context.Context, int64) error {
	return m.err
}

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMirrorWorker_CreatedThenDeleted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mirror := memory.New()
	w := NewMirrorWorker(store.Transactions, mirror)

	id, err := store.Transactions.Create(ctx, core.NewTransaction{
		AccountID: 1, Date: "2026-03-08", Direction: core.Expense,
		AmountCents: 1500, Category: "food", Note: "market",
	})
	require.NoError(t, err)

	created := amqp.NewTransactionCreated(id, 1)
	require.NoError(t, w.HandleEvent(ctx, created))
	require.NoError(t, w.HandleEvent(ctx, created), "redelivery is harmless")

	rows := mirror.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	assert.Equal(t, "market", rows[0].Note)

	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionDeleted(id, 1)))
	assert.Empty(t, mirror.Rows())
}

func TestMirrorWorker_CreatedForMissingRowIsAcked(t *testing.T) {
	store := newTestStore(t)
	mirror := memory.New()
	w := NewMirrorWorker(store.Transactions, mirror)

	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewTransactionCreated(404, 1)))
	assert.Empty(t, mirror.Rows())
}

func TestMirrorWorker_MirrorErrorsRequeue(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	boom := errors.New("sheets unavailable")
	w := NewMirrorWorker(store.Transactions, failingMirror{err: boom})

	id, err := store.Transactions.Create(ctx, core.NewTransaction{
		AccountID: 1, Date: "2026-03-08", Direction: core.Income,
		AmountCents: 100, Category: "misc", Note: "",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, w.HandleEvent(ctx, amqp.NewTransactionCreated(id, 1)), boom)
	assert.ErrorIs(t, w.HandleEvent(ctx, amqp.NewTransactionDeleted(id, 1)), boom)
}

func TestMirrorWorker_UnknownTypeIgnored(t *testing.T) {
	w := NewMirrorWorker(nil, failingMirror{err: errors.New("must not be called")})

	err := w.HandleEvent(context.Background(), &amqp.TransactionEvent{Type: "transaction.updated", TransactionID: 1})
	assert.NoError(t, err)
}
