package worker

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"
)

// TransactionGetter loads a committed transaction by id.
type TransactionGetter interface {
	Get(ctx context.Context, id int64) (core.Transaction, error)
}

// MirrorWorker applies transaction events to a TransactionMirror.
type MirrorWorker struct {
	transactions TransactionGetter
	mirror       sheets.TransactionMirror
}

func NewMirrorWorker(transactions TransactionGetter, mirror sheets.TransactionMirror) *MirrorWorker {
	return &MirrorWorker{
		transactions: transactions,
		mirror:       mirror,
	}
}

func logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentWorker).With(log.FieldOperation, log.OpMirror)
}

// HandleEvent is the consumer callback. A returned error requeues the event.
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	switch event.Type {
	case amqp.EventTransactionCreated:
		return w.handleCreated(ctx, event)
	case amqp.EventTransactionDeleted:
		return w.handleDeleted(ctx, event)
	default:
		logger(ctx).WarnContext(ctx, "Ignoring unknown event type", log.FieldEventType, event.Type)
		return nil
	}
}

func (w *MirrorWorker) handleCreated(ctx context.Context, event *amqp.TransactionEvent) error {
	txn, err := w.transactions.Get(ctx, event.TransactionID)
	if errors.Is(err, core.ErrTransactionNotFound) {
		// Deleted before we got to it; the delete event follows.
		logger(ctx).InfoContext(ctx, "Transaction gone before mirroring, skipping",
			log.FieldTransactionID, event.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", event.TransactionID, err)
	}

	ref, err := w.mirror.AppendTransaction(ctx, txn)
	if err != nil {
		return fmt.Errorf("mirror transaction %d: %w", txn.ID, err)
	}

	logger(ctx).InfoContext(ctx, "Transaction mirrored",
		log.FieldEventType, event.Type,
		log.FieldTransactionID, txn.ID,
		log.FieldAccountID, txn.AccountID,
		"row_ref", ref)
	return nil
}

func (w *MirrorWorker) handleDeleted(ctx context.Context, event *amqp.TransactionEvent) error {
	if err := w.mirror.DeleteTransaction(ctx, event.TransactionID); err != nil {
		return fmt.Errorf("remove mirrored transaction %d: %w", event.TransactionID, err)
	}

	logger(ctx).InfoContext(ctx, "Mirrored transaction removed",
		log.FieldEventType, event.Type,
		log.FieldTransactionID, event.TransactionID,
		log.FieldAccountID, event.AccountID)
	return nil
}
