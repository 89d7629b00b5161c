package services

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"

	"golang.org/x/sync/errgroup"
)

// AccountStore is the account persistence used by LedgerService.
type AccountStore interface {
	List(ctx context.Context, includeArchived bool) ([]core.Account, error)
	Get(ctx context.Context, id int64) (core.Account, error)
	Create(ctx context.Context, name string) (int64, error)
	Rename(ctx context.Context, id int64, name string) error
	Archive(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// TransactionStore is the transaction persistence used by LedgerService.
type TransactionStore interface {
	Create(ctx context.Context, t core.NewTransaction) (int64, error)
	Get(ctx context.Context, id int64) (core.Transaction, error)
	List(ctx context.Context, accountID int64, start, end string) ([]core.Transaction, error)
	Delete(ctx context.Context, id, accountID int64) (bool, error)
	Summarize(ctx context.Context, accountID int64, start, end string) (core.Summary, error)
	CountByAccount(ctx context.Context, accountID int64) (int64, error)
}

// EventPublisher receives transaction events after a successful write.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// LedgerView is everything the ledger page shows for one account and range.
type LedgerView struct {
	Account      core.Account
	Accounts     []core.Account
	Range        core.DateRange
	Transactions []core.Transaction
	Summary      core.Summary
}

// LedgerService applies the account rules that sit above storage: account
// resolution, the archived read-only rule and event publication.
type LedgerService struct {
	accounts     AccountStore
	transactions TransactionStore
	events       EventPublisher
}

// NewLedgerService wires the stores. events may be nil, in which case no
// events are published.
func NewLedgerService(accounts AccountStore, transactions TransactionStore, events EventPublisher) *LedgerService {
	return &LedgerService{
		accounts:     accounts,
		transactions: transactions,
		events:       events,
	}
}

// ResolveAccount maps a requested account id onto one that may be shown.
// Unknown ids, non-positive ids and archived accounts (unless showArchived)
// fall back to the default account.
func (s *LedgerService) ResolveAccount(ctx context.Context, requested int64, showArchived bool) (core.Account, error) {
	if requested >= 1 {
		account, err := s.accounts.Get(ctx, requested)
		switch {
		case err == nil:
			if !account.Archived || showArchived {
				return account, nil
			}
		case !errors.Is(err, core.ErrNotFound):
			return core.Account{}, err
		}
	}

	account, err := s.accounts.Get(ctx, core.DefaultAccountID)
	if err != nil {
		return core.Account{}, fmt.Errorf("load default account: %w", err)
	}
	return account, nil
}

// LoadLedger resolves the account and loads the account list, the listing
// and the summary for rng concurrently.
func (s *LedgerService) LoadLedger(ctx context.Context, requested int64, rng core.DateRange, showArchived bool) (LedgerView, error) {
	account, err := s.ResolveAccount(ctx, requested, showArchived)
	if err != nil {
		return LedgerView{}, err
	}

	view := LedgerView{Account: account, Range: rng}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := s.accounts.List(gctx, showArchived)
		view.Accounts = accounts
		return err
	})
	g.Go(func() error {
		txns, err := s.transactions.List(gctx, account.ID, rng.Start, rng.End)
		view.Transactions = txns
		return err
	})
	g.Go(func() error {
		summary, err := s.transactions.Summarize(gctx, account.ID, rng.Start, rng.End)
		view.Summary = summary
		return err
	})
	if err := g.Wait(); err != nil {
		return LedgerView{}, fmt.Errorf("load ledger for account %d: %w", account.ID, err)
	}

	return view, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context, includeArchived bool) ([]core.Account, error) {
	return s.accounts.List(ctx, includeArchived)
}

func (s *LedgerService) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return s.accounts.Get(ctx, id)
}

func (s *LedgerService) CreateAccount(ctx context.Context, name string) (int64, error) {
	id, err := s.accounts.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	logFor(ctx).LogAccountChange(ctx, log.OpCreate, id)
	return id, nil
}

func (s *LedgerService) RenameAccount(ctx context.Context, id int64, name string) error {
	if err := s.accounts.Rename(ctx, id, name); err != nil {
		return err
	}
	logFor(ctx).LogAccountChange(ctx, log.OpRename, id)
	return nil
}

func (s *LedgerService) ArchiveAccount(ctx context.Context, id int64) error {
	if err := s.accounts.Archive(ctx, id); err != nil {
		return err
	}
	logFor(ctx).LogAccountChange(ctx, log.OpArchive, id)
	return nil
}

func (s *LedgerService) RestoreAccount(ctx context.Context, id int64) error {
	if err := s.accounts.Restore(ctx, id); err != nil {
		return err
	}
	logFor(ctx).LogAccountChange(ctx, log.OpRestore, id)
	return nil
}

func (s *LedgerService) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}
	logFor(ctx).LogAccountChange(ctx, log.OpDelete, id)
	return nil
}

// CreateTransaction stores t on its account and publishes a created event.
// Archived accounts are read-only.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.NewTransaction) (int64, error) {
	if t.AccountID <= 0 {
		t.AccountID = core.DefaultAccountID
	}
	if err := s.requireWritable(ctx, t.AccountID); err != nil {
		return 0, err
	}

	id, err := s.transactions.Create(ctx, t)
	if err != nil {
		return 0, err
	}

	logFor(ctx).LogTransactionCreated(ctx, id, t.AccountID, t.Direction.String(), t.AmountCents, t.Category)
	s.publish(ctx, amqp.NewTransactionCreated(id, t.AccountID))
	return id, nil
}

// DeleteTransaction removes the transaction when it belongs to accountID.
// The boolean is false when nothing matched; no event is published then.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id, accountID int64) (bool, error) {
	if err := s.requireWritable(ctx, accountID); err != nil {
		return false, err
	}

	deleted, err := s.transactions.Delete(ctx, id, accountID)
	if err != nil {
		return false, err
	}
	if deleted {
		log.FromContext(ctx).InfoContext(ctx, "Transaction deleted",
			log.FieldTransactionID, id,
			log.FieldAccountID, accountID,
			log.FieldOperation, log.OpDelete)
		s.publish(ctx, amqp.NewTransactionDeleted(id, accountID))
	}
	return deleted, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.transactions.Get(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, accountID int64, rng core.DateRange) ([]core.Transaction, error) {
	return s.transactions.List(ctx, accountID, rng.Start, rng.End)
}

func (s *LedgerService) Summarize(ctx context.Context, accountID int64, rng core.DateRange) (core.Summary, error) {
	return s.transactions.Summarize(ctx, accountID, rng.Start, rng.End)
}

func (s *LedgerService) CountTransactions(ctx context.Context, accountID int64) (int64, error) {
	return s.transactions.CountByAccount(ctx, accountID)
}

func (s *LedgerService) requireWritable(ctx context.Context, accountID int64) error {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Archived {
		return fmt.Errorf("account %d: %w", accountID, core.ErrAccountArchived)
	}
	return nil
}

// publish never fails the caller; the write is already committed.
func (s *LedgerService) publish(ctx context.Context, event *amqp.TransactionEvent) {
	logger := log.FromContext(ctx)
	if s.events == nil {
		logger.DebugContext(ctx, "Event publishing disabled, skipping", log.FieldEventType, event.Type)
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldEventType, event.Type,
			log.FieldTransactionID, event.TransactionID,
			log.FieldAccountID, event.AccountID,
			log.FieldError, err.Error())
	}
}

func logFor(ctx context.Context) *log.StructuredLogger {
	return log.NewStructuredLogger(log.FromContext(ctx))
}
