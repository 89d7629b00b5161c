package sheets

import (
	"context"

	"ledger/internal/core"
)

// MirrorHeader is the first row of a mirror sheet.
var MirrorHeader = []string{"id", "account_id", "date", "direction", "amount", "category", "note"}

// TransactionMirror is an external copy of the transactions table kept in
// sync from published events. Both operations are idempotent: appending an
// id that is already mirrored and deleting one that is not are no-ops.
type TransactionMirror interface {
	AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	DeleteTransaction(ctx context.Context, id int64) error
}
