package core

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("account not found")
	ErrDuplicateName   = errors.New("account name already exists")
	ErrProtected       = errors.New("default account is protected")
	ErrAlreadyArchived = errors.New("account already archived")
	ErrNotArchived     = errors.New("account is not archived")
	ErrHasTransactions = errors.New("account has transactions")

	// ErrAccountArchived is returned when a write targets an archived account.
	ErrAccountArchived = errors.New("archived account is read-only")

	ErrTransactionNotFound = errors.New("transaction not found")
)

// IsUserError reports whether err belongs to the validation/lifecycle
// taxonomy, i.e. it was caused by the caller and not by the storage layer.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrInvalidInput,
		ErrDuplicateName,
		ErrProtected,
		ErrAlreadyArchived,
		ErrNotArchived,
		ErrHasTransactions,
		ErrAccountArchived,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
