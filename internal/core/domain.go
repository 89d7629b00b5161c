package core

import (
	"fmt"
	"strings"
	"time"
)

// DefaultAccountID is the protected account seeded by the schema manager.
const DefaultAccountID int64 = 1

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

// DateLayout is the ISO calendar date format stored in the transactions table.
const DateLayout = "2006-01-02"

type (
	Direction string

	Account struct {
		ID        int64
		Name      string
		Archived  bool
		CreatedAt string
		UpdatedAt string
	}

	Transaction struct {
		ID          int64
		AccountID   int64
		Date        string
		Direction   Direction
		AmountCents int64
		Category    string
		Note        string
		CreatedAt   string
		UpdatedAt   string
	}

	// NewTransaction carries the caller-supplied fields of a transaction row.
	NewTransaction struct {
		AccountID   int64
		Date        string
		Direction   Direction
		AmountCents int64
		Category    string
		Note        string
	}
)

// IsDefault reports whether the account is the protected default account.
func (a Account) IsDefault() bool {
	return a.ID == DefaultAccountID
}

func (d Direction) String() string {
	return string(d)
}

// ValidateDirection accepts exactly "income" or "expense".
func ValidateDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Income, Expense:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("%w: direction must be income or expense", ErrInvalidInput)
	}
}

// NormalizeAccountName trims the name and rejects empty results.
func NormalizeAccountName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: account name required", ErrInvalidInput)
	}
	return name, nil
}

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
