package core

// CategoryAmount is the summed expense amount of one category.
type CategoryAmount struct {
	Category    string
	AmountCents int64
}

// Summary aggregates one account over a date range.
type Summary struct {
	IncomeCents  int64
	ExpenseCents int64
	// ByCategory lists expense categories, largest first, ties by name.
	ByCategory []CategoryAmount
}

// BalanceCents is income minus expense.
func (s Summary) BalanceCents() int64 {
	return s.IncomeCents - s.ExpenseCents
}
