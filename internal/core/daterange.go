package core

import "time"

// DateRange is an inclusive pair of ISO dates.
type DateRange struct {
	Start string
	End   string
}

// CurrentMonthRange returns the first and last day of the month containing now.
func CurrentMonthRange(now time.Time) DateRange {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 1, -1)
	return DateRange{
		Start: first.Format(DateLayout),
		End:   last.Format(DateLayout),
	}
}

// Resolve fills empty bounds from the month containing now.
func (r DateRange) Resolve(now time.Time) DateRange {
	def := CurrentMonthRange(now)
	if r.Start == "" {
		r.Start = def.Start
	}
	if r.End == "" {
		r.End = def.End
	}
	return r
}
