// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// the ledger context carried by every page and form (account, date range,
// archived toggle) and the transaction form itself.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
)

// maxFormBytes bounds urlencoded form bodies.
const maxFormBytes = 64 << 10

// LedgerParams is the view context shared by the index page, the export
// routes and every mutation form.
type LedgerParams struct {
	AccountID    int64
	Range        core.DateRange
	ShowArchived bool
}

// ParseLedgerParams extracts account_id, start, end and show_archived.
// A missing or malformed account id becomes 0, which resolves to the default
// account. Missing or invalid dates fall back to the month containing now.
func ParseLedgerParams(values url.Values, now time.Time) LedgerParams {
	def := core.CurrentMonthRange(now)
	return LedgerParams{
		AccountID: parseAccountID(values.Get("account_id")),
		Range: core.DateRange{
			Start: parseDateParam(values.Get("start"), def.Start),
			End:   parseDateParam(values.Get("end"), def.End),
		},
		ShowArchived: parseShowArchived(values.Get("show_archived")),
	}
}

func parseAccountID(v string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id < 1 {
		return 0
	}
	return id
}

func parseDateParam(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" || !core.ValidDate(v) {
		return fallback
	}
	return v
}

// parseShowArchived treats only the literal "1" as true.
func parseShowArchived(v string) bool {
	return v == "1"
}

// IndexURL returns the index location for accountID within the same range
// and archived toggle.
func (p LedgerParams) IndexURL(accountID int64) string {
	return "/?" + p.query(accountID)
}

// ExportURL returns the download location for the given extension.
func (p LedgerParams) ExportURL(accountID int64, ext string) string {
	return "/export." + ext + "?" + p.query(accountID)
}

// query keeps the parameter order account_id, start, end, show_archived.
func (p LedgerParams) query(accountID int64) string {
	q := fmt.Sprintf("account_id=%d&start=%s&end=%s",
		accountID, url.QueryEscape(p.Range.Start), url.QueryEscape(p.Range.End))
	if p.ShowArchived {
		q += "&show_archived=1"
	}
	return q
}

// TransactionForm holds the validated fields of POST /transactions.
type TransactionForm struct {
	Date        string
	Direction   core.Direction
	AmountCents int64
	Category    string
	Note        string
}

// ParseTransactionForm validates direction, amount and date. Category and
// note are trimmed and may be empty. Every failure wraps core.ErrInvalidInput.
func ParseTransactionForm(form url.Values) (TransactionForm, error) {
	direction, err := core.ValidateDirection(form.Get("direction"))
	if err != nil {
		return TransactionForm{}, err
	}

	cents, err := core.ParseAmountToCents(form.Get("amount"))
	if err != nil {
		return TransactionForm{}, err
	}

	date := strings.TrimSpace(form.Get("date"))
	if !core.ValidDate(date) {
		return TransactionForm{}, fmt.Errorf("%w: date must be YYYY-MM-DD", core.ErrInvalidInput)
	}

	return TransactionForm{
		Date:        date,
		Direction:   direction,
		AmountCents: cents,
		Category:    sanitizeInput(form.Get("category")),
		Note:        sanitizeInput(form.Get("note")),
	}, nil
}

// ParsePathID reads a positive integer path value. ok is false for anything
// else, which the handlers answer with 404.
func ParsePathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// ParseForm parses a size-limited form body merged with the query string.
func ParseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: malformed form", core.ErrInvalidInput)
	}
	return nil
}

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput trims whitespace and drops control characters other than
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
