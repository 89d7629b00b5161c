// Package export renders transaction listings as CSV or XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ledger/internal/core"

	"github.com/xuri/excelize/v2"
)

const (
	CSVContentType  = "text/csv; charset=utf-8"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// XLSXSheet is the name of the single worksheet in an XLSX export.
	XLSXSheet = "Transactions"
)

// utf8BOM lets spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options controls the column layout.
type Options struct {
	// Legacy drops the account_id column, matching exports made before
	// multi-account support.
	Legacy bool
}

// Header returns the column names for opts.
func Header(opts Options) []string {
	if opts.Legacy {
		return []string{"id", "date", "direction", "amount", "category", "note"}
	}
	return []string{"id", "account_id", "date", "direction", "amount", "category", "note"}
}

func record(t core.Transaction, opts Options) []string {
	rec := []string{strconv.FormatInt(t.ID, 10)}
	if !opts.Legacy {
		rec = append(rec, strconv.FormatInt(t.AccountID, 10))
	}
	return append(rec,
		t.Date,
		string(t.Direction),
		core.FormatCents(t.AmountCents),
		t.Category,
		t.Note,
	)
}

// WriteCSV writes a BOM, the header and one CRLF-terminated record per
// transaction in the given order.
func WriteCSV(w io.Writer, txns []core.Transaction, opts Options) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(Header(opts)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range txns {
		if err := cw.Write(record(t, opts)); err != nil {
			return fmt.Errorf("write transaction %d: %w", t.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with one sheet holding the same columns as
// the CSV export. Amounts are numeric cells formatted with two decimals.
func WriteXLSX(w io.Writer, txns []core.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", XLSXSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := Header(Options{})
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(XLSXSheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return fmt.Errorf("create amount style: %w", err)
	}

	for idx, t := range txns {
		row := idx + 2
		values := []any{
			t.ID,
			t.AccountID,
			t.Date,
			string(t.Direction),
			float64(t.AmountCents) / 100,
			t.Category,
			t.Note,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(XLSXSheet, cell, &values); err != nil {
			return fmt.Errorf("write transaction %d: %w", t.ID, err)
		}
	}

	if len(txns) > 0 {
		last := fmt.Sprintf("E%d", len(txns)+1)
		if err := f.SetCellStyle(XLSXSheet, "E2", last, amountStyle); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
	}

	for col, width := range map[string]float64{"C": 12, "D": 10, "E": 12, "F": 18, "G": 40} {
		if err := f.SetColWidth(XLSXSheet, col, col, width); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename is the download name for an export of accountID over rng.
func Filename(accountID int64, rng core.DateRange, ext string) string {
	return fmt.Sprintf("ledger-account-%d-%s-to-%s.%s", accountID, rng.Start, rng.End, ext)
}
