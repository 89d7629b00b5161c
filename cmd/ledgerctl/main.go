// Command ledgerctl is the operator CLI for the ledger database: schema
// upgrades, account listings, summaries and exports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/export"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  init       create or upgrade the schema
  accounts   list accounts
  summary    print income, expense and per-category totals
  export     write transactions as CSV (or XLSX with -xlsx) to stdout or -o
`

var (
	errUsage       = errors.New("invalid usage")
	errBinaryToTTY = errors.New("refusing to write XLSX to a terminal, use -o or redirect stdout")
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	cli.SetupLogger(os.Stderr, cfg.LogLevel, "ledgerctl")

	err := run(context.Background(), cfg, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case errors.Is(err, errUsage):
		os.Exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet("ledgerctl "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", cfg.DBPath, "path to the ledger SQLite file")

	switch cmd {
	case "init":
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		return runInit(ctx, *dbPath, stdout)

	case "accounts":
		all := fs.Bool("all", false, "include archived accounts")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		return withService(ctx, *dbPath, func(svc *services.LedgerService) error {
			return runAccounts(ctx, svc, *all, stdout)
		})

	case "summary":
		sel := bindSelection(fs)
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		return withService(ctx, *dbPath, func(svc *services.LedgerService) error {
			accountID, rng := sel.resolve(time.Now())
			return runSummary(ctx, svc, accountID, rng, stdout)
		})

	case "export":
		sel := bindSelection(fs)
		legacy := fs.Bool("legacy", false, "omit the account_id column")
		xlsx := fs.Bool("xlsx", false, "write an XLSX workbook instead of CSV")
		out := fs.String("o", "", "output file (default stdout)")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		return withService(ctx, *dbPath, func(svc *services.LedgerService) error {
			accountID, rng := sel.resolve(time.Now())
			return runExport(ctx, svc, accountID, rng, exportOptions{
				legacy: *legacy,
				xlsx:   *xlsx,
				output: *out,
			}, stdout)
		})

	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// selection is the account and range shared by summary and export.
type selection struct {
	account *int64
	start   *string
	end     *string
}

func bindSelection(fs *flag.FlagSet) selection {
	return selection{
		account: fs.Int64("account", core.DefaultAccountID, "account id"),
		start:   fs.String("start", "", "first day (YYYY-MM-DD), default start of this month"),
		end:     fs.String("end", "", "last day (YYYY-MM-DD), default end of this month"),
	}
}

func (s selection) resolve(now time.Time) (int64, core.DateRange) {
	return *s.account, core.DateRange{Start: *s.start, End: *s.end}.Resolve(now)
}

func withService(ctx context.Context, dbPath string, fn func(*services.LedgerService) error) error {
	store, err := storage.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(services.NewLedgerService(store.Accounts, store.Transactions, nil))
}

func runInit(ctx context.Context, dbPath string, stdout io.Writer) error {
	if err := storage.EnsureSchema(ctx, dbPath); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema ready: %s\n", dbPath)
	return nil
}

func runAccounts(ctx context.Context, svc *services.LedgerService, all bool, stdout io.Writer) error {
	accounts, err := svc.ListAccounts(ctx, all)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(stdout)
	table.SetHeader([]string{"ID", "Name", "Archived", "Transactions"})
	for _, a := range accounts {
		n, err := svc.CountTransactions(ctx, a.ID)
		if err != nil {
			return err
		}
		table.Append([]string{
			strconv.FormatInt(a.ID, 10),
			a.Name,
			strconv.FormatBool(a.Archived),
			strconv.FormatInt(n, 10),
		})
	}
	table.Render()
	return nil
}

func runSummary(ctx context.Context, svc *services.LedgerService, accountID int64, rng core.DateRange, stdout io.Writer) error {
	account, err := svc.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	summary, err := svc.Summarize(ctx, account.ID, rng)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s (#%d) %s to %s\n", account.Name, account.ID, rng.Start, rng.End)

	totals := tablewriter.NewWriter(stdout)
	totals.SetHeader([]string{"Income", "Expense", "Balance"})
	totals.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
	totals.Append([]string{
		core.FormatCents(summary.IncomeCents),
		core.FormatCents(summary.ExpenseCents),
		core.FormatCents(summary.BalanceCents()),
	})
	totals.Render()

	if len(summary.ByCategory) == 0 {
		return nil
	}

	byCategory := tablewriter.NewWriter(stdout)
	byCategory.SetHeader([]string{"Category", "Expense"})
	byCategory.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for _, c := range summary.ByCategory {
		byCategory.Append([]string{c.Category, core.FormatCents(c.AmountCents)})
	}
	byCategory.Render()
	return nil
}

type exportOptions struct {
	legacy bool
	xlsx   bool
	output string
}

func runExport(ctx context.Context, svc *services.LedgerService, accountID int64, rng core.DateRange, opts exportOptions, stdout io.Writer) (err error) {
	if opts.xlsx && opts.output == "" && isTerminal(stdout) {
		return errBinaryToTTY
	}
	if _, err := svc.GetAccount(ctx, accountID); err != nil {
		return err
	}
	txns, err := svc.ListTransactions(ctx, accountID, rng)
	if err != nil {
		return err
	}

	w := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.output, err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if opts.xlsx {
		err = export.WriteXLSX(w, txns)
	} else {
		err = export.WriteCSV(w, txns, export.Options{Legacy: opts.legacy})
	}
	if err != nil {
		return err
	}

	log.FromContext(ctx).WithComponent(log.ComponentExport).Debug("Export written",
		log.FieldAccountID, accountID,
		log.FieldRangeStart, rng.Start,
		log.FieldRangeEnd, rng.End,
		"rows", len(txns))
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
