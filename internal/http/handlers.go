package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ledger/internal/core"
	"ledger/internal/export"
	"ledger/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready only when the database answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.limiter.ActiveClients(),
			"rejected":       s.limiter.Hits(),
		},
	}

	if s.pinger == nil {
		checks["database"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.pinger.Ping(ctx); err != nil {
		checks["database"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
	} else {
		checks["database"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	params := ParseLedgerParams(r.URL.Query(), s.now())

	view, err := s.ledger.LoadLedger(r.Context(), params.AccountID, params.Range, params.ShowArchived)
	if err != nil {
		writeError(w, r, err, log.OpRead)
		return
	}

	s.render(w, r, "index.html", s.pageData(params, view))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if err := ParseForm(w, r); err != nil {
		writeError(w, r, err, log.OpCreate)
		return
	}
	params := ParseLedgerParams(r.Form, s.now())

	id, err := s.ledger.CreateAccount(r.Context(), r.Form.Get("name"))
	if err != nil {
		writeError(w, r, err, log.OpCreate)
		return
	}

	redirect(w, r, params.IndexURL(id))
}

// accountHandler builds the POST /accounts/{id}/... handlers. Unknown ids
// are 404 before any validation runs. Archive and delete land on the
// default account afterwards since the acted-on account is no longer listed.
func (s *Server) accountHandler(op string, toDefault bool, action func(ctx context.Context, id int64, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ParsePathID(r, "id")
		if !ok {
			notFound(w, r, op)
			return
		}
		if err := ParseForm(w, r); err != nil {
			writeError(w, r, err, op)
			return
		}
		params := ParseLedgerParams(r.Form, s.now())

		if _, err := s.ledger.GetAccount(r.Context(), id); err != nil {
			writeError(w, r, err, op)
			return
		}
		if err := action(r.Context(), id, r); err != nil {
			writeError(w, r, err, op)
			return
		}

		target := id
		if toDefault {
			target = core.DefaultAccountID
		}
		redirect(w, r, params.IndexURL(target))
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if err := ParseForm(w, r); err != nil {
		writeError(w, r, err, log.OpCreate)
		return
	}

	form, err := ParseTransactionForm(r.Form)
	if err != nil {
		writeError(w, r, err, log.OpValidate)
		return
	}

	params := ParseLedgerParams(r.Form, s.now())
	account, err := s.writableAccount(r.Context(), params.AccountID)
	if err != nil {
		writeError(w, r, err, log.OpCreate)
		return
	}

	_, err = s.ledger.CreateTransaction(r.Context(), core.NewTransaction{
		AccountID:   account.ID,
		Date:        form.Date,
		Direction:   form.Direction,
		AmountCents: form.AmountCents,
		Category:    form.Category,
		Note:        form.Note,
	})
	if err != nil {
		writeError(w, r, err, log.OpCreate)
		return
	}

	s.afterTransactionWrite(w, r, params, account.ID, "Transaction saved")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(r, "id")
	if !ok {
		writeError(w, r, core.ErrTransactionNotFound, log.OpDelete)
		return
	}
	if err := ParseForm(w, r); err != nil {
		writeError(w, r, err, log.OpDelete)
		return
	}

	params := ParseLedgerParams(r.Form, s.now())
	account, err := s.writableAccount(r.Context(), params.AccountID)
	if err != nil {
		writeError(w, r, err, log.OpDelete)
		return
	}

	deleted, err := s.ledger.DeleteTransaction(r.Context(), id, account.ID)
	if err != nil {
		writeError(w, r, err, log.OpDelete)
		return
	}
	if !deleted {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Delete matched no transaction",
			log.FieldTransactionID, id,
			log.FieldAccountID, account.ID)
	}

	s.afterTransactionWrite(w, r, params, account.ID, "Transaction deleted")
}

// writableAccount resolves the posted account with archived accounts
// included, then refuses archived ones.
func (s *Server) writableAccount(ctx context.Context, requested int64) (core.Account, error) {
	account, err := s.ledger.ResolveAccount(ctx, requested, true)
	if err != nil {
		return core.Account{}, err
	}
	if account.Archived {
		return core.Account{}, fmt.Errorf("account %d: %w", account.ID, core.ErrAccountArchived)
	}
	return account, nil
}

// afterTransactionWrite answers htmx with the refreshed fragments and
// everything else with a redirect to the ledger page.
func (s *Server) afterTransactionWrite(w http.ResponseWriter, r *http.Request, params LedgerParams, accountID int64, message string) {
	if !IsHTMX(r) {
		redirect(w, r, params.IndexURL(accountID))
		return
	}

	view, err := s.ledger.LoadLedger(r.Context(), accountID, params.Range, params.ShowArchived)
	if err != nil {
		writeError(w, r, err, log.OpRead)
		return
	}

	resp := NewHTMXResponse().
		LedgerChanged(accountID).
		ResetForm().
		Notify(NotificationSuccess, message)
	s.renderPartial(w, r, s.pageData(params, view), resp)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.handleExport(w, r, "csv", export.CSVContentType, func(buf *bytes.Buffer, txns []core.Transaction) error {
		return export.WriteCSV(buf, txns, export.Options{})
	})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.handleExport(w, r, "xlsx", export.XLSXContentType, func(buf *bytes.Buffer, txns []core.Transaction) error {
		return export.WriteXLSX(buf, txns)
	})
}

// handleExport lists the resolved account and range and streams the encoded
// file as an attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, ext, contentType string, encode func(*bytes.Buffer, []core.Transaction) error) {
	params := ParseLedgerParams(r.URL.Query(), s.now())

	account, err := s.ledger.ResolveAccount(r.Context(), params.AccountID, params.ShowArchived)
	if err != nil {
		writeError(w, r, err, log.OpExport)
		return
	}
	txns, err := s.ledger.ListTransactions(r.Context(), account.ID, params.Range)
	if err != nil {
		writeError(w, r, err, log.OpExport)
		return
	}

	var buf bytes.Buffer
	if err := encode(&buf, txns); err != nil {
		writeError(w, r, fmt.Errorf("encode %s export: %w", ext, err), log.OpExport)
		return
	}

	fields := log.NewFields().
		WithAccount(account.ID).
		WithRange(params.Range.Start, params.Range.End).
		WithOperation(log.OpExport)
	fields["format"] = ext
	fields["rows"] = len(txns)
	log.FromContext(r.Context()).WithComponent(log.ComponentExport).InfoContext(r.Context(), "Export generated", fields.ToSlice()...)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(account.ID, params.Range, ext)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
