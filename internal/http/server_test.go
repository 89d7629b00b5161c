package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/export"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

type testEnv struct {
	srv   *Server
	svc   *services.LedgerService
	store *storage.SQLiteStore
}

func newTestEnv(t *testing.T, perMinute int) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "ledger.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := services.NewLedgerService(store.Accounts, store.Transactions, nil)
	srv, err := NewServer(":0", svc, store, Options{Logger: log.Discard(), RateLimitPerMinute: perMinute})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.now = func() time.Time { return fixedNow }
	t.Cleanup(srv.limiter.Stop)

	return &testEnv{srv: srv, svc: svc, store: store}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (e *testEnv) post(t *testing.T, target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) mustAccount(t *testing.T, name string) int64 {
	t.Helper()
	id, err := e.svc.CreateAccount(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateAccount(%q): %v", name, err)
	}
	return id
}

func (e *testEnv) mustTransaction(t *testing.T, accountID int64) int64 {
	t.Helper()
	id, err := e.svc.CreateTransaction(context.Background(), core.NewTransaction{
		AccountID: accountID, Date: "2026-03-10", Direction: core.Expense,
		AmountCents: 1250, Category: "food", Note: "lunch",
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return id
}

func transactionForm(accountID string) url.Values {
	return url.Values{
		"account_id": {accountID},
		"date":       {"2026-03-10"},
		"direction":  {"expense"},
		"amount":     {"12.50"},
		"category":   {"food"},
		"note":       {"lunch"},
	}
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.get(t, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<h2>Default</h2>", "Record transaction", `id="summary"`, "No transactions in this range."} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("index should carry security headers")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("index should carry a request id")
	}

	rec = env.get(t, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	rec = env.get(t, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", rec.Code)
	}
	var ready struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ready); err != nil {
		t.Fatalf("readyz body: %v", err)
	}
	if ready.Status != "ready" || ready.Checks["database"] != "ok" {
		t.Errorf("readyz = %+v", ready)
	}

	if rec := env.get(t, "/static/app.css"); rec.Code != http.StatusOK {
		t.Errorf("static asset status = %d", rec.Code)
	}
	if rec := env.get(t, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestReadyzFailsWithClosedDatabase(t *testing.T) {
	env := newTestEnv(t, 100)
	if err := env.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if rec := env.get(t, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rec.Code)
	}
}

func TestIndexAccountResolution(t *testing.T) {
	env := newTestEnv(t, 100)
	old := env.mustAccount(t, "Old")
	if err := env.svc.ArchiveAccount(context.Background(), old); err != nil {
		t.Fatalf("ArchiveAccount: %v", err)
	}

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"archived hidden", "/?account_id=" + itoa(old), "<h2>Default</h2>"},
		{"archived shown", "/?account_id=" + itoa(old) + "&show_archived=1", `<h2>Old <span class="badge">archived</span></h2>`},
		{"unknown account", "/?account_id=999", "<h2>Default</h2>"},
		{"garbage account", "/?account_id=x", "<h2>Default</h2>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get(t, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

func TestCreateAccountRoute(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.post(t, "/accounts", url.Values{
		"name":  {"  Family "},
		"start": {"2026-01-01"},
		"end":   {"2026-01-31"},
	}, false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got, want := rec.Header().Get("Location"), "/?account_id=2&start=2026-01-01&end=2026-01-31"; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}

	for _, name := range []string{"Family", "   "} {
		rec := env.post(t, "/accounts", url.Values{"name": {name}}, false)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("create %q status = %d, want 400", name, rec.Code)
		}
	}
}

func TestAccountLifecycleRoutes(t *testing.T) {
	env := newTestEnv(t, 100)
	family := env.mustAccount(t, "Family")
	busy := env.mustAccount(t, "Busy")
	env.mustTransaction(t, busy)

	show := url.Values{"show_archived": {"1"}, "start": {"2026-03-01"}, "end": {"2026-03-31"}}
	base := "&start=2026-03-01&end=2026-03-31&show_archived=1"

	// Steps run in order; each depends on the state left by the previous one.
	steps := []struct {
		name     string
		path     string
		form     url.Values
		want     int
		location string
	}{
		{"rename unknown", "/accounts/99/rename", url.Values{"name": {""}}, http.StatusNotFound, ""},
		{"rename bad id", "/accounts/abc/rename", url.Values{"name": {"x"}}, http.StatusNotFound, ""},
		{"rename empty", "/accounts/" + itoa(family) + "/rename", url.Values{"name": {" "}}, http.StatusBadRequest, ""},
		{"rename duplicate", "/accounts/" + itoa(family) + "/rename", url.Values{"name": {"Default"}}, http.StatusBadRequest, ""},
		{"rename same name", "/accounts/" + itoa(family) + "/rename", url.Values{"name": {"Family"}}, http.StatusSeeOther, "/?account_id=" + itoa(family) + "&start=2026-03-01&end=2026-03-31"},
		{"archive default", "/accounts/1/archive", nil, http.StatusBadRequest, ""},
		{"archive", "/accounts/" + itoa(family) + "/archive", show, http.StatusSeeOther, "/?account_id=1" + base},
		{"archive twice", "/accounts/" + itoa(family) + "/archive", nil, http.StatusBadRequest, ""},
		{"restore", "/accounts/" + itoa(family) + "/restore", show, http.StatusSeeOther, "/?account_id=" + itoa(family) + base},
		{"restore twice", "/accounts/" + itoa(family) + "/restore", nil, http.StatusBadRequest, ""},
		{"delete default", "/accounts/1/delete", nil, http.StatusBadRequest, ""},
		{"delete with transactions", "/accounts/" + itoa(busy) + "/delete", nil, http.StatusBadRequest, ""},
		{"delete", "/accounts/" + itoa(family) + "/delete", show, http.StatusSeeOther, "/?account_id=1" + base},
		{"delete again", "/accounts/" + itoa(family) + "/delete", nil, http.StatusNotFound, ""},
	}

	for _, st := range steps {
		form := st.form
		if form == nil {
			form = url.Values{}
		}
		rec := env.post(t, st.path, form, false)
		if rec.Code != st.want {
			t.Fatalf("%s: status = %d, want %d (body %q)", st.name, rec.Code, st.want, rec.Body.String())
		}
		if st.location != "" && rec.Header().Get("Location") != st.location {
			t.Errorf("%s: Location = %q, want %q", st.name, rec.Header().Get("Location"), st.location)
		}
	}
}

func TestCreateTransactionRoute(t *testing.T) {
	env := newTestEnv(t, 100)
	family := env.mustAccount(t, "Family")

	rec := env.post(t, "/transactions", transactionForm(itoa(family)), false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got, want := rec.Header().Get("Location"), "/?account_id="+itoa(family)+"&start=2026-03-01&end=2026-03-31"; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}

	txns, err := env.svc.ListTransactions(context.Background(), family, core.CurrentMonthRange(fixedNow))
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 1 || txns[0].AmountCents != 1250 || txns[0].Category != "food" {
		t.Errorf("stored transactions = %+v", txns)
	}
}

func TestCreateTransactionRoute_HTMX(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.post(t, "/transactions", transactionForm("1"), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<!doctype html>") {
		t.Error("htmx response should be a partial, not the full page")
	}
	for _, want := range []string{`id="summary"`, `id="transactions"`, "12.50", "lunch"} {
		if !strings.Contains(body, want) {
			t.Errorf("partial missing %q", want)
		}
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), "ledger:changed") {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}
}

func TestCreateTransactionRoute_Rejections(t *testing.T) {
	env := newTestEnv(t, 100)
	old := env.mustAccount(t, "Old")
	if err := env.svc.ArchiveAccount(context.Background(), old); err != nil {
		t.Fatalf("ArchiveAccount: %v", err)
	}

	badDirection := transactionForm("1")
	badDirection.Set("direction", "transfer")
	badAmount := transactionForm("1")
	badAmount.Set("amount", "1.234")

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"bad direction", badDirection, "direction must be income or expense"},
		{"bad amount", badAmount, "invalid input"},
		{"archived account", transactionForm(itoa(old)), "archived account is read-only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.post(t, "/transactions", tt.form, true)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body %q missing %q", rec.Body.String(), tt.want)
			}
		})
	}

	n, err := env.svc.CountTransactions(context.Background(), old)
	if err != nil {
		t.Fatalf("CountTransactions: %v", err)
	}
	if n != 0 {
		t.Errorf("archived account gained %d transactions", n)
	}
}

func TestCreateTransactionRoute_UnknownAccountUsesDefault(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.post(t, "/transactions", transactionForm("42"), false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Location"), "/?account_id=1&") {
		t.Errorf("Location = %q, want default account", rec.Header().Get("Location"))
	}
}

func TestDeleteTransactionRoute(t *testing.T) {
	env := newTestEnv(t, 100)
	ctx := context.Background()
	family := env.mustAccount(t, "Family")
	id := env.mustTransaction(t, family)

	// Wrong account: a silent no-op.
	rec := env.post(t, "/transactions/"+itoa(id)+"/delete", url.Values{"account_id": {"1"}}, false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("mismatched delete status = %d, want 303", rec.Code)
	}
	if _, err := env.svc.GetTransaction(ctx, id); err != nil {
		t.Fatalf("transaction should survive a mismatched delete: %v", err)
	}

	rec = env.post(t, "/transactions/"+itoa(id)+"/delete", url.Values{"account_id": {itoa(family)}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No transactions in this range.") {
		t.Error("partial should show the emptied table")
	}
	if _, err := env.svc.GetTransaction(ctx, id); err == nil {
		t.Error("transaction should be gone")
	}

	if rec := env.post(t, "/transactions/zero/delete", url.Values{}, false); rec.Code != http.StatusNotFound {
		t.Errorf("bad id status = %d, want 404", rec.Code)
	}
}

func TestDeleteTransactionRoute_ArchivedAccount(t *testing.T) {
	env := newTestEnv(t, 100)
	ctx := context.Background()
	old := env.mustAccount(t, "Old")
	id := env.mustTransaction(t, old)
	if err := env.svc.ArchiveAccount(ctx, old); err != nil {
		t.Fatalf("ArchiveAccount: %v", err)
	}

	rec := env.post(t, "/transactions/"+itoa(id)+"/delete", url.Values{"account_id": {itoa(old)}}, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if _, err := env.svc.GetTransaction(ctx, id); err != nil {
		t.Errorf("transaction of archived account should survive: %v", err)
	}
}

func TestExportCSVRoute(t *testing.T) {
	env := newTestEnv(t, 100)
	id := env.mustTransaction(t, 1)

	rec := env.get(t, "/export.csv?account_id=1&start=2026-03-01&end=2026-03-31")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.CSVContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd, want := rec.Header().Get("Content-Disposition"), `attachment; filename="ledger-account-1-2026-03-01-to-2026-03-31.csv"`; cd != want {
		t.Errorf("Content-Disposition = %q, want %q", cd, want)
	}

	want := "\ufeffid,account_id,date,direction,amount,category,note\r\n" +
		itoa(id) + ",1,2026-03-10,expense,12.50,food,lunch\r\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestExportXLSXRoute(t *testing.T) {
	env := newTestEnv(t, 100)
	env.mustTransaction(t, 1)

	rec := env.get(t, "/export.xlsx")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.XLSXContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasSuffix(rec.Header().Get("Content-Disposition"), `-2026-03-01-to-2026-03-31.xlsx"`) {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("xlsx body should be a zip archive")
	}
}

func TestRateLimitAppliesToPosts(t *testing.T) {
	env := newTestEnv(t, 2)

	for i := 0; i < 2; i++ {
		if rec := env.post(t, "/accounts", url.Values{"name": {"A" + itoa(int64(i))}}, false); rec.Code != http.StatusSeeOther {
			t.Fatalf("post %d status = %d", i, rec.Code)
		}
	}
	if rec := env.post(t, "/accounts", url.Values{"name": {"C"}}, false); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third post status = %d, want 429", rec.Code)
	}
	if rec := env.get(t, "/"); rec.Code != http.StatusOK {
		t.Errorf("reads are not limited, got %d", rec.Code)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
