package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponse_Triggers(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().
		LedgerChanged(3).
		ResetForm().
		Notify(NotificationSuccess, "Transaction saved").
		HTML([]byte("<p>ok</p>")).
		Write(rec)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "<p>ok</p>" {
		t.Errorf("body = %q", rec.Body.String())
	}

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{"ledger:changed", "form:reset", "show-notification"} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("HX-Trigger missing %q", name)
		}
	}
	if got := string(triggers["ledger:changed"]); got != `{"account_id":3}` {
		t.Errorf("ledger:changed payload = %s", got)
	}

	var note struct {
		Type     string `json:"type"`
		Message  string `json:"message"`
		Duration int    `json:"duration"`
	}
	if err := json.Unmarshal(triggers["show-notification"], &note); err != nil {
		t.Fatalf("show-notification payload: %v", err)
	}
	if note.Type != "success" || note.Message != "Transaction saved" || note.Duration != 3000 {
		t.Errorf("show-notification payload = %+v", note)
	}
}

func TestHTMXResponse_NoTriggers(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().Status(http.StatusNoContent).Header("X-Test", "1").Write(rec)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger should be absent without triggers")
	}
	if rec.Header().Get("X-Test") != "1" {
		t.Error("custom header not written")
	}
}

func TestErrorResponse_EscapesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponse(http.StatusBadRequest, `<script>alert("x")</script>`).Write(rec)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("message not escaped: %s", body)
	}
	if !strings.Contains(body, `class="error"`) {
		t.Errorf("missing error wrapper: %s", body)
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), "show-notification") {
		t.Error("error response should trigger a notification")
	}
}
