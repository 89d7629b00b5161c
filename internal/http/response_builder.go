package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Client-side events raised through HX-Trigger. web/static/app.js listens
// for the last two.
const (
	eventLedgerChanged = "ledger:changed"
	eventFormReset     = "form:reset"
	eventNotification  = "show-notification"
)

// Notification levels and how long app.js keeps them on screen.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

var notificationDuration = map[NotificationType]int{
	NotificationSuccess: 3000,
	NotificationError:   5000,
}

// HTMXResponse accumulates the status, headers, HX-Trigger events and body
// of a reply to an htmx request, then writes them in one go.
type HTMXResponse struct {
	status   int
	header   http.Header
	triggers map[string]any
	body     []byte
}

func NewHTMXResponse() *HTMXResponse {
	return &HTMXResponse{
		status:   http.StatusOK,
		header:   make(http.Header),
		triggers: make(map[string]any),
	}
}

func (b *HTMXResponse) Status(code int) *HTMXResponse {
	b.status = code
	return b
}

func (b *HTMXResponse) Header(name, value string) *HTMXResponse {
	b.header.Set(name, value)
	return b
}

// Trigger queues a client event; data becomes its detail payload.
func (b *HTMXResponse) Trigger(event string, data any) *HTMXResponse {
	b.triggers[event] = data
	return b
}

func (b *HTMXResponse) LedgerChanged(accountID int64) *HTMXResponse {
	return b.Trigger(eventLedgerChanged, map[string]int64{"account_id": accountID})
}

func (b *HTMXResponse) ResetForm() *HTMXResponse {
	return b.Trigger(eventFormReset, struct{}{})
}

func (b *HTMXResponse) Notify(kind NotificationType, message string) *HTMXResponse {
	return b.Trigger(eventNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": notificationDuration[kind],
	})
}

// HTML sets an already rendered fragment as the body.
func (b *HTMXResponse) HTML(fragment []byte) *HTMXResponse {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = fragment
	return b
}

func (b *HTMXResponse) Write(w http.ResponseWriter) {
	for name, values := range b.header {
		w.Header()[name] = values
	}
	if len(b.triggers) > 0 {
		if payload, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(payload))
		}
	}

	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message, escaped, as an alert fragment and raises
// an error notification with the same text.
func ErrorResponse(status int, message string) *HTMXResponse {
	fragment := `<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`
	return NewHTMXResponse().
		Status(status).
		Notify(NotificationError, message).
		HTML([]byte(fragment))
}
