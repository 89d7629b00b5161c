package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger emits the fixed-shape records for HTTP traffic and
// ledger mutations so every caller logs them with the same fields.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LevelForStatus is info below 400, warn for client errors and error for
// server errors.
func LevelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP)
	sl.logger.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)
	sl.logger.log(ctx, LevelForStatus(statusCode), "HTTP request completed", fields.ToSlice())
}

func (sl *StructuredLogger) LogTransactionCreated(ctx context.Context, id, accountID int64, direction string, amountCents int64, category string) {
	fields := NewFields().
		WithTransaction(id, accountID, direction, amountCents, category).
		WithOperation(OpCreate)
	sl.logger.InfoContext(ctx, "Transaction created", fields.ToSlice()...)
}

// LogAccountChange records one account lifecycle step (create, rename,
// archive, restore or delete).
func (sl *StructuredLogger) LogAccountChange(ctx context.Context, op string, accountID int64) {
	fields := NewFields().WithAccount(accountID).WithOperation(op)
	sl.logger.InfoContext(ctx, "Account updated", fields.ToSlice()...)
}

// LogError logs err at error level under component, overriding the
// logger's own component name.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)
	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
