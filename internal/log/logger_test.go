package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithComponentTagsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: slog.NewTextHandler(&buf, nil), Component: ComponentApp})

	logger.WithComponent(ComponentLedger).Info("hello", FieldAccountID, 2)

	out := buf.String()
	if n := strings.Count(out, "component="); n != 1 {
		t.Fatalf("component attribute appears %d times in %q", n, out)
	}
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "account_id=2") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("FromContext without logger should fall back to the default logger")
	}

	logger := New(DefaultConfig()).WithComponent(ComponentHTTP)
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext should return the stored logger")
	}
}

func TestLogFields(t *testing.T) {
	fields := NewFields().
		WithTransaction(7, 2, "expense", 1250, "food").
		WithError(errors.New("boom")).
		WithError(nil)

	if fields[FieldTransactionID] != int64(7) || fields[FieldCategory] != "food" {
		t.Errorf("transaction fields missing: %v", fields)
	}
	if fields[FieldError] != "boom" {
		t.Errorf("error field = %v, want boom", fields[FieldError])
	}
	if got := len(fields.ToSlice()); got != 2*len(fields) {
		t.Errorf("ToSlice() len = %d, want %d", got, 2*len(fields))
	}
}

func TestLevelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{200, slog.LevelInfo},
		{303, slog.LevelInfo},
		{404, slog.LevelWarn},
		{429, slog.LevelWarn},
		{500, slog.LevelError},
		{503, slog.LevelError},
	}
	for _, tt := range tests {
		if got := LevelForStatus(tt.status); got != tt.want {
			t.Errorf("LevelForStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: slog.LevelDebug, Component: ComponentHTTP})
	sl := NewStructuredLogger(logger)
	ctx := context.Background()

	sl.LogAccountChange(ctx, OpArchive, 3)
	sl.LogError(ctx, "Insert failed", errors.New("disk full"), ComponentStorage, OpCreate, NewFields().WithAccount(3))

	out := buf.String()
	for _, want := range []string{
		"operation=archive",
		"account_id=3",
		"level=ERROR",
		"component=storage",
		`error="disk full"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
