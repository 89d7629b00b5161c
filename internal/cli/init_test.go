package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantWarn  bool
	}{
		{"debug", true, false},
		{"info", false, false},
		{"", false, false},
		{"chatty", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(&buf, tt.level, "test")
			logger.Debug("debug line")
			logger.Info("info line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug emitted = %v, want %v", got, tt.wantDebug)
			}
			if !strings.Contains(out, "info line") {
				t.Error("info line missing")
			}
			if got := strings.Contains(out, "Invalid LOG_LEVEL"); got != tt.wantWarn {
				t.Errorf("invalid level warning = %v, want %v", got, tt.wantWarn)
			}
			if !strings.Contains(out, "component=test") {
				t.Errorf("component not tagged: %s", out)
			}
		})
	}
}
