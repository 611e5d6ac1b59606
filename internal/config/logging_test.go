package config

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{" DEBUG ", slog.LevelDebug, false},
		{"trace", LevelTrace, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_TraceName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace, LogFormatText)
	logger.Log(context.Background(), LevelTrace, "wire")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected level=TRACE in %q", buf.String())
	}
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "")
	logger.Debug("hidden")

	if buf.Len() != 0 {
		t.Errorf("debug record should be filtered at info, got %q", buf.String())
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, LogFormatJSON)
	logger.Info("hello", "port", 10)

	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"port":10`) {
		t.Errorf("expected JSON record, got %q", buf.String())
	}
}

func TestValidateLogFormat(t *testing.T) {
	for _, ok := range []string{"", "text", "json"} {
		if err := ValidateLogFormat(ok); err != nil {
			t.Errorf("ValidateLogFormat(%q) = %v", ok, err)
		}
	}
	if err := ValidateLogFormat("xml"); err == nil {
		t.Error("ValidateLogFormat(xml) should error")
	}
}
