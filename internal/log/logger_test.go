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
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerComponentAndContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentHTTP, Output: &buf})

	ctx := WithContext(context.Background(), logger.With(FieldRequestID, "req-1"))
	FromContext(ctx).Info("handled", NewFields().WithError(errors.New("boom")).ToSlice()...)

	out := buf.String()
	for _, want := range []string{"component=http", "request_id=req-1", "error=boom", "msg=handled"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Logger == nil {
		t.Fatal("expected fallback logger")
	}
	if l.Component() != "unknown" {
		t.Errorf("component = %q", l.Component())
	}
}
