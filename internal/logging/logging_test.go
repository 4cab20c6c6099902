package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("port")

	var buf bytes.Buffer
	Init("text", "debug", &buf)
	t.Cleanup(func() { Init("text", "warn", nil) })

	logger.Debug("table skipped", KeyTable, "tcp6")

	out := buf.String()
	if !strings.Contains(out, "msg=\"table skipped\"") {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=port") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "table=tcp6") {
		t.Fatalf("expected table field, got: %s", out)
	}
}

func TestLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("process")

	var buf bytes.Buffer
	Init("text", "warn", &buf)
	t.Cleanup(func() { Init("text", "warn", nil) })

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	logger := L("cli")

	var buf bytes.Buffer
	Init("json", "info", &buf)
	t.Cleanup(func() { Init("text", "warn", nil) })

	logger.Info("scan", KeyPort, 3000)

	out := buf.String()
	if !strings.Contains(out, `"component":"cli"`) || !strings.Contains(out, `"port":3000`) {
		t.Fatalf("expected JSON fields, got: %s", out)
	}
}

func TestDiscard(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "debug", &buf)
	Discard()
	t.Cleanup(func() { Init("text", "warn", nil) })

	L("tui").Error("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected no output after Discard, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" error ", slog.LevelError},
		{"warn", slog.LevelWarn},
		{"bogus", slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if ValidLevel("bogus") {
		t.Error("ValidLevel(bogus) should be false")
	}
	if !ValidLevel("Warning") {
		t.Error("ValidLevel(Warning) should be true")
	}
}
