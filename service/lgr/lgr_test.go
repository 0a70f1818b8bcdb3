package lgr

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mdobak/go-xerrors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	filename := filepath.Join(t.TempDir(), "aicam.log")

	logger := New(&console, filename, slog.LevelInfo)
	logger.Info("frame sent", slog.Int("chunks", 3))
	logger.Debug("hidden")

	if !strings.Contains(console.String(), "frame sent") {
		t.Errorf("console output missing message: %q", console.String())
	}
	if !strings.Contains(console.String(), `"chunks": 3`) {
		t.Errorf("console output missing attrs: %q", console.String())
	}
	if strings.Contains(console.String(), "hidden") {
		t.Errorf("debug record should be filtered at info level")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"frame sent"`) {
		t.Errorf("file output missing JSON record: %q", string(data))
	}
}

func TestErrorAttrCarriesTrace(t *testing.T) {
	var console bytes.Buffer
	logger := New(&console, "", slog.LevelInfo)

	logger.Error("send failed", slog.Any("error", xerrors.New("socket closed")))
	out := console.String()
	if !strings.Contains(out, "socket closed") {
		t.Errorf("missing error message: %q", out)
	}
	if !strings.Contains(out, "trace") {
		t.Errorf("missing stack trace: %q", out)
	}

	console.Reset()
	logger.Error("plain", slog.Any("error", errors.New("no stack")))
	if strings.Contains(console.String(), "trace") {
		t.Errorf("plain errors should not carry a trace: %q", console.String())
	}
}

func TestWithTrace(t *testing.T) {
	if WithTrace(nil) != nil {
		t.Error("nil error should stay nil")
	}

	cause := errors.New("connection reset")
	traced := WithTrace(cause)
	if !errors.Is(traced, cause) {
		t.Error("traced error should unwrap to its cause")
	}
	if len(xerrors.StackTrace(traced)) == 0 {
		t.Error("traced error has no stack")
	}

	already := xerrors.New("socket closed")
	if WithTrace(already) != already {
		t.Error("an error that already carries a stack should be returned as-is")
	}

	var console bytes.Buffer
	logger := New(&console, "", slog.LevelInfo)
	logger.Warn("send failed", slog.Any("error", WithTrace(cause)))
	if !strings.Contains(console.String(), "trace") {
		t.Errorf("logged error missing stack trace: %q", console.String())
	}
}
