package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)
	log.Info("hidden")
	log.Warn("shown", "stage", StagePageFetch, "url", "https://example.com")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "stage=page_fetch") || !strings.Contains(out, "url=https://example.com") {
		t.Errorf("missing attrs in %s", out)
	}
}

func TestInitWritesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "run.log")
	closeFn, err := Init("info", path)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	slog.Info("hello file")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file = %q", data)
	}
}
