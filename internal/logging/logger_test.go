package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// readEntries parses every JSON line in the log file.
func readEntries(t *testing.T, dir string) []map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("parse log line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in directory", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, Options{Level: LevelDebug})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(filepath.Join(dir, LogFileName)); err != nil {
			t.Errorf("log file was not created: %v", err)
		}
	})

	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", ".biobot")

		logger, err := NewLogger(dir, Options{})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(filepath.Join(dir, LogFileName)); err != nil {
			t.Errorf("log file was not created: %v", err)
		}
	})

	t.Run("writes to stderr when dir is empty", func(t *testing.T) {
		logger, err := NewLogger("", Options{Level: LevelInfo})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.writer != nil {
			t.Error("expected no file writer when dir is empty")
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	})
}

func TestLogLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, Options{Level: LevelWarn})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	_ = logger.Close()

	entries := readEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["msg"] != "warn message" || entries[1]["msg"] != "error message" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

func TestContextPropagation(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, Options{Level: LevelDebug})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithCommand("propose-intervention").
		WithExperiment(2, "20240101120000").
		WithChannel("interventions").
		WithIteration(3)
	child.Info("intervention written", "file", "20240101120000_3.json")

	// The parent must not inherit child attributes.
	logger.Info("plain")
	_ = logger.Close()

	entries := readEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	got := entries[0]
	want := map[string]any{
		"command":          "propose-intervention",
		"experiment_index": float64(2),
		"experiment_id":    "20240101120000",
		"channel":          "interventions",
		"iteration":        float64(3),
		"file":             "20240101120000_3.json",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}

	if _, ok := entries[1]["experiment_id"]; ok {
		t.Error("parent logger should not carry child attributes")
	}
}

func TestWith(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, Options{})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if logger.With() != logger {
		t.Error("With() without args should return the same logger")
	}

	logger.With("backend", "file", 42, "skipped").Info("configured")
	_ = logger.Close()

	entries := readEntries(t, dir)
	if entries[0]["backend"] != "file" {
		t.Errorf("backend = %v, want file", entries[0]["backend"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Info("discarded", "k", "v")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if len(ValidLevels()) != 4 {
		t.Errorf("ValidLevels() = %v", ValidLevels())
	}
}

func TestConcurrentWrites(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, Options{})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			for j := range 20 {
				logger.WithIteration(i).Info("write", "n", j)
			}
		})
	}
	wg.Wait()
	_ = logger.Close()

	if got := len(readEntries(t, dir)); got != 200 {
		t.Errorf("expected 200 entries, got %d", got)
	}
}
