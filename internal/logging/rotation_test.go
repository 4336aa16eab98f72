package logging

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rw, err := NewRotatingWriter(path, RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	if rw.Size() != 4 {
		t.Errorf("Size() = %d, want 4", rw.Size())
	}
	if _, err := rw.Write([]byte("new\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_ = rw.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "old\nnew\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRotatingWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()

	chunk := []byte(strings.Repeat("x", 600*1024))
	for range 3 {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	for _, name := range []string{"debug.log", "debug.log.1", "debug.log.2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if rw.Size() != int64(len(chunk)) {
		t.Errorf("Size() after rotation = %d, want %d", rw.Size(), len(chunk))
	}

	// A fourth write drops the oldest backup instead of creating .3.
	if _, err := rw.Write(chunk); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "debug.log.3")); !os.IsNotExist(err) {
		t.Error("debug.log.3 should not exist with MaxBackups=2")
	}
}

func TestRotatingWriter_Compress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 1, Compress: true})
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	first := []byte(strings.Repeat("a", 900*1024))
	if _, err := rw.Write(first); err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Write(first); err != nil {
		t.Fatal(err)
	}
	_ = rw.Close()

	if _, err := os.Stat(filepath.Join(dir, "debug.log.1")); !os.IsNotExist(err) {
		t.Error("uncompressed backup should have been removed")
	}
	f, err := os.Open(filepath.Join(dir, "debug.log.1.gz"))
	if err != nil {
		t.Fatalf("open compressed backup: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read compressed: %v", err)
	}
	if len(data) != len(first) {
		t.Errorf("decompressed %d bytes, want %d", len(data), len(first))
	}
}

func TestRotatingWriter_NoBackupsTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer rw.Close()

	chunk := []byte(strings.Repeat("z", 700*1024))
	_, _ = rw.Write(chunk)
	_, _ = rw.Write(chunk)

	if _, err := os.Stat(filepath.Join(dir, "debug.log.1")); !os.IsNotExist(err) {
		t.Error("no backup should be kept with MaxBackups=0")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "debug.log"), DefaultRotationConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, err := rw.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestNewLogger_WithRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, Options{Level: LevelInfo, Rotation: RotationConfig{MaxSizeMB: 1, MaxBackups: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if logger.writer.Path() != filepath.Join(dir, LogFileName) {
		t.Errorf("Path() = %q", logger.writer.Path())
	}
	logger.Info("hello")
	_ = logger.Close()

	if entries := readEntries(t, dir); len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
}
