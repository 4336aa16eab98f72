// Package testutil provides testing utilities for biobot data roots.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Default layout of a data root.
const (
	RegistryFile = "experiment_ids.json"
	MailboxDir   = "virtual_dropbox"
)

// SetupDataRoot creates a temporary data root with empty mailbox channels
// and no registry. The directory is removed when the test completes.
func SetupDataRoot(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for _, ch := range []string{"observations", "interventions"} {
		if err := os.MkdirAll(filepath.Join(dir, MailboxDir, ch), 0755); err != nil {
			t.Fatalf("failed to create mailbox channel %s: %v", ch, err)
		}
	}
	return dir
}

// SetupDataRootWithExperiments creates a data root whose registry holds ids
// in order.
func SetupDataRootWithExperiments(t *testing.T, ids ...string) string {
	t.Helper()

	dir := SetupDataRoot(t)
	WriteRegistry(t, dir, ids...)
	return dir
}

// WriteRegistry replaces the registry record under root.
func WriteRegistry(t *testing.T, root string, ids ...string) {
	t.Helper()

	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(map[string][]string{"current": ids})
	if err != nil {
		t.Fatalf("failed to encode registry: %v", err)
	}
	WriteFile(t, root, RegistryFile, string(data))
}

// ReadRegistry returns the identifiers in the registry record under root.
func ReadRegistry(t *testing.T, root string) []string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, RegistryFile))
	if err != nil {
		t.Fatalf("failed to read registry: %v", err)
	}
	var doc struct {
		Current []string `json:"current"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to parse registry: %v", err)
	}
	return doc.Current
}

// MessagePath returns the path of a message file under root.
func MessagePath(root, channel, id string, iteration int) string {
	return filepath.Join(root, MailboxDir, channel, fmt.Sprintf("%s_%d.json", id, iteration))
}

// WriteMessage writes raw content as the message at (channel, id, iteration).
func WriteMessage(t *testing.T, root, channel, id string, iteration int, content string) {
	t.Helper()

	rel, err := filepath.Rel(root, MessagePath(root, channel, id, iteration))
	if err != nil {
		t.Fatalf("failed to resolve message path: %v", err)
	}
	WriteFile(t, root, rel, content)
}

// ReadMessage decodes the message at (channel, id, iteration).
func ReadMessage(t *testing.T, root, channel, id string, iteration int) map[string]any {
	t.Helper()

	data, err := os.ReadFile(MessagePath(root, channel, id, iteration))
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("message is not a JSON object: %v", err)
	}
	return msg
}

// MessageExists reports whether the message file exists.
func MessageExists(t *testing.T, root, channel, id string, iteration int) bool {
	t.Helper()

	_, err := os.Stat(MessagePath(root, channel, id, iteration))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to stat message: %v", err)
	}
	return err == nil
}

// WriteFile writes content to a path relative to root, creating parents.
func WriteFile(t *testing.T, root, path, content string) {
	t.Helper()

	fullPath := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}
