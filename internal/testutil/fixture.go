// Package testutil provides vault fixtures and golden file comparison for
// tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteVault creates a vault in a temporary directory. Keys of notes are
// slash-separated paths relative to the vault root; parent directories are
// created as needed. It returns the vault root.
func WriteVault(t *testing.T, notes map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range notes {
		WriteNote(t, root, rel, content)
	}
	return root
}

// WriteNote writes one note below root, creating parent directories.
func WriteNote(t *testing.T, root, rel, content string) string {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create note directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write note %s: %v", rel, err)
	}
	return path
}
