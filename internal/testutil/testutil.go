// Package testutil provides helpers for examples and tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Pattern returns n bytes of deterministic, non-repeating-per-block content.
// Byte i is derived from i so any misplaced slice shows up in comparisons.
func Pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + i/251)
	}
	return b
}

// WriteFile writes data to name inside a fresh temp dir and returns the path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// RemoveAll removes the path and any children, ignoring errors.
// Examples use it with defer to clean up scratch directories.
func RemoveAll(path string) { _ = os.RemoveAll(path) }
