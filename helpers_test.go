package zsr_test

import (
	"os"
	"path/filepath"
	"testing"
)

// buildTree materializes spec under root. A nil value means a directory is
// created at that path instead of a file.
func buildTree(t *testing.T, root string, spec map[string][]byte) {
	t.Helper()
	for rel, data := range spec {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if data == nil {
			if err := os.MkdirAll(full, 0o755); err != nil {
				t.Fatalf("mkdir %s: %s", full, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %s", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			t.Fatalf("write %s: %s", full, err)
		}
	}
}
