package zsr_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/showermat/zsr"
	"pgregory.net/rapid"
)

// TestRoundTripProperty checks spec.md §8 items 1-2: any archivable tree
// round-trips byte-for-byte through Create/Open, both via GetFile and via
// ExtractAll, regardless of its shape.
func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		type file struct {
			segs []string
			data []byte
		}

		segGen := rapid.StringMatching(`[a-z][a-z0-9]{0,6}`)
		n := rapid.IntRange(0, 10).Draw(rt, "n")

		fileSet := map[string]bool{}
		dirSet := map[string]bool{}
		var files []file
		for i := 0; i < n; i++ {
			depth := rapid.IntRange(1, 3).Draw(rt, "depth")
			segs := make([]string, depth)
			for d := 0; d < depth; d++ {
				segs[d] = segGen.Draw(rt, "seg")
			}
			key := filepath.Join(segs...)
			if fileSet[key] || dirSet[key] {
				continue
			}
			conflict := false
			for d := 1; d < depth; d++ {
				if fileSet[filepath.Join(segs[:d]...)] {
					conflict = true
					break
				}
			}
			if conflict {
				continue
			}

			data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "data")
			files = append(files, file{segs: segs, data: data})
			fileSet[key] = true
			for d := 1; d < depth; d++ {
				dirSet[filepath.Join(segs[:d]...)] = true
			}
		}

		srcDir, err := os.MkdirTemp("", "zsr-src-")
		if err != nil {
			rt.Fatal(err)
		}
		defer os.RemoveAll(srcDir)

		for _, f := range files {
			full := filepath.Join(append([]string{srcDir}, f.segs...)...)
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				rt.Fatal(err)
			}
			if err := os.WriteFile(full, f.data, 0o644); err != nil {
				rt.Fatal(err)
			}
		}

		archiveDir, err := os.MkdirTemp("", "zsr-archive-")
		if err != nil {
			rt.Fatal(err)
		}
		defer os.RemoveAll(archiveDir)
		archivePath := filepath.Join(archiveDir, "out.zsr")

		if err := zsr.Create(srcDir, archivePath); err != nil {
			rt.Fatalf("Create: %s", err)
		}

		r, err := zsr.Open(archivePath)
		if err != nil {
			rt.Fatalf("Open: %s", err)
		}
		defer r.Close()

		for _, f := range files {
			inner := filepath.ToSlash(filepath.Join(f.segs...))
			if !r.Exists(inner) {
				rt.Fatalf("Exists(%s) = false, want true", inner)
			}
			got, err := r.GetFile(inner)
			if err != nil {
				rt.Fatalf("GetFile(%s): %s", inner, err)
			}
			if !bytes.Equal(got, f.data) {
				rt.Fatalf("content mismatch for %s: got %d bytes, want %d", inner, len(got), len(f.data))
			}
		}

		destDir, err := os.MkdirTemp("", "zsr-dest-")
		if err != nil {
			rt.Fatal(err)
		}
		defer os.RemoveAll(destDir)

		if err := r.ExtractAll(destDir); err != nil {
			rt.Fatalf("ExtractAll: %s", err)
		}

		for _, f := range files {
			full := filepath.Join(append([]string{destDir}, f.segs...)...)
			got, err := os.ReadFile(full)
			if err != nil {
				rt.Fatalf("reading extracted %s: %s", full, err)
			}
			if diff := cmp.Diff(f.data, got); diff != "" {
				rt.Fatalf("extracted content mismatch for %s (-want +got):\n%s", full, diff)
			}
		}
	})
}
