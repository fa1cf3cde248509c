package zsr_test

import (
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/showermat/zsr"
)

func TestCreateAndReadBackBasicTree(t *testing.T) { // spec.md §8 S1
	src := t.TempDir()
	buildTree(t, src, map[string][]byte{
		"a.txt":   []byte("hello"),
		"b/c.txt": []byte("world"),
		"b/empty": nil,
	})

	archive := filepath.Join(t.TempDir(), "out.zsr")
	if err := zsr.Create(src, archive); err != nil {
		t.Fatalf("Create: %s", err)
	}

	r, err := zsr.Open(archive)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer r.Close()

	if !r.Exists("a.txt") {
		t.Errorf("Exists(a.txt) = false, want true")
	}
	if r.Exists("b") {
		t.Errorf("Exists(b) = true, want false (b is a directory)")
	}
	if r.Exists("b/empty") {
		t.Errorf("Exists(b/empty) = true, want false (b/empty is a directory)")
	}
	if !r.IsDir("b/empty") {
		t.Errorf("IsDir(b/empty) = false, want true")
	}

	data, err := r.GetFile("a.txt")
	if err != nil {
		t.Fatalf("GetFile(a.txt): %s", err)
	}
	if string(data) != "hello" {
		t.Errorf("GetFile(a.txt) = %q, want %q", data, "hello")
	}

	dest := t.TempDir()
	if err := r.ExtractSubtree("b", dest); err != nil {
		t.Fatalf("ExtractSubtree(b): %s", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "c.txt"))
	if err != nil {
		t.Fatalf("reading extracted c.txt: %s", err)
	}
	if string(got) != "world" {
		t.Errorf("extracted c.txt = %q, want %q", got, "world")
	}
	if fi, err := os.Stat(filepath.Join(dest, "empty")); err != nil || !fi.IsDir() {
		t.Errorf("extracted empty/ missing or not a directory: %v, %v", fi, err)
	}
}

func TestCreateLargeFileRoundTrips(t *testing.T) { // spec.md §8 S2
	src := t.TempDir()
	data := make([]byte, 2<<20)
	rand.New(rand.NewSource(1)).Read(data)
	buildTree(t, src, map[string][]byte{"blob.bin": data})

	archive := filepath.Join(t.TempDir(), "out.zsr")
	if err := zsr.Create(src, archive); err != nil {
		t.Fatalf("Create: %s", err)
	}

	fi, err := os.Stat(archive)
	if err != nil {
		t.Fatalf("Stat(archive): %s", err)
	}
	if fi.Size() <= 12 {
		t.Errorf("archive size %d should exceed the 12-byte header", fi.Size())
	}

	r, err := zsr.Open(archive)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer r.Close()

	got, err := r.GetFile("blob.bin")
	if err != nil {
		t.Fatalf("GetFile(blob.bin): %s", err)
	}
	if len(got) != len(data) {
		t.Fatalf("GetFile(blob.bin) length = %d, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("GetFile(blob.bin) differs at byte %d", i)
		}
	}
}

func TestCreateEmptyTreeHasEmptyIndex(t *testing.T) { // spec.md §8 S3
	src := t.TempDir()
	archive := filepath.Join(t.TempDir(), "out.zsr")
	if err := zsr.Create(src, archive); err != nil {
		t.Fatalf("Create: %s", err)
	}

	raw, err := os.ReadFile(archive)
	if err != nil {
		t.Fatalf("ReadFile(archive): %s", err)
	}
	if len(raw) < 12 {
		t.Fatalf("archive shorter than header: %d bytes", len(raw))
	}
	idxStart := binary.LittleEndian.Uint64(raw[4:12])
	if idxStart != 12 {
		t.Errorf("idx_start = %d, want 12 for an archive with no entries", idxStart)
	}

	r, err := zsr.Open(archive)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer r.Close()
	if !r.IsDir(".") {
		t.Errorf("root of an empty archive should be a directory")
	}
}

func TestCreateSkipsSymlinks(t *testing.T) {
	src := t.TempDir()
	buildTree(t, src, map[string][]byte{"real.txt": []byte("data")})
	if err := os.Symlink(filepath.Join(src, "real.txt"), filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported on this platform: %s", err)
	}

	archive := filepath.Join(t.TempDir(), "out.zsr")
	if err := zsr.Create(src, archive); err != nil {
		t.Fatalf("Create: %s", err)
	}

	r, err := zsr.Open(archive)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer r.Close()

	if !r.Exists("real.txt") {
		t.Errorf("Exists(real.txt) = false, want true")
	}
	if r.Exists("link.txt") {
		t.Errorf("Exists(link.txt) = true, want false (symlinks are skipped)")
	}
}

func TestCreateUnsortedPreservesListingOrder(t *testing.T) {
	src := t.TempDir()
	buildTree(t, src, map[string][]byte{
		"z.txt": []byte("1"),
		"a.txt": []byte("2"),
	})

	archive := filepath.Join(t.TempDir(), "out.zsr")
	if err := zsr.Create(src, archive, zsr.WithSort(false)); err != nil {
		t.Fatalf("Create: %s", err)
	}

	r, err := zsr.Open(archive)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer r.Close()

	for _, name := range []string{"z.txt", "a.txt"} {
		if !r.Exists(name) {
			t.Errorf("Exists(%s) = false, want true", name)
		}
	}

	dir, err := os.Open(src)
	if err != nil {
		t.Fatalf("Open(src): %s", err)
	}
	listed, err := dir.ReadDir(-1)
	dir.Close()
	if err != nil {
		t.Fatalf("ReadDir(src): %s", err)
	}
	archived, err := r.FS().ReadDir(".")
	if err != nil {
		t.Fatalf("FS().ReadDir(.): %s", err)
	}
	if len(archived) != len(listed) {
		t.Fatalf("archive root has %d entries, want %d", len(archived), len(listed))
	}
	for i := range listed {
		if archived[i].Name() != listed[i].Name() {
			t.Errorf("archive entry %d = %s, want %s (directory-listing order)", i, archived[i].Name(), listed[i].Name())
		}
	}
}
