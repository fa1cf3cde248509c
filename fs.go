package zsr

import (
	"fmt"
	"io"
	"io/fs"
	"time"
)

// FS adapts a Reader to io/fs.FS (and fs.ReadDirFS, fs.StatFS), so an
// archive can be handed to anything that consumes the standard library's
// filesystem abstractions: http.FileServer, text/template.ParseFS, and so
// on.
type FS struct {
	r *Reader
}

// FS returns an io/fs.FS view of r.
func (r *Reader) FS() *FS {
	return &FS{r: r}
}

func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	var n *Node
	var ok bool
	if name == "." {
		n, ok = f.r.tree.root(), true
	} else {
		n, ok = f.r.tree.resolve(name)
	}
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &fsFile{r: f.r, n: n}, nil
}

func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	dirFile, ok := file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fmt.Errorf("not a directory")}
	}
	return dirFile.ReadDir(-1)
}

func (f *FS) Stat(name string) (fs.FileInfo, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return file.Stat()
}

// fsFile implements fs.File and fs.ReadDirFile over a single Node. Blob
// bytes are decoded lazily, on the first Read, not at Open time.
type fsFile struct {
	r *Reader
	n *Node

	data []byte
	off  int

	entries    []fs.DirEntry
	entriesOff int
}

func (ff *fsFile) Stat() (fs.FileInfo, error) {
	return &fileInfo{n: ff.n}, nil
}

func (ff *fsFile) Read(p []byte) (int, error) {
	if ff.n.IsDir() {
		return 0, &fs.PathError{Op: "read", Path: ff.n.Name, Err: fmt.Errorf("is a directory")}
	}
	if ff.data == nil {
		data, err := ff.r.decodeBlob(ff.n)
		if err != nil {
			return 0, &CorruptBlobError{Path: ff.n.Name, Err: err}
		}
		ff.data = data
	}
	if ff.off >= len(ff.data) {
		return 0, io.EOF
	}
	n := copy(p, ff.data[ff.off:])
	ff.off += n
	return n, nil
}

func (ff *fsFile) Close() error { return nil }

func (ff *fsFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if !ff.n.IsDir() {
		return nil, fmt.Errorf("zsr: not a directory")
	}
	if ff.entries == nil {
		ff.entries = make([]fs.DirEntry, 0, len(ff.n.Children()))
		for _, fid := range ff.n.Children() {
			child, ok := ff.r.tree.get(fid)
			if !ok {
				continue
			}
			ff.entries = append(ff.entries, &dirEntry{n: child})
		}
	}
	if n <= 0 {
		rest := ff.entries[ff.entriesOff:]
		ff.entriesOff = len(ff.entries)
		return rest, nil
	}
	remaining := len(ff.entries) - ff.entriesOff
	if remaining == 0 {
		return nil, io.EOF
	}
	if n > remaining {
		n = remaining
	}
	out := ff.entries[ff.entriesOff : ff.entriesOff+n]
	ff.entriesOff += n
	return out, nil
}

// fileInfo implements fs.FileInfo over a Node. ZSR stores no mode, owner,
// or timestamp metadata, so Mode and ModTime return fixed, read-only
// values.
type fileInfo struct {
	n *Node
}

func (fi *fileInfo) Name() string { return fi.n.Name }

// Size reports the compressed blob length, not the decompressed content
// size: ZSR's index stores only the former. Callers that need the true
// size must Read to EOF (which fsFile.Read does correctly regardless of
// what Size reports) or decode the blob themselves.
func (fi *fileInfo) Size() int64 { return int64(fi.n.Length) }
func (fi *fileInfo) ModTime() time.Time {
	return time.Time{}
}
func (fi *fileInfo) IsDir() bool { return fi.n.IsDir() }
func (fi *fileInfo) Sys() any    { return fi.n }
func (fi *fileInfo) Mode() fs.FileMode {
	if fi.n.IsDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

// dirEntry implements fs.DirEntry over a Node.
type dirEntry struct {
	n *Node
}

func (d *dirEntry) Name() string      { return d.n.Name }
func (d *dirEntry) IsDir() bool       { return d.n.IsDir() }
func (d *dirEntry) Type() fs.FileMode { return (&fileInfo{n: d.n}).Mode().Type() }
func (d *dirEntry) Info() (fs.FileInfo, error) {
	return &fileInfo{n: d.n}, nil
}
