package zsr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
)

// Reader opens a ZSR archive for random-access reads. The underlying
// io.ReaderAt is read via ReadAt rather than Seek+Read throughout, which
// for both *os.File (pread) and *bytes.Reader is already safe for
// concurrent use by multiple goroutines without any Reader-side locking;
// Clone exists only for callers who want an independent *os.File handle
// (e.g. a separate fd lifetime per worker), per spec.md §5.
type Reader struct {
	ra      io.ReaderAt
	closer  io.Closer
	path    string
	codec   Codec
	codecID CodecID
	tree    *tree
}

// ReaderOption configures a Reader constructed by Open or NewReader.
type ReaderOption func(*Reader) error

// WithReaderCodec selects the codec used to decompress blobs and the index.
// It must match the codec the archive was written with; ZSR stores no
// codec identifier on disk.
func WithReaderCodec(id CodecID) ReaderOption {
	return func(r *Reader) error {
		c, err := lookupCodec(id)
		if err != nil {
			return err
		}
		r.codec = c
		r.codecID = id
		return nil
	}
}

// Open opens path as a ZSR archive, parses its header and index, and
// builds the in-memory tree.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.path = path
	r.closer = f
	return r, nil
}

// sizer is implemented by any io.ReaderAt that can report its total length,
// such as *bytes.Reader. *os.File is handled separately via Stat.
type sizer interface {
	Size() int64
}

// NewReader parses a ZSR archive from ra, which must also let the Reader
// determine the underlying length: either an *os.File, or any io.ReaderAt
// additionally implementing Size() int64 (e.g. *bytes.Reader).
func NewReader(ra io.ReaderAt, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{ra: ra, codec: registry[CodecLZMA], codecID: CodecLZMA}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	size, err := sizeOf(ra)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 12)
	n, err := ra.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return nil, badZsr("could not read header", err)
	}
	if n < 12 {
		return nil, badZsr("file too small to hold a header", ErrTooSmall)
	}
	if !bytes.Equal(header[0:4], magic[:]) {
		return nil, badZsr("bad magic number", ErrBadMagic)
	}
	idxStart := binary.LittleEndian.Uint64(header[4:12])
	if idxStart > uint64(size) {
		return nil, badZsr("idx_start points past end of file", ErrTruncatedIndex)
	}

	idxBuf := make([]byte, int64(size)-int64(idxStart))
	if len(idxBuf) > 0 {
		if _, err := ra.ReadAt(idxBuf, int64(idxStart)); err != nil && err != io.EOF {
			return nil, badZsr("could not read index", err)
		}
	}

	rawIdx, err := r.codec.Decompress(idxBuf)
	if err != nil {
		return nil, badZsr("could not decompress index", err)
	}

	t := newTree()
	for buf := rawIdx; len(buf) > 0; {
		e, n, err := unmarshalEntry(buf)
		if err != nil {
			return nil, badZsr("could not parse index", err)
		}
		if err := t.add(e); err != nil {
			return nil, err
		}
		buf = buf[n:]
	}
	r.tree = t
	return r, nil
}

func sizeOf(ra io.ReaderAt) (int64, error) {
	switch v := ra.(type) {
	case *os.File:
		fi, err := v.Stat()
		if err != nil {
			return 0, &SourceReadError{Path: v.Name(), Err: err}
		}
		return fi.Size(), nil
	case sizer:
		return v.Size(), nil
	default:
		return 0, fmt.Errorf("zsr: reader source must be an *os.File or implement Size() int64")
	}
}

// Close releases the underlying file, if Open (rather than NewReader) was
// used to construct this Reader.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Clone returns an independent Reader over the same archive path, with its
// own file handle. It only works for Readers constructed via Open.
func (r *Reader) Clone() (*Reader, error) {
	if r.path == "" {
		return nil, fmt.Errorf("zsr: Clone requires a Reader opened via Open")
	}
	return Open(r.path, WithReaderCodec(r.codecID))
}

// Exists reports whether path resolves to a regular file. Matching the
// Python source's node(path) is not None and not isdir semantics, Exists
// returns false for directories; use IsDir to test those.
func (r *Reader) Exists(p string) bool {
	n, ok := r.tree.resolve(p)
	return ok && n.IsFile()
}

// IsDir reports whether path resolves to a directory.
func (r *Reader) IsDir(p string) bool {
	n, ok := r.tree.resolve(p)
	return ok && n.IsDir()
}

// IsFile reports whether path resolves to a regular file. It behaves
// exactly like Exists, under a name that reads better.
func (r *Reader) IsFile(p string) bool {
	return r.Exists(p)
}

// GetFile returns the decompressed contents of the regular file at path.
func (r *Reader) GetFile(p string) ([]byte, error) {
	n, ok := r.tree.resolve(p)
	if !ok {
		return nil, &PathError{Path: p, Err: ErrNotFound}
	}
	if n.IsDir() {
		return nil, &PathError{Path: p, Err: ErrNotAFile}
	}
	data, err := r.decodeBlob(n)
	if err != nil {
		return nil, &CorruptBlobError{Path: p, Err: err}
	}
	return data, nil
}

func (r *Reader) decodeBlob(n *Node) ([]byte, error) {
	blob := make([]byte, n.Length)
	if len(blob) > 0 {
		if _, err := r.ra.ReadAt(blob, int64(n.Start)); err != nil && err != io.EOF {
			return nil, err
		}
	}
	return r.codec.Decompress(blob)
}

// ExtractSubtree recreates everything beneath the directory named by
// innerPath directly in destDir (destDir takes the place of that
// directory; it is created if missing). A blob that fails to decompress is
// logged and skipped rather than treated as fatal, so one corrupt file does
// not abort extraction of an otherwise-healthy archive.
func (r *Reader) ExtractSubtree(innerPath, destDir string) error {
	n, ok := r.tree.resolve(innerPath)
	if !ok {
		return &PathError{Path: innerPath, Err: ErrNotFound}
	}
	if !n.IsDir() {
		return &PathError{Path: innerPath, Err: ErrNotADirectory}
	}
	return r.extractNode(n, innerPath, destDir)
}

// ExtractAll recreates the entire archive under destDir.
func (r *Reader) ExtractAll(destDir string) error {
	return r.extractNode(r.tree.root(), ".", destDir)
}

func (r *Reader) extractNode(n *Node, innerPath, destPath string) error {
	if n.IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return &SinkWriteError{Err: err}
		}
		for _, fid := range n.Children() {
			child, ok := r.tree.get(fid)
			if !ok {
				continue
			}
			childInner := path.Join(innerPath, child.Name)
			if err := r.extractNode(child, childInner, filepath.Join(destPath, child.Name)); err != nil {
				return err
			}
		}
		return nil
	}

	data, err := r.decodeBlob(n)
	if err != nil {
		log.Printf("zsr: skipping corrupt blob %q: %s", innerPath, err)
		return nil
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return &SinkWriteError{Err: err}
	}
	return nil
}
