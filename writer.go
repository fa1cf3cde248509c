package zsr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/google/renameio"
	"github.com/orcaman/writerseeker"
)

// magic is the 4-byte signature every ZSR archive starts with.
var magic = [4]byte{'!', 'Z', 'S', 'R'}

// Writer builds a ZSR archive, traversing a directory tree in DFS preorder,
// compressing each regular file independently, and finishing with a
// compressed index and a patched header, per spec.md §4.2.
type Writer struct {
	out        io.WriteSeeker
	underlying io.Writer // set when out is a buffered writerseeker standing in for a non-seekable w

	codec   Codec
	sort    bool
	workers int

	srcRoot string
	fidcnt  uint64
	fileloc uint64
	entries []*Entry
}

// WriterOption configures a Writer constructed by NewWriter.
type WriterOption func(*Writer) error

// WithCodec selects the compressor used for both file blobs and the index.
func WithCodec(id CodecID) WriterOption {
	return func(w *Writer) error {
		c, err := lookupCodec(id)
		if err != nil {
			return err
		}
		w.codec = c
		return nil
	}
}

// WithSort controls whether each directory's children are emitted in
// lexicographic order (the default, for reproducible builds) or in raw
// directory-listing order (for parity with the unsorted Python source).
func WithSort(enabled bool) WriterOption {
	return func(w *Writer) error {
		w.sort = enabled
		return nil
	}
}

// WithWorkers bounds how many files are compressed concurrently while
// pre-compressing the tree. The default is runtime.NumCPU().
func WithWorkers(n int) WriterOption {
	return func(w *Writer) error {
		if n < 1 {
			n = 1
		}
		w.workers = n
		return nil
	}
}

// NewWriter prepares a Writer that will emit an archive to w. If w
// implements io.WriteSeeker (e.g. an *os.File), the placeholder header is
// patched in place at Finalize time. Otherwise output is accumulated in an
// in-memory *writerseeker.WriterSeeker and copied to w once Finalize has
// patched the header, giving the same seek-and-patch codepath for both cases.
func NewWriter(w io.Writer, opts ...WriterOption) (*Writer, error) {
	wr := &Writer{
		codec:   registry[CodecLZMA],
		sort:    true,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		if err := opt(wr); err != nil {
			return nil, err
		}
	}

	if ws, ok := w.(io.WriteSeeker); ok {
		wr.out = ws
	} else {
		wr.underlying = w
		wr.out = &writerseeker.WriterSeeker{}
	}

	header := make([]byte, 12)
	copy(header[0:4], magic[:])
	if _, err := wr.out.Write(header); err != nil {
		return nil, &SinkWriteError{Err: err}
	}
	wr.fileloc = 12
	return wr, nil
}

// AddTree walks srcDir in DFS preorder and adds every regular file and
// subdirectory it contains. Symlinks, sockets, FIFOs, and devices are
// skipped with a logged warning, per spec.md §4.2 step 4. It may only be
// called once per Writer.
func (w *Writer) AddTree(srcDir string) error {
	w.srcRoot = srcDir
	blobs, err := w.precompressAll(srcDir)
	if err != nil {
		return err
	}
	return w.addDir(srcDir, 0, blobs)
}

// precompressAll discovers every regular file under srcDir and compresses
// them concurrently (bounded by w.workers), so the blocking compression work
// is parallelized while the fid-assigning traversal in addDir still runs
// single-threaded and in exact DFS-preorder, per spec.md §5.
func (w *Writer) precompressAll(srcDir string) (map[string][]byte, error) {
	var paths []string
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(srcDir, path)
			if err != nil {
				return err
			}
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, &SourceReadError{Path: srcDir, Err: err}
	}

	results := make(map[string][]byte, len(paths))
	var mu sync.Mutex
	var wg sync.WaitGroup
	errCh := make(chan error, len(paths))
	sem := make(chan struct{}, w.workers)

	for _, rel := range paths {
		rel := rel
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := os.ReadFile(filepath.Join(srcDir, rel))
			if err != nil {
				errCh <- &SourceReadError{Path: rel, Err: err}
				return
			}
			c, err := w.codec.Compress(data)
			if err != nil {
				errCh <- err
				return
			}
			mu.Lock()
			results[rel] = c
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// addDir assigns fids and emits entries for one directory level in DFS
// preorder: each child is visited in listing order (sorted, unless
// WithSort(false) was given), and directories recurse immediately so that a
// parent's fid always precedes any of its descendants'. A fid is only
// assigned to a child that actually gets an entry: a skipped non-regular
// file must not consume one, or the fid sequence goes sparse and the
// reader's dense-fid tree (see node.go's tree.add) refuses to open the
// resulting archive.
func (w *Writer) addDir(dirPath string, parentFid uint64, blobs map[string][]byte) error {
	dir, err := os.Open(dirPath)
	if err != nil {
		return &SourceReadError{Path: dirPath, Err: err}
	}
	// (*os.File).ReadDir returns entries in directory order; os.ReadDir
	// would sort them by name and make WithSort(false) a no-op.
	ents, err := dir.ReadDir(-1)
	dir.Close()
	if err != nil {
		return &SourceReadError{Path: dirPath, Err: err}
	}
	if w.sort {
		sort.Slice(ents, func(i, j int) bool { return ents[i].Name() < ents[j].Name() })
	}

	for _, d := range ents {
		name := d.Name()
		childPath := filepath.Join(dirPath, name)

		switch {
		case d.Type().IsDir():
			w.fidcnt++
			fid := w.fidcnt
			w.entries = append(w.entries, &Entry{Fid: fid, Parent: parentFid, Name: name})
			if err := w.addDir(childPath, fid, blobs); err != nil {
				return err
			}
		case d.Type().IsRegular():
			rel, err := filepath.Rel(w.srcRoot, childPath)
			if err != nil {
				return &SourceReadError{Path: childPath, Err: err}
			}
			data, ok := blobs[rel]
			if !ok {
				return fmt.Errorf("zsr: internal error: missing precompressed blob for %s", rel)
			}
			start := w.fileloc
			if _, err := w.out.Write(data); err != nil {
				return &SinkWriteError{Err: err}
			}
			w.fileloc += uint64(len(data))

			w.fidcnt++
			fid := w.fidcnt
			w.entries = append(w.entries, &Entry{Fid: fid, Parent: parentFid, Start: start, Length: uint64(len(data)), Name: name})
		default:
			log.Printf("zsr: skipping non-regular file %s", childPath)
		}
	}
	return nil
}

// Finalize serializes the accumulated index, compresses it, appends it to
// the output, and patches idx_start into the header at offset 4. After
// Finalize returns the Writer must not be reused.
func (w *Writer) Finalize() error {
	var buf bytes.Buffer
	for _, e := range w.entries {
		b, err := e.MarshalBinary()
		if err != nil {
			return err
		}
		buf.Write(b)
	}

	compressedIdx, err := w.codec.Compress(buf.Bytes())
	if err != nil {
		return err
	}

	idxStart := w.fileloc
	if _, err := w.out.Write(compressedIdx); err != nil {
		return &SinkWriteError{Err: err}
	}

	if _, err := w.out.Seek(4, io.SeekStart); err != nil {
		return &SinkWriteError{Err: err}
	}
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], idxStart)
	if _, err := w.out.Write(sizeBuf[:]); err != nil {
		return &SinkWriteError{Err: err}
	}

	if w.underlying == nil {
		return nil
	}

	ws := w.out.(*writerseeker.WriterSeeker)
	r, err := ws.Reader()
	if err != nil {
		return &SinkWriteError{Err: err}
	}
	if _, err := io.Copy(w.underlying, r); err != nil {
		return &SinkWriteError{Err: err}
	}
	return nil
}

// Create builds an archive of the directory tree rooted at srcDir and
// writes it to outPath, atomically: output is staged in a temp file in
// outPath's directory via github.com/google/renameio and committed with a
// single rename only once the archive is fully and successfully written.
func Create(srcDir, outPath string, opts ...WriterOption) error {
	dir := filepath.Dir(outPath)
	pf, err := renameio.TempFile(dir, outPath)
	if err != nil {
		return &SinkWriteError{Err: err}
	}
	defer pf.Cleanup()

	w, err := NewWriter(pf, opts...)
	if err != nil {
		return err
	}
	if err := w.AddTree(srcDir); err != nil {
		return err
	}
	if err := w.Finalize(); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}
