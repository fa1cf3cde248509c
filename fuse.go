//go:build fuse

package zsr

import (
	"context"
	"fmt"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// zsrNode backs one archive entry as a FUSE inode, read-only. It is built
// from the same *Node tree GetFile/ExtractSubtree use, so a mounted
// archive and a programmatic read see identical contents.
//
// ZSR's index stores each file's compressed blob length, not its
// decompressed size, so st_size can't be read off the Node directly: it
// must come from decoding the blob. decoded caches that result per-inode
// so Lookup/Getattr/Open/Read, which all need it, decode at most once.
type zsrNode struct {
	fs.Inode
	r *Reader
	n *Node

	decodeOnce sync.Once
	data       []byte
	decodeErr  error
}

var (
	_ fs.NodeLookuper  = (*zsrNode)(nil)
	_ fs.NodeReaddirer = (*zsrNode)(nil)
	_ fs.NodeGetattrer = (*zsrNode)(nil)
	_ fs.NodeOpener    = (*zsrNode)(nil)
)

func (zn *zsrNode) decoded() ([]byte, error) {
	zn.decodeOnce.Do(func() {
		zn.data, zn.decodeErr = zn.r.decodeBlob(zn.n)
	})
	return zn.data, zn.decodeErr
}

func (zn *zsrNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	idx, ok := zn.n.childIndex[name]
	if !ok {
		return nil, syscall.ENOENT
	}
	child, ok := zn.r.tree.get(zn.n.children[idx])
	if !ok {
		return nil, syscall.ENOENT
	}
	mode := uint32(fuse.S_IFREG)
	if child.IsDir() {
		mode = fuse.S_IFDIR
	}
	childNode := &zsrNode{r: zn.r, n: child}
	if !child.IsDir() {
		data, err := childNode.decoded()
		if err != nil {
			return nil, syscall.EIO
		}
		out.Size = uint64(len(data))
	}
	childInode := zn.NewInode(ctx, childNode, fs.StableAttr{Mode: mode, Ino: child.Fid})
	return childInode, 0
}

func (zn *zsrNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, 0, len(zn.n.Children()))
	for _, fid := range zn.n.Children() {
		child, ok := zn.r.tree.get(fid)
		if !ok {
			continue
		}
		mode := uint32(fuse.S_IFREG)
		if child.IsDir() {
			mode = fuse.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: child.Name, Ino: child.Fid, Mode: mode})
	}
	return fs.NewListDirStream(entries), 0
}

func (zn *zsrNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if zn.n.IsDir() {
		out.Mode = fuse.S_IFDIR | 0o555
		return 0
	}
	data, err := zn.decoded()
	if err != nil {
		return syscall.EIO
	}
	out.Mode = fuse.S_IFREG | 0o444
	out.Size = uint64(len(data))
	return 0
}

func (zn *zsrNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if zn.n.IsDir() {
		return nil, 0, syscall.EISDIR
	}
	data, err := zn.decoded()
	if err != nil {
		return nil, 0, syscall.EIO
	}
	return &zsrFileHandle{data: data}, fuse.FOPEN_KEEP_CACHE, 0
}

type zsrFileHandle struct {
	data []byte
}

var _ fs.FileReader = (*zsrFileHandle)(nil)

func (fh *zsrFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off < 0 || off > int64(len(fh.data)) {
		off = int64(len(fh.data))
	}
	end := off + int64(len(dest))
	if end > int64(len(fh.data)) {
		end = int64(len(fh.data))
	}
	return fuse.ReadResultData(fh.data[off:end]), 0
}

// Mount exposes r as a read-only FUSE filesystem at mountpoint. The
// returned server must be Wait()ed or Unmount()ed by the caller.
func Mount(r *Reader, mountpoint string) (*fuse.Server, error) {
	root := &zsrNode{r: r, n: r.tree.root()}
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:   r.path,
			Name:     "zsr",
			ReadOnly: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("zsr: mount failed: %w", err)
	}
	return server, nil
}
