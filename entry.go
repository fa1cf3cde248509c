package zsr

import (
	"encoding/binary"
	"fmt"
)

// entryHeaderSize is the fixed portion of an on-disk Entry record:
// fid, parent, start, length (4 x uint64) + namelen (int16).
const entryHeaderSize = 8*4 + 2

// Entry is the fixed-layout + variable-name on-disk record described by the
// ZSR format: a unique fid assigned in DFS preorder, the fid of its parent
// directory (0 for entries directly under the root), the absolute byte
// offset and length of its compressed blob (both 0 for directories), and
// its UTF-8 name.
type Entry struct {
	Fid    uint64
	Parent uint64
	Start  uint64
	Length uint64
	Name   string
}

// IsDir reports whether this entry describes a directory (start == 0 implies
// length == 0 implies directory, per the format's invariant).
func (e *Entry) IsDir() bool {
	return e.Start == 0
}

// MarshalBinary encodes e as fid, parent, start, length (little-endian
// uint64 each), namelen (little-endian int16), followed by the raw UTF-8
// name bytes with no trailing NUL.
func (e *Entry) MarshalBinary() ([]byte, error) {
	name := []byte(e.Name)
	if len(name) > 0x7fff {
		return nil, fmt.Errorf("zsr: name %q too long to encode", e.Name)
	}
	buf := make([]byte, entryHeaderSize+len(name))
	binary.LittleEndian.PutUint64(buf[0:8], e.Fid)
	binary.LittleEndian.PutUint64(buf[8:16], e.Parent)
	binary.LittleEndian.PutUint64(buf[16:24], e.Start)
	binary.LittleEndian.PutUint64(buf[24:32], e.Length)
	binary.LittleEndian.PutUint16(buf[32:34], uint16(int16(len(name))))
	copy(buf[entryHeaderSize:], name)
	return buf, nil
}

// unmarshalEntry decodes one Entry from the front of buf and returns it
// along with the number of bytes consumed. It returns ErrTruncatedIndex if
// buf does not hold a complete record, and refuses a negative namelen as
// corruption (the field is signed in the on-disk format but semantically a
// byte count).
func unmarshalEntry(buf []byte) (*Entry, int, error) {
	if len(buf) < entryHeaderSize {
		return nil, 0, ErrTruncatedIndex
	}
	e := &Entry{
		Fid:    binary.LittleEndian.Uint64(buf[0:8]),
		Parent: binary.LittleEndian.Uint64(buf[8:16]),
		Start:  binary.LittleEndian.Uint64(buf[16:24]),
		Length: binary.LittleEndian.Uint64(buf[24:32]),
	}
	namelen := int16(binary.LittleEndian.Uint16(buf[32:34]))
	if namelen < 0 {
		return nil, 0, fmt.Errorf("%w: negative name length %d", ErrTruncatedIndex, namelen)
	}
	total := entryHeaderSize + int(namelen)
	if len(buf) < total {
		return nil, 0, ErrTruncatedIndex
	}
	e.Name = string(buf[entryHeaderSize:total])
	return e, total, nil
}
