package zsr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// Codec is the replaceable compression primitive spec.md §4.1 describes: a
// self-delimiting byte-stream compressor/decompressor pair. Decompression
// must succeed iff the input is a well-formed stream produced by Compress,
// and must not require any external sizing information beyond the stored
// blob length.
type Codec interface {
	Compress(p []byte) ([]byte, error)
	Decompress(p []byte) ([]byte, error)
}

// CodecID identifies a registered Codec. It is never stored on disk (the
// ZSR header carries only magic + idx_start); it is a construction-time
// choice a Writer and Reader must agree on out of band.
type CodecID int

const (
	// CodecLZMA is the default codec: the xz container format, matching
	// what the Python reference implementation's lzma.compress/decompress
	// produce at their default settings.
	CodecLZMA CodecID = iota
	// CodecZstd is an optional alternative codec (build tag "zstd"),
	// demonstrating that the codec is a replaceable primitive.
	CodecZstd
)

var registry = map[CodecID]Codec{
	CodecLZMA: lzmaCodec{},
}

// RegisterCodec makes c available under id for the WithCodec (NewWriter)
// and WithReaderCodec (Open/NewReader) options. Codecs register themselves from init(), the same convention the
// teacher's comp_xz.go/comp_zstd.go use for SquashFS compressors.
func RegisterCodec(id CodecID, c Codec) {
	registry[id] = c
}

func lookupCodec(id CodecID) (Codec, error) {
	c, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("zsr: no codec registered for id %d", id)
	}
	return c, nil
}

// lzmaCodec wraps github.com/ulikunitz/xz, producing/consuming self-
// delimiting xz streams with no external size hint required.
type lzmaCodec struct{}

func (lzmaCodec) Compress(p []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := xz.NewWriter(&out)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(p); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (lzmaCodec) Decompress(p []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, ErrCorruptBlob
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrCorruptBlob
	}
	return out, nil
}
