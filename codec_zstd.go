//go:build zstd

package zsr

import (
	"github.com/klauspost/compress/zstd"
)

// zstdCodec wraps github.com/klauspost/compress/zstd. It is wired behind the
// "zstd" build tag, mirroring the teacher's comp_zstd.go, to demonstrate that
// ZSR's codec is a replaceable primitive rather than an LZMA-specific one.
type zstdCodec struct{}

func (zstdCodec) Compress(p []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(p, nil), nil
}

func (zstdCodec) Decompress(p []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, ErrCorruptBlob
	}
	defer dec.Close()
	out, err := dec.DecodeAll(p, nil)
	if err != nil {
		return nil, ErrCorruptBlob
	}
	return out, nil
}

func init() {
	RegisterCodec(CodecZstd, zstdCodec{})
}
