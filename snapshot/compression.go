package snapshot

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression wraps a stream compressor. Snapshots record the compression
// name in their header so files are self-describing.
type Compression interface {
	Name() string
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.Reader, error)
}

// CompressionByName returns a built-in compression by its stable name.
func CompressionByName(name string) (Compression, bool) {
	switch name {
	case "none":
		return None{}, true
	case "zstd":
		return Zstd{}, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}

// DefaultCompression is used for newly written snapshots.
var DefaultCompression Compression = Zstd{}

// None passes data through uncompressed.
type None struct{}

// Name returns the unique name of the compression ("none").
func (None) Name() string { return "none" }

// NewWriter returns a pass-through writer.
func (None) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// NewReader returns a pass-through reader.
func (None) NewReader(r io.Reader) (io.Reader, error) {
	return r, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Zstd compresses with Zstandard. Good ratio at high throughput, the
// default for snapshots.
type Zstd struct{}

// Name returns the unique name of the compression ("zstd").
func (Zstd) Name() string { return "zstd" }

// NewWriter returns a zstd stream writer.
func (Zstd) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

// NewReader returns a zstd stream reader.
func (Zstd) NewReader(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}

	return dec.IOReadCloser(), nil
}

// LZ4 compresses with LZ4. Lower ratio than zstd but very fast to decode.
type LZ4 struct{}

// Name returns the unique name of the compression ("lz4").
func (LZ4) Name() string { return "lz4" }

// NewWriter returns an lz4 stream writer.
func (LZ4) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

// NewReader returns an lz4 stream reader.
func (LZ4) NewReader(r io.Reader) (io.Reader, error) {
	return lz4.NewReader(r), nil
}
