// Package snapshot implements the sectioned on-disk container for persisted
// stores. A snapshot records its codec and compression in a raw header, then
// carries named sections (index, payloads, metadata) in a compressed stream
// protected by a CRC32 trailer.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"

	"github.com/hupe1980/embedgo/codec"
)

// Magic identifies snapshot files.
var Magic = [4]byte{'E', 'M', 'B', 'G'}

// Version is the current container format version.
const Version uint16 = 1

// Well-known section names.
const (
	SectionManifest = "manifest"
	SectionIndex    = "index"
	SectionPayloads = "payloads"
	SectionMetadata = "metadata"
)

var (
	// ErrBadMagic is returned when a file is not a snapshot.
	ErrBadMagic = errors.New("snapshot: bad magic")

	// ErrUnsupportedVersion is returned for snapshots written by a newer
	// format version.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")

	// ErrUnknownCodec is returned when the header names a codec this
	// build does not include.
	ErrUnknownCodec = errors.New("snapshot: unknown codec")

	// ErrUnknownCompression is returned when the header names a
	// compression this build does not include.
	ErrUnknownCompression = errors.New("snapshot: unknown compression")

	// ErrChecksum is returned when the trailer CRC does not match the
	// section stream.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Writer writes a snapshot container to an underlying stream. Sections are
// written in call order. Close finishes the trailer and the compressor but
// leaves the underlying writer open.
type Writer struct {
	cw     io.WriteCloser
	crc    hash.Hash32
	codec  codec.Codec
	closed bool
}

// NewWriter starts a snapshot on w. Nil codec or compression select the
// defaults.
func NewWriter(w io.Writer, c codec.Codec, comp Compression) (*Writer, error) {
	if c == nil {
		c = codec.Default
	}
	if comp == nil {
		comp = DefaultCompression
	}

	bw := bufio.NewWriter(w)

	if _, err := bw.Write(Magic[:]); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.LittleEndian, Version); err != nil {
		return nil, err
	}
	if err := writeString(bw, c.Name()); err != nil {
		return nil, err
	}
	if err := writeString(bw, comp.Name()); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}

	cw, err := comp.NewWriter(w)
	if err != nil {
		return nil, err
	}

	return &Writer{
		cw:    cw,
		crc:   crc32.New(crcTable),
		codec: c,
	}, nil
}

// Codec returns the codec recorded in the header.
func (w *Writer) Codec() codec.Codec { return w.codec }

// WriteSection appends a named section with raw bytes.
func (w *Writer) WriteSection(name string, data []byte) error {
	if w.closed {
		return errors.New("snapshot: writer closed")
	}
	if name == "" {
		return errors.New("snapshot: empty section name")
	}

	body := io.MultiWriter(w.cw, w.crc)

	if err := writeString(body, name); err != nil {
		return err
	}
	if err := binary.Write(body, binary.LittleEndian, uint64(len(data))); err != nil {
		return err
	}

	_, err := body.Write(data)
	return err
}

// EncodeSection marshals v with the snapshot's codec and appends it as a
// named section.
func (w *Writer) EncodeSection(name string, v any) error {
	data, err := w.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("snapshot: encode section %q: %w", name, err)
	}

	return w.WriteSection(name, data)
}

// Close writes the trailer and finishes the compression stream.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	// Zero-length name terminates the section stream.
	if err := writeString(w.cw, ""); err != nil {
		return err
	}
	if err := binary.Write(w.cw, binary.LittleEndian, w.crc.Sum32()); err != nil {
		return err
	}

	return w.cw.Close()
}

// Reader reads a snapshot container. Sections come back in the order they
// were written; the trailer CRC is verified when the final section has been
// consumed.
type Reader struct {
	cr    io.Reader
	crc   hash.Hash32
	codec codec.Codec
}

// NewReader opens a snapshot stream, validating the header and selecting
// the codec and compression it names.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrBadMagic
	}

	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	codecName, err := readString(br)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codecName)
	}

	compName, err := readString(br)
	if err != nil {
		return nil, err
	}

	comp, ok := CompressionByName(compName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, compName)
	}

	cr, err := comp.NewReader(br)
	if err != nil {
		return nil, err
	}

	return &Reader{
		cr:    cr,
		crc:   crc32.New(crcTable),
		codec: c,
	}, nil
}

// Codec returns the codec recorded in the header.
func (r *Reader) Codec() codec.Codec { return r.codec }

// ReadSection returns the next section. It returns io.EOF after the last
// section, at which point the trailer CRC has been verified.
func (r *Reader) ReadSection() (string, []byte, error) {
	name, err := readString(r.cr)
	if err != nil {
		return "", nil, err
	}

	if name == "" {
		var sum uint32
		if err := binary.Read(r.cr, binary.LittleEndian, &sum); err != nil {
			return "", nil, err
		}
		if sum != r.crc.Sum32() {
			return "", nil, ErrChecksum
		}
		return "", nil, io.EOF
	}

	r.crcString(name)

	var length uint64
	if err := binary.Read(r.cr, binary.LittleEndian, &length); err != nil {
		return "", nil, err
	}
	if err := binary.Write(r.crc, binary.LittleEndian, length); err != nil {
		return "", nil, err
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.cr, data); err != nil {
		return "", nil, err
	}
	r.crc.Write(data)

	return name, data, nil
}

// DecodeSections reads every remaining section, unmarshalling each into the
// destination registered under its name. Unknown sections are skipped so
// older binaries tolerate newer snapshots.
func (r *Reader) DecodeSections(dsts map[string]any) error {
	for {
		name, data, err := r.ReadSection()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		dst, ok := dsts[name]
		if !ok {
			continue
		}

		if err := r.codec.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("snapshot: decode section %q: %w", name, err)
		}
	}
}

func (r *Reader) crcString(s string) {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	r.crc.Write(lenBuf[:])
	r.crc.Write([]byte(s))
}

func writeString(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("snapshot: string too long: %d", len(s))
	}

	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}

	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}
