// Package codec centralizes document payload and metadata encoding.
//
// Codec selection is a compatibility boundary: persisted snapshots record the
// codec name in their header, and bytes written by one codec are only
// guaranteed to decode with the same codec.
package codec

import "fmt"

// Codec encodes and decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name. Self-describing
// persistence formats use this to select the decoder recorded in their
// header.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests and benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}

	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}

	return b
}

// Default is the codec used when none is configured. Persisted files are
// self-describing, so changing the default never breaks existing data.
var Default Codec = GoJSON{}
