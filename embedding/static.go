package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Static is a deterministic, offline embedder. Each text hashes to a fixed
// unit vector, so equal texts always map to equal vectors across processes.
// It carries no semantic signal and exists for tests, examples, and smoke
// checks that must not call an external API.
type Static struct {
	dimension int
	overrides map[string][]float32
}

var _ Embedder = (*Static)(nil)

// NewStatic creates a deterministic embedder producing vectors of the given
// dimension.
func NewStatic(dimension int) *Static {
	return &Static{
		dimension: dimension,
		overrides: make(map[string][]float32),
	}
}

// WithVector pins a text to an exact vector, bypassing hashing. Returns the
// receiver for chaining.
func (e *Static) WithVector(text string, vector []float32) *Static {
	e.overrides[text] = vector
	return e
}

// Dimension returns the vector dimension this embedder produces.
func (e *Static) Dimension() int {
	return e.dimension
}

// Embed implements Embedder.
func (e *Static) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if pinned, ok := e.overrides[text]; ok {
			vec := make([]float32, len(pinned))
			copy(vec, pinned)
			vectors[i] = vec
			continue
		}
		vectors[i] = e.hashVector(text)
	}

	return vectors, nil
}

// hashVector expands an FNV-1a stream over the text into a unit vector.
func (e *Static) hashVector(text string) []float32 {
	vec := make([]float32, e.dimension)

	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64()

	var norm float64
	for i := range vec {
		// xorshift64 over the seed gives each component an independent value.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17

		v := float64(int64(state)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return vec
}
