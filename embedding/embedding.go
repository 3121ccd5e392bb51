// Package embedding defines the Embedder contract and implementations that
// turn text into vectors suitable for indexing and search.
package embedding

import (
	"context"
	"errors"
)

// ErrNoTexts is returned when Embed is called with an empty input slice.
var ErrNoTexts = errors.New("embedding: no texts provided")

// ErrBatchSizeMismatch is returned when a provider responds with a different
// number of vectors than texts requested.
var ErrBatchSizeMismatch = errors.New("embedding: provider returned wrong number of vectors")

// Embedder converts a batch of texts into one vector per text, preserving
// input order. Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a plain function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embed implements Embedder.
func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}
