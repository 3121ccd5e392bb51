package embedgo

import (
	"github.com/hupe1980/embedgo/metadata"
)

// Document is a unit of content stored and retrieved by similarity. The
// payload type T is caller-defined; string is the common case.
type Document[T any] struct {
	// ID identifies the document for upserts and deletes. Empty IDs are
	// assigned a generated UUID on add.
	ID string `json:"id"`

	// Content is the caller payload, returned verbatim from searches.
	Content T `json:"content"`

	// Metadata holds typed fields used by filter predicates.
	Metadata metadata.Metadata `json:"metadata,omitempty"`

	// Vector is the embedding. Left nil, it is computed by the configured
	// embedder when the document is added.
	Vector []float32 `json:"vector,omitempty"`
}

// ScoredDocument pairs a document with its query score. The score's
// orientation depends on the store metric: cosine similarity and dot product
// rank higher-is-better, squared euclidean distance lower-is-better. Result
// slices are always ordered best first.
type ScoredDocument[T any] struct {
	Document[T]

	Score float32 `json:"score"`
}
