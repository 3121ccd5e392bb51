// Package index provides interfaces and types for vector search indexes.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/embedgo/distance"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyVector is returned when an empty vector is inserted or queried.
	ErrEmptyVector = errors.New("vector must not be empty")
)

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrInvalidMetric indicates an unsupported similarity metric.
type ErrInvalidMetric struct {
	Metric distance.Metric
}

func (e *ErrInvalidMetric) Error() string {
	return fmt.Sprintf("invalid metric: %d", e.Metric)
}

// ErrNodeNotFound indicates a lookup of an ID the index never held.
type ErrNodeNotFound struct {
	ID uint32
}

func (e *ErrNodeNotFound) Error() string {
	return fmt.Sprintf("node %d not found", e.ID)
}

// ErrNodeDeleted indicates a lookup of an ID that has been deleted.
type ErrNodeDeleted struct {
	ID uint32
}

func (e *ErrNodeDeleted) Error() string {
	return fmt.Sprintf("node %d deleted", e.ID)
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// ID is the internal identifier of the hit.
	ID uint32

	// Distance is the internal distance between query and hit (lower is better).
	Distance float32
}

// SearchOptions contains per-call options for KNN search.
type SearchOptions struct {
	// Filter restricts the candidate set. Only IDs for which Filter returns
	// true are considered. Nil means no restriction.
	Filter func(id uint32) bool
}

// Index represents a vector search index.
//
// Implementations must provide snapshot-isolated reads: a search observes the
// index state as of some single point between its start and completion, never
// a partially applied mutation.
type Index interface {
	// Insert adds a vector and returns its assigned internal ID.
	Insert(ctx context.Context, v []float32) (uint32, error)

	// Update replaces the vector stored at an existing ID.
	Update(ctx context.Context, id uint32, v []float32) error

	// Delete removes a vector. Deleting an unknown ID returns ErrNodeNotFound.
	Delete(ctx context.Context, id uint32) error

	// KNNSearch returns up to k nearest neighbors ordered best-first.
	// Ordering is deterministic: distance ascending, internal ID as tie-break.
	KNNSearch(ctx context.Context, query []float32, k int, opts *SearchOptions) ([]SearchResult, error)

	// VectorByID returns the stored vector for an ID.
	// The returned slice must be treated as read-only.
	VectorByID(ctx context.Context, id uint32) ([]float32, error)

	// Len returns the number of live vectors.
	Len() int

	// Dimension returns the configured vector dimensionality.
	Dimension() int

	// Metric returns the similarity metric fixed at construction.
	Metric() distance.Metric
}

// ValidateBasicOptions checks dimension and metric configuration shared by
// index constructors. The metric set is closed; anything outside it fails
// here, at construction time.
func ValidateBasicOptions(dimension int, metric distance.Metric) error {
	if dimension <= 0 {
		return &ErrInvalidDimension{Dimension: dimension}
	}
	if !metric.Valid() {
		return &ErrInvalidMetric{Metric: metric}
	}
	return nil
}
