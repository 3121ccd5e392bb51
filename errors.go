package embedgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/embedgo/distance"
	"github.com/hupe1980/embedgo/index"
)

var (
	// ErrNotFound is returned when a document is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyIndex is returned by retrieval when the store holds no
	// documents.
	ErrEmptyIndex = errors.New("store is empty")

	// ErrConfiguration is the common ancestor of all construction-time
	// validation failures. errors.Is(err, ErrConfiguration) matches
	// invalid dimensions, metrics, and option values alike.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNoEmbedder is returned when an operation needs to embed text but
	// no embedder is configured.
	ErrNoEmbedder = errors.New("no embedder configured")

	// ErrEmbedding wraps failures from the configured embedder.
	ErrEmbedding = errors.New("embedding failed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidDimension indicates an invalid configured dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidDimension struct {
	Dimension int
	cause     error
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

func (e *ErrInvalidDimension) Unwrap() error { return e.cause }

func (e *ErrInvalidDimension) Is(target error) bool { return target == ErrConfiguration }

// ErrInvalidMetric indicates an unsupported similarity metric.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidMetric struct {
	Metric distance.Metric
	cause  error
}

func (e *ErrInvalidMetric) Error() string {
	return fmt.Sprintf("invalid metric: %v", e.Metric)
}

func (e *ErrInvalidMetric) Unwrap() error { return e.cause }

func (e *ErrInvalidMetric) Is(target error) bool { return target == ErrConfiguration }

// translateError normalizes index-level errors into the store's error
// vocabulary so callers only match against this package.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var enf *index.ErrNodeNotFound
	if errors.As(err, &enf) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var end *index.ErrNodeDeleted
	if errors.As(err, &end) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	var id *index.ErrInvalidDimension
	if errors.As(err, &id) {
		return &ErrInvalidDimension{Dimension: id.Dimension, cause: err}
	}
	var im *index.ErrInvalidMetric
	if errors.As(err, &im) {
		return &ErrInvalidMetric{Metric: im.Metric, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	return err
}
