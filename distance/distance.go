// Package distance provides vector distance kernels and the closed set of
// similarity metrics supported by embedgo.
package distance

import (
	"fmt"
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the similarity metric used for vector comparison.
//
// The set is closed and fixed at index construction time. There is no
// call-time metric dispatch and no way to change the metric after data
// has been inserted.
type Metric int

const (
	// MetricCosine ranks by cosine similarity. Vectors are L2-normalized on
	// insert, so the internal distance is squared L2 over unit vectors.
	MetricCosine Metric = iota

	// MetricEuclidean ranks by squared L2 distance.
	MetricEuclidean

	// MetricDotProduct ranks by inner product (higher is better).
	MetricDotProduct
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricEuclidean:
		return "Euclidean"
	case MetricDotProduct:
		return "DotProduct"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric resolves a metric by its stable name, as written to snapshot
// manifests.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "Cosine":
		return MetricCosine, nil
	case "Euclidean":
		return MetricEuclidean, nil
	case "DotProduct":
		return MetricDotProduct, nil
	default:
		return 0, fmt.Errorf("distance: unknown metric name: %q", name)
	}
}

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricEuclidean, MetricDotProduct:
		return true
	default:
		return false
	}
}

// Ascending reports whether smaller caller-facing scores rank better for
// this metric. Distance metrics are ascending, similarity metrics descending.
func (m Metric) Ascending() bool {
	return m == MetricEuclidean
}

// Func is a function type for internal distance calculation.
// All internal distances are "lower is better".
type Func func(a, b []float32) float32

// Provider returns the internal distance function for the given metric.
//
// Cosine assumes both inputs are already L2-normalized (the index normalizes
// on insert and per query); squared L2 over unit vectors preserves cosine
// ranking. Dot product is negated so that lower remains better.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine, MetricEuclidean:
		return SquaredL2, nil
	case MetricDotProduct:
		return negatedDot, nil
	default:
		return nil, fmt.Errorf("distance: unsupported metric: %v", m)
	}
}

func negatedDot(a, b []float32) float32 {
	return -Dot(a, b)
}

// Score converts an internal distance back to the caller-facing score for
// the given metric: cosine similarity in [-1, 1], squared L2, or dot product.
func Score(m Metric, dist float32) float32 {
	switch m {
	case MetricCosine:
		// For unit vectors: ||a-b||^2 = 2 - 2*cos(a,b).
		return 1 - dist/2
	case MetricDotProduct:
		return -dist
	default:
		return dist
	}
}

// Similarity returns a "higher is better" similarity between two vectors
// under the given metric. Used by MMR-style re-ranking where relevance and
// redundancy must share an orientation.
func Similarity(m Metric, a, b []float32) float32 {
	switch m {
	case MetricEuclidean:
		return -SquaredL2(a, b)
	default:
		return Dot(a, b)
	}
}
