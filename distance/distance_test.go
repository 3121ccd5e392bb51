package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dot(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SquaredL2(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestNormalizeL2(t *testing.T) {
	t.Run("InPlace", func(t *testing.T) {
		v := []float32{3, 4}
		ok := NormalizeL2InPlace(v)
		require.True(t, ok)
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
		assert.InDelta(t, 1.0, math.Sqrt(float64(Dot(v, v))), 1e-6)
	})

	t.Run("ZeroVector", func(t *testing.T) {
		ok := NormalizeL2InPlace([]float32{0, 0, 0})
		assert.False(t, ok)
	})

	t.Run("Copy", func(t *testing.T) {
		src := []float32{0, 5}
		dst, ok := NormalizeL2Copy(src)
		require.True(t, ok)
		assert.Equal(t, []float32{0, 5}, src)
		assert.InDelta(t, 1.0, dst[1], 1e-6)
	})
}

func TestMetric(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "Cosine", MetricCosine.String())
		assert.Equal(t, "Euclidean", MetricEuclidean.String())
		assert.Equal(t, "DotProduct", MetricDotProduct.String())
		assert.Contains(t, Metric(42).String(), "Unknown")
	})

	t.Run("Valid", func(t *testing.T) {
		assert.True(t, MetricCosine.Valid())
		assert.True(t, MetricEuclidean.Valid())
		assert.True(t, MetricDotProduct.Valid())
		assert.False(t, Metric(42).Valid())
	})

	t.Run("Ascending", func(t *testing.T) {
		assert.True(t, MetricEuclidean.Ascending())
		assert.False(t, MetricCosine.Ascending())
		assert.False(t, MetricDotProduct.Ascending())
	})
}

func TestProvider(t *testing.T) {
	t.Run("Euclidean", func(t *testing.T) {
		fn, err := Provider(MetricEuclidean)
		require.NoError(t, err)
		assert.InDelta(t, 27, fn([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-5)
	})

	t.Run("DotProduct", func(t *testing.T) {
		fn, err := Provider(MetricDotProduct)
		require.NoError(t, err)
		// Negated so lower is better.
		assert.InDelta(t, -32, fn([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-5)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := Provider(Metric(42))
		assert.Error(t, err)
	})
}

func TestScore(t *testing.T) {
	t.Run("CosineRoundTrip", func(t *testing.T) {
		a, _ := NormalizeL2Copy([]float32{1, 0})
		b, _ := NormalizeL2Copy([]float32{0.9, 0.1})

		fn, err := Provider(MetricCosine)
		require.NoError(t, err)

		got := Score(MetricCosine, fn(a, b))
		want := Dot(a, b)
		assert.InDelta(t, want, got, 1e-5)
	})

	t.Run("ExactMatchIsOne", func(t *testing.T) {
		a, _ := NormalizeL2Copy([]float32{1, 0})
		fn, _ := Provider(MetricCosine)
		assert.InDelta(t, 1.0, Score(MetricCosine, fn(a, a)), 1e-6)
	})

	t.Run("DotProduct", func(t *testing.T) {
		assert.InDelta(t, 32, Score(MetricDotProduct, -32), 1e-6)
	})

	t.Run("Euclidean", func(t *testing.T) {
		assert.InDelta(t, 27, Score(MetricEuclidean, 27), 1e-6)
	})
}

func TestSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	assert.InDelta(t, 0, Similarity(MetricCosine, a, b), 1e-6)
	assert.InDelta(t, -2, Similarity(MetricEuclidean, a, b), 1e-6)
	assert.InDelta(t, 0, Similarity(MetricDotProduct, a, b), 1e-6)
}
