package embedding

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()

	t.Run("Deterministic", func(t *testing.T) {
		e := NewStatic(8)

		a, err := e.Embed(ctx, []string{"hello", "world"})
		require.NoError(t, err)

		b, err := e.Embed(ctx, []string{"hello", "world"})
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("Dimension", func(t *testing.T) {
		e := NewStatic(16)

		vecs, err := e.Embed(ctx, []string{"x"})
		require.NoError(t, err)
		require.Len(t, vecs, 1)
		assert.Len(t, vecs[0], 16)
		assert.Equal(t, 16, e.Dimension())
	})

	t.Run("UnitNorm", func(t *testing.T) {
		e := NewStatic(32)

		vecs, err := e.Embed(ctx, []string{"normalize me"})
		require.NoError(t, err)

		var norm float64
		for _, v := range vecs[0] {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	})

	t.Run("DistinctTexts", func(t *testing.T) {
		e := NewStatic(8)

		vecs, err := e.Embed(ctx, []string{"alpha", "beta"})
		require.NoError(t, err)
		assert.NotEqual(t, vecs[0], vecs[1])
	})

	t.Run("PinnedVector", func(t *testing.T) {
		e := NewStatic(2).WithVector("query", []float32{1, 0})

		vecs, err := e.Embed(ctx, []string{"query"})
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, vecs[0])
	})

	t.Run("EmptyInput", func(t *testing.T) {
		e := NewStatic(4)

		_, err := e.Embed(ctx, nil)
		assert.ErrorIs(t, err, ErrNoTexts)
	})
}

func TestEmbedderFunc(t *testing.T) {
	e := EmbedderFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(i)}
		}
		return out, nil
	})

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0}, {1}}, vecs)
}

func TestNewOpenAIValidation(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		e, err := NewOpenAI()
		require.NoError(t, err)
		assert.Equal(t, DefaultOpenAIModel, e.opts.Model)
	})

	t.Run("InvalidBatchSize", func(t *testing.T) {
		_, err := NewOpenAI(func(o *OpenAIOptions) {
			o.BatchSize = 0
		})
		assert.Error(t, err)
	})

	t.Run("InvalidConcurrency", func(t *testing.T) {
		_, err := NewOpenAI(func(o *OpenAIOptions) {
			o.MaxConcurrency = -1
		})
		assert.Error(t, err)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		e, err := NewOpenAI()
		require.NoError(t, err)

		_, err = e.Embed(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNoTexts)
	})
}

func TestOpenAIEmbedPlacesByIndex(t *testing.T) {
	// The response lists the second input's embedding first. Vectors must
	// land by each datum's index, not by response order.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`)
	}))
	defer srv.Close()

	e, err := NewOpenAI(func(o *OpenAIOptions) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1}, vecs[1])
}
