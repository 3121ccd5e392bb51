package flat

import (
	"context"
	"testing"

	"github.com/hupe1980/embedgo/distance"
	"github.com/hupe1980/embedgo/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEuclidean(t *testing.T, dim int) *Flat {
	t.Helper()
	f, err := New(func(o *Options) {
		o.Dimension = dim
		o.Metric = distance.MetricEuclidean
	})
	require.NoError(t, err)
	return f
}

func TestFlat(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		_, err := New()
		assert.Error(t, err, "dimension is required")

		_, err = New(func(o *Options) {
			o.Dimension = 3
			o.Metric = distance.Metric(42)
		})
		assert.Error(t, err)
	})

	t.Run("Insert", func(t *testing.T) {
		f := newEuclidean(t, 3)

		id, err := f.Insert(ctx, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, uint32(0), id)
		assert.Equal(t, 1, f.Len())

		_, err = f.Insert(ctx, []float32{1, 2})
		assert.Error(t, err)
		var dm *index.ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm)

		_, err = f.Insert(ctx, nil)
		assert.ErrorIs(t, err, index.ErrEmptyVector)
	})

	t.Run("KNNSearch", func(t *testing.T) {
		f := newEuclidean(t, 3)

		_, _ = f.Insert(ctx, []float32{1, 2, 3})
		_, _ = f.Insert(ctx, []float32{4, 5, 6})
		_, _ = f.Insert(ctx, []float32{7, 8, 9})

		results, err := f.KNNSearch(ctx, []float32{0, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, uint32(0), results[0].ID)
		assert.Equal(t, uint32(1), results[1].ID)
	})

	t.Run("KNNSearchInvalidK", func(t *testing.T) {
		f := newEuclidean(t, 3)
		_, err := f.KNNSearch(ctx, []float32{0, 0, 0}, 0, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("KNNSearchEmptyIndex", func(t *testing.T) {
		f := newEuclidean(t, 3)
		results, err := f.KNNSearch(ctx, []float32{0, 0, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("KNNSearchDimensionMismatch", func(t *testing.T) {
		f := newEuclidean(t, 3)
		_, _ = f.Insert(ctx, []float32{1, 2, 3})
		_, err := f.KNNSearch(ctx, []float32{0, 0}, 1, nil)
		assert.Error(t, err)
	})

	t.Run("KNNSearchFilter", func(t *testing.T) {
		f := newEuclidean(t, 2)

		_, _ = f.Insert(ctx, []float32{0, 0})
		_, _ = f.Insert(ctx, []float32{1, 1})
		_, _ = f.Insert(ctx, []float32{2, 2})

		results, err := f.KNNSearch(ctx, []float32{0, 0}, 3, &index.SearchOptions{
			Filter: func(id uint32) bool { return id != 0 },
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, uint32(1), results[0].ID)
		assert.Equal(t, uint32(2), results[1].ID)
	})

	t.Run("Delete", func(t *testing.T) {
		f := newEuclidean(t, 2)

		id, _ := f.Insert(ctx, []float32{0, 0})
		_, _ = f.Insert(ctx, []float32{1, 1})

		require.NoError(t, f.Delete(ctx, id))
		assert.Equal(t, 1, f.Len())

		results, err := f.KNNSearch(ctx, []float32{0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, uint32(1), results[0].ID)

		err = f.Delete(ctx, id)
		var nd *index.ErrNodeDeleted
		assert.ErrorAs(t, err, &nd)

		err = f.Delete(ctx, 99)
		var nf *index.ErrNodeNotFound
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("DeleteReusesID", func(t *testing.T) {
		f := newEuclidean(t, 2)

		id, _ := f.Insert(ctx, []float32{0, 0})
		require.NoError(t, f.Delete(ctx, id))

		reused, err := f.Insert(ctx, []float32{5, 5})
		require.NoError(t, err)
		assert.Equal(t, id, reused)
	})

	t.Run("Update", func(t *testing.T) {
		f := newEuclidean(t, 2)

		id, _ := f.Insert(ctx, []float32{0, 0})
		_, _ = f.Insert(ctx, []float32{10, 10})

		require.NoError(t, f.Update(ctx, id, []float32{20, 20}))

		// (20,20) is farther from the origin than (10,10), so the
		// updated node loses the top spot it held at (0,0).
		results, err := f.KNNSearch(ctx, []float32{0, 0}, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), results[0].ID, "updated vector moved away from origin")

		v, err := f.VectorByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []float32{20, 20}, v)

		assert.Error(t, f.Update(ctx, 99, []float32{1, 1}))
	})

	t.Run("VectorByID", func(t *testing.T) {
		f := newEuclidean(t, 2)

		id, _ := f.Insert(ctx, []float32{3, 4})
		v, err := f.VectorByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []float32{3, 4}, v)

		_, err = f.VectorByID(ctx, 99)
		assert.Error(t, err)
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		f := newEuclidean(t, 2)
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.Insert(canceled, []float32{1, 1})
		assert.ErrorIs(t, err, context.Canceled)

		_, err = f.KNNSearch(canceled, []float32{1, 1}, 1, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFlatCosine(t *testing.T) {
	ctx := context.Background()

	f, err := New(func(o *Options) {
		o.Dimension = 2
		o.Metric = distance.MetricCosine
	})
	require.NoError(t, err)

	// The worked example: [1,0], [0,1], [0.9,0.1] under cosine, query [1,0].
	id1, err := f.Insert(ctx, []float32{1, 0})
	require.NoError(t, err)
	id2, err := f.Insert(ctx, []float32{0, 1})
	require.NoError(t, err)
	id3, err := f.Insert(ctx, []float32{0.9, 0.1})
	require.NoError(t, err)

	results, err := f.KNNSearch(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, id1, results[0].ID)
	assert.Equal(t, id3, results[1].ID)
	assert.InDelta(t, 1.0, distance.Score(distance.MetricCosine, results[0].Distance), 1e-6)
	_ = id2

	t.Run("ZeroVectorRejected", func(t *testing.T) {
		_, err := f.Insert(ctx, []float32{0, 0})
		assert.Error(t, err)
	})
}

func TestFlatDeterminism(t *testing.T) {
	ctx := context.Background()
	f := newEuclidean(t, 2)

	// Equidistant vectors force the tie-break path.
	for range 2 {
		_, _ = f.Insert(ctx, []float32{1, 0})
	}
	for range 2 {
		_, _ = f.Insert(ctx, []float32{0, 1})
	}

	first, err := f.KNNSearch(ctx, []float32{0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{first[0].ID, first[1].ID, first[2].ID})

	for range 10 {
		again, err := f.KNNSearch(ctx, []float32{0, 0}, 3, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFlatDumpRestore(t *testing.T) {
	ctx := context.Background()
	f := newEuclidean(t, 2)

	_, _ = f.Insert(ctx, []float32{1, 1})
	id, _ := f.Insert(ctx, []float32{2, 2})
	_, _ = f.Insert(ctx, []float32{3, 3})
	require.NoError(t, f.Delete(ctx, id))

	entries := f.Dump()
	require.Len(t, entries, 2)

	restored := newEuclidean(t, 2)
	require.NoError(t, restored.Restore(entries))
	assert.Equal(t, 2, restored.Len())

	// The tombstoned slot is reusable after restore.
	reused, err := restored.Insert(ctx, []float32{9, 9})
	require.NoError(t, err)
	assert.Equal(t, id, reused)

	results, err := restored.KNNSearch(ctx, []float32{1, 1}, 3, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, uint32(0), results[0].ID)
}
