package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest runs the shared BlobStore contract against an implementation.
func storeUnderTest(t *testing.T, store BlobStore) {
	ctx := context.Background()

	t.Run("OpenMissing", func(t *testing.T) {
		_, err := store.Open(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("PutOpen", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "a", []byte("alpha")))

		blob, err := store.Open(ctx, "a")
		require.NoError(t, err)
		defer blob.Close()

		assert.Equal(t, int64(5), blob.Size())

		data, err := io.ReadAll(blob)
		require.NoError(t, err)
		assert.Equal(t, []byte("alpha"), data)
	})

	t.Run("CreatePublishesOnClose", func(t *testing.T) {
		w, err := store.Create(ctx, "b")
		require.NoError(t, err)

		_, err = w.Write([]byte("be"))
		require.NoError(t, err)
		_, err = w.Write([]byte("ta"))
		require.NoError(t, err)

		// Not visible before Close.
		_, err = store.Open(ctx, "b")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, w.Close())

		data, err := ReadAll(ctx, store, "b")
		require.NoError(t, err)
		assert.Equal(t, []byte("beta"), data)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "a", []byte("replaced")))

		data, err := ReadAll(ctx, store, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("replaced"), data)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "snap/001", []byte("1")))
		require.NoError(t, store.Put(ctx, "snap/002", []byte("2")))

		names, err := store.List(ctx, "snap/")
		require.NoError(t, err)
		assert.Equal(t, []string{"snap/001", "snap/002"}, names)
	})

	t.Run("AbortDiscards", func(t *testing.T) {
		w, err := store.Create(ctx, "aborted")
		require.NoError(t, err)

		_, err = w.Write([]byte("partial"))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		_, err = store.Open(ctx, "aborted")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("AbortPreservesPrevious", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "stable", []byte("good")))

		w, err := store.Create(ctx, "stable")
		require.NoError(t, err)

		_, err = w.Write([]byte("bad half-written"))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		data, err := ReadAll(ctx, store, "stable")
		require.NoError(t, err)
		assert.Equal(t, []byte("good"), data)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "gone", []byte("x")))
		require.NoError(t, store.Delete(ctx, "gone"))

		_, err := store.Open(ctx, "gone")
		assert.ErrorIs(t, err, ErrNotFound)

		// Idempotent.
		assert.NoError(t, store.Delete(ctx, "gone"))
	})
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	storeUnderTest(t, store)
}

func TestLocalStoreNoTempLeftovers(t *testing.T) {
	dir := t.TempDir()

	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "x", []byte("data")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Name())
	assert.Equal(t, "x", filepath.Base(entries[0].Name()))
}

func TestMemoryStoreOpenIsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "k", []byte("old")))

	blob, err := store.Open(ctx, "k")
	require.NoError(t, err)
	defer blob.Close()

	require.NoError(t, store.Put(ctx, "k", []byte("new")))

	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data)
}
