// Package blobstore abstracts where snapshots live. Implementations cover
// local files, process memory, and object stores (S3, MinIO).
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound).
// The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore provides named, immutable blobs. A blob becomes visible
// atomically: readers either see the complete previous content or the
// complete new content, never a partial write.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create starts a new writable blob. The blob is published when the
	// returned handle is closed without error.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a complete blob in one call.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Reader
	io.Closer

	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a streaming handle for writing a new blob. Close commits
// the blob; until then readers never observe it. Abort discards the pending
// write, leaving any previously committed blob under the same name intact.
type WritableBlob interface {
	io.Writer
	io.Closer

	// Abort discards everything written so far without publishing.
	// Aborting an already closed or aborted blob is a no-op.
	Abort() error
}

// ReadAll is a convenience that opens a blob and reads it fully.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	return io.ReadAll(blob)
}
