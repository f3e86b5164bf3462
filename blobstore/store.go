package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for blob names that are empty or escape the
// store's root.
var ErrInvalidName = errors.New("blobstore: invalid blob name")

// Store holds named immutable blobs. Put replaces a blob as a whole; readers
// never observe a partially written blob.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores the contents of r under name.
	Put(ctx context.Context, name string, r io.Reader) error
	// Open opens a blob for sequential reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}
