// Package storage abstracts blob storage behind a small [Store] interface.
//
// Earshot keeps two kinds of blobs: archived capture audio (the consented
// recordings behind each transcript segment) and vector-index snapshots.
// Both are written by the ingest path and read back rarely, so the
// interface is file-oriented rather than database-oriented. [Dir] stores
// blobs under a local directory; [S3] stores them in Amazon S3 or any
// S3-compatible object store.
package storage

import (
	"context"
	"io"
)

// Store is a minimal interface for blob storage.
//
// Names are forward-slash separated paths relative to the store root.
// Implementations must be safe for concurrent use.
type Store interface {
	// Open opens the named blob for reading. The caller must close the
	// returned reader. A missing blob yields an error wrapping
	// os.ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Create opens the named blob for writing, replacing any previous
	// content. Parent directories are created as needed. The blob is not
	// durable until the returned writer is closed without error.
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// Remove deletes the named blob. Removing a missing blob is not an
	// error.
	Remove(ctx context.Context, name string) error

	// Exists reports whether the named blob exists.
	Exists(ctx context.Context, name string) (bool, error)
}

// ReadAll reads the whole named blob.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	r, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteAll writes data as the full content of the named blob.
func WriteAll(ctx context.Context, s Store, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
