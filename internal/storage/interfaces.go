package storage

import (
	"context"
	"io"
)

// Backend defines the interface for content-addressed blob storage.
// The filesystem implementation is the only one in tree; the interface exists
// so services and tests can substitute their own.
type Backend interface {
	// Put stores a blob at the location derived from its content hash.
	// If a blob with the same hash already exists the write is skipped and
	// PutResult.Existed is true. Put never overwrites existing content.
	Put(ctx context.Context, data []byte) (PutResult, error)

	// Exists checks whether a blob with the given hash is stored.
	Exists(ctx context.Context, hash string) (bool, error)

	// Open opens a stored blob for reading. The caller must close it.
	// Returns domain.ErrNotFound if the blob does not exist.
	Open(ctx context.Context, hash string) (io.ReadCloser, error)

	// Path returns the physical path for a content hash without touching disk.
	Path(hash string) (string, error)
}

// PutResult describes the outcome of a Put.
type PutResult struct {
	// Hash is the content address of the stored bytes.
	Hash string

	// Path is the physical location of the blob.
	Path string

	// Existed is true when identical bytes were already stored (dedup hit).
	Existed bool
}
