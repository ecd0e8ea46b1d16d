// Package store defines the hierarchical artifact store shared by the
// pipeline, the publication generators, and the replication backends.
// This abstraction keeps the application independent of a specific
// storage implementation (local filesystem, Google Cloud Storage, or
// in-memory for tests).
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no artifact exists at the key.
var ErrNotFound = errors.New("artifact not found")

// Store provides read/write access to per-article artifacts laid out
// under hierarchical keys ({pmid}/{artifactKind}/... plus top-level
// index/, feeds/ and status/ prefixes).
type Store interface {
	// Write persists data at the given key, creating parents as needed.
	Write(ctx context.Context, key string, data []byte) error
	// Read returns the artifact at key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Exists reports whether an artifact is present at key.
	Exists(ctx context.Context, key string) (bool, error)
}
