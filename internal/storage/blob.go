// Package storage provides snapshot persistence with pluggable raw log backends.
package storage

import (
	"bytes"
	"context"
	"errors"
	"time"
)

// Common errors for blob storage operations.
var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrBlobExists   = errors.New("blob already exists")
)

// isBlank reports a blob with no content besides whitespace. Blank blobs
// read as absent and Create may replace them.
func isBlank(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}

// BlobMetadata contains metadata about a stored blob.
type BlobMetadata struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ListOptions configures blob listing behavior.
type ListOptions struct {
	Prefix  string // Only return keys with this prefix
	MaxKeys int    // Maximum number of keys to return (0 = no limit)
}

// ListResult contains the results of a list operation.
type ListResult struct {
	Blobs     []BlobMetadata `json:"blobs"`
	Truncated bool           `json:"truncated"` // True if more results available
}

// BlobStore is a write-once object store for raw snapshot entries.
// Implementations: FileBlobStore (local), S3BlobStore (AWS S3 and compatibles).
type BlobStore interface {
	// Get retrieves a blob by key. Returns ErrBlobNotFound if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Create stores a blob only if the key is unused or blank. Returns
	// ErrBlobExists otherwise. Readers never observe a partially written blob.
	Create(ctx context.Context, key string, data []byte) error

	// Exists checks if a non-blank blob exists.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns blobs matching the given options, ordered by key.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Close releases any resources held by the store.
	Close() error
}
