package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bobmcallan/snaptrail/internal/common"
)

// FileBlobStore implements BlobStore using the local filesystem.
// Key format: "holdings_jsonl/AB1234/2025-01-03.jsonl" -> "{basePath}/holdings_jsonl/AB1234/2025-01-03.jsonl"
type FileBlobStore struct {
	basePath string
	logger   *common.Logger
}

// NewFileBlobStore creates a new file-based blob store.
func NewFileBlobStore(logger *common.Logger, basePath string) (*FileBlobStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("file blob store path is required")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory %s: %w", basePath, err)
	}

	logger.Debug().Str("path", basePath).Msg("FileBlobStore initialized")
	return &FileBlobStore{basePath: basePath, logger: logger}, nil
}

// sanitizeKey converts a key to a safe relative path.
// Allows "/" for subdirectories but never escapes the base directory.
func (fb *FileBlobStore) sanitizeKey(key string) string {
	clean := filepath.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if strings.Contains(clean, "..") {
		clean = strings.ReplaceAll(clean, "..", "__")
	}
	return clean
}

func (fb *FileBlobStore) keyToPath(key string) string {
	return filepath.Join(fb.basePath, fb.sanitizeKey(key))
}

// Get retrieves a blob by key.
func (fb *FileBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(fb.keyToPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

// Create writes data to a temp file in the target directory, fsyncs it and
// hard-links it into place. The link fails when the target already exists,
// so concurrent writers cannot both succeed. A blank target left by an
// interrupted legacy writer is removed and the link retried once.
func (fb *FileBlobStore) Create(ctx context.Context, key string, data []byte) error {
	path := fb.keyToPath(key)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	err = os.Link(tmpPath, path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to link blob %s: %w", key, err)
	}

	existing, readErr := os.ReadFile(path)
	if readErr != nil || !isBlank(existing) {
		return ErrBlobExists
	}
	fb.logger.Warn().Str("key", key).Msg("Replacing blank blob")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blank blob %s: %w", key, err)
	}
	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrBlobExists
		}
		return fmt.Errorf("failed to link blob %s: %w", key, err)
	}
	return nil
}

// Exists checks if a non-blank blob exists.
func (fb *FileBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	data, err := os.ReadFile(fb.keyToPath(key))
	if err == nil {
		return !isBlank(data), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check blob %s: %w", key, err)
}

// List returns blobs matching the given options.
func (fb *FileBlobStore) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	searchDir := fb.basePath
	prefix := opts.Prefix

	// Start the walk from the deepest directory named by the prefix
	if prefix != "" {
		prefixDir := filepath.Dir(fb.sanitizeKey(prefix))
		if strings.HasSuffix(prefix, "/") {
			prefixDir = fb.sanitizeKey(prefix)
		}
		if prefixDir != "." {
			searchDir = filepath.Join(fb.basePath, prefixDir)
		}
	}

	var blobs []BlobMetadata
	err := filepath.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".tmp-") {
			return nil
		}

		relPath, err := filepath.Rel(fb.basePath, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(relPath)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}

		blobs = append(blobs, BlobMetadata{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Key < blobs[j].Key })

	result := &ListResult{Blobs: blobs}
	if opts.MaxKeys > 0 && len(blobs) > opts.MaxKeys {
		result.Blobs = blobs[:opts.MaxKeys]
		result.Truncated = true
	}
	return result, nil
}

// Close releases resources (no-op for file storage).
func (fb *FileBlobStore) Close() error {
	return nil
}

var _ BlobStore = (*FileBlobStore)(nil)
