package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/snaptrail/internal/common"
)

// NewBlobStore creates the raw log blob store for the configured backend.
// Supported backends: "file" (default), "s3".
func NewBlobStore(ctx context.Context, logger *common.Logger, config common.RawConfig) (BlobStore, error) {
	backend := config.Backend
	if backend == "" {
		backend = common.BackendFile
	}

	switch backend {
	case common.BackendFile:
		return NewFileBlobStore(logger, config.Path)
	case common.BackendS3:
		return NewS3BlobStore(ctx, logger, config.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, s3)", backend)
	}
}
