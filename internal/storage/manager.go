// Package storage provides the top-level StorageManager that coordinates
// the raw log, the columnar store and the internal run store.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/storage/columnar"
	"github.com/bobmcallan/snaptrail/internal/storage/internaldb"
)

// Manager implements interfaces.StorageManager.
type Manager struct {
	raw       BlobStore
	columnar  *columnar.Store
	internal  *internaldb.Store
	snapshots *SnapshotStore
	logger    *common.Logger
}

// NewManager opens every storage area described by config.
func NewManager(ctx context.Context, logger *common.Logger, config *common.Config) (*Manager, error) {
	raw, err := NewBlobStore(ctx, logger, config.Storage.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw store: %w", err)
	}

	col, err := columnar.NewStore(logger, config.Storage.Columnar.Path)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to create columnar store: %w", err)
	}

	internal, err := internaldb.NewStore(logger, config.Storage.Internal.Path)
	if err != nil {
		raw.Close()
		col.Close()
		return nil, fmt.Errorf("failed to create internal store: %w", err)
	}

	logger.Info().
		Str("raw_backend", config.Storage.Raw.Backend).
		Str("columnar", config.Storage.Columnar.Path).
		Str("internal", config.Storage.Internal.Path).
		Msg("Storage manager initialized")

	return &Manager{
		raw:       raw,
		columnar:  col,
		internal:  internal,
		snapshots: NewSnapshotStore(logger, raw, col),
		logger:    logger,
	}, nil
}

func (m *Manager) SnapshotStore() interfaces.SnapshotStore {
	return m.snapshots
}

func (m *Manager) RunStore() interfaces.RunStore {
	return m.internal
}

func (m *Manager) Close() error {
	var firstErr error
	if err := m.internal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.columnar.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.raw.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

var _ interfaces.StorageManager = (*Manager)(nil)
