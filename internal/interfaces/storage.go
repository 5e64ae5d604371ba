// Package interfaces defines service contracts for snaptrail
package interfaces

import (
	"context"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	SnapshotStore() SnapshotStore
	RunStore() RunStore

	// Lifecycle
	Close() error
}

// SnapshotStore persists daily snapshots in two phases: an append-only raw
// log entry, then a materialized columnar partition derived from it.
type SnapshotStore interface {
	// Exists reports the persistence state of one key.
	Exists(ctx context.Context, dataset models.Dataset, account string, date calendar.Date) (models.ExistState, error)

	// AppendRaw writes the raw entry for a key exactly once.
	// A second call returns *models.DuplicateSnapshotError and leaves the entry unchanged.
	AppendRaw(ctx context.Context, dataset models.Dataset, account string, date calendar.Date, entry models.RawEntry) error

	// Materialize derives the columnar partition from the raw entry. Idempotent.
	Materialize(ctx context.Context, dataset models.Dataset, account string, date calendar.Date) error

	// QueryHistory returns materialized records ordered by date ascending.
	QueryHistory(ctx context.Context, q models.HistoryQuery) (*models.History, error)

	// ListDates returns materialized dates for an account, ascending.
	ListDates(ctx context.Context, dataset models.Dataset, account string) ([]calendar.Date, error)

	// ListRawDates returns dates with a raw entry for an account, ascending.
	ListRawDates(ctx context.Context, dataset models.Dataset, account string) ([]calendar.Date, error)

	// Latest returns the most recent materialized snapshot on or before until.
	Latest(ctx context.Context, dataset models.Dataset, account string, until calendar.Date) (*models.Snapshot, error)
}

// RunStore keeps the history of snapshot runs.
type RunStore interface {
	SaveRun(ctx context.Context, report *models.RunReport) error
	GetRun(ctx context.Context, id string) (*models.RunReport, error)
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]*models.RunReport, error)
	Close() error
}
