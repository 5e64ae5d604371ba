package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/models"
)

// PlannerService observes the store and plans a run for a target date
type PlannerService interface {
	Observe(ctx context.Context, target calendar.Date, accounts []string) (models.StoreState, error)
	PlanFor(ctx context.Context, target calendar.Date) (*models.Plan, error)
}

// NormalizerService validates broker payloads and persists them
type NormalizerService interface {
	NormalizeAndPersist(ctx context.Context, dataset models.Dataset, account string, date calendar.Date, raw models.RawFetchResult) error
}

// SignalService derives trailing stop-loss recommendations from history
type SignalService interface {
	ComputeSignals(ctx context.Context, target calendar.Date) (*models.SignalSet, error)
}

// SnapshotService runs the daily snapshot pipeline
type SnapshotService interface {
	Run(ctx context.Context, now time.Time) (*models.RunReport, error)
	Backfill(ctx context.Context, date calendar.Date) (*models.RunReport, error)
	TargetDate(now time.Time) calendar.Date
}

// ReportService assembles the read model for report collaborators
type ReportService interface {
	Snapshot(ctx context.Context, date calendar.Date) (*models.ReportSnapshot, error)
}
