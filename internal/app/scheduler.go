package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/services/snapshot"
)

// Scheduler runs the snapshot pipeline on a cron schedule. A tick that
// fires while a run is still in progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  interfaces.SnapshotService
	planner interfaces.PlannerService
	logger  *common.Logger
	now     func() time.Time
	after   []func(*models.RunReport)

	mu sync.Mutex // held for the duration of a run
}

// NewScheduler creates a scheduler evaluating cron expressions in loc.
// Expressions carry a leading seconds field.
func NewScheduler(runner interfaces.SnapshotService, planner interfaces.PlannerService, loc *time.Location, logger *common.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		runner:  runner,
		planner: planner,
		logger:  logger,
		now:     time.Now,
	}
}

// OnRunComplete registers fn to be called after every run that produced a
// report, including failed and interrupted runs. Register before Start.
func (s *Scheduler) OnRunComplete(fn func(*models.RunReport)) {
	s.after = append(s.after, fn)
}

// Start registers the run on spec and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx := snapshot.WithTrigger(context.Background(), snapshot.TriggerSchedule)
		if _, _, err := s.Trigger(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled run failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.cron.Start()

	entries := s.cron.Entries()
	if len(entries) > 0 {
		s.logger.Info().
			Str("schedule", spec).
			Time("next", entries[0].Next).
			Msg("Scheduler started")
	}
	return nil
}

// Stop halts the cron loop. The returned context is done once any running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info().Msg("Scheduler stopping")
	return s.cron.Stop()
}

// Trigger runs the pipeline now unless a run is already in progress, in
// which case ran is false and nothing happens.
func (s *Scheduler) Trigger(ctx context.Context) (report *models.RunReport, ran bool, err error) {
	if !s.mu.TryLock() {
		s.logger.Warn().Msg("Previous run still in progress, skipping")
		return nil, false, nil
	}
	defer s.mu.Unlock()

	report, err = s.runner.Run(ctx, s.now())
	if report != nil {
		for _, fn := range s.after {
			fn(report)
		}
	}
	return report, true, err
}

// CatchUp runs the pipeline when the current target date still has pending
// work, so a missed tick is made up on startup.
func (s *Scheduler) CatchUp(ctx context.Context) {
	target := s.runner.TargetDate(s.now())
	plan, err := s.planner.PlanFor(ctx, target)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Catch-up: plan failed")
		return
	}
	if !plan.Pending() {
		s.logger.Info().Str("target_date", plan.TargetDate).Msg("Catch-up: nothing pending")
		return
	}

	s.logger.Info().Str("target_date", plan.TargetDate).Msg("Catch-up: running missed snapshot")
	if _, _, err := s.Trigger(snapshot.WithTrigger(ctx, snapshot.TriggerCatchUp)); err != nil {
		s.logger.Error().Err(err).Msg("Catch-up run failed")
	}
}
