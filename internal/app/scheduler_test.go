package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/services/snapshot"
)

type blockingRunner struct {
	release chan struct{}
	started chan struct{}
	runs    atomic.Int32
	trigger atomic.Value
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{}), started: make(chan struct{}, 4)}
}

func (r *blockingRunner) Run(ctx context.Context, now time.Time) (*models.RunReport, error) {
	r.runs.Add(1)
	r.trigger.Store(snapshot.TriggerFromContext(ctx))
	r.started <- struct{}{}
	<-r.release
	return &models.RunReport{TargetDate: r.TargetDate(now).String()}, nil
}

func (r *blockingRunner) Backfill(context.Context, calendar.Date) (*models.RunReport, error) {
	return &models.RunReport{}, nil
}

func (r *blockingRunner) TargetDate(now time.Time) calendar.Date {
	return calendar.ResolveTargetDate(now, time.UTC)
}

type stubPlanner struct {
	pending bool
}

func (p *stubPlanner) Observe(context.Context, calendar.Date, []string) (models.StoreState, error) {
	return models.StoreState{}, nil
}

func (p *stubPlanner) PlanFor(_ context.Context, target calendar.Date) (*models.Plan, error) {
	action := models.ActionSkip
	if p.pending {
		action = models.ActionFetchAndPersist
	}
	return &models.Plan{
		TargetDate: target.String(),
		Decisions:  []models.PlanDecision{{Account: "A", Action: action}},
	}, nil
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(runner, &stubPlanner{}, time.UTC, common.NewSilentLogger())

	done := make(chan bool)
	go func() {
		_, ran, err := s.Trigger(context.Background())
		assert.NoError(t, err)
		done <- ran
	}()
	<-runner.started

	report, ran, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Nil(t, report)

	close(runner.release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runner.runs.Load())

	// Lock released after the first run
	_, ran, err = s.Trigger(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestScheduler_OnRunCompleteAfterEachRun(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(runner, &stubPlanner{}, time.UTC, common.NewSilentLogger())

	var reports []*models.RunReport
	s.OnRunComplete(func(r *models.RunReport) { reports = append(reports, r) })

	done := make(chan struct{})
	go func() {
		_, _, _ = s.Trigger(context.Background())
		close(done)
	}()
	<-runner.started

	_, ran, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	close(runner.release)
	<-done
	require.Len(t, reports, 1, "skipped trigger does not notify")
	assert.NotEmpty(t, reports[0].TargetDate)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(newBlockingRunner(), &stubPlanner{}, time.UTC, common.NewSilentLogger())
	err := s.Start("every tuesday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := NewScheduler(newBlockingRunner(), &stubPlanner{}, time.UTC, common.NewSilentLogger())
	require.NoError(t, s.Start("0 30 16 * * MON-FRI"))

	select {
	case <-s.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_CatchUp(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)

	s := NewScheduler(runner, &stubPlanner{pending: false}, time.UTC, common.NewSilentLogger())
	s.CatchUp(context.Background())
	assert.Equal(t, int32(0), runner.runs.Load(), "nothing pending")

	s = NewScheduler(runner, &stubPlanner{pending: true}, time.UTC, common.NewSilentLogger())
	s.CatchUp(context.Background())
	assert.Equal(t, int32(1), runner.runs.Load())
	assert.Equal(t, snapshot.TriggerCatchUp, runner.trigger.Load())
}
