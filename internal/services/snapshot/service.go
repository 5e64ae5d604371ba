// Package snapshot runs the daily holdings and funds snapshot pipeline.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/services/planner"
)

// Service implements SnapshotService
type Service struct {
	store      interfaces.SnapshotStore
	runs       interfaces.RunStore
	broker     interfaces.BrokerClient
	planner    interfaces.PlannerService
	normalizer interfaces.NormalizerService
	accounts   []string
	loc        *time.Location
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *common.Logger
}

// NewService creates a new snapshot runner
func NewService(
	store interfaces.SnapshotStore,
	runs interfaces.RunStore,
	broker interfaces.BrokerClient,
	plannerSvc interfaces.PlannerService,
	normalizer interfaces.NormalizerService,
	config *common.Config,
	logger *common.Logger,
) *Service {
	limit := rate.Inf
	if pacing := config.Broker.GetPacing(); pacing > 0 {
		limit = rate.Every(pacing)
	}
	return &Service{
		store:      store,
		runs:       runs,
		broker:     broker,
		planner:    plannerSvc,
		normalizer: normalizer,
		accounts:   config.Accounts,
		loc:        config.Location(),
		timeout:    config.Broker.GetTimeout(),
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// TargetDate resolves the snapshot date for a wall-clock instant.
func (s *Service) TargetDate(now time.Time) calendar.Date {
	return calendar.ResolveTargetDate(now, s.loc)
}

// Run plans and executes one snapshot run for the target date of now.
// Accounts are processed sequentially; a failing account is recorded and
// the run moves on. Cancellation stops the run before the next account.
func (s *Service) Run(ctx context.Context, now time.Time) (*models.RunReport, error) {
	target := s.TargetDate(now)
	report := s.newReport(ctx, target)

	s.logger.Info().
		Str("run_id", report.ID).
		Str("target_date", report.TargetDate).
		Str("trigger", report.Trigger).
		Int("accounts", len(s.accounts)).
		Msg("Snapshot run starting")

	var runErr error
	for _, account := range dedupe(s.accounts) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		report.Outcomes = append(report.Outcomes, s.processAccount(ctx, target, account))
	}

	return s.finish(ctx, report, runErr)
}

// processAccount observes, plans and executes the decision for one account.
func (s *Service) processAccount(ctx context.Context, target calendar.Date, account string) models.AccountOutcome {
	outcome := models.AccountOutcome{Account: account}

	state, err := s.planner.Observe(ctx, target, []string{account})
	if err != nil {
		return s.fail(outcome, err)
	}
	plan := planner.Plan(target, []string{account}, state)
	decision := plan.Decisions[0]
	outcome.Action = decision.Action

	switch decision.Action {
	case models.ActionSkip:
		outcome.Status = models.OutcomeSkipped
		s.logger.Info().Str("account", account).Msg("Snapshot already materialized, skipping")
		return outcome

	case models.ActionFetchAndPersist:
		if err := s.limiter.Wait(ctx); err != nil {
			return s.fail(outcome, err)
		}
		for _, ds := range decision.Fetch {
			if err := s.fetchAndPersist(ctx, ds, account, target); err != nil {
				return s.fail(outcome, err)
			}
			outcome.Fetched = append(outcome.Fetched, ds)
		}
	}

	for _, ds := range decision.Materialize {
		if err := s.store.Materialize(ctx, ds, account, target); err != nil {
			return s.fail(outcome, err)
		}
		outcome.Materialized = append(outcome.Materialized, ds)
	}

	outcome.Status = models.OutcomeProcessed
	s.logger.Info().
		Str("account", account).
		Str("action", string(decision.Action)).
		Int("fetched", len(outcome.Fetched)).
		Int("materialized", len(outcome.Materialized)).
		Msg("Account processed")
	return outcome
}

func (s *Service) fetchAndPersist(ctx context.Context, dataset models.Dataset, account string, target calendar.Date) error {
	fetchCtx, cancel := context.WithCancel(ctx)
	if s.timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	var raw models.RawFetchResult
	var err error
	switch dataset {
	case models.DatasetHoldings:
		raw, err = s.broker.FetchHoldings(fetchCtx, account)
	case models.DatasetFunds:
		raw, err = s.broker.FetchFunds(fetchCtx, account)
	default:
		return fmt.Errorf("unknown dataset %q", dataset)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", dataset, err)
	}

	err = s.normalizer.NormalizeAndPersist(ctx, dataset, account, target, raw)
	if errors.Is(err, models.ErrDuplicateSnapshot) {
		// Another writer got there first; keep its entry
		s.logger.Warn().
			Str("dataset", string(dataset)).
			Str("account", account).
			Str("date", target.String()).
			Msg("Raw snapshot already present, materializing existing entry")
		err = s.store.Materialize(ctx, dataset, account, target)
	}
	if err != nil {
		return fmt.Errorf("failed to persist %s: %w", dataset, err)
	}
	return nil
}

// Backfill materializes every RAW_ONLY dataset on date without fetching.
func (s *Service) Backfill(ctx context.Context, date calendar.Date) (*models.RunReport, error) {
	report := s.newReport(WithTrigger(ctx, TriggerBackfill), date)

	var runErr error
	for _, account := range dedupe(s.accounts) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		outcome := models.AccountOutcome{Account: account, Action: models.ActionSkip, Status: models.OutcomeSkipped}
		for _, ds := range models.Datasets {
			st, err := s.store.Exists(ctx, ds, account, date)
			if err != nil {
				outcome = s.fail(outcome, err)
				break
			}
			if st != models.StateRawOnly {
				continue
			}
			if err := s.store.Materialize(ctx, ds, account, date); err != nil {
				outcome = s.fail(outcome, err)
				break
			}
			outcome.Action = models.ActionMaterializeOnly
			outcome.Status = models.OutcomeProcessed
			outcome.Materialized = append(outcome.Materialized, ds)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	return s.finish(ctx, report, runErr)
}

// RawDates returns every date with a raw entry for any configured account, oldest first.
func (s *Service) RawDates(ctx context.Context) ([]calendar.Date, error) {
	seen := map[calendar.Date]bool{}
	for _, account := range dedupe(s.accounts) {
		for _, ds := range models.Datasets {
			dates, err := s.store.ListRawDates(ctx, ds, account)
			if err != nil {
				return nil, fmt.Errorf("failed to list raw dates for %s: %w", account, err)
			}
			for _, d := range dates {
				seen[d] = true
			}
		}
	}
	out := make([]calendar.Date, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *Service) newReport(ctx context.Context, target calendar.Date) *models.RunReport {
	return &models.RunReport{
		ID:         uuid.NewString(),
		TargetDate: target.String(),
		Trigger:    TriggerFromContext(ctx),
		StartedAt:  time.Now(),
	}
}

func (s *Service) fail(outcome models.AccountOutcome, err error) models.AccountOutcome {
	outcome.Status = models.OutcomeFailed
	outcome.Error = err.Error()
	s.logger.Error().Err(err).Str("account", outcome.Account).Msg("Account failed")
	return outcome
}

// finish stamps and persists the report. The report is saved even when the
// run was cancelled.
func (s *Service) finish(ctx context.Context, report *models.RunReport, runErr error) (*models.RunReport, error) {
	report.FinishedAt = time.Now()

	if s.runs != nil {
		if err := s.runs.SaveRun(context.WithoutCancel(ctx), report); err != nil {
			s.logger.Warn().Err(err).Str("run_id", report.ID).Msg("Failed to save run report")
		}
	}

	s.logger.Info().
		Str("run_id", report.ID).
		Str("target_date", report.TargetDate).
		Int("processed", report.Count(models.OutcomeProcessed)).
		Int("skipped", report.Count(models.OutcomeSkipped)).
		Int("failed", report.Count(models.OutcomeFailed)).
		Dur("duration", report.Duration()).
		Msg("Snapshot run complete")

	if runErr != nil {
		return report, fmt.Errorf("run %s interrupted: %w", report.ID, runErr)
	}
	return report, nil
}

func dedupe(accounts []string) []string {
	seen := make(map[string]bool, len(accounts))
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

var _ interfaces.SnapshotService = (*Service)(nil)
