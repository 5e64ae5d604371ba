package planner

import (
	"context"
	"fmt"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
)

// Service implements PlannerService
type Service struct {
	store    interfaces.SnapshotStore
	accounts []string
	logger   *common.Logger
}

// NewService creates a new planner service for the configured accounts
func NewService(store interfaces.SnapshotStore, accounts []string, logger *common.Logger) *Service {
	return &Service{store: store, accounts: accounts, logger: logger}
}

// Observe reads the state of every (dataset, account) key for target.
func (s *Service) Observe(ctx context.Context, target calendar.Date, accounts []string) (models.StoreState, error) {
	state := make(models.StoreState, len(accounts)*len(models.Datasets))
	for _, account := range accounts {
		for _, ds := range models.Datasets {
			st, err := s.store.Exists(ctx, ds, account, target)
			if err != nil {
				return nil, fmt.Errorf("failed to observe %s for %s: %w", ds, account, err)
			}
			state.Set(ds, account, st)
		}
	}
	return state, nil
}

// PlanFor observes the store and plans the configured accounts for target.
func (s *Service) PlanFor(ctx context.Context, target calendar.Date) (*models.Plan, error) {
	state, err := s.Observe(ctx, target, s.accounts)
	if err != nil {
		return nil, err
	}
	plan := Plan(target, s.accounts, state)

	s.logger.Debug().
		Str("target_date", plan.TargetDate).
		Int("accounts", len(plan.Decisions)).
		Bool("pending", plan.Pending()).
		Msg("Plan computed")
	return &plan, nil
}

var _ interfaces.PlannerService = (*Service)(nil)
