// Package report assembles the read model and console output for snapshot reports
package report

import (
	"context"
	"fmt"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
)

// Service implements ReportService
type Service struct {
	store    interfaces.SnapshotStore
	signal   interfaces.SignalService
	config   common.SignalsConfig
	accounts []string
	logger   *common.Logger
}

// NewService creates a new report service
func NewService(
	store interfaces.SnapshotStore,
	signal interfaces.SignalService,
	config common.SignalsConfig,
	accounts []string,
	logger *common.Logger,
) *Service {
	return &Service{
		store:    store,
		signal:   signal,
		config:   config,
		accounts: accounts,
		logger:   logger,
	}
}

// Snapshot returns signals plus the latest holdings and funds on or before
// date for every account. Excluded symbols are reported as cash-like.
func (s *Service) Snapshot(ctx context.Context, date calendar.Date) (*models.ReportSnapshot, error) {
	set, err := s.signal.ComputeSignals(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("compute signals: %w", err)
	}

	snap := &models.ReportSnapshot{TargetDate: date.String(), Signals: set}
	for _, account := range s.accounts {
		ar, err := s.account(ctx, account, date)
		if err != nil {
			return nil, err
		}
		snap.Accounts = append(snap.Accounts, *ar)
	}

	s.logger.Debug().
		Str("target_date", snap.TargetDate).
		Int("accounts", len(snap.Accounts)).
		Msg("Report snapshot assembled")
	return snap, nil
}

func (s *Service) account(ctx context.Context, account string, date calendar.Date) (*models.AccountReport, error) {
	ar := &models.AccountReport{Account: account, Holdings: []models.HoldingRecord{}, Funds: []models.FundsRecord{}}

	holdings, err := s.store.Latest(ctx, models.DatasetHoldings, account, date)
	if err != nil {
		return nil, fmt.Errorf("latest holdings for %s: %w", account, err)
	}
	if holdings != nil {
		ar.HoldingsDate = holdings.AsOfDate
		for _, h := range holdings.Holdings {
			value := float64(h.Quantity) * h.LastPrice
			if s.config.IsExcluded(h.TradingSymbol) {
				ar.CashLike = append(ar.CashLike, h)
				ar.CashLikeValue += value
				continue
			}
			ar.Holdings = append(ar.Holdings, h)
			ar.Invested += float64(h.Quantity) * h.AveragePrice
			ar.MarketValue += value
		}
		ar.PnL = ar.MarketValue - ar.Invested
	}

	funds, err := s.store.Latest(ctx, models.DatasetFunds, account, date)
	if err != nil {
		return nil, fmt.Errorf("latest funds for %s: %w", account, err)
	}
	if funds != nil {
		ar.FundsDate = funds.AsOfDate
		ar.Funds = append(ar.Funds, funds.Funds...)
		for _, f := range funds.Funds {
			ar.AvailableCash += f.AvailableCash
		}
	}
	return ar, nil
}

var _ interfaces.ReportService = (*Service)(nil)
