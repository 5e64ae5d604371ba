package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/models"
)

type mockSnapshotStore struct {
	latest map[string]*models.Snapshot // dataset/account
}

func (m *mockSnapshotStore) Exists(context.Context, models.Dataset, string, calendar.Date) (models.ExistState, error) {
	return models.StateAbsent, nil
}
func (m *mockSnapshotStore) AppendRaw(context.Context, models.Dataset, string, calendar.Date, models.RawEntry) error {
	return nil
}
func (m *mockSnapshotStore) Materialize(context.Context, models.Dataset, string, calendar.Date) error {
	return nil
}
func (m *mockSnapshotStore) QueryHistory(context.Context, models.HistoryQuery) (*models.History, error) {
	return &models.History{}, nil
}
func (m *mockSnapshotStore) ListDates(context.Context, models.Dataset, string) ([]calendar.Date, error) {
	return nil, nil
}
func (m *mockSnapshotStore) ListRawDates(context.Context, models.Dataset, string) ([]calendar.Date, error) {
	return nil, nil
}
func (m *mockSnapshotStore) Latest(_ context.Context, ds models.Dataset, account string, _ calendar.Date) (*models.Snapshot, error) {
	return m.latest[string(ds)+"/"+account], nil
}

type mockSignalService struct {
	set *models.SignalSet
}

func (m *mockSignalService) ComputeSignals(_ context.Context, target calendar.Date) (*models.SignalSet, error) {
	if m.set != nil {
		return m.set, nil
	}
	return &models.SignalSet{TargetDate: target.String()}, nil
}

func TestService_Snapshot(t *testing.T) {
	store := &mockSnapshotStore{latest: map[string]*models.Snapshot{
		"holdings/A": {Dataset: models.DatasetHoldings, Account: "A", AsOfDate: "2025-01-02", Holdings: []models.HoldingRecord{
			{TradingSymbol: "TCS", Quantity: 10, AveragePrice: 100, LastPrice: 120},
			{TradingSymbol: "liquidcase", Quantity: 2, AveragePrice: 1000, LastPrice: 1010},
		}},
		"funds/A": {Dataset: models.DatasetFunds, Account: "A", AsOfDate: "2025-01-03", Funds: []models.FundsRecord{
			{Segment: models.SegmentEquity, AvailableCash: 500},
			{Segment: models.SegmentCommodity, AvailableCash: 25},
		}},
	}}
	cfg := common.NewDefaultConfig()
	svc := NewService(store, &mockSignalService{}, cfg.Signals, []string{"A", "B"}, common.NewSilentLogger())

	snap, err := svc.Snapshot(context.Background(), calendar.MustParse("2025-01-03"))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", snap.TargetDate)
	require.NotNil(t, snap.Signals)
	require.Len(t, snap.Accounts, 2)

	a := snap.Accounts[0]
	assert.Equal(t, "2025-01-02", a.HoldingsDate)
	assert.Equal(t, "2025-01-03", a.FundsDate)
	require.Len(t, a.Holdings, 1)
	assert.Equal(t, "TCS", a.Holdings[0].TradingSymbol)
	assert.InDelta(t, 1000.0, a.Invested, 1e-9)
	assert.InDelta(t, 1200.0, a.MarketValue, 1e-9)
	assert.InDelta(t, 200.0, a.PnL, 1e-9)
	assert.InDelta(t, 525.0, a.AvailableCash, 1e-9)
	require.Len(t, a.CashLike, 1)
	assert.InDelta(t, 2020.0, a.CashLikeValue, 1e-9)

	b := snap.Accounts[1]
	assert.Empty(t, b.HoldingsDate)
	assert.NotNil(t, b.Holdings)
	assert.Zero(t, b.MarketValue)
}
