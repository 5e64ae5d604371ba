package normalizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHoldings_Valid(t *testing.T) {
	payload := []byte(`[
		{"tradingsymbol":"TCS","exchange":"NSE","isin":"INE467B01029","product":"CNC","instrument_token":2953217,
		 "quantity":10,"t1_quantity":0,"average_price":3000.5,"last_price":"3100.25","close_price":3090,
		 "day_change":10.25,"day_change_percentage":0.33},
		{"tradingsymbol":"INFY","quantity":"5","average_price":1500,"last_price":1450,"pnl":-251.5}
	]`)

	recs, err := NormalizeHoldings("A", "2025-01-03", "2025-01-03T16:30:00+05:30", payload)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	tcs := recs[0]
	assert.Equal(t, "A", tcs.Account)
	assert.Equal(t, "2025-01-03", tcs.AsOfDate)
	assert.Equal(t, int64(2953217), tcs.InstrumentToken)
	assert.Equal(t, int64(10), tcs.Quantity)
	assert.Equal(t, 31002.5, tcs.Value)
	assert.InDelta(t, 997.5, tcs.PnL, 1e-9, "derived pnl = value - qty*avg")

	infy := recs[1]
	assert.Equal(t, 7250.0, infy.Value)
	assert.Equal(t, -251.5, infy.PnL, "broker pnl wins")
}

func TestNormalizeHoldings_EmptyAndEnvelope(t *testing.T) {
	recs, err := NormalizeHoldings("A", "2025-01-03", "", []byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = NormalizeHoldings("A", "2025-01-03", "", []byte(`{"status":"success","data":[{"tradingsymbol":"TCS","quantity":1,"average_price":1,"last_price":2}]}`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2.0, recs[0].Value)
}

func TestNormalizeHoldings_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"not json", `{oops`, ""},
		{"object not array", `{"tradingsymbol":"TCS"}`, ""},
		{"missing symbol", `[{"quantity":1,"average_price":1,"last_price":1}]`, "[0].tradingsymbol"},
		{"blank symbol", `[{"tradingsymbol":"  ","quantity":1,"average_price":1,"last_price":1}]`, "[0].tradingsymbol"},
		{"missing quantity", `[{"tradingsymbol":"TCS","average_price":1,"last_price":1}]`, "[0].quantity"},
		{"fractional quantity", `[{"tradingsymbol":"TCS","quantity":1.5,"average_price":1,"last_price":1}]`, "[0].quantity"},
		{"bad price", `[{"tradingsymbol":"TCS","quantity":1,"average_price":"abc","last_price":1}]`, "[0].average_price"},
		{"bool price", `[{"tradingsymbol":"TCS","quantity":1,"average_price":1,"last_price":true}]`, "[0].last_price"},
		{"bad optional", `[{"tradingsymbol":"TCS","quantity":1,"average_price":1,"last_price":1,"close_price":"n/a"}]`, "[0].close_price"},
		{"second line", `[{"tradingsymbol":"TCS","quantity":1,"average_price":1,"last_price":1},{"tradingsymbol":"INFY"}]`, "[1].quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeHoldings("A", "2025-01-03", "", []byte(tt.payload))
			require.Error(t, err)
			var mre *models.MalformedRecordError
			require.True(t, errors.As(err, &mre), "got %v", err)
			assert.Equal(t, tt.field, mre.Field)
			assert.Equal(t, models.DatasetHoldings, mre.Dataset)
		})
	}
}

func TestNormalizeFunds(t *testing.T) {
	payload := []byte(`{
		"equity":{"net":1250.75,"available":{"cash":1000,"collateral":"250.75"}},
		"commodity":{"net":0,"available":{}}
	}`)
	recs, err := NormalizeFunds("A", "2025-01-03", "ts", payload)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.SegmentEquity, recs[0].Segment)
	assert.Equal(t, 1000.0, recs[0].AvailableCash)
	assert.Equal(t, 250.75, recs[0].AvailableCollateral)
	assert.Equal(t, models.SegmentCommodity, recs[1].Segment)
	assert.Zero(t, recs[1].AvailableCash)

	recs, err = NormalizeFunds("A", "2025-01-03", "ts", []byte(`{"commodity":{"net":5}}`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.SegmentCommodity, recs[0].Segment)
}

func TestNormalizeFunds_Malformed(t *testing.T) {
	for name, payload := range map[string]string{
		"no segments":   `{"other":{}}`,
		"array":         `[]`,
		"missing net":   `{"equity":{"available":{"cash":1}}}`,
		"bad cash":      `{"equity":{"net":1,"available":{"cash":"lots"}}}`,
		"segment type":  `{"equity":"rich"}`,
		"available str": `{"equity":{"net":1,"available":"x"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeFunds("A", "2025-01-03", "", []byte(payload))
			assert.ErrorIs(t, err, models.ErrMalformedRecord)
		})
	}
}

// --- Mock store ---

type call struct {
	op      string
	dataset models.Dataset
}

type mockSnapshotStore struct {
	calls     []call
	entries   map[models.Dataset]models.RawEntry
	appendErr error
}

func (m *mockSnapshotStore) Exists(context.Context, models.Dataset, string, calendar.Date) (models.ExistState, error) {
	return models.StateAbsent, nil
}
func (m *mockSnapshotStore) AppendRaw(_ context.Context, ds models.Dataset, _ string, _ calendar.Date, e models.RawEntry) error {
	m.calls = append(m.calls, call{"append", ds})
	if m.appendErr != nil {
		return m.appendErr
	}
	if m.entries == nil {
		m.entries = map[models.Dataset]models.RawEntry{}
	}
	m.entries[ds] = e
	return nil
}
func (m *mockSnapshotStore) Materialize(_ context.Context, ds models.Dataset, _ string, _ calendar.Date) error {
	m.calls = append(m.calls, call{"materialize", ds})
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
func (m *mockSnapshotStore) Latest(context.Context, models.Dataset, string, calendar.Date) (*models.Snapshot, error) {
	return nil, nil
}

func TestService_NormalizeAndPersist_Ordering(t *testing.T) {
	store := &mockSnapshotStore{}
	loc := time.FixedZone("IST", 19800)
	svc := NewService(store, loc, common.NewSilentLogger())

	fetched := time.Date(2025, 1, 3, 11, 0, 0, 0, time.UTC)
	err := svc.NormalizeAndPersist(context.Background(), models.DatasetHoldings, "A", calendar.MustParse("2025-01-03"),
		models.RawFetchResult{Payload: []byte(`[{"tradingsymbol":"TCS","quantity":1,"average_price":1,"last_price":2}]`), FetchedAt: fetched})
	require.NoError(t, err)

	assert.Equal(t, []call{{"append", models.DatasetHoldings}, {"materialize", models.DatasetHoldings}}, store.calls)
	entry := store.entries[models.DatasetHoldings]
	assert.Equal(t, "2025-01-03T16:30:00+05:30", entry.Header.AsOfTS)
	assert.Equal(t, "2025-01-03T16:30:00+05:30", entry.Holdings[0].AsOfTS)
}

func TestService_NormalizeAndPersist_MalformedWritesNothing(t *testing.T) {
	store := &mockSnapshotStore{}
	svc := NewService(store, nil, common.NewSilentLogger())

	err := svc.NormalizeAndPersist(context.Background(), models.DatasetFunds, "A", calendar.MustParse("2025-01-03"),
		models.RawFetchResult{Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, models.ErrMalformedRecord)
	assert.Empty(t, store.calls)
}

func TestService_NormalizeAndPersist_AppendFailureSkipsMaterialize(t *testing.T) {
	store := &mockSnapshotStore{appendErr: &models.DuplicateSnapshotError{Dataset: models.DatasetFunds, Account: "A", Date: "2025-01-03"}}
	svc := NewService(store, nil, common.NewSilentLogger())

	err := svc.NormalizeAndPersist(context.Background(), models.DatasetFunds, "A", calendar.MustParse("2025-01-03"),
		models.RawFetchResult{Payload: []byte(`{"equity":{"net":1}}`)})
	assert.ErrorIs(t, err, models.ErrDuplicateSnapshot)
	assert.Equal(t, []call{{"append", models.DatasetFunds}}, store.calls)
}
