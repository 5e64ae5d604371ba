// Package normalizer turns broker payloads into canonical snapshot records
// and persists them through the snapshot store.
package normalizer

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
)

// Service implements NormalizerService
type Service struct {
	store  interfaces.SnapshotStore
	loc    *time.Location
	logger *common.Logger
}

// NewService creates a normalizer that stamps records in loc.
func NewService(store interfaces.SnapshotStore, loc *time.Location, logger *common.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, logger: logger}
}

// NormalizeAndPersist validates raw, appends the raw entry and materializes it.
// Nothing is written when validation fails.
func (s *Service) NormalizeAndPersist(ctx context.Context, dataset models.Dataset, account string, date calendar.Date, raw models.RawFetchResult) error {
	fetchedAt := raw.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	asOfTS := fetchedAt.In(s.loc).Format(time.RFC3339)
	asOfDate := date.String()

	entry := models.RawEntry{Header: models.RawHeader{
		Dataset:  dataset,
		Account:  account,
		AsOfDate: asOfDate,
		AsOfTS:   asOfTS,
	}}

	var err error
	switch dataset {
	case models.DatasetHoldings:
		entry.Holdings, err = NormalizeHoldings(account, asOfDate, asOfTS, raw.Payload)
	case models.DatasetFunds:
		entry.Funds, err = NormalizeFunds(account, asOfDate, asOfTS, raw.Payload)
	default:
		return fmt.Errorf("unknown dataset %q", dataset)
	}
	if err != nil {
		return err
	}

	if err := s.store.AppendRaw(ctx, dataset, account, date, entry); err != nil {
		return err
	}
	if err := s.store.Materialize(ctx, dataset, account, date); err != nil {
		return err
	}

	s.logger.Info().
		Str("dataset", string(dataset)).
		Str("account", account).
		Str("date", asOfDate).
		Int("records", entry.Len()).
		Msg("Snapshot persisted")
	return nil
}

var _ interfaces.NormalizerService = (*Service)(nil)
