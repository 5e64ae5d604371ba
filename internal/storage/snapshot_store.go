package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/storage/columnar"
)

// SnapshotStore implements interfaces.SnapshotStore over a raw blob log
// and a columnar store. The raw log is the source of truth; partitions are
// derived from it and carry its checksum.
type SnapshotStore struct {
	raw      BlobStore
	columnar *columnar.Store
	logger   *common.Logger
}

// NewSnapshotStore combines a raw log and a columnar store.
func NewSnapshotStore(logger *common.Logger, raw BlobStore, col *columnar.Store) *SnapshotStore {
	return &SnapshotStore{raw: raw, columnar: col, logger: logger}
}

// readRaw returns the raw entry bytes, or nil when the entry is absent or blank.
func (s *SnapshotStore) readRaw(ctx context.Context, dataset models.Dataset, account string, date calendar.Date) ([]byte, error) {
	key, err := rawKey(dataset, account, date)
	if err != nil {
		return nil, err
	}
	data, err := s.raw.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read raw %s entry for %s on %s: %w", dataset, account, date, err)
	}
	if isBlank(data) {
		return nil, nil
	}
	return data, nil
}

// Exists reports ABSENT, RAW_ONLY or MATERIALIZED for one key. A partition
// whose checksum differs from the current raw entry counts as RAW_ONLY.
func (s *SnapshotStore) Exists(ctx context.Context, dataset models.Dataset, account string, date calendar.Date) (models.ExistState, error) {
	data, err := s.readRaw(ctx, dataset, account, date)
	if err != nil {
		return "", err
	}
	if data == nil {
		return models.StateAbsent, nil
	}

	p, err := s.columnar.GetPartition(ctx, dataset, account, date.String())
	if err != nil {
		return "", err
	}
	if p == nil || p.Checksum != rawChecksum(data) {
		return models.StateRawOnly, nil
	}
	return models.StateMaterialized, nil
}

// AppendRaw writes the raw entry once. The columnar store is not touched.
func (s *SnapshotStore) AppendRaw(ctx context.Context, dataset models.Dataset, account string, date calendar.Date, entry models.RawEntry) error {
	key, err := rawKey(dataset, account, date)
	if err != nil {
		return err
	}

	entry.Header.Dataset = dataset
	entry.Header.Account = account
	entry.Header.AsOfDate = date.String()
	data, err := encodeRawEntry(entry)
	if err != nil {
		return err
	}

	if err := s.raw.Create(ctx, key, data); err != nil {
		if errors.Is(err, ErrBlobExists) {
			return &models.DuplicateSnapshotError{Dataset: dataset, Account: account, Date: date.String()}
		}
		return fmt.Errorf("failed to append raw %s entry: %w", dataset, err)
	}

	s.logger.Info().
		Str("dataset", string(dataset)).
		Str("account", account).
		Str("date", date.String()).
		Int("records", entry.Len()).
		Msg("Raw snapshot appended")
	return nil
}

// Materialize derives the partition from the raw entry. Repeat calls are no-ops.
func (s *SnapshotStore) Materialize(ctx context.Context, dataset models.Dataset, account string, date calendar.Date) error {
	data, err := s.readRaw(ctx, dataset, account, date)
	if err != nil {
		return err
	}
	if data == nil {
		return &models.MissingRawDataError{Dataset: dataset, Account: account, Date: date.String()}
	}

	checksum := rawChecksum(data)
	p, err := s.columnar.GetPartition(ctx, dataset, account, date.String())
	if err != nil {
		return err
	}
	if p != nil && p.Checksum == checksum {
		return nil
	}

	entry, err := decodeRawEntry(data, dataset, account)
	if err != nil {
		return err
	}

	// Partition rows always carry the key they are filed under
	day := date.String()
	switch dataset {
	case models.DatasetFunds:
		for i := range entry.Funds {
			entry.Funds[i].Account = account
			entry.Funds[i].AsOfDate = day
		}
		err = s.columnar.ReplaceFunds(ctx, account, day, checksum, entry.Funds)
	default:
		for i := range entry.Holdings {
			entry.Holdings[i].Account = account
			entry.Holdings[i].AsOfDate = day
		}
		err = s.columnar.ReplaceHoldings(ctx, account, day, checksum, entry.Holdings)
	}
	if err != nil {
		return fmt.Errorf("failed to materialize %s for %s on %s: %w", dataset, account, day, err)
	}

	s.logger.Info().
		Str("dataset", string(dataset)).
		Str("account", account).
		Str("date", day).
		Int("records", entry.Len()).
		Msg("Snapshot materialized")
	return nil
}

// QueryHistory returns materialized records ordered by date ascending.
func (s *SnapshotStore) QueryHistory(ctx context.Context, q models.HistoryQuery) (*models.History, error) {
	f := columnar.Filter{Account: q.Account, Symbol: q.Symbol, Until: q.Until}
	switch q.Dataset {
	case models.DatasetHoldings:
		recs, err := s.columnar.QueryHoldings(ctx, f)
		if err != nil {
			return nil, err
		}
		return &models.History{Holdings: recs}, nil
	case models.DatasetFunds:
		recs, err := s.columnar.QueryFunds(ctx, f)
		if err != nil {
			return nil, err
		}
		return &models.History{Funds: recs}, nil
	default:
		return nil, fmt.Errorf("unknown dataset %q", q.Dataset)
	}
}

// ListDates returns materialized dates for an account, ascending.
func (s *SnapshotStore) ListDates(ctx context.Context, dataset models.Dataset, account string) ([]calendar.Date, error) {
	days, err := s.columnar.Dates(ctx, dataset, account)
	if err != nil {
		return nil, err
	}
	out := make([]calendar.Date, 0, len(days))
	for _, d := range days {
		parsed, err := calendar.Parse(d)
		if err != nil {
			return nil, fmt.Errorf("corrupt partition date %q: %w", d, err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

// ListRawDates returns dates that have a raw entry for an account, ascending.
func (s *SnapshotStore) ListRawDates(ctx context.Context, dataset models.Dataset, account string) ([]calendar.Date, error) {
	prefix, err := rawPrefix(dataset, account)
	if err != nil {
		return nil, err
	}
	res, err := s.raw.List(ctx, ListOptions{Prefix: prefix})
	if err != nil {
		return nil, err
	}

	var out []calendar.Date
	for _, b := range res.Blobs {
		name := strings.TrimPrefix(b.Key, prefix)
		if b.Size == 0 || strings.Contains(name, "/") || !strings.HasSuffix(name, rawExt) {
			continue
		}
		d, err := calendar.Parse(strings.TrimSuffix(name, rawExt))
		if err != nil {
			s.logger.Warn().Str("key", b.Key).Msg("Skipping raw entry with unparseable date")
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Latest returns the newest materialized snapshot on or before until, or nil.
func (s *SnapshotStore) Latest(ctx context.Context, dataset models.Dataset, account string, until calendar.Date) (*models.Snapshot, error) {
	if !dataset.Valid() {
		return nil, fmt.Errorf("unknown dataset %q", dataset)
	}
	day, ok, err := s.columnar.LatestDate(ctx, dataset, account, until.String())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	snap := &models.Snapshot{Dataset: dataset, Account: account, AsOfDate: day}
	f := columnar.Filter{Account: account, From: day, Until: day}
	if dataset == models.DatasetFunds {
		snap.Funds, err = s.columnar.QueryFunds(ctx, f)
	} else {
		snap.Holdings, err = s.columnar.QueryHoldings(ctx, f)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

var _ interfaces.SnapshotStore = (*SnapshotStore)(nil)
