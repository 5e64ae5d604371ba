// Package internaldb keeps snapshot run history in BadgerHold.
package internaldb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/timshannon/badgerhold/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Store implements interfaces.RunStore using BadgerHold with msgpack values.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore opens the run store at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create internal db path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	opts.Encoder = msgpack.Marshal
	opts.Decoder = msgpack.Unmarshal
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open internal db at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("InternalDB opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) SaveRun(_ context.Context, report *models.RunReport) error {
	if report.ID == "" {
		return fmt.Errorf("run report has no id")
	}
	if err := s.db.Upsert(report.ID, report); err != nil {
		return fmt.Errorf("failed to save run '%s': %w", report.ID, err)
	}
	s.logger.Debug().Str("run_id", report.ID).Str("target_date", report.TargetDate).Msg("Run saved")
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (*models.RunReport, error) {
	var report models.RunReport
	if err := s.db.Get(id, &report); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("run '%s': %w", id, ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to get run '%s': %w", id, err)
	}
	return &report, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) ListRuns(_ context.Context, limit int) ([]*models.RunReport, error) {
	var all []models.RunReport
	if err := s.db.Find(&all, nil); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]*models.RunReport, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ interfaces.RunStore = (*Store)(nil)
