// Package columnar keeps materialized snapshot partitions in SQLite.
// Every partition row set is written together with a marker carrying the
// checksum of the raw entry it was derived from.
package columnar

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the SQLite-backed columnar store.
type Store struct {
	db     *sql.DB
	logger *common.Logger
}

// Partition is the marker row of one materialized (dataset, account, date).
type Partition struct {
	Dataset        models.Dataset
	Account        string
	AsOfDate       string
	Checksum       string
	RecordCount    int
	MaterializedAt time.Time
}

// Filter narrows record queries. Empty fields match everything.
type Filter struct {
	Account string
	Symbol  string // holdings only
	From    string // inclusive YYYY-MM-DD
	Until   string // inclusive YYYY-MM-DD
}

// NewStore opens (creating if needed) the database at path and applies migrations.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create columnar store directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open columnar store at %s: %w", path, err)
	}

	// One connection: SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping columnar store: %w", err)
	}

	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Columnar store opened")
	return &Store{db: db, logger: logger}, nil
}

func runMigrations(db *sql.DB, logger *common.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migration instance creation failed: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug().Msg("No new columnar migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info().Msg("Columnar migrations applied")
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetPartition returns the partition marker, or nil when not materialized.
func (s *Store) GetPartition(ctx context.Context, dataset models.Dataset, account, date string) (*Partition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT checksum, record_count, materialized_at FROM partitions
		 WHERE dataset = ? AND account = ? AND as_of_date = ?`,
		string(dataset), account, date)

	p := &Partition{Dataset: dataset, Account: account, AsOfDate: date}
	var materializedAt string
	if err := row.Scan(&p.Checksum, &p.RecordCount, &materializedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read partition %s/%s/%s: %w", dataset, account, date, err)
	}
	p.MaterializedAt, _ = time.Parse(time.RFC3339Nano, materializedAt)
	return p, nil
}

// ReplaceHoldings swaps the holdings rows and marker of one partition in a single transaction.
func (s *Store) ReplaceHoldings(ctx context.Context, account, date, checksum string, records []models.HoldingRecord) error {
	return s.replace(ctx, models.DatasetHoldings, account, date, checksum, len(records), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE account = ? AND as_of_date = ?`, account, date); err != nil {
			return fmt.Errorf("failed to clear holdings: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO holdings (
			account, as_of_date, line, as_of_ts, tradingsymbol, exchange, isin, product,
			instrument_token, quantity, t1_quantity, average_price, last_price, close_price,
			value, pnl, day_change, day_change_percentage
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare holdings insert: %w", err)
		}
		defer stmt.Close()

		for i, r := range records {
			if _, err := stmt.ExecContext(ctx,
				account, date, i, r.AsOfTS, r.TradingSymbol, r.Exchange, r.ISIN, r.Product,
				r.InstrumentToken, r.Quantity, r.T1Quantity, r.AveragePrice, r.LastPrice, r.ClosePrice,
				r.Value, r.PnL, r.DayChange, r.DayChangePercentage,
			); err != nil {
				return fmt.Errorf("failed to insert holding %s: %w", r.TradingSymbol, err)
			}
		}
		return nil
	})
}

// ReplaceFunds swaps the funds rows and marker of one partition in a single transaction.
func (s *Store) ReplaceFunds(ctx context.Context, account, date, checksum string, records []models.FundsRecord) error {
	return s.replace(ctx, models.DatasetFunds, account, date, checksum, len(records), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM funds WHERE account = ? AND as_of_date = ?`, account, date); err != nil {
			return fmt.Errorf("failed to clear funds: %w", err)
		}
		for _, r := range records {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO funds (account, as_of_date, segment, as_of_ts, available_cash, net, available_collateral)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				account, date, r.Segment, r.AsOfTS, r.AvailableCash, r.Net, r.AvailableCollateral,
			); err != nil {
				return fmt.Errorf("failed to insert funds segment %s: %w", r.Segment, err)
			}
		}
		return nil
	})
}

func (s *Store) replace(ctx context.Context, dataset models.Dataset, account, date, checksum string, count int, rows func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := rows(tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO partitions (dataset, account, as_of_date, checksum, record_count, materialized_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dataset, account, as_of_date) DO UPDATE SET
		   checksum = excluded.checksum,
		   record_count = excluded.record_count,
		   materialized_at = excluded.materialized_at`,
		string(dataset), account, date, checksum, count, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to write partition marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit partition %s/%s/%s: %w", dataset, account, date, err)
	}

	s.logger.Debug().
		Str("dataset", string(dataset)).
		Str("account", account).
		Str("date", date).
		Int("records", count).
		Msg("Partition materialized")
	return nil
}

func (f Filter) where(withSymbol bool) (string, []any) {
	var clauses []string
	var args []any
	if f.Account != "" && f.Account != models.AllAccounts {
		clauses = append(clauses, "account = ?")
		args = append(args, f.Account)
	}
	if withSymbol && f.Symbol != "" && f.Symbol != models.AllSymbols {
		clauses = append(clauses, "tradingsymbol = ?")
		args = append(args, f.Symbol)
	}
	if f.From != "" {
		clauses = append(clauses, "as_of_date >= ?")
		args = append(args, f.From)
	}
	if f.Until != "" {
		clauses = append(clauses, "as_of_date <= ?")
		args = append(args, f.Until)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// QueryHoldings returns holdings ordered by date, account, symbol and line.
func (s *Store) QueryHoldings(ctx context.Context, f Filter) ([]models.HoldingRecord, error) {
	where, args := f.where(true)
	rows, err := s.db.QueryContext(ctx, `SELECT
		account, as_of_date, as_of_ts, tradingsymbol, exchange, isin, product,
		instrument_token, quantity, t1_quantity, average_price, last_price, close_price,
		value, pnl, day_change, day_change_percentage
		FROM holdings`+where+` ORDER BY as_of_date, account, tradingsymbol, line`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var out []models.HoldingRecord
	for rows.Next() {
		var r models.HoldingRecord
		if err := rows.Scan(
			&r.Account, &r.AsOfDate, &r.AsOfTS, &r.TradingSymbol, &r.Exchange, &r.ISIN, &r.Product,
			&r.InstrumentToken, &r.Quantity, &r.T1Quantity, &r.AveragePrice, &r.LastPrice, &r.ClosePrice,
			&r.Value, &r.PnL, &r.DayChange, &r.DayChangePercentage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// QueryFunds returns funds rows ordered by date, account and segment.
func (s *Store) QueryFunds(ctx context.Context, f Filter) ([]models.FundsRecord, error) {
	where, args := f.where(false)
	rows, err := s.db.QueryContext(ctx, `SELECT
		account, as_of_date, segment, as_of_ts, available_cash, net, available_collateral
		FROM funds`+where+` ORDER BY as_of_date, account, segment`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer rows.Close()

	var out []models.FundsRecord
	for rows.Next() {
		var r models.FundsRecord
		if err := rows.Scan(&r.Account, &r.AsOfDate, &r.Segment, &r.AsOfTS, &r.AvailableCash, &r.Net, &r.AvailableCollateral); err != nil {
			return nil, fmt.Errorf("failed to scan funds row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Dates returns the materialized dates of an account, ascending.
func (s *Store) Dates(ctx context.Context, dataset models.Dataset, account string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT as_of_date FROM partitions WHERE dataset = ? AND account = ? ORDER BY as_of_date`,
		string(dataset), account)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan partition date: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LatestDate returns the most recent materialized date on or before until.
// The boolean is false when the account has no partition in range.
func (s *Store) LatestDate(ctx context.Context, dataset models.Dataset, account, until string) (string, bool, error) {
	var d sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(as_of_date) FROM partitions WHERE dataset = ? AND account = ? AND as_of_date <= ?`,
		string(dataset), account, until).Scan(&d)
	if err != nil {
		return "", false, fmt.Errorf("failed to find latest partition: %w", err)
	}
	return d.String, d.Valid, nil
}
