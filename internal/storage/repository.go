package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createReportRunsSQL = `CREATE TABLE IF NOT EXISTS report_runs (
        id               UUID PRIMARY KEY,
        generated_at     TIMESTAMPTZ NOT NULL,
        format           TEXT NOT NULL,
        chart_mode       TEXT NOT NULL,
        filename         TEXT NOT NULL,
        size_bytes       INTEGER NOT NULL,
        row_count        INTEGER NOT NULL,
        period_from      DATE NOT NULL,
        period_to        DATE NOT NULL,
        latest           NUMERIC NOT NULL,
        day_change_pct   NUMERIC NOT NULL,
        week_change_pct  NUMERIC NOT NULL,
        month_change_pct NUMERIC NOT NULL
    );`

	insertReportRunSQL = `INSERT INTO report_runs (
        id,
        generated_at,
        format,
        chart_mode,
        filename,
        size_bytes,
        row_count,
        period_from,
        period_to,
        latest,
        day_change_pct,
        week_change_pct,
        month_change_pct
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    );`

	listRecentRunsSQL = `SELECT
        id,
        generated_at,
        format,
        chart_mode,
        filename,
        size_bytes,
        row_count,
        period_from,
        period_to,
        latest::text,
        day_change_pct::text,
        week_change_pct::text,
        month_change_pct::text
    FROM report_runs
    ORDER BY generated_at DESC
    LIMIT $1;`

	countRunsSQL = `SELECT COUNT(*) FROM report_runs;`
)

// ReportRunStore defines the audit log operations.
type ReportRunStore interface {
	InsertReportRun(ctx context.Context, run ReportRun) error
	ListRecentRuns(ctx context.Context, limit int) ([]ReportRun, error)
}

// Store wraps a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the report_runs table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createReportRunsSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertReportRun persists a report run; a zero ID is replaced with a new UUID.
func (s *Store) InsertReportRun(ctx context.Context, run ReportRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	_, execErr := pool.Exec(ctx, insertReportRunSQL,
		run.ID,
		run.GeneratedAt,
		run.Format,
		run.ChartMode,
		run.Filename,
		run.SizeBytes,
		run.Rows,
		run.PeriodFrom,
		run.PeriodTo,
		run.Latest.String(),
		run.DayChangePct.String(),
		run.WeekChangePct.String(),
		run.MonthChangePct.String(),
	)
	if execErr != nil {
		return fmt.Errorf("insert report run: %w", execErr)
	}
	return nil
}

// ListRecentRuns lists the most recent runs, newest first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]ReportRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]ReportRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanReportRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// CountRuns counts stored runs.
func (s *Store) CountRuns(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRunsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count runs: %w", scanErr)
	}
	return count, nil
}

func scanReportRun(rows pgx.Rows) (ReportRun, error) {
	var (
		run                                  ReportRun
		latestStr, dayStr, weekStr, monthStr string
	)

	if err := rows.Scan(
		&run.ID,
		&run.GeneratedAt,
		&run.Format,
		&run.ChartMode,
		&run.Filename,
		&run.SizeBytes,
		&run.Rows,
		&run.PeriodFrom,
		&run.PeriodTo,
		&latestStr,
		&dayStr,
		&weekStr,
		&monthStr,
	); err != nil {
		return ReportRun{}, err
	}

	var err error
	if run.Latest, err = decimal.NewFromString(latestStr); err != nil {
		return ReportRun{}, fmt.Errorf("parse latest: %w", err)
	}
	if run.DayChangePct, err = decimal.NewFromString(dayStr); err != nil {
		return ReportRun{}, fmt.Errorf("parse day change: %w", err)
	}
	if run.WeekChangePct, err = decimal.NewFromString(weekStr); err != nil {
		return ReportRun{}, fmt.Errorf("parse week change: %w", err)
	}
	if run.MonthChangePct, err = decimal.NewFromString(monthStr); err != nil {
		return ReportRun{}, fmt.Errorf("parse month change: %w", err)
	}
	return run, nil
}

var _ ReportRunStore = (*Store)(nil)
