package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/mhforecast/internal/model"
	embedsql "github.com/gyeh/mhforecast/internal/sql"
)

// Run statuses recorded in mh.runs.
const (
	StatusLoading = "loading"
	StatusLoaded  = "loaded"
	StatusFailed  = "failed"
)

// RegisterRun inserts the run header row. Re-registering an existing run id
// is a no-op.
func RegisterRun(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID, seed uint64, start, end time.Time) error {
	if _, err := pool.Exec(ctx, embedsql.RegisterRun, runID, int64(seed), start, end, StatusLoading); err != nil {
		return fmt.Errorf("register run: %w", err)
	}
	return nil
}

// CompleteRun marks a run loaded and stores its model order and metrics.
// Nil metrics are stored as NULL.
func CompleteRun(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID, order *model.Order, metrics *model.Metrics) error {
	var orderStr *string
	if order != nil {
		s := order.String()
		orderStr = &s
	}
	var mape, r2 *float64
	if metrics != nil {
		mape, r2 = &metrics.MAPE, &metrics.R2
	}
	if _, err := pool.Exec(ctx, embedsql.CompleteRun, runID, orderStr, mape, r2); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// UpdateStatus sets the run status.
func UpdateStatus(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID, status string) error {
	_, err := pool.Exec(ctx, embedsql.UpdateRunStatus, runID, status)
	return err
}

// DeleteRun removes a run and, by cascade, every row tagged with it.
func DeleteRun(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID) error {
	_, err := pool.Exec(ctx, embedsql.DeleteRun, runID)
	return err
}

// RowCounts are the number of rows stored for one run per table.
type RowCounts struct {
	Presentations int64
	Daily         int64
	Monthly       int64
	Forecasts     int64
}

// CountRows returns the per-table row counts for a run.
func CountRows(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID) (*RowCounts, error) {
	var c RowCounts
	err := pool.QueryRow(ctx, embedsql.CountRunRows, runID).
		Scan(&c.Presentations, &c.Daily, &c.Monthly, &c.Forecasts)
	if err != nil {
		return nil, fmt.Errorf("count run rows: %w", err)
	}
	return &c, nil
}
