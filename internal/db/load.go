package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/mhforecast/internal/model"
)

const copyBufferSize = 1024

// LoadInput is everything one run persists.
type LoadInput struct {
	RunID         uuid.UUID
	Seed          uint64
	Start, End    time.Time
	Presentations []model.Presentation
	Daily         []model.DailySummary
	Monthly       []model.MonthlySummary
	Forecast      []model.ForecastRow
	Order         *model.Order
	Metrics       *model.Metrics
}

// LoadResult holds metrics from the load phase.
type LoadResult struct {
	Rows     RowCounts
	Duration time.Duration
}

// Total is the number of rows copied across all tables.
func (r *LoadResult) Total() int64 {
	return r.Rows.Presentations + r.Rows.Daily + r.Rows.Monthly + r.Rows.Forecasts
}

// Load registers the run and COPY-loads every table tagged with its run id.
// On failure the run is marked failed and its partial rows are left for
// inspection.
func Load(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, in *LoadInput) (*LoadResult, error) {
	start := time.Now()

	if err := RegisterRun(ctx, pool, in.RunID, in.Seed, in.Start, in.End); err != nil {
		return nil, err
	}

	res := &LoadResult{}
	fail := func(err error) (*LoadResult, error) {
		if uerr := UpdateStatus(ctx, pool, in.RunID, StatusFailed); uerr != nil {
			log.Warn().Err(uerr).Msg("mark run failed")
		}
		return nil, err
	}

	var err error
	if res.Rows.Presentations, err = copyTable(ctx, pool, log, "presentations", model.PresentationColumns, in.Presentations,
		func(p *model.Presentation) []any { return p.CopyValues(in.RunID) }); err != nil {
		return fail(err)
	}
	if res.Rows.Daily, err = copyTable(ctx, pool, log, "daily_summary", model.DailyColumns, in.Daily,
		func(d *model.DailySummary) []any { return d.CopyValues(in.RunID) }); err != nil {
		return fail(err)
	}
	if res.Rows.Monthly, err = copyTable(ctx, pool, log, "monthly_summary", model.MonthlyColumns, in.Monthly,
		func(m *model.MonthlySummary) []any { return m.CopyValues(in.RunID) }); err != nil {
		return fail(err)
	}
	if res.Rows.Forecasts, err = copyTable(ctx, pool, log, "forecasts", model.ForecastColumns, in.Forecast,
		func(f *model.ForecastRow) []any { return f.CopyValues(in.RunID) }); err != nil {
		return fail(err)
	}

	if err := CompleteRun(ctx, pool, in.RunID, in.Order, in.Metrics); err != nil {
		return fail(err)
	}

	res.Duration = time.Since(start)
	log.Info().
		Str("run_id", in.RunID.String()).
		Int64("rows_loaded", res.Total()).
		Dur("duration", res.Duration).
		Msg("load complete")
	return res, nil
}

// copyTable streams rows through a producer goroutine into COPY on mh.<table>.
func copyTable[T any](ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, table string,
	columns []string, rows []T, values func(*T) []any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	start := time.Now()

	ch := make(chan []any, copyBufferSize)
	errCh := make(chan error, 1)
	copyCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer close(ch)
		for i := range rows {
			select {
			case ch <- values(&rows[i]):
			case <-copyCtx.Done():
				errCh <- copyCtx.Err()
				return
			}
		}
		errCh <- nil
	}()

	copied, err := pool.CopyFrom(copyCtx, pgx.Identifier{"mh", table}, columns, NewChannelSource(ch))
	if err != nil {
		// Unblock the producer before waiting on it.
		cancel()
		<-errCh
		return 0, fmt.Errorf("copy %s: %w", table, err)
	}
	if prodErr := <-errCh; prodErr != nil {
		return 0, fmt.Errorf("copy %s producer: %w", table, prodErr)
	}

	log.Debug().
		Str("table", table).
		Int64("rows", copied).
		Dur("duration", time.Since(start)).
		Msg("table copied")
	return copied, nil
}
