// Package pipeline runs the generate, forecast, evaluate, export and load
// phases for one run and reports what each produced.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/mhforecast/internal/config"
	"github.com/gyeh/mhforecast/internal/forecast"
	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/summary"
	"github.com/gyeh/mhforecast/internal/synth"
	"github.com/gyeh/mhforecast/internal/tables"
)

// Phase names used in PipelineError.
const (
	PhaseGenerate = "generate"
	PhaseForecast = "forecast"
	PhaseExport   = "export"
	PhaseLoad     = "load"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Result is everything one run produced.
type Result struct {
	Summary  *model.RunSummary
	Dataset  *synth.Dataset
	Model    *forecast.Model
	Forecast []model.ForecastRow
	Files    []tables.File
}

// Run executes the full pipeline: generate → forecast → evaluate → export →
// load. Export is skipped without cfg.OutDir and load without a pool.
// Evaluation failures are logged and never fail the run.
func Run(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, cfg *config.Config) (*Result, error) {
	totalStart := time.Now()
	runID := uuid.New()
	log = log.With().Str("run_id", runID.String()).Logger()

	// Phase 1: Generate
	genStart := time.Now()
	ds, err := Generate(log, cfg)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseGenerate, Err: err}
	}
	sum := &model.RunSummary{
		RunID:              runID.String(),
		Seed:               cfg.Seed,
		Start:              ds.Params.Start,
		End:                ds.Params.End,
		PresentationRows:   int64(len(ds.Presentations)),
		DailyRows:          int64(len(ds.Daily)),
		MonthlyRows:        int64(len(ds.Monthly)),
		TotalPresentations: summary.Total(ds.Presentations),
		DeprivationRatio:   summary.DeprivationRatio(ds.Presentations),
		DurationGenerate:   time.Since(genStart),
	}
	if len(ds.Presentations) == 0 {
		sum.TotalPresentations = dailyTotal(ds.Daily)
	}

	// Phase 2: Forecast
	fcStart := time.Now()
	fc, err := Forecast(log, ds.Daily, cfg)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseForecast, Err: err}
	}
	sum.Model = fc.Model.Summary()
	sum.ForecastRows = int64(len(fc.Rows))
	sum.DurationForecast = time.Since(fcStart)

	// Phase 3: Evaluate (diagnostic only)
	if cfg.Holdout > 0 {
		evalStart := time.Now()
		metrics, err := Evaluate(log, ds.Daily, cfg)
		if err != nil {
			log.Warn().Err(err).Int("holdout", cfg.Holdout).Msg("evaluation skipped")
		}
		sum.Metrics = metrics
		sum.DurationEvaluate = time.Since(evalStart)
	}

	res := &Result{Summary: sum, Dataset: ds, Model: fc.Model, Forecast: fc.Rows}

	// Phase 4: Export
	if cfg.OutDir != "" {
		exportStart := time.Now()
		files, err := Export(log, cfg, ds, fc.Rows)
		if err != nil {
			return nil, &PipelineError{Phase: PhaseExport, Err: err}
		}
		res.Files = files
		sum.ExportedFiles = make(map[string]string, len(files))
		for _, f := range files {
			sum.ExportedFiles[f.Table] = f.SHA256
		}
		sum.DurationExport = time.Since(exportStart)
	}

	// Phase 5: Load
	if pool != nil {
		lr, err := Load(ctx, pool, log, runID, cfg.Seed, ds, fc, sum.Metrics)
		if err != nil {
			return nil, &PipelineError{Phase: PhaseLoad, Err: err}
		}
		sum.RowsLoaded = lr.Total()
		sum.DurationLoad = lr.Duration
	}

	sum.DurationTotal = time.Since(totalStart)

	ev := log.Info().
		Int64("presentation_rows", sum.PresentationRows).
		Int64("daily_rows", sum.DailyRows).
		Int64("forecast_rows", sum.ForecastRows).
		Int64("rows_loaded", sum.RowsLoaded).
		Str("order", sum.Model.Order.String()).
		Str("total_duration", sum.DurationTotal.String())
	if sum.Metrics != nil {
		ev = ev.Float64("mape", sum.Metrics.MAPE).Float64("r2", sum.Metrics.R2)
	}
	ev.Msg("pipeline complete")

	return res, nil
}

func dailyTotal(daily []model.DailySummary) int64 {
	var t int64
	for _, d := range daily {
		t += d.TotalPresentations
	}
	return t
}
