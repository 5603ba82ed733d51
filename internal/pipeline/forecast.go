package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/mhforecast/internal/config"
	"github.com/gyeh/mhforecast/internal/forecast"
	"github.com/gyeh/mhforecast/internal/model"
)

// ForecastResult holds the fitted model and its forecast rows.
type ForecastResult struct {
	Model *forecast.Model
	Rows  []model.ForecastRow
}

// Forecast fits cfg's order on the daily totals and forecasts cfg.Horizon days.
func Forecast(log zerolog.Logger, daily []model.DailySummary, cfg *config.Config) (*ForecastResult, error) {
	start := time.Now()
	order, err := cfg.ModelOrder()
	if err != nil {
		return nil, err
	}

	m, rows, err := forecast.FitAndForecast(forecast.FromDaily(daily), order, cfg.Horizon,
		forecast.Options{Confidence: cfg.Confidence})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order", order.String()).
		Floats64("ar", m.AR).
		Floats64("ma", m.MA).
		Float64("sigma2", m.Sigma2).
		Float64("aic", m.AIC).
		Int("horizon", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("forecast complete")
	return &ForecastResult{Model: m, Rows: rows}, nil
}

// Evaluate scores cfg's order on the last cfg.Holdout days.
func Evaluate(log zerolog.Logger, daily []model.DailySummary, cfg *config.Config) (*model.Metrics, error) {
	start := time.Now()
	order, err := cfg.ModelOrder()
	if err != nil {
		return nil, err
	}
	metrics, err := forecast.Evaluate(forecast.FromDaily(daily), order, cfg.Holdout,
		forecast.Options{Confidence: cfg.Confidence})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("holdout", metrics.HoldoutDays).
		Float64("mape", metrics.MAPE).
		Float64("r2", metrics.R2).
		Dur("duration", time.Since(start)).
		Msg("evaluation complete")
	return metrics, nil
}
