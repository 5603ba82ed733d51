package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/mhforecast/internal/exitcode"
	"github.com/gyeh/mhforecast/internal/logging"
	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/pipeline"
	"github.com/gyeh/mhforecast/internal/tables"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Fit an ARIMA model to the daily totals and forecast ahead",
	Long: "Fits the model to a daily summary read from --input, or to a freshly synthesized " +
		"dataset, and prints the forecast. With --out the forecast table is also written.",
	RunE: runForecast,
}

func init() {
	f := forecastCmd.Flags()
	f.StringVar(&cfg.InputPath, "input", "", "Daily summary file (csv or parquet) to forecast")
	f.StringVar(&cfg.OutDir, "out", "", "Directory to write the forecast table")
	addForecastFlags(forecastCmd)
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	ds, err := pipeline.Generate(log, &cfg)
	if err != nil {
		log.Error().Err(err).Msg("load series failed")
		os.Exit(exitCodeFor(err))
	}

	fc, err := pipeline.Forecast(log, ds.Daily, &cfg)
	if err != nil {
		log.Error().Err(err).Msg("forecast failed")
		os.Exit(exitCodeFor(err))
	}

	var metrics *model.Metrics
	if cfg.Holdout > 0 {
		if metrics, err = pipeline.Evaluate(log, ds.Daily, &cfg); err != nil {
			log.Warn().Err(err).Msg("evaluation skipped")
		}
	}

	if cfg.OutDir != "" {
		format, _ := tables.ParseFormat(cfg.Format)
		if _, err := tables.WriteAll(cfg.OutDir, format, tables.Tables{Forecast: fc.Rows}); err != nil {
			log.Error().Err(err).Msg("export failed")
			os.Exit(exitcode.ExportError)
		}
	}

	m := fc.Model
	fmt.Printf("ARIMA%s  AR=%v  MA=%v  sigma2=%.3f  AIC=%.1f\n", m.Order, m.AR, m.MA, m.Sigma2, m.AIC)
	if metrics != nil {
		fmt.Printf("Hold-out %d days: MAPE=%.2f%%  R2=%.3f\n", metrics.HoldoutDays, metrics.MAPE, metrics.R2)
	}
	fmt.Printf("%-10s  %10s  %10s  %10s\n", "date", "predicted", "lower", "upper")
	for _, r := range fc.Rows {
		fmt.Printf("%-10s  %10.1f  %10.1f  %10.1f\n", r.Date.Format(model.DateLayout), r.PredictedValue, r.LowerBound, r.UpperBound)
	}
	return nil
}
