package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/mhforecast/internal/config"
	"github.com/gyeh/mhforecast/internal/exitcode"
	"github.com/gyeh/mhforecast/internal/forecast"
	"github.com/gyeh/mhforecast/internal/pipeline"
	"github.com/gyeh/mhforecast/internal/synth"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "mhforecast",
	Short: "Synthetic mental-health presentation data and ARIMA demand forecasts",
	Long: "Generates a reproducible synthetic dataset of mental-health presentations across the " +
		"Scottish health boards, summarizes it, fits an ARIMA model to the daily totals and " +
		"exports, loads or serves the results.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ConfigFile == "" {
			return nil
		}
		return cfg.LoadFromFile(cfg.ConfigFile)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("MHFORECAST_DB_URL"), "Postgres connection string (or set MHFORECAST_DB_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&cfg.ConfigFile, "config", "", "YAML file of synthesis parameter overrides")
	pf.StringVar(&cfg.Start, "start", config.DefaultStart, "First day of the synthesized range (YYYY-MM-DD)")
	pf.StringVar(&cfg.End, "end", config.DefaultEnd, "Last day of the synthesized range (YYYY-MM-DD)")
	pf.Uint64Var(&cfg.Seed, "seed", config.DefaultSeed, "Random seed")
	pf.StringVar(&cfg.Order, "order", config.DefaultOrder, "ARIMA order p,d,q")
	pf.Float64Var(&cfg.Confidence, "confidence", config.DefaultConfidence, "Forecast interval coverage in (0, 1)")
	pf.StringVar(&cfg.Format, "format", config.DefaultFormat, "Table file format: csv or parquet")
}

func addForecastFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&cfg.Horizon, "horizon", config.DefaultHorizon, "Days to forecast past the last observation")
	f.IntVar(&cfg.Holdout, "holdout", config.DefaultHoldout, "Trailing days held out for MAPE/R2 (0 disables)")
}

// exitCodeFor maps a pipeline failure to the process exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, synth.ErrInvalidRange), errors.Is(err, synth.ErrInvalidParams),
		errors.Is(err, forecast.ErrInvalidHorizon):
		return exitcode.ValidationError
	case errors.Is(err, forecast.ErrFitFailure):
		return exitcode.FitError
	}
	var pe *pipeline.PipelineError
	if errors.As(err, &pe) {
		switch pe.Phase {
		case pipeline.PhaseGenerate:
			return exitcode.ValidationError
		case pipeline.PhaseForecast:
			return exitcode.FitError
		case pipeline.PhaseExport:
			return exitcode.ExportError
		case pipeline.PhaseLoad:
			return exitcode.CopyError
		}
	}
	return exitcode.UsageError
}
