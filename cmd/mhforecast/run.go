package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/gyeh/mhforecast/internal/db"
	"github.com/gyeh/mhforecast/internal/exitcode"
	"github.com/gyeh/mhforecast/internal/logging"
	"github.com/gyeh/mhforecast/internal/pipeline"
)

var runLoad bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate, forecast, evaluate and export in one pass, optionally loading Postgres",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&cfg.OutDir, "out", "", "Output directory (empty skips export)")
	f.BoolVar(&runLoad, "load", false, "COPY the run into Postgres (requires --dsn)")
	addForecastFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	validate := cfg.Validate
	if runLoad {
		validate = cfg.ValidateWithDSN
	}
	if err := validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	var pool *pgxpool.Pool
	if runLoad {
		var err error
		pool, err = db.NewPool(ctx, cfg.DSN)
		if err != nil {
			log.Error().Err(err).Msg("database connection failed")
			os.Exit(exitcode.DBConnError)
		}
		defer pool.Close()
	}

	res, err := pipeline.Run(ctx, pool, log, &cfg)
	if err != nil {
		if pe, ok := err.(*pipeline.PipelineError); ok {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("run failed")
		} else {
			log.Error().Err(err).Msg("run failed")
		}
		if pool != nil {
			pool.Close()
		}
		os.Exit(exitCodeFor(err))
	}

	s := res.Summary
	fmt.Printf("Run %s complete: %d days, %d presentations, %d forecast rows (%.1fs)\n",
		s.RunID, s.DailyRows, s.TotalPresentations, s.ForecastRows, s.DurationTotal.Seconds())
	if s.Metrics != nil {
		fmt.Printf("Hold-out %d days: MAPE=%.2f%%  R2=%.3f\n", s.Metrics.HoldoutDays, s.Metrics.MAPE, s.Metrics.R2)
	}
	if s.RowsLoaded > 0 {
		fmt.Printf("Loaded %d rows into Postgres\n", s.RowsLoaded)
	}
	return nil
}
