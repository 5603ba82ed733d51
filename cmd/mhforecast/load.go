package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gyeh/mhforecast/internal/db"
	"github.com/gyeh/mhforecast/internal/exitcode"
	"github.com/gyeh/mhforecast/internal/logging"
	"github.com/gyeh/mhforecast/internal/summary"
	"github.com/gyeh/mhforecast/internal/tables"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "COPY previously exported tables into Postgres as a new run",
	RunE:  runLoadDir,
}

func init() {
	loadCmd.Flags().StringVar(&cfg.OutDir, "out", "", "Directory holding exported tables (required)")
	_ = loadCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(loadCmd)
}

func runLoadDir(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	format, _ := tables.ParseFormat(cfg.Format)

	t, err := tables.ReadDir(cfg.OutDir, format)
	if err != nil {
		log.Error().Err(err).Msg("read tables failed")
		os.Exit(exitcode.ValidationError)
	}
	if len(t.Daily) == 0 {
		log.Error().Str("dir", cfg.OutDir).Msg("daily summary is empty")
		os.Exit(exitcode.ValidationError)
	}
	if t.Monthly == nil {
		t.Monthly = summary.Monthly(t.Daily)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	in := &db.LoadInput{
		RunID:         uuid.New(),
		Seed:          cfg.Seed,
		Start:         t.Daily[0].Date,
		End:           t.Daily[len(t.Daily)-1].Date,
		Presentations: t.Presentations,
		Daily:         t.Daily,
		Monthly:       t.Monthly,
		Forecast:      t.Forecast,
	}
	if len(t.Forecast) > 0 {
		in.Order = &t.Forecast[0].Order
	}

	res, err := db.Load(ctx, pool, log, in)
	if err != nil {
		log.Error().Err(err).Msg("load failed")
		pool.Close()
		os.Exit(exitcode.CopyError)
	}

	fmt.Printf("Load complete: run %s, %d rows (%.1fs)\n", in.RunID, res.Total(), res.Duration.Seconds())
	return nil
}
