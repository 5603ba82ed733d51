package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyeh/mhforecast/internal/api"
	"github.com/gyeh/mhforecast/internal/config"
	"github.com/gyeh/mhforecast/internal/exitcode"
	"github.com/gyeh/mhforecast/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tables and forecasts as read-only JSON",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&cfg.Addr, "addr", config.DefaultAddr, "Listen address")
	serveCmd.Flags().IntVar(&cfg.MaxHorizon, "max-horizon", config.DefaultMaxHorizon, "Largest forecast horizon or holdout a request may ask for")
	serveCmd.Flags().IntVar(&cfg.MaxRangeDays, "max-range-days", config.DefaultMaxRangeDays, "Longest date range a request may synthesize, in days")
	addForecastFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.NewServer(cfg, log).ListenAndServe(ctx, cfg.Addr); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(exitcode.ServeError)
	}
	return nil
}
