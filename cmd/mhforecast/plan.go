package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/mhforecast/internal/exitcode"
	"github.com/gyeh/mhforecast/internal/forecast"
	"github.com/gyeh/mhforecast/internal/logging"
	"github.com/gyeh/mhforecast/internal/normalize"
	"github.com/gyeh/mhforecast/internal/tables"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and expected volumes (no writes)",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&cfg.InputPath, "input", "", "Daily summary file to inspect instead of synthesizing")
	addForecastFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	order, _ := cfg.ModelOrder()
	minObs := forecast.MinObservations(order)

	fmt.Println("=== mhforecast plan ===")
	if cfg.InputPath != "" {
		sha, err := normalize.FileHash(cfg.InputPath)
		if err != nil {
			log.Error().Err(err).Msg("failed to hash file")
			os.Exit(exitcode.ValidationError)
		}
		daily, err := tables.ReadDaily(cfg.InputPath)
		if err != nil {
			log.Error().Err(err).Msg("failed to read daily summary")
			os.Exit(exitcode.ValidationError)
		}
		fmt.Printf("Input:      %s\n", cfg.InputPath)
		fmt.Printf("SHA-256:    %s\n", sha)
		fmt.Printf("Days:       %d\n", len(daily))
		printFitCheck(len(daily), minObs)
		return nil
	}

	params, err := cfg.SynthParams()
	if err != nil {
		log.Error().Err(err).Msg("invalid synthesis parameters")
		os.Exit(exitcode.ValidationError)
	}
	if err := params.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid synthesis parameters")
		os.Exit(exitcode.ValidationError)
	}

	days := normalize.DayCount(params.Start, params.End)
	expected := 0.0
	for i := 0; i < days; i++ {
		d := params.Start.AddDate(0, 0, i)
		for _, b := range params.Boards {
			expected += params.Expected(d, b.Weight)
		}
	}

	fmt.Printf("Range:      %s .. %s (%d days)\n", params.Start.Format(time.DateOnly), params.End.Format(time.DateOnly), days)
	fmt.Printf("Seed:       %d\n", cfg.Seed)
	fmt.Printf("Boards:     %d\n", len(params.Boards))
	fmt.Printf("Expected:   ~%.0f presentations (~%.1f per day)\n", expected, expected/float64(days))
	fmt.Printf("Q1/Q5:      ~%.2f\n", params.QuintileWeights[0]/params.QuintileWeights[len(params.QuintileWeights)-1])
	printFitCheck(days, minObs)
	return nil
}

func printFitCheck(days, minObs int) {
	fmt.Printf("Model:      ARIMA%s needs %d observations\n", cfg.Order, minObs)
	if days < minObs {
		fmt.Println("Fit check:  FAIL (series too short)")
		return
	}
	if cfg.Holdout > 0 && days-cfg.Holdout < minObs {
		fmt.Printf("Fit check:  OK; hold-out of %d days leaves too little training data\n", cfg.Holdout)
		return
	}
	fmt.Println("Fit check:  OK")
}
