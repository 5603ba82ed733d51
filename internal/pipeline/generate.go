package pipeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/mhforecast/internal/config"
	"github.com/gyeh/mhforecast/internal/summary"
	"github.com/gyeh/mhforecast/internal/synth"
	"github.com/gyeh/mhforecast/internal/tables"
)

// Generate synthesizes the dataset described by cfg, or reads the daily
// summary from cfg.InputPath when set. A dataset read from a file carries
// only daily and monthly tables.
func Generate(log zerolog.Logger, cfg *config.Config) (*synth.Dataset, error) {
	start := time.Now()

	if cfg.InputPath != "" {
		daily, err := tables.ReadDaily(cfg.InputPath)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if len(daily) == 0 {
			return nil, fmt.Errorf("input %s has no rows", cfg.InputPath)
		}
		ds := &synth.Dataset{
			Daily:   daily,
			Monthly: summary.Monthly(daily),
		}
		ds.Params.Start = daily[0].Date
		ds.Params.End = daily[len(daily)-1].Date
		log.Info().
			Str("input", cfg.InputPath).
			Int("daily_rows", len(daily)).
			Dur("duration", time.Since(start)).
			Msg("daily summary loaded")
		return ds, nil
	}

	params, err := cfg.SynthParams()
	if err != nil {
		return nil, err
	}
	ds, err := synth.Generate(params, synth.NewSource(cfg.Seed))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("start", cfg.Start).
		Str("end", cfg.End).
		Uint64("seed", cfg.Seed).
		Int("boards", len(params.Boards)).
		Int("presentation_rows", len(ds.Presentations)).
		Int("daily_rows", len(ds.Daily)).
		Dur("duration", time.Since(start)).
		Msg("dataset generated")
	return ds, nil
}
