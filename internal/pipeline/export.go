package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/mhforecast/internal/config"
	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/synth"
	"github.com/gyeh/mhforecast/internal/tables"
)

// Export writes the dataset tables and, when given, the forecast into
// cfg.OutDir. Tables the dataset lacks are skipped.
func Export(log zerolog.Logger, cfg *config.Config, ds *synth.Dataset, fc []model.ForecastRow) ([]tables.File, error) {
	start := time.Now()
	format, err := tables.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	t := tables.Tables{
		Daily:    ds.Daily,
		Monthly:  ds.Monthly,
		Forecast: fc,
	}
	if len(ds.Presentations) > 0 {
		t.Presentations = ds.Presentations
		t.BoardDaily = ds.BoardDaily
	}

	files, err := tables.WriteAll(cfg.OutDir, format, t)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		log.Debug().Str("table", f.Table).Str("path", f.Path).Int("rows", f.Rows).Str("sha256", f.SHA256).Msg("table written")
	}
	log.Info().
		Str("dir", cfg.OutDir).
		Str("format", string(format)).
		Int("files", len(files)).
		Dur("duration", time.Since(start)).
		Msg("export complete")
	return files, nil
}
