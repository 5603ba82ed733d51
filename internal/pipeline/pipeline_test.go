package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gyeh/mhforecast/internal/config"
	"github.com/gyeh/mhforecast/internal/forecast"
	"github.com/gyeh/mhforecast/internal/logging"
	"github.com/gyeh/mhforecast/internal/synth"
	"github.com/gyeh/mhforecast/internal/tables"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Start:      "2023-01-01",
		End:        "2023-06-30",
		Seed:       42,
		Horizon:    14,
		Holdout:    14,
		Confidence: 0.95,
		Order:      "1,1,1",
		Format:     "csv",
		OutDir:     t.TempDir(),
	}
}

func TestRun_ExportsTables(t *testing.T) {
	cfg := testConfig(t)
	res, err := Run(context.Background(), nil, logging.Setup("text", "warn"), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := res.Summary
	if s.DailyRows != 181 || s.MonthlyRows != 6 || s.ForecastRows != 14 {
		t.Errorf("rows: daily=%d monthly=%d forecast=%d", s.DailyRows, s.MonthlyRows, s.ForecastRows)
	}
	if s.Metrics == nil || s.Metrics.HoldoutDays != 14 {
		t.Errorf("metrics = %+v", s.Metrics)
	}
	if s.Model == nil || s.Model.Order.String() != "(1,1,1)" {
		t.Errorf("model = %+v", s.Model)
	}
	if s.RunID == "" || s.RowsLoaded != 0 {
		t.Errorf("run id %q, rows loaded %d", s.RunID, s.RowsLoaded)
	}
	if len(s.ExportedFiles) != 5 {
		t.Errorf("exported %d files, want 5", len(s.ExportedFiles))
	}

	daily, err := tables.ReadDaily(filepath.Join(cfg.OutDir, "daily_summary.csv"))
	if err != nil {
		t.Fatalf("ReadDaily: %v", err)
	}
	if len(daily) != 181 || daily[0].TotalPresentations != res.Dataset.Daily[0].TotalPresentations {
		t.Errorf("exported daily does not match dataset")
	}
}

func TestRun_InvalidRange(t *testing.T) {
	cfg := testConfig(t)
	cfg.Start, cfg.End = cfg.End, cfg.Start
	_, err := Run(context.Background(), nil, logging.Setup("text", "warn"), cfg)

	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != PhaseGenerate {
		t.Fatalf("err = %v, want generate PipelineError", err)
	}
	if !errors.Is(err, synth.ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", err)
	}
}

func TestRun_InvalidHorizon(t *testing.T) {
	cfg := testConfig(t)
	cfg.Horizon = 0
	_, err := Run(context.Background(), nil, logging.Setup("text", "warn"), cfg)

	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != PhaseForecast || !errors.Is(err, forecast.ErrInvalidHorizon) {
		t.Fatalf("err = %v, want forecast ErrInvalidHorizon", err)
	}
}

func TestRun_EvaluationNeverGates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Start, cfg.End = "2023-01-01", "2023-01-20"
	cfg.Holdout = 15 // leaves too little training data
	cfg.OutDir = ""
	res, err := Run(context.Background(), nil, logging.Setup("text", "warn"), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.Metrics != nil {
		t.Errorf("expected no metrics, got %+v", res.Summary.Metrics)
	}
	if len(res.Forecast) != cfg.Horizon {
		t.Errorf("forecast rows = %d", len(res.Forecast))
	}
}

func TestRun_FromInputFile(t *testing.T) {
	cfg := testConfig(t)
	src, err := synth.Generate(synth.DefaultParams(mustDate("2023-01-01"), mustDate("2023-03-31")), synth.NewSource(3))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "daily.csv")
	if err := tables.WriteDaily(path, tables.CSV, src.Daily); err != nil {
		t.Fatal(err)
	}
	cfg.InputPath = path

	res, err := Run(context.Background(), nil, logging.Setup("text", "warn"), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.DailyRows != 90 || res.Summary.PresentationRows != 0 {
		t.Errorf("daily=%d presentations=%d", res.Summary.DailyRows, res.Summary.PresentationRows)
	}
	if got := res.Forecast[0].Date.Format("2006-01-02"); got != "2023-04-01" {
		t.Errorf("first forecast date = %s", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutDir, "presentations.csv")); !os.IsNotExist(err) {
		t.Error("presentations should not be exported for file input")
	}
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
