package model

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// PresentationRow mirrors the file and API schema of the presentations table.
type PresentationRow struct {
	Date             string `parquet:"date" json:"date"`
	HealthBoard      string `parquet:"health_board" json:"health_board"`
	AgeGroup         string `parquet:"age_group" json:"age_group"`
	PresentationType string `parquet:"presentation_type" json:"presentation_type"`
	SIMDQuintile     int32  `parquet:"simd_quintile" json:"simd_quintile"`
	Presentations    int64  `parquet:"presentations" json:"presentations"`
}

// DailyRow mirrors the file and API schema of the daily summary table.
type DailyRow struct {
	Date               string `parquet:"date" json:"date"`
	TotalPresentations int64  `parquet:"total_presentations" json:"total_presentations"`
}

// BoardDailyRow mirrors the file and API schema of the per-board daily table.
type BoardDailyRow struct {
	Date          string `parquet:"date" json:"date"`
	HealthBoard   string `parquet:"health_board" json:"health_board"`
	Presentations int64  `parquet:"presentations" json:"presentations"`
}

// MonthlyRow mirrors the file and API schema of the monthly summary table.
type MonthlyRow struct {
	YearMonth          string   `parquet:"year_month" json:"year_month"`
	TotalPresentations int64    `parquet:"total_presentations" json:"total_presentations"`
	Mean               float64  `parquet:"mean" json:"mean"`
	GrowthRate         *float64 `parquet:"growth_rate,optional" json:"growth_rate"`
}

// ForecastFileRow mirrors the file and API schema of the forecast table.
type ForecastFileRow struct {
	Date           string  `parquet:"date" json:"date"`
	PredictedValue float64 `parquet:"predicted_value" json:"predicted_value"`
	LowerBound     float64 `parquet:"lower_bound" json:"lower_bound"`
	UpperBound     float64 `parquet:"upper_bound" json:"upper_bound"`
	ModelOrder     string  `parquet:"model_order" json:"model_order"`
}

// Row converts a Presentation into its flat-file form.
func (p *Presentation) Row() PresentationRow {
	return PresentationRow{
		Date:             p.Date.Format(DateLayout),
		HealthBoard:      p.Board.String(),
		AgeGroup:         p.AgeGroup.String(),
		PresentationType: p.Type.String(),
		SIMDQuintile:     int32(p.SIMDQuintile),
		Presentations:    int64(p.Count),
	}
}

// Presentation converts a flat-file row back into a Presentation.
func (r *PresentationRow) Presentation() (Presentation, error) {
	date, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return Presentation{}, fmt.Errorf("parse date %q: %w", r.Date, err)
	}
	board, ok := BoardByName(r.HealthBoard)
	if !ok {
		return Presentation{}, fmt.Errorf("unknown health board %q", r.HealthBoard)
	}
	age, err := ParseAgeGroup(r.AgeGroup)
	if err != nil {
		return Presentation{}, err
	}
	typ, err := ParsePresentationType(r.PresentationType)
	if err != nil {
		return Presentation{}, err
	}
	if r.SIMDQuintile < 1 || r.SIMDQuintile > NumQuintiles {
		return Presentation{}, fmt.Errorf("simd_quintile %d out of range 1-%d", r.SIMDQuintile, NumQuintiles)
	}
	if r.Presentations < 0 {
		return Presentation{}, fmt.Errorf("negative presentations %d", r.Presentations)
	}
	if r.Presentations > math.MaxInt32 {
		return Presentation{}, fmt.Errorf("presentations %d overflows a record count", r.Presentations)
	}
	return Presentation{
		Date:         date,
		Board:        board.Board,
		AgeGroup:     age,
		Type:         typ,
		SIMDQuintile: uint8(r.SIMDQuintile),
		Count:        int32(r.Presentations),
	}, nil
}

// Row converts a DailySummary into its flat-file form.
func (d *DailySummary) Row() DailyRow {
	return DailyRow{Date: d.Date.Format(DateLayout), TotalPresentations: d.TotalPresentations}
}

// Row converts a BoardDaily into its flat-file form.
func (b *BoardDaily) Row() BoardDailyRow {
	return BoardDailyRow{Date: b.Date.Format(DateLayout), HealthBoard: b.BoardName, Presentations: b.Presentations}
}

// Row converts a MonthlySummary into its flat-file form.
func (m *MonthlySummary) Row() MonthlyRow {
	return MonthlyRow{
		YearMonth:          m.YearMonth,
		TotalPresentations: m.TotalPresentations,
		Mean:               m.Mean,
		GrowthRate:         m.GrowthRate,
	}
}

// Row converts a ForecastRow into its flat-file form.
func (f *ForecastRow) Row() ForecastFileRow {
	return ForecastFileRow{
		Date:           f.Date.Format(DateLayout),
		PredictedValue: f.PredictedValue,
		LowerBound:     f.LowerBound,
		UpperBound:     f.UpperBound,
		ModelOrder:     f.Order.String(),
	}
}

// Column lists for COPY into the mh schema, in CopyValues order.
var (
	PresentationColumns = []string{"run_id", "date", "health_board", "age_group", "presentation_type", "simd_quintile", "presentations"}
	DailyColumns        = []string{"run_id", "date", "total_presentations"}
	MonthlyColumns      = []string{"run_id", "year_month", "total_presentations", "mean", "growth_rate"}
	ForecastColumns     = []string{"run_id", "date", "predicted_value", "lower_bound", "upper_bound", "model_order"}
)

// CopyValues returns the row values in PresentationColumns order.
func (p *Presentation) CopyValues(runID uuid.UUID) []any {
	return []any{runID, p.Date, p.Board.String(), p.AgeGroup.String(), p.Type.String(), int16(p.SIMDQuintile), p.Count}
}

// CopyValues returns the row values in DailyColumns order.
func (d *DailySummary) CopyValues(runID uuid.UUID) []any {
	return []any{runID, d.Date, d.TotalPresentations}
}

// CopyValues returns the row values in MonthlyColumns order.
func (m *MonthlySummary) CopyValues(runID uuid.UUID) []any {
	return []any{runID, m.YearMonth, m.TotalPresentations, m.Mean, m.GrowthRate}
}

// CopyValues returns the row values in ForecastColumns order.
func (f *ForecastRow) CopyValues(runID uuid.UUID) []any {
	return []any{runID, f.Date, f.PredictedValue, f.LowerBound, f.UpperBound, f.Order.String()}
}
