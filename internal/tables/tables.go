// Package tables reads and writes the presentation, summary and forecast
// tables as CSV or Parquet files.
package tables

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/normalize"
)

// Format is a flat-file encoding.
type Format string

const (
	CSV     Format = "csv"
	Parquet Format = "parquet"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, Parquet:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q: want csv or parquet", s)
	}
}

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Table names, also used as file stems.
const (
	PresentationsTable = "presentations"
	DailyTable         = "daily_summary"
	BoardDailyTable    = "board_daily"
	MonthlyTable       = "monthly_summary"
	ForecastTable      = "forecast"
)

// Tables is the set of tables a run exports. Nil slices are skipped.
type Tables struct {
	Presentations []model.Presentation
	Daily         []model.DailySummary
	BoardDaily    []model.BoardDaily
	Monthly       []model.MonthlySummary
	Forecast      []model.ForecastRow
}

// File describes one written table.
type File struct {
	Table  string
	Path   string
	Rows   int
	SHA256 string
}

// WriteAll writes every non-nil table into dir as <table>.<format>.
func WriteAll(dir string, format Format, t Tables) ([]File, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	type job struct {
		table string
		rows  int
		write func(path string) error
	}
	var jobs []job
	if t.Presentations != nil {
		jobs = append(jobs, job{PresentationsTable, len(t.Presentations), func(p string) error { return WritePresentations(p, format, t.Presentations) }})
	}
	if t.Daily != nil {
		jobs = append(jobs, job{DailyTable, len(t.Daily), func(p string) error { return WriteDaily(p, format, t.Daily) }})
	}
	if t.BoardDaily != nil {
		jobs = append(jobs, job{BoardDailyTable, len(t.BoardDaily), func(p string) error { return WriteBoardDaily(p, format, t.BoardDaily) }})
	}
	if t.Monthly != nil {
		jobs = append(jobs, job{MonthlyTable, len(t.Monthly), func(p string) error { return WriteMonthly(p, format, t.Monthly) }})
	}
	if t.Forecast != nil {
		jobs = append(jobs, job{ForecastTable, len(t.Forecast), func(p string) error { return WriteForecast(p, format, t.Forecast) }})
	}

	files := make([]File, 0, len(jobs))
	for _, j := range jobs {
		path := filepath.Join(dir, j.table+"."+string(format))
		if err := j.write(path); err != nil {
			return files, fmt.Errorf("write %s: %w", j.table, err)
		}
		sum, err := normalize.FileHash(path)
		if err != nil {
			return files, err
		}
		files = append(files, File{Table: j.table, Path: path, Rows: j.rows, SHA256: sum})
	}
	return files, nil
}

// WritePresentations writes the record table.
func WritePresentations(path string, format Format, rows []model.Presentation) error {
	out := make([]model.PresentationRow, len(rows))
	for i := range rows {
		out[i] = rows[i].Row()
	}
	if format == Parquet {
		return writeParquet(path, out)
	}
	records := make([][]string, len(out))
	for i, r := range out {
		records[i] = []string{
			r.Date, r.HealthBoard, r.AgeGroup, r.PresentationType,
			strconv.Itoa(int(r.SIMDQuintile)), strconv.FormatInt(r.Presentations, 10),
		}
	}
	return writeCSV(path, presentationHeader, records)
}

// WriteDaily writes the daily summary.
func WriteDaily(path string, format Format, rows []model.DailySummary) error {
	out := make([]model.DailyRow, len(rows))
	for i := range rows {
		out[i] = rows[i].Row()
	}
	if format == Parquet {
		return writeParquet(path, out)
	}
	records := make([][]string, len(out))
	for i, r := range out {
		records[i] = []string{r.Date, strconv.FormatInt(r.TotalPresentations, 10)}
	}
	return writeCSV(path, dailyHeader, records)
}

// WriteBoardDaily writes the per-board daily table.
func WriteBoardDaily(path string, format Format, rows []model.BoardDaily) error {
	out := make([]model.BoardDailyRow, len(rows))
	for i := range rows {
		out[i] = rows[i].Row()
	}
	if format == Parquet {
		return writeParquet(path, out)
	}
	records := make([][]string, len(out))
	for i, r := range out {
		records[i] = []string{r.Date, r.HealthBoard, strconv.FormatInt(r.Presentations, 10)}
	}
	return writeCSV(path, boardDailyHeader, records)
}

// WriteMonthly writes the monthly summary. A missing growth rate is an empty
// CSV cell and a null Parquet value.
func WriteMonthly(path string, format Format, rows []model.MonthlySummary) error {
	out := make([]model.MonthlyRow, len(rows))
	for i := range rows {
		out[i] = rows[i].Row()
	}
	if format == Parquet {
		return writeParquet(path, out)
	}
	records := make([][]string, len(out))
	for i, r := range out {
		growth := ""
		if r.GrowthRate != nil {
			growth = formatFloat(*r.GrowthRate)
		}
		records[i] = []string{r.YearMonth, strconv.FormatInt(r.TotalPresentations, 10), formatFloat(r.Mean), growth}
	}
	return writeCSV(path, monthlyHeader, records)
}

// WriteForecast writes the forecast table.
func WriteForecast(path string, format Format, rows []model.ForecastRow) error {
	out := make([]model.ForecastFileRow, len(rows))
	for i := range rows {
		out[i] = rows[i].Row()
	}
	if format == Parquet {
		return writeParquet(path, out)
	}
	records := make([][]string, len(out))
	for i, r := range out {
		records[i] = []string{
			r.Date, formatFloat(r.PredictedValue), formatFloat(r.LowerBound),
			formatFloat(r.UpperBound), r.ModelOrder,
		}
	}
	return writeCSV(path, forecastHeader, records)
}

var (
	presentationHeader = []string{"date", "health_board", "age_group", "presentation_type", "simd_quintile", "presentations"}
	dailyHeader        = []string{"date", "total_presentations"}
	boardDailyHeader   = []string{"date", "health_board", "presentations"}
	monthlyHeader      = []string{"year_month", "total_presentations", "mean", "growth_rate"}
	forecastHeader     = []string{"date", "predicted_value", "lower_bound", "upper_bound", "model_order"}
)

// ReadDaily reads a daily summary file; the format follows the extension.
// Dates may use any layout normalize.ParseDate accepts.
func ReadDaily(path string) ([]model.DailySummary, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	var rows []model.DailyRow
	if format == Parquet {
		if rows, err = readParquet[model.DailyRow](path, dailyHeader); err != nil {
			return nil, err
		}
	} else {
		t, err := readCSV(path, dailyHeader)
		if err != nil {
			return nil, err
		}
		rows = make([]model.DailyRow, len(t.records))
		for i := range t.records {
			total, err := strconv.ParseInt(t.get(i, "total_presentations"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: total_presentations: %w", i+1, err)
			}
			rows[i] = model.DailyRow{Date: t.get(i, "date"), TotalPresentations: total}
		}
	}

	out := make([]model.DailySummary, len(rows))
	for i, r := range rows {
		d, err := normalize.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if r.TotalPresentations < 0 {
			return nil, fmt.Errorf("row %d: negative total_presentations %d", i+1, r.TotalPresentations)
		}
		out[i] = model.DailySummary{Date: d, TotalPresentations: r.TotalPresentations}
	}
	return out, nil
}

// ReadPresentations reads a record table file.
func ReadPresentations(path string) ([]model.Presentation, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	var rows []model.PresentationRow
	if format == Parquet {
		if rows, err = readParquet[model.PresentationRow](path, presentationHeader); err != nil {
			return nil, err
		}
	} else {
		t, err := readCSV(path, presentationHeader)
		if err != nil {
			return nil, err
		}
		rows = make([]model.PresentationRow, len(t.records))
		for i := range t.records {
			q, err := strconv.ParseInt(t.get(i, "simd_quintile"), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("row %d: simd_quintile: %w", i+1, err)
			}
			n, err := strconv.ParseInt(t.get(i, "presentations"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: presentations: %w", i+1, err)
			}
			rows[i] = model.PresentationRow{
				Date:             t.get(i, "date"),
				HealthBoard:      t.get(i, "health_board"),
				AgeGroup:         t.get(i, "age_group"),
				PresentationType: t.get(i, "presentation_type"),
				SIMDQuintile:     int32(q),
				Presentations:    n,
			}
		}
	}

	out := make([]model.Presentation, len(rows))
	for i := range rows {
		p, err := rows[i].Presentation()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = p
	}
	return out, nil
}

// ReadBoardDaily reads a per-board daily table.
func ReadBoardDaily(path string) ([]model.BoardDaily, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	var rows []model.BoardDailyRow
	if format == Parquet {
		if rows, err = readParquet[model.BoardDailyRow](path, boardDailyHeader); err != nil {
			return nil, err
		}
	} else {
		t, err := readCSV(path, boardDailyHeader)
		if err != nil {
			return nil, err
		}
		rows = make([]model.BoardDailyRow, len(t.records))
		for i := range t.records {
			n, err := strconv.ParseInt(t.get(i, "presentations"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: presentations: %w", i+1, err)
			}
			rows[i] = model.BoardDailyRow{Date: t.get(i, "date"), HealthBoard: t.get(i, "health_board"), Presentations: n}
		}
	}

	out := make([]model.BoardDaily, len(rows))
	for i, r := range rows {
		d, err := normalize.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		b, ok := model.BoardByName(r.HealthBoard)
		if !ok {
			return nil, fmt.Errorf("row %d: unknown health board %q", i+1, r.HealthBoard)
		}
		if r.Presentations < 0 {
			return nil, fmt.Errorf("row %d: negative presentations %d", i+1, r.Presentations)
		}
		out[i] = model.BoardDaily{Date: d, Board: b.Board, BoardName: b.Name, Presentations: r.Presentations}
	}
	return out, nil
}

// ReadMonthly reads a monthly summary file.
func ReadMonthly(path string) ([]model.MonthlySummary, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	var rows []model.MonthlyRow
	if format == Parquet {
		if rows, err = readParquet[model.MonthlyRow](path, monthlyHeader[:3]); err != nil {
			return nil, err
		}
	} else {
		t, err := readCSV(path, monthlyHeader)
		if err != nil {
			return nil, err
		}
		rows = make([]model.MonthlyRow, len(t.records))
		for i := range t.records {
			total, err := strconv.ParseInt(t.get(i, "total_presentations"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: total_presentations: %w", i+1, err)
			}
			mean, err := strconv.ParseFloat(t.get(i, "mean"), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: mean: %w", i+1, err)
			}
			r := model.MonthlyRow{YearMonth: t.get(i, "year_month"), TotalPresentations: total, Mean: mean}
			if g := t.get(i, "growth_rate"); g != "" {
				v, err := strconv.ParseFloat(g, 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: growth_rate: %w", i+1, err)
				}
				r.GrowthRate = &v
			}
			rows[i] = r
		}
	}

	out := make([]model.MonthlySummary, len(rows))
	for i, r := range rows {
		if _, err := time.Parse(model.MonthLayout, r.YearMonth); err != nil {
			return nil, fmt.Errorf("row %d: year_month %q: %w", i+1, r.YearMonth, err)
		}
		out[i] = model.MonthlySummary{
			YearMonth:          r.YearMonth,
			TotalPresentations: r.TotalPresentations,
			Mean:               r.Mean,
			GrowthRate:         r.GrowthRate,
		}
	}
	return out, nil
}

// ReadForecast reads a forecast file.
func ReadForecast(path string) ([]model.ForecastRow, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	var rows []model.ForecastFileRow
	if format == Parquet {
		if rows, err = readParquet[model.ForecastFileRow](path, forecastHeader); err != nil {
			return nil, err
		}
	} else {
		t, err := readCSV(path, forecastHeader)
		if err != nil {
			return nil, err
		}
		rows = make([]model.ForecastFileRow, len(t.records))
		for i := range t.records {
			var vals [3]float64
			for j, col := range []string{"predicted_value", "lower_bound", "upper_bound"} {
				if vals[j], err = strconv.ParseFloat(t.get(i, col), 64); err != nil {
					return nil, fmt.Errorf("row %d: %s: %w", i+1, col, err)
				}
			}
			rows[i] = model.ForecastFileRow{
				Date:           t.get(i, "date"),
				PredictedValue: vals[0],
				LowerBound:     vals[1],
				UpperBound:     vals[2],
				ModelOrder:     t.get(i, "model_order"),
			}
		}
	}

	out := make([]model.ForecastRow, len(rows))
	for i, r := range rows {
		d, err := normalize.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		o, err := model.ParseOrder(r.ModelOrder)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = model.ForecastRow{
			Date:           d,
			PredictedValue: r.PredictedValue,
			LowerBound:     r.LowerBound,
			UpperBound:     r.UpperBound,
			Order:          o,
		}
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadDir reads every table present in dir as <table>.<format>. Missing
// tables are left nil; a directory without a daily summary is an error.
func ReadDir(dir string, format Format) (*Tables, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	path := func(table string) (string, bool) {
		p := filepath.Join(dir, table+"."+string(format))
		_, err := os.Stat(p)
		return p, err == nil
	}

	t := &Tables{}
	var err error
	p, ok := path(DailyTable)
	if !ok {
		return nil, fmt.Errorf("%s not found in %s", DailyTable, dir)
	}
	if t.Daily, err = ReadDaily(p); err != nil {
		return nil, fmt.Errorf("read %s: %w", DailyTable, err)
	}
	if p, ok := path(PresentationsTable); ok {
		if t.Presentations, err = ReadPresentations(p); err != nil {
			return nil, fmt.Errorf("read %s: %w", PresentationsTable, err)
		}
	}
	if p, ok := path(BoardDailyTable); ok {
		if t.BoardDaily, err = ReadBoardDaily(p); err != nil {
			return nil, fmt.Errorf("read %s: %w", BoardDailyTable, err)
		}
	}
	if p, ok := path(MonthlyTable); ok {
		if t.Monthly, err = ReadMonthly(p); err != nil {
			return nil, fmt.Errorf("read %s: %w", MonthlyTable, err)
		}
	}
	if p, ok := path(ForecastTable); ok {
		if t.Forecast, err = ReadForecast(p); err != nil {
			return nil, fmt.Errorf("read %s: %w", ForecastTable, err)
		}
	}
	return t, nil
}
