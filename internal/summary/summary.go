// Package summary derives the read-only aggregate tables from presentation
// records: daily and monthly totals, per-board series and breakdowns.
package summary

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/normalize"
)

// Daily sums presentations per calendar day over [start, end]. Days without
// any record appear with a zero total, so the result is always contiguous.
func Daily(rows []model.Presentation, start, end time.Time) []model.DailySummary {
	start = day(start)
	end = day(end)
	if start.After(end) {
		return nil
	}
	n := normalize.DayCount(start, end)
	out := make([]model.DailySummary, n)
	for i := range out {
		out[i].Date = start.AddDate(0, 0, i)
	}
	for i := range rows {
		idx := normalize.DaysBetween(start, rows[i].Date)
		if idx < 0 || idx >= n {
			continue
		}
		out[idx].TotalPresentations += int64(rows[i].Count)
	}
	return out
}

// Monthly groups a daily summary by calendar month. Mean is the mean daily
// total within the month; GrowthRate is relative to the prior month.
func Monthly(daily []model.DailySummary) []model.MonthlySummary {
	var out []model.MonthlySummary
	var days int
	for _, d := range daily {
		ym := d.Date.Format(model.MonthLayout)
		if len(out) == 0 || out[len(out)-1].YearMonth != ym {
			if len(out) > 0 {
				out[len(out)-1].Mean = float64(out[len(out)-1].TotalPresentations) / float64(days)
			}
			out = append(out, model.MonthlySummary{YearMonth: ym})
			days = 0
		}
		out[len(out)-1].TotalPresentations += d.TotalPresentations
		days++
	}
	if len(out) > 0 {
		out[len(out)-1].Mean = float64(out[len(out)-1].TotalPresentations) / float64(days)
	}

	for i := 1; i < len(out); i++ {
		prev := out[i-1].TotalPresentations
		if prev == 0 {
			continue
		}
		g := float64(out[i].TotalPresentations-prev) / float64(prev)
		out[i].GrowthRate = &g
	}
	return out
}

// BoardDaily sums presentations per (day, board), ordered by date then board.
func BoardDaily(rows []model.Presentation) []model.BoardDaily {
	type key struct {
		date  time.Time
		board model.HealthBoard
	}
	totals := make(map[key]int64)
	for i := range rows {
		totals[key{day(rows[i].Date), rows[i].Board}] += int64(rows[i].Count)
	}
	out := make([]model.BoardDaily, 0, len(totals))
	for k, v := range totals {
		out = append(out, model.BoardDaily{Date: k.date, Board: k.board, BoardName: k.board.String(), Presentations: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Board < out[j].Board
	})
	return out
}

// Dimension names a categorical breakdown of the presentation table.
type Dimension string

const (
	ByHealthBoard      Dimension = "health_board"
	ByAgeGroup         Dimension = "age_group"
	ByPresentationType Dimension = "presentation_type"
	BySIMDQuintile     Dimension = "simd_quintile"
	ByYear             Dimension = "year"
	ByMonth            Dimension = "month"
	ByDayOfWeek        Dimension = "day_of_week"
)

// Dimensions lists every supported breakdown.
var Dimensions = []Dimension{ByHealthBoard, ByAgeGroup, ByPresentationType, BySIMDQuintile, ByYear, ByMonth, ByDayOfWeek}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// BreakdownRow is the total for one category of a dimension.
type BreakdownRow struct {
	Key           string  `json:"key"`
	Presentations int64   `json:"presentations"`
	Share         float64 `json:"share"`
}

// Breakdown totals presentations per category of dim, in the category's
// natural order.
func Breakdown(rows []model.Presentation, dim Dimension) ([]BreakdownRow, error) {
	if _, err := ParseDimension(string(dim)); err != nil {
		return nil, err
	}
	type bucket struct {
		key   string
		total int64
	}
	buckets := make(map[int]*bucket)
	var grand int64

	for i := range rows {
		r := &rows[i]
		var order int
		var key string
		switch dim {
		case ByHealthBoard:
			order, key = int(r.Board), r.Board.String()
		case ByAgeGroup:
			order, key = int(r.AgeGroup), r.AgeGroup.String()
		case ByPresentationType:
			order, key = int(r.Type), r.Type.String()
		case BySIMDQuintile:
			order, key = int(r.SIMDQuintile), strconv.Itoa(int(r.SIMDQuintile))
		case ByYear:
			order, key = r.Date.Year(), strconv.Itoa(r.Date.Year())
		case ByMonth:
			order, key = int(r.Date.Month()), r.Date.Month().String()
		case ByDayOfWeek:
			// Monday first
			order, key = (int(r.Date.Weekday())+6)%7, r.Date.Weekday().String()
		default:
			return nil, fmt.Errorf("unknown dimension %q", dim)
		}
		b, ok := buckets[order]
		if !ok {
			b = &bucket{key: key}
			buckets[order] = b
		}
		b.total += int64(r.Count)
		grand += int64(r.Count)
	}

	orders := make([]int, 0, len(buckets))
	for o := range buckets {
		orders = append(orders, o)
	}
	sort.Ints(orders)

	out := make([]BreakdownRow, 0, len(orders))
	for _, o := range orders {
		b := buckets[o]
		row := BreakdownRow{Key: b.key, Presentations: b.total}
		if grand > 0 {
			row.Share = float64(b.total) / float64(grand)
		}
		out = append(out, row)
	}
	return out, nil
}

// DeprivationRatio returns total quintile-1 presentations over total
// quintile-5 presentations, or 0 when quintile 5 is empty.
func DeprivationRatio(rows []model.Presentation) float64 {
	var q1, q5 int64
	for i := range rows {
		switch rows[i].SIMDQuintile {
		case 1:
			q1 += int64(rows[i].Count)
		case model.NumQuintiles:
			q5 += int64(rows[i].Count)
		}
	}
	if q5 == 0 {
		return 0
	}
	return float64(q1) / float64(q5)
}

// RollingPoint is a trailing moving average ending on Date.
type RollingPoint struct {
	Date time.Time `json:"date"`
	Mean float64   `json:"mean"`
}

// RollingMean computes the trailing mean of the daily totals over window
// days. The first window-1 days have no full window and are omitted.
func RollingMean(daily []model.DailySummary, window int) []RollingPoint {
	if window <= 0 || window > len(daily) {
		return nil
	}
	out := make([]RollingPoint, 0, len(daily)-window+1)
	var sum int64
	for i, d := range daily {
		sum += d.TotalPresentations
		if i >= window {
			sum -= daily[i-window].TotalPresentations
		}
		if i >= window-1 {
			out = append(out, RollingPoint{Date: d.Date, Mean: float64(sum) / float64(window)})
		}
	}
	return out
}

// Total sums every presentation count.
func Total(rows []model.Presentation) int64 {
	var t int64
	for i := range rows {
		t += int64(rows[i].Count)
	}
	return t
}

func day(t time.Time) time.Time {
	return normalize.Day(t)
}
