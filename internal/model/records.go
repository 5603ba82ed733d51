package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day layout used across files, the API and the DB.
const DateLayout = "2006-01-02"

// MonthLayout is the year-month layout used by the monthly summary.
const MonthLayout = "2006-01"

// Presentation is one aggregate cell of synthesized demand: the number of
// presentations on a day, in a board, for one demographic combination.
type Presentation struct {
	Date         time.Time
	Board        HealthBoard
	AgeGroup     AgeGroup
	Type         PresentationType
	SIMDQuintile uint8 // 1..5, 1 = most deprived
	Count        int32
}

// DailySummary is the national total for one calendar day.
type DailySummary struct {
	Date               time.Time `json:"date"`
	TotalPresentations int64     `json:"total_presentations"`
}

// BoardDaily is the total for one board on one calendar day.
type BoardDaily struct {
	Date          time.Time   `json:"date"`
	Board         HealthBoard `json:"-"`
	BoardName     string      `json:"health_board"`
	Presentations int64       `json:"presentations"`
}

// MonthlySummary aggregates the daily summary per calendar month.
// GrowthRate is nil for the first month and when the prior month total is zero.
type MonthlySummary struct {
	YearMonth          string   `json:"year_month"`
	TotalPresentations int64    `json:"total_presentations"`
	Mean               float64  `json:"mean"`
	GrowthRate         *float64 `json:"growth_rate"`
}

// Order is an ARIMA model order (p, d, q).
type Order struct {
	P int `json:"p"` // autoregressive terms
	D int `json:"d"` // differencing
	Q int `json:"q"` // moving-average terms
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// ParseOrder parses "p,d,q" or "(p,d,q)" with non-negative terms and nothing
// else in the string.
func ParseOrder(s string) (Order, error) {
	body := strings.TrimSpace(s)
	if strings.HasPrefix(body, "(") != strings.HasSuffix(body, ")") {
		return Order{}, fmt.Errorf("parse order %q: unbalanced parentheses", s)
	}
	body = strings.TrimSuffix(strings.TrimPrefix(body, "("), ")")

	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return Order{}, fmt.Errorf("parse order %q: want p,d,q", s)
	}
	var terms [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return Order{}, fmt.Errorf("parse order %q: term %d must be a non-negative integer", s, i+1)
		}
		terms[i] = n
	}
	return Order{P: terms[0], D: terms[1], Q: terms[2]}, nil
}

// ForecastRow is one day of the forecast horizon.
type ForecastRow struct {
	Date           time.Time `json:"date"`
	PredictedValue float64   `json:"predicted_value"`
	LowerBound     float64   `json:"lower_bound"`
	UpperBound     float64   `json:"upper_bound"`
	Order          Order     `json:"model_order"`
}

// Metrics are hold-out accuracy diagnostics. They never gate a forecast.
type Metrics struct {
	MAPE        float64 `json:"mape"`
	R2          float64 `json:"r2"`
	HoldoutDays int     `json:"holdout_days"`
}
