package forecast

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/synth"
)

var start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// arma simulates y[t] = phi*y[t-1] + e[t] + theta*e[t-1] + mean.
func arma(n int, phi, theta, mean float64, seed uint64) Series {
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed+1)}
	vals := make([]float64, n)
	var prevY, prevE float64
	for i := 0; i < n+200; i++ {
		e := norm.Rand()
		y := phi*prevY + e + theta*prevE
		prevY, prevE = y, e
		if i >= 200 {
			vals[i-200] = y + mean
		}
	}
	return Series{Dates: dates(n), Values: vals}
}

// randomWalk integrates an ARMA(1,1) path once.
func randomWalk(n int, seed uint64) Series {
	s := arma(n, 0.4, -0.3, 0.2, seed)
	level := 500.0
	for i, v := range s.Values {
		level += v
		s.Values[i] = level
	}
	return s
}

func TestFit_RecoversAR1(t *testing.T) {
	s := arma(2000, 0.6, 0, 10, 1)
	m, err := Fit(s, model.Order{P: 1})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(m.AR[0]-0.6) > 0.06 {
		t.Errorf("phi = %.3f, want about 0.6", m.AR[0])
	}
	if math.Abs(m.Mean-10) > 0.3 {
		t.Errorf("mean = %.3f, want about 10", m.Mean)
	}
	if math.Abs(m.Sigma2-1) > 0.1 {
		t.Errorf("sigma2 = %.3f, want about 1", m.Sigma2)
	}
	if m.NObs != 2000 || len(m.Residuals()) != 2000 {
		t.Errorf("nobs = %d, residuals = %d", m.NObs, len(m.Residuals()))
	}
}

func TestFit_RecoversMA1(t *testing.T) {
	s := arma(2000, 0, 0.5, 0, 2)
	m, err := Fit(s, model.Order{Q: 1})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(m.MA[0]-0.5) > 0.07 {
		t.Errorf("theta = %.3f, want about 0.5", m.MA[0])
	}
}

func TestFit_StationaryInvertible(t *testing.T) {
	m, err := Fit(randomWalk(400, 3), DefaultOrder)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(m.AR[0]) >= 1 || math.Abs(m.MA[0]) >= 1 {
		t.Errorf("phi = %v, theta = %v outside unit interval", m.AR, m.MA)
	}
	if m.Mean != 0 {
		t.Errorf("mean = %v, want 0 when d = 1", m.Mean)
	}
	if !(m.AIC < m.BIC) {
		t.Errorf("AIC %v should be below BIC %v for n > 8", m.AIC, m.BIC)
	}
}

func TestFitAndForecast_Rows(t *testing.T) {
	s := randomWalk(365, 4)
	_, rows, err := FitAndForecast(s, DefaultOrder, 30, Options{})
	if err != nil {
		t.Fatalf("FitAndForecast: %v", err)
	}
	if len(rows) != 30 {
		t.Fatalf("rows = %d, want 30", len(rows))
	}
	last := s.Dates[len(s.Dates)-1]
	prevWidth := 0.0
	for i, r := range rows {
		if !r.Date.Equal(last.AddDate(0, 0, i+1)) {
			t.Errorf("row %d date = %v, want %v", i, r.Date, last.AddDate(0, 0, i+1))
		}
		if !(r.LowerBound <= r.PredictedValue && r.PredictedValue <= r.UpperBound) {
			t.Errorf("row %d: %v <= %v <= %v violated", i, r.LowerBound, r.PredictedValue, r.UpperBound)
		}
		if r.Order != DefaultOrder {
			t.Errorf("row %d order = %v", i, r.Order)
		}
		width := r.UpperBound - r.LowerBound
		if width < prevWidth-1e-9 {
			t.Errorf("row %d: interval narrowed from %v to %v", i, prevWidth, width)
		}
		prevWidth = width
	}
}

func TestForecast_ConfidenceWidens(t *testing.T) {
	m, err := Fit(randomWalk(300, 5), DefaultOrder)
	if err != nil {
		t.Fatal(err)
	}
	narrow, _ := m.Forecast(5, 0.8)
	wide, _ := m.Forecast(5, 0.99)
	for i := range narrow {
		if wide[i].UpperBound-wide[i].LowerBound <= narrow[i].UpperBound-narrow[i].LowerBound {
			t.Fatalf("step %d: 99%% interval not wider than 80%%", i)
		}
		if wide[i].PredictedValue != narrow[i].PredictedValue {
			t.Fatalf("step %d: point forecast depends on confidence", i)
		}
	}
}

func TestFitAndForecast_Deterministic(t *testing.T) {
	s := randomWalk(200, 6)
	_, a, err := FitAndForecast(s, DefaultOrder, 10, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, b, _ := FitAndForecast(s, DefaultOrder, 10, Options{})
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs between identical calls", i)
		}
	}
}

func TestFitAndForecast_Errors(t *testing.T) {
	ok := randomWalk(100, 7)

	gap := randomWalk(100, 7)
	gap.Dates[50] = gap.Dates[50].AddDate(0, 0, 1)

	nan := randomWalk(100, 7)
	nan.Values[10] = math.NaN()

	constant := Series{Dates: dates(50), Values: make([]float64, 50)}
	for i := range constant.Values {
		constant.Values[i] = 7
	}

	tests := []struct {
		name    string
		s       Series
		order   model.Order
		horizon int
		want    error
	}{
		{"zero horizon", ok, DefaultOrder, 0, ErrInvalidHorizon},
		{"negative horizon", ok, DefaultOrder, -3, ErrInvalidHorizon},
		{"too short", ok.Slice(0, MinObservations(DefaultOrder)-1), DefaultOrder, 5, ErrFitFailure},
		{"gap", gap, DefaultOrder, 5, ErrFitFailure},
		{"nan", nan, DefaultOrder, 5, ErrFitFailure},
		{"constant", constant, DefaultOrder, 5, ErrFitFailure},
		{"order too large", ok, model.Order{P: 9, D: 1, Q: 1}, 5, ErrFitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FitAndForecast(tt.s, tt.order, tt.horizon, Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFit_MinimumLength(t *testing.T) {
	s := randomWalk(MinObservations(DefaultOrder), 8)
	if _, err := Fit(s, DefaultOrder); err != nil {
		t.Errorf("Fit at the minimum length: %v", err)
	}
}

func TestMAPE(t *testing.T) {
	tests := []struct {
		name              string
		actual, predicted []float64
		want              float64
	}{
		{"exact", []float64{10, 20}, []float64{10, 20}, 0},
		{"ten percent", []float64{100, 200}, []float64{110, 180}, 10},
		{"skips zero actuals", []float64{0, 50}, []float64{5, 25}, 50},
		{"all zero", []float64{0, 0}, []float64{1, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MAPE(tt.actual, tt.predicted); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MAPE = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRSquared(t *testing.T) {
	actual := []float64{1, 2, 3, 4}
	if got := RSquared(actual, actual); math.Abs(got-1) > 1e-12 {
		t.Errorf("perfect fit R2 = %v, want 1", got)
	}
	// predicting the mean everywhere scores zero
	if got := RSquared(actual, []float64{2.5, 2.5, 2.5, 2.5}); math.Abs(got) > 1e-12 {
		t.Errorf("mean prediction R2 = %v, want 0", got)
	}
	// SSres = 4, SStot = 5
	if got := RSquared(actual, []float64{2, 3, 4, 5}); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("R2 = %v, want 0.2", got)
	}
	if got := RSquared([]float64{3, 3}, []float64{1, 2}); got != 0 {
		t.Errorf("constant actuals R2 = %v, want 0", got)
	}
}

func TestEvaluate(t *testing.T) {
	s := randomWalk(300, 9)
	m, err := Evaluate(s, DefaultOrder, 30, Options{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.HoldoutDays != 30 || math.IsNaN(m.MAPE) || math.IsNaN(m.R2) || m.MAPE < 0 {
		t.Errorf("metrics = %+v", m)
	}
	if _, err := Evaluate(s, DefaultOrder, 0, Options{}); !errors.Is(err, ErrInvalidHorizon) {
		t.Errorf("zero holdout err = %v", err)
	}
	if _, err := Evaluate(s, DefaultOrder, 300, Options{}); !errors.Is(err, ErrFitFailure) {
		t.Errorf("holdout covering the series err = %v", err)
	}
}

func TestEndToEnd_FiveYears(t *testing.T) {
	if testing.Short() {
		t.Skip("five-year synthesis skipped in short mode")
	}
	from := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	ds, err := synth.Generate(synth.DefaultParams(from, to), synth.NewSource(42))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ds.Daily) != 1826 {
		t.Fatalf("daily rows = %d, want 1826", len(ds.Daily))
	}

	_, rows, err := FitAndForecast(FromDaily(ds.Daily), DefaultOrder, 90, Options{})
	if err != nil {
		t.Fatalf("FitAndForecast: %v", err)
	}
	if len(rows) != 90 {
		t.Fatalf("rows = %d, want 90", len(rows))
	}
	if got := rows[0].Date.Format(model.DateLayout); got != "2024-01-01" {
		t.Errorf("first date = %s", got)
	}
	if got := rows[89].Date.Format(model.DateLayout); got != "2024-03-30" {
		t.Errorf("last date = %s", got)
	}
	for i, r := range rows {
		for _, v := range []float64{r.PredictedValue, r.LowerBound, r.UpperBound} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("row %d has non-finite value %+v", i, r)
			}
		}
		if r.LowerBound > r.UpperBound {
			t.Fatalf("row %d: lower %v > upper %v", i, r.LowerBound, r.UpperBound)
		}
	}
}
