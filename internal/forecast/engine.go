package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/gyeh/mhforecast/internal/model"
)

// Options tunes forecasting. The zero value uses DefaultConfidence.
type Options struct {
	Confidence float64
}

// FitAndForecast fits order on s and forecasts horizon days past its last
// date. It makes a single deterministic attempt and holds no state.
func FitAndForecast(s Series, order model.Order, horizon int, opts Options) (*Model, []model.ForecastRow, error) {
	if horizon <= 0 {
		return nil, nil, fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidHorizon, horizon)
	}
	m, err := Fit(s, order)
	if err != nil {
		return nil, nil, err
	}
	rows, err := m.Forecast(horizon, opts.Confidence)
	if err != nil {
		return nil, nil, err
	}
	return m, rows, nil
}

// Evaluate refits order on s without its last holdout days, forecasts that
// window and scores the forecast against the actuals.
func Evaluate(s Series, order model.Order, holdout int, opts Options) (*model.Metrics, error) {
	if holdout <= 0 {
		return nil, fmt.Errorf("%w: holdout must be positive, got %d", ErrInvalidHorizon, holdout)
	}
	if holdout >= s.Len() {
		return nil, fmt.Errorf("%w: holdout %d leaves no training data from %d observations",
			ErrFitFailure, holdout, s.Len())
	}
	train := s.Slice(0, s.Len()-holdout)
	test := s.Values[s.Len()-holdout:]

	_, rows, err := FitAndForecast(train, order, holdout, opts)
	if err != nil {
		return nil, err
	}
	pred := make([]float64, len(rows))
	for i, r := range rows {
		pred[i] = r.PredictedValue
	}
	return &model.Metrics{
		MAPE:        MAPE(test, pred),
		R2:          RSquared(test, pred),
		HoldoutDays: holdout,
	}, nil
}

// MAPE returns the mean absolute percentage error in percent. Zero actuals
// are skipped; with no nonzero actual the result is 0.
func MAPE(actual, predicted []float64) float64 {
	n := min(len(actual), len(predicted))
	sum := 0.0
	count := 0
	for i := 0; i < n; i++ {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		count++
	}
	if count == 0 {
		return 0
	}
	return 100 * sum / float64(count)
}

// RSquared returns the coefficient of determination of predicted against
// actual. It is 0 when fewer than two points are available or the actuals
// are constant.
func RSquared(actual, predicted []float64) float64 {
	n := min(len(actual), len(predicted))
	if n < 2 || stat.Variance(actual[:n], nil) == 0 {
		return 0
	}
	return stat.RSquaredFrom(predicted[:n], actual[:n], nil)
}
