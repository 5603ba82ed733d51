package model

import "time"

// ModelSummary captures the fitted model parameters for reporting.
type ModelSummary struct {
	Order  Order     `json:"order"`
	AR     []float64 `json:"ar"`
	MA     []float64 `json:"ma"`
	Mean   float64   `json:"mean"`
	Sigma2 float64   `json:"sigma2"`
	LogLik float64   `json:"log_likelihood"`
	AIC    float64   `json:"aic"`
	BIC    float64   `json:"bic"`
	NObs   int       `json:"n_obs"`
}

// RunSummary captures metrics from a single pipeline run.
type RunSummary struct {
	RunID              string
	Seed               uint64
	Start              time.Time
	End                time.Time
	PresentationRows   int64
	DailyRows          int64
	MonthlyRows        int64
	ForecastRows       int64
	TotalPresentations int64
	DeprivationRatio   float64
	Model              *ModelSummary
	Metrics            *Metrics
	ExportedFiles      map[string]string // table name -> sha256 of the written file
	RowsLoaded         int64
	DurationGenerate   time.Duration
	DurationForecast   time.Duration
	DurationEvaluate   time.Duration
	DurationExport     time.Duration
	DurationLoad       time.Duration
	DurationTotal      time.Duration
}
