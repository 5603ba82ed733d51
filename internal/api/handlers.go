package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/gyeh/mhforecast/internal/config"
	"github.com/gyeh/mhforecast/internal/forecast"
	"github.com/gyeh/mhforecast/internal/model"
	"github.com/gyeh/mhforecast/internal/normalize"
	"github.com/gyeh/mhforecast/internal/summary"
	"github.com/gyeh/mhforecast/internal/synth"
)

// badRequest marks malformed query parameters.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func badRequestf(format string, args ...any) error {
	return &badRequest{fmt.Errorf(format, args...)}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var br *badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, synth.ErrInvalidRange),
		errors.Is(err, synth.ErrInvalidParams),
		errors.Is(err, forecast.ErrInvalidHorizon):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrFitFailure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

// requestConfig overlays the start, end and seed query parameters on the
// server's base config.
func (s *Server) requestConfig(r *http.Request) (*config.Config, error) {
	cfg := s.base
	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		cfg.Start = v
	}
	if v := q.Get("end"); v != "" {
		cfg.End = v
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, badRequestf("seed: %v", err)
		}
		cfg.Seed = seed
	}
	if v := q.Get("order"); v != "" {
		cfg.Order = v
	}
	start, end, err := cfg.DateRange()
	if err != nil {
		return nil, &badRequest{err}
	}
	if days := normalize.DayCount(start, end); days > cfg.MaxRangeDays {
		return nil, fmt.Errorf("%w: %d days requested, at most %d allowed", synth.ErrInvalidRange, days, cfg.MaxRangeDays)
	}
	if _, err := cfg.ModelOrder(); err != nil {
		return nil, &badRequest{err}
	}
	return &cfg, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequestf("%s: %v", name, err)
	}
	return n, nil
}

// dataset returns the memoized dataset for the request parameters and its key.
func (s *Server) dataset(r *http.Request) (*synth.Dataset, *config.Config, string, error) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		return nil, nil, "", err
	}
	key, err := cfg.Fingerprint()
	if err != nil {
		return nil, nil, "", err
	}
	ds, err := s.datasets.Get(key, func() (*synth.Dataset, error) {
		params, err := cfg.SynthParams()
		if err != nil {
			return nil, err
		}
		s.log.Info().Str("start", cfg.Start).Str("end", cfg.End).Uint64("seed", cfg.Seed).Msg("generating dataset")
		return synth.Generate(params, synth.NewSource(cfg.Seed))
	})
	if err != nil {
		return nil, nil, "", err
	}
	return ds, cfg, key, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dsEntries, dsHits, dsMisses := s.datasets.Stats()
	fcEntries, fcHits, fcMisses := s.forecasts.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cache": map[string]any{
			"datasets":  map[string]int64{"entries": int64(dsEntries), "hits": dsHits, "misses": dsMisses},
			"forecasts": map[string]int64{"entries": int64(fcEntries), "hits": fcHits, "misses": fcMisses},
		},
	})
}

// DailyResponse is the daily summary, with an optional trailing mean.
type DailyResponse struct {
	Daily   []model.DailyRow       `json:"daily"`
	Rolling []summary.RollingPoint `json:"rolling,omitempty"`
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	window, err := intParam(r, "window", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if window < 0 {
		s.fail(w, r, badRequestf("window must be non-negative"))
		return
	}
	ds, _, _, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := DailyResponse{Daily: make([]model.DailyRow, len(ds.Daily))}
	for i := range ds.Daily {
		resp.Daily[i] = ds.Daily[i].Row()
	}
	if window > 0 {
		resp.Rolling = summary.RollingMean(ds.Daily, window)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	ds, _, _, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]model.MonthlyRow, len(ds.Monthly))
	for i := range ds.Monthly {
		out[i] = ds.Monthly[i].Row()
	}
	writeJSON(w, http.StatusOK, map[string]any{"monthly": out})
}

func (s *Server) handleBoardDaily(w http.ResponseWriter, r *http.Request) {
	board := r.URL.Query().Get("board")
	if board != "" {
		if _, ok := model.BoardByName(board); !ok {
			s.fail(w, r, badRequestf("unknown health board %q", board))
			return
		}
	}
	ds, _, _, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]model.BoardDailyRow, 0, len(ds.BoardDaily))
	for i := range ds.BoardDaily {
		if board != "" && ds.BoardDaily[i].BoardName != board {
			continue
		}
		out = append(out, ds.BoardDaily[i].Row())
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards_daily": out})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	dim, err := summary.ParseDimension(mux.Vars(r)["dimension"])
	if err != nil {
		s.fail(w, r, &badRequest{err})
		return
	}
	ds, _, _, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := summary.Breakdown(ds.Presentations, dim)
	if err != nil {
		s.fail(w, r, &badRequest{err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dimension":         dim,
		"breakdown":         rows,
		"deprivation_ratio": summary.DeprivationRatio(ds.Presentations),
	})
}

// ForecastResponse is a fitted model, its forecast and optional hold-out
// metrics.
type ForecastResponse struct {
	Model        *model.ModelSummary     `json:"model"`
	Forecast     []model.ForecastFileRow `json:"forecast"`
	Metrics      *model.Metrics          `json:"metrics,omitempty"`
	MetricsError string                  `json:"metrics_error,omitempty"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	horizon, err := intParam(r, "horizon", s.base.Horizon)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	holdout, err := intParam(r, "holdout", s.base.Holdout)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if horizon <= 0 || horizon > s.base.MaxHorizon {
		s.fail(w, r, fmt.Errorf("%w: horizon must be in 1..%d, got %d", forecast.ErrInvalidHorizon, s.base.MaxHorizon, horizon))
		return
	}
	if holdout < 0 || holdout > s.base.MaxHorizon {
		s.fail(w, r, fmt.Errorf("%w: holdout must be in 0..%d, got %d", forecast.ErrInvalidHorizon, s.base.MaxHorizon, holdout))
		return
	}

	ds, cfg, dsKey, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	order, _ := cfg.ModelOrder()
	key := strings.Join([]string{dsKey, order.String(), strconv.Itoa(horizon), strconv.Itoa(holdout)}, "/")

	resp, err := s.forecasts.Get(key, func() (*ForecastResponse, error) {
		series := forecast.FromDaily(ds.Daily)
		opts := forecast.Options{Confidence: cfg.Confidence}
		m, rows, err := forecast.FitAndForecast(series, order, horizon, opts)
		if err != nil {
			return nil, err
		}
		resp := &ForecastResponse{Model: m.Summary(), Forecast: make([]model.ForecastFileRow, len(rows))}
		for i := range rows {
			resp.Forecast[i] = rows[i].Row()
		}
		if holdout > 0 {
			metrics, err := forecast.Evaluate(series, order, holdout, opts)
			if err != nil {
				resp.MetricsError = err.Error()
			} else {
				resp.Metrics = metrics
			}
		}
		return resp, nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInvalidate drops the dataset selected by the query parameters and
// every forecast built on it. With all=true both caches are purged.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("all") == "true" {
		ds := s.datasets.Purge()
		fc := s.forecasts.Purge()
		s.log.Info().Int("datasets", ds).Int("forecasts", fc).Msg("caches purged")
		writeJSON(w, http.StatusOK, map[string]int{"datasets": ds, "forecasts": fc})
		return
	}

	cfg, err := s.requestConfig(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	key, err := cfg.Fingerprint()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ds := 0
	if s.datasets.Invalidate(key) {
		ds = 1
	}
	fc := s.forecasts.InvalidateFunc(func(k string) bool { return strings.HasPrefix(k, key+"/") })
	s.log.Info().Int("datasets", ds).Int("forecasts", fc).Msg("cache invalidated")
	writeJSON(w, http.StatusOK, map[string]int{"datasets": ds, "forecasts": fc})
}
