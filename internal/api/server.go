// Package api serves the synthesized tables and forecasts as read-only JSON
// for a dashboard. Every dataset and forecast is memoized on the parameters
// that produced it until explicitly invalidated.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/gyeh/mhforecast/internal/config"
	"github.com/gyeh/mhforecast/internal/memo"
	"github.com/gyeh/mhforecast/internal/synth"
)

const shutdownTimeout = 10 * time.Second

// Server holds the memo caches and the router.
type Server struct {
	base      config.Config
	log       zerolog.Logger
	datasets  *memo.Cache[*synth.Dataset]
	forecasts *memo.Cache[*ForecastResponse]
	router    *mux.Router
}

// NewServer builds a server whose requests default to base's range, seed,
// order and synthesis overrides. Unset request limits take their defaults.
func NewServer(base config.Config, log zerolog.Logger) *Server {
	if base.MaxHorizon <= 0 {
		base.MaxHorizon = config.DefaultMaxHorizon
	}
	if base.MaxRangeDays <= 0 {
		base.MaxRangeDays = config.DefaultMaxRangeDays
	}
	s := &Server{
		base:      base,
		log:       log,
		datasets:  memo.New[*synth.Dataset](),
		forecasts: memo.New[*ForecastResponse](),
		router:    mux.NewRouter(),
	}
	SetupRoutes(s.router, s)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info().Msg("api shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
