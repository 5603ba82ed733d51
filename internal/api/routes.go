package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// SetupRoutes registers every API route on router.
func SetupRoutes(router *mux.Router, s *Server) {
	router.Use(corsMiddleware)
	router.Use(s.logMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
	api.HandleFunc("/daily", s.handleDaily).Methods("GET", "OPTIONS")
	api.HandleFunc("/monthly", s.handleMonthly).Methods("GET", "OPTIONS")
	api.HandleFunc("/boards/daily", s.handleBoardDaily).Methods("GET", "OPTIONS")
	api.HandleFunc("/breakdown/{dimension}", s.handleBreakdown).Methods("GET", "OPTIONS")
	api.HandleFunc("/forecast", s.handleForecast).Methods("GET", "OPTIONS")
	api.HandleFunc("/cache/invalidate", s.handleInvalidate).Methods("POST", "OPTIONS")

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	for _, rt := range []*mux.Router{router, api} {
		rt.NotFoundHandler = notFound
		rt.MethodNotAllowedHandler = notAllowed
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
