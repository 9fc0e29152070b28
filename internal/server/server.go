package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"
	"weatherai/internal/api"
	"weatherai/internal/catalog"
	"weatherai/internal/dashboard"
	"weatherai/internal/selection"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// defaultViewportWidth is used when a client does not report its width
const defaultViewportWidth = 1024

// Server represents the HTTP server
type Server struct {
	catalog   *catalog.Catalog
	forecasts selection.ForecastFetcher
	sessions  *dashboard.Store
	logger    *zap.Logger
	page      *template.Template
	mux       *http.ServeMux
}

// NewServer creates a new HTTP server
func NewServer(cat *catalog.Catalog, forecasts selection.ForecastFetcher, sessions *dashboard.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		catalog:   cat,
		forecasts: forecasts,
		sessions:  sessions,
		logger:    logger,
		page:      pageTemplate,
		mux:       http.NewServeMux(),
	}

	// Register routes
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/countries", s.handleCountries)
	s.mux.HandleFunc("GET /api/countries/{code}/states", s.handleStates)
	s.mux.HandleFunc("GET /api/countries/{code}/cities", s.handleCities)
	s.mux.HandleFunc("GET /api/forecast", s.handleForecast)

	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/country", s.handleSessionCountry)
	s.mux.HandleFunc("POST /api/sessions/{id}/state", s.handleSessionState)
	s.mux.HandleFunc("POST /api/sessions/{id}/city", s.handleSessionCity)
	s.mux.HandleFunc("GET /api/sessions/{id}/narrative", s.handleSessionNarrative)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /select/{step}", s.handleSelect)

	return s
}

// Handler returns the root handler with request logging
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().String(),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	var netErr *api.NetworkError
	switch {
	case errors.As(err, &netErr):
		return http.StatusBadGateway
	case errors.Is(err, dashboard.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, selection.ErrUnknownCountry),
		errors.Is(err, selection.ErrUnknownState),
		errors.Is(err, selection.ErrUnknownCity),
		errors.Is(err, selection.ErrAmbiguousCity):
		return http.StatusBadRequest
	case errors.Is(err, selection.ErrStateNotApplicable),
		errors.Is(err, selection.ErrNoCountry),
		errors.Is(err, selection.ErrNoState),
		errors.Is(err, selection.ErrSelectionChanged):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// viewportWidth reads the optional width query parameter
func viewportWidth(r *http.Request) int {
	if w, err := strconv.Atoi(r.URL.Query().Get("width")); err == nil && w > 0 {
		return w
	}
	return defaultViewportWidth
}
