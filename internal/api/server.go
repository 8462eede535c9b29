// Package api exposes light-curve synthesis, window intersection and
// visibility generation over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/snpike/duet-astro/internal/auth"
	"github.com/snpike/duet-astro/internal/health"
	"github.com/snpike/duet-astro/internal/httputil"
	"github.com/snpike/duet-astro/internal/metrics"
	"github.com/snpike/duet-astro/internal/synth"
	"github.com/snpike/duet-astro/internal/visibility"
)

// Config holds HTTP server settings and the request defaults.
type Config struct {
	Addr           string
	Auth           auth.Config
	TrustProxy     bool
	MaxBodyBytes   int64
	ExposureLength float64          // used when a request omits exposure_length
	Orbit          visibility.Orbit // used when a request omits orbit and visibility
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	synth      *synth.Synthesizer
	readiness  *health.Readiness
	cfg        Config
}

// NewServer creates a configured HTTP server. It reports ready on /readyz
// only after SetReady(true) is called on readiness.
func NewServer(cfg Config, logger *slog.Logger, s *synth.Synthesizer, readiness *health.Readiness) *Server {
	srv := &Server{
		logger:    logger,
		synth:     s,
		readiness: readiness,
		cfg:       cfg,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", readiness.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/v1/lightcurve", srv.lightcurveHandler)
	mux.HandleFunc("POST /api/v1/intersect", srv.intersectHandler)
	mux.HandleFunc("GET /api/v1/visibility", srv.visibilityHandler)

	// Build middleware chain: metrics -> request id -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = httputil.RequestID(handler)
	handler = metrics.Middleware(handler)

	srv.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", httputil.RequestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
