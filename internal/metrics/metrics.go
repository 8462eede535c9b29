package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duetlc_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duetlc_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	synthTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duetlc_synth_total",
			Help: "Light-curve syntheses by result.",
		},
		[]string{"result"},
	)

	synthDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duetlc_synth_duration_seconds",
			Help:    "Wall time of a light-curve synthesis.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
	)

	exposuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duetlc_exposures_total",
			Help: "Exposures integrated across all syntheses.",
		},
	)

	liveSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duetlc_live_seconds_total",
			Help: "Summed duration of live windows (schedule intersected with visibility), in seconds of observation time.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(synthTotal)
	prometheus.MustRegister(synthDurationSeconds)
	prometheus.MustRegister(exposuresTotal)
	prometheus.MustRegister(liveSeconds)
}

// RecordSynthesis records one finished synthesis.
func RecordSynthesis(duration time.Duration, exposures int, live float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	synthTotal.WithLabelValues(result).Inc()
	synthDurationSeconds.Observe(duration.Seconds())
	if err == nil {
		exposuresTotal.Add(float64(exposures))
		liveSeconds.Add(live)
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are exported as their own label; everything else is "other".
var knownRoutes = map[string]bool{
	"/":                  true,
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
	"/api/v1/lightcurve": true,
	"/api/v1/intersect":  true,
	"/api/v1/visibility": true,
}

// normalizeRoute bounds the path label cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
