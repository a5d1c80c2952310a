// Package metrics provides Prometheus metrics for the authorization server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oauth_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Grant and token lifecycle metrics
	grantsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oauth_grants_issued_total",
			Help: "Total number of authorization codes issued",
		},
	)

	codeExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_code_exchanges_total",
			Help: "Total number of authorization code exchanges",
		},
		[]string{"result"}, // "success", "invalid_code", "expired", "client_mismatch", "pkce_failure"
	)

	replaysDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oauth_code_replays_detected_total",
			Help: "Total number of detected authorization code replays",
		},
	)

	tokensIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_tokens_issued_total",
			Help: "Total number of tokens issued",
		},
		[]string{"type"}, // "access", "refresh"
	)

	refreshRotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_refresh_rotations_total",
			Help: "Total number of refresh token rotations",
		},
		[]string{"path"}, // "normal", "grace"
	)

	introspectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_token_introspections_total",
			Help: "Total number of token introspection requests",
		},
		[]string{"active"}, // "true" or "false"
	)

	consentChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_consent_checks_total",
			Help: "Total number of consent checks during authorization",
		},
		[]string{"result"}, // "hit" or "miss"
	)

	revocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oauth_token_revocations_total",
			Help: "Total number of tokens actually revoked",
		},
	)

	// Rate limiting metrics
	rateLimitExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"endpoint"},
	)
)

// RecordGrantIssued records an authorization code being issued.
func RecordGrantIssued() {
	grantsIssuedTotal.Inc()
}

// RecordExchange records the outcome of an authorization code exchange.
func RecordExchange(result string) {
	codeExchangesTotal.WithLabelValues(result).Inc()
}

// RecordReplayDetected records a detected authorization code replay.
func RecordReplayDetected() {
	replaysDetectedTotal.Inc()
}

// RecordTokenIssued records a token being issued.
func RecordTokenIssued(tokenType string) {
	tokensIssuedTotal.WithLabelValues(tokenType).Inc()
}

// RecordRotation records a refresh token rotation.
func RecordRotation(path string) {
	refreshRotationsTotal.WithLabelValues(path).Inc()
}

// RecordIntrospection records a token introspection.
func RecordIntrospection(active bool) {
	introspectionsTotal.WithLabelValues(strconv.FormatBool(active)).Inc()
}

// RecordConsentCheck records whether an authorization found usable consent.
func RecordConsentCheck(result string) {
	consentChecksTotal.WithLabelValues(result).Inc()
}

// RecordRevocation records a token revocation that actually deleted a token.
func RecordRevocation() {
	revocationsTotal.Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event.
func RecordRateLimitExceeded(endpoint string) {
	rateLimitExceededTotal.WithLabelValues(endpoint).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes the path for metrics to avoid high cardinality.
func normalizePath(path string) string {
	knownPaths := []string{
		"/healthz",
		"/readyz",
		"/metrics",
		"/authorize",
		"/authorize/decision",
		"/token",
		"/revoke",
		"/introspect",
	}

	for _, known := range knownPaths {
		if path == known {
			return path
		}
	}

	return "/other"
}
