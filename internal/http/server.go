package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/tendant/simple-oauth/internal/metrics"
)

// Server represents the HTTP server.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	logger    *slog.Logger
	pinger    Pinger
	rateLimit int
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPinger sets the storage connectivity check used by /readyz.
func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.pinger = p
	}
}

// WithRateLimit sets the per-IP requests-per-minute limit applied to the
// protocol endpoints. Zero disables rate limiting.
func WithRateLimit(requestsPerMinute int) Option {
	return func(s *Server) {
		s.rateLimit = requestsPerMinute
	}
}

// NewServer creates a new HTTP server with default middleware.
func NewServer(addr string, opts ...Option) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Default middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// Request logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				s.logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"request_id", chimiddleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	})

	// Health and metrics endpoints
	health := NewHealthHandler(s.pinger)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", metrics.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// MountOAuth registers the OAuth protocol endpoints, rate limited per IP
// when a limit is configured.
func (s *Server) MountOAuth(h *OAuthHandler) {
	s.router.Group(func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.Limit(
				s.rateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					metrics.RecordRateLimitExceeded(r.URL.Path)
					writeJSON(w, http.StatusTooManyRequests, map[string]string{
						"error":             "slow_down",
						"error_description": "rate limit exceeded",
					})
				}),
			))
		}

		r.Get("/authorize", h.Authorize)
		r.Post("/authorize", h.Authorize)
		r.Post("/authorize/decision", h.Decision)
		r.Post("/token", h.Token)
		r.Post("/revoke", h.Revoke)
		r.Post("/introspect", h.Introspect)
	})
}

// Router returns the chi router for adding routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}
