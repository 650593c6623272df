// Package api provides the development remote: an HTTP document API over the
// badger docstore that the sync engine's HTTP backend talks to.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moodtune/moodtune-sync/internal/auth"
	"github.com/moodtune/moodtune-sync/internal/ratelimit"
	"github.com/moodtune/moodtune-sync/internal/remote/docstore"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	docs    *docstore.Store
	tokens  *auth.TokenService
	limiter *ratelimit.KeyedRateLimiter
	origins []string
	router  *chi.Mux
	api     huma.API
	logger  *slog.Logger
}

// Option configures optional server behavior.
type Option func(*Server)

// WithCORSOrigins lets browser builds of the app on these origins call the
// API. Without it no CORS headers are sent.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// NewServer creates the dev remote with all routes configured. tokens and
// limiter are optional: without tokens the document routes are open, and
// without a limiter requests are never throttled.
func NewServer(docs *docstore.Store, tokens *auth.TokenService, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		docs:    docs,
		tokens:  tokens,
		limiter: limiter,
		router:  chi.NewRouter(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()

	config := huma.DefaultConfig("MoodTune Dev Remote", "1.0.0")
	config.Info.Description = "Document API used by the sync engine during development."
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	s.api = humachi.New(s.router, config)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerDocumentRoutes()
	s.router.Handle("/metrics", promhttp.Handler())

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack. Metrics wrap everything
// so throttled and unauthorized requests are counted too.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.observeRequests)
	if len(s.origins) > 0 {
		// Preflight requests are answered here, before auth.
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}
	s.router.Use(s.requireAuth)
}
