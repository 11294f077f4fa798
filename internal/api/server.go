// Package api provides the HTTP API server and handlers for NeuroTunes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/neurotunes/neurotunes-server/internal/auth"
	"github.com/neurotunes/neurotunes-server/internal/metrics"
	"github.com/neurotunes/neurotunes-server/internal/ratelimit"
	"github.com/neurotunes/neurotunes-server/internal/search"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigins         []string
	UploadRatePerMinute int
	MaxUploadBytes      int64
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store          store.Store
	services       *Services
	verifier       *auth.Verifier
	index          *search.TrackIndex
	uploadLimiter  *ratelimit.KeyedRateLimiter
	maxUploadBytes int64
	router         *chi.Mux
	api            huma.API
	logger         *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// index may be nil, in which case search reports unavailable.
func NewServer(
	st store.Store,
	services *Services,
	verifier *auth.Verifier,
	index *search.TrackIndex,
	opts Options,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()

	s := &Server{
		store:          st,
		services:       services,
		verifier:       verifier,
		index:          index,
		maxUploadBytes: opts.MaxUploadBytes,
		router:         router,
		logger:         logger,
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = defaultMaxUploadBytes
	}
	if opts.UploadRatePerMinute > 0 {
		s.uploadLimiter = ratelimit.PerMinute(opts.UploadRatePerMinute)
	}

	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("NeuroTunes API", "1.0.0")
	humaConfig.Info.Description = "EEG-driven music recommendations for caregivers and listeners."
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	router.Handle("/metrics", metrics.Handler())

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources.
func (s *Server) Close() {
	if s.uploadLimiter != nil {
		s.uploadLimiter.Stop()
	}
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	if len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	s.router.Use(metrics.Middleware)
	s.router.Use(authMiddleware(s.verifier, s.services.Activity, s.logger))
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerPatientRoutes()
	s.registerRecommendationRoutes()
	s.registerCatalogRoutes()
	s.registerMeRoutes()
}
