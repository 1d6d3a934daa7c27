// Package server provides the HTTP server and routing for prisk.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/prisk/internal/database"
	"github.com/aristath/prisk/internal/metrics"
	"github.com/aristath/prisk/internal/modules/payload"
	payloadhandlers "github.com/aristath/prisk/internal/modules/payload/handlers"
	riskhandlers "github.com/aristath/prisk/internal/modules/risk/handlers"
	scenariohandlers "github.com/aristath/prisk/internal/modules/scenario/handlers"
	"github.com/aristath/prisk/internal/scheduler"
)

// SessionCounter reports the number of live scenario sessions.
type SessionCounter interface {
	Count() int
}

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	CORSOrigins []string

	Metrics   *metrics.Registry
	HistoryDB *database.DB
	Store     *payload.Store
	Sessions  SessionCounter
	Scheduler *scheduler.Scheduler
	Jobs      []scheduler.Job // Jobs that can be triggered via API

	Risk     *riskhandlers.Handler
	Scenario *scenariohandlers.Handler
	Payload  *payloadhandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.Store,
			cfg.Sessions,
			cfg.HistoryDB,
			cfg.Scheduler,
			cfg.Jobs,
		),
	}

	s.setupMiddleware()
	s.setupRoutes()

	// No WriteTimeout; websocket streams are long-lived.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Publish-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	if s.cfg.Metrics != nil {
		s.router.Handle("/metrics", s.cfg.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			s.setupSystemRoutes(r)

			if s.cfg.Risk != nil {
				s.cfg.Risk.RegisterRoutes(r)
			}
			if s.cfg.Scenario != nil {
				s.cfg.Scenario.RegisterRoutes(r)
			}
			if s.cfg.Payload != nil {
				s.cfg.Payload.RegisterRoutes(r)
			}
		})

		// Websocket streams stay outside timeout and compression.
		if s.cfg.Scenario != nil {
			s.cfg.Scenario.RegisterStreamRoutes(r)
		}
	})
}

func (s *Server) setupSystemRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", s.systemHandlers.HandleSystemStatus)
		r.Get("/database", s.systemHandlers.HandleDatabaseStats)
		r.Get("/jobs", s.systemHandlers.HandleListJobs)
		r.Post("/jobs/{name}/run", s.systemHandlers.HandleRunJob)
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
