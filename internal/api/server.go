package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/pumpkin/internal/engine"
	"github.com/mattjoyce/pumpkin/internal/events"
	"github.com/mattjoyce/pumpkin/internal/log"
	"github.com/mattjoyce/pumpkin/internal/script"
)

// DefaultMaxBodyBytes caps POST /eval request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Runner executes programs synchronously.
type Runner interface {
	Run(ctx context.Context, program []byte, r script.Receiver) engine.Outcome
	Stats() engine.Stats
	Catalog() []script.HandlerInfo
}

// SubscriptionCounter reports live bus subscriptions.
type SubscriptionCounter interface {
	Len() int
}

// Config holds API server configuration
type Config struct {
	Listen string
	// Token, when set, is required as a bearer token on every route but
	// /healthz.
	Token        string
	MaxBodyBytes int64
	// ConfigFingerprint is reported by /healthz.
	ConfigFingerprint string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	engine    Runner
	bus       SubscriptionCounter
	events    *events.Hub
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(config Config, eng Runner, bus SubscriptionCounter, hub *events.Hub, logger *slog.Logger) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if hub == nil {
		hub = events.NewHub(0)
	}
	if logger == nil {
		logger = log.WithComponent("api")
	}
	return &Server{
		config:    config,
		engine:    eng,
		bus:       bus,
		events:    hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // /events streams indefinitely
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		if s.config.Token != "" {
			r.Use(s.authMiddleware)
		}
		r.Get("/openapi.json", s.handleOpenAPI)
		r.Get("/instructions", s.handleInstructions)
		r.Get("/events", s.handleEvents)
		r.Post("/eval", s.handleEval)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
