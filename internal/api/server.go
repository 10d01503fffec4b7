package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/mattjoyce/taskd/internal/events"
	"github.com/mattjoyce/taskd/internal/journal"
	"github.com/mattjoyce/taskd/internal/protocol"
)

//go:generate mockgen -destination=mocks/mock_api.go -package=mocks github.com/mattjoyce/taskd/internal/api TaskDispatcher,TaskJournal

// TaskDispatcher executes and cancels tasks.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, raw []byte) *protocol.TaskResponse
	Cancel(id string) bool
	Inflight() int
}

// TaskJournal looks up finished tasks.
type TaskJournal interface {
	Get(ctx context.Context, taskID string) ([]journal.Entry, error)
}

// DefaultMaxBodyBytes bounds a POST /tasks body.
const DefaultMaxBodyBytes = 64 << 20

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the bearer token.
	APIKey string
	// HMACSecret, when set, also admits requests signed with SignatureHeader.
	// Authentication is off only when both are empty.
	HMACSecret string
	// MaxTimeout caps the ?timeout= of a task and is the default bound.
	MaxTimeout time.Duration
	// AllowedOrigins enables CORS for the listed origins when non-empty.
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// Server represents the HTTP API server
type Server struct {
	config     Config
	dispatcher TaskDispatcher
	journal    TaskJournal
	events     *events.Hub
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a new API server instance. journal and hub may be nil, which
// disables GET /tasks/{id} and GET /events respectively.
func New(config Config, dispatcher TaskDispatcher, journal TaskJournal, hub *events.Hub, logger *slog.Logger) *Server {
	if config.MaxTimeout <= 0 {
		config.MaxTimeout = 10 * time.Minute
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:     config,
		dispatcher: dispatcher,
		journal:    journal,
		events:     hub,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      s.config.MaxTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen, "auth", s.config.APIKey != "" || s.config.HMACSecret != "")

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

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID", SignatureHeader},
			MaxAge:         300,
		}).Handler)
	}

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/tasks", s.handleSubmitTask)
		r.Get("/tasks/{taskID}", s.handleGetTask)
		r.Delete("/tasks/{taskID}", s.handleCancelTask)
		r.Get("/events", s.handleEvents)
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
