package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"audioconv/internal/api"
	"audioconv/internal/config"
	"audioconv/internal/logging"
)

const shutdownTimeout = 10 * time.Second

type httpServer struct {
	bind      string
	publicURL string
	token     string
	maxUpload int64
	origins   []string
	logger    *slog.Logger
	daemon    *Daemon
	validate  *validator.Validate

	users    *api.UserService
	ingest   *api.IngestionService
	retrieve *api.RetrievalService
	jobs     *api.JobService

	handler http.Handler
	server  *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func newHTTPServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *httpServer {
	logger = logging.NewComponentLogger(logger, "http")
	s := &httpServer{
		bind:      cfg.APIBind(),
		publicURL: cfg.PublicBaseURL(),
		token:     cfg.API.Token,
		maxUpload: cfg.API.MaxUploadBytes,
		origins:   cfg.API.CORSOrigins,
		logger:    logger,
		daemon:    d,
		validate:  validator.New(),
		users:     api.NewUserService(d.store, logger),
		ingest:    api.NewIngestionService(d.store, d.store, d.blobs, logger),
		retrieve:  api.NewRetrievalService(d.store, d.store, d.blobs, cfg.API.RequireTokenOnFetch, logger),
		jobs:      api.NewJobService(d.store),
	}
	s.handler = s.routes()
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *httpServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader, "Content-Disposition", "Retry-After"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.reportPanics)

	r.Post("/user", s.handleRegisterUser)
	r.Post("/record", s.handleUpload)
	r.Get("/record", s.handleFetch)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(s.token))
		r.Get("/status", s.handleStatus)
		r.Get("/jobs", s.handleJobs)
		r.Get("/jobs/{jobID}", s.handleJob)
	})
	return r
}

func (s *httpServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.server.BaseContext = func(net.Listener) context.Context {
		return context.WithoutCancel(ctx)
	}
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "http_serve_failed", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *httpServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

func (s *httpServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
