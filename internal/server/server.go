// Package server assembles the HTTP router of the matricula server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-matricula/components/catalogs"
	"github.com/goliatone/go-matricula/components/students"
	"github.com/goliatone/go-matricula/internal/config"
	"github.com/goliatone/go-matricula/internal/enrollment"
	"github.com/goliatone/go-matricula/internal/metrics"
	"github.com/goliatone/go-matricula/internal/openapi"
	"github.com/goliatone/go-matricula/pkg/catalog"
	"github.com/goliatone/go-matricula/pkg/render"
)

// Version is reported in the OpenAPI document.
var Version = "dev"

// internalBase is the base URL fragment sources use to reach the router in
// process.
const internalBase = "http://matricula.internal"

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	router  chi.Router
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New mounts every endpoint over store.
func New(cfg config.Config, store catalog.Store, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("server: missing store")
	}
	s := &Server{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	header := cfg.Server.InstitutionHeader
	institution := catalogs.HeaderInstitution(header, cfg.Server.DefaultInstitution)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&logFormatter{logger: s.logger}))
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	err := catalogs.RegisterRoutes(r,
		catalogs.WithStore(store),
		catalogs.WithLogger(s.logger),
		catalogs.WithInstitution(institution),
		catalogs.WithInstitutionHeader(header),
		catalogs.WithDefaultInstitution(cfg.Server.DefaultInstitution),
	)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	err = students.RegisterRoutes(r,
		students.WithStore(store),
		students.WithLogger(s.logger),
		students.WithInstitution(institution),
		students.WithDefaultInstitution(cfg.Server.DefaultInstitution),
		students.WithCSRF(students.DefaultOptions().CSRFHeader, cfg.Server.CSRFCookie),
	)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	doc := openapi.Document(Version, header)
	docHandler, err := openapi.Handler(doc)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	r.Method(http.MethodGet, openapi.PathDocument, docHandler)
	r.Method(http.MethodGet, openapi.PathMetrics, s.metrics.Handler())

	fragments, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	source := enrollment.FragmentSource{
		Client:  &http.Client{Transport: InProcess(r), Timeout: cfg.Client.Timeout},
		BaseURL: internalBase,
		Forward: []string{header, students.DefaultOptions().CSRFHeader, "Cookie"},
	}
	r.Method(http.MethodGet, render.PathOptionsFragment, fragments.Handler(source, s.logger))

	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// ListenAndServe serves until ctx is canceled, then shuts down within the
// configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("matricula server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.logger.Info("matricula server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}

type logFormatter struct {
	logger *slog.Logger
}

func (f *logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{logger: f.logger.With(
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)}
}

type logEntry struct {
	logger *slog.Logger
}

func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.logger.Debug("request", "status", status, "bytes", bytes, "elapsed", elapsed)
}

func (e *logEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("request panic", "panic", v, "stack", string(stack))
}
