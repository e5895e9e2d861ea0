// Package api serves the datarade operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/datarade/internal/notify"
	"github.com/leapstack-labs/datarade/internal/transfer"
	"github.com/leapstack-labs/datarade/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Service is the set of operations the API exposes.
type Service interface {
	GetDataset(ctx context.Context, name string) (*core.Dataset, error)
	AddDataset(ctx context.Context, spec core.DatasetSpec) (*core.Dataset, error)
	RegisterDatasetContainer(ctx context.Context, spec core.ContainerSpec) (*core.DatasetContainer, error)
	GetDatasetContainer(ctx context.Context, id string) (*core.DatasetContainer, error)
	ListContainers(ctx context.Context) ([]core.ContainerSpec, error)
	RefreshDataset(ctx context.Context, cmd core.RefreshDataset) (*transfer.Result, error)
	History(ctx context.Context, limit int) ([]*core.RefreshRun, error)
}

// Config holds configuration for the API server.
type Config struct {
	Service Service
	Addr    string
	// Events enables GET /events when set.
	Events *notify.Notifier
	Logger *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	svc    Service
	addr   string
	events *notify.Notifier
	logger *slog.Logger
}

// NewServer creates a server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &Server{svc: cfg.Service, addr: addr, events: cfg.Events, logger: logger}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
	)

	h := &handlers{svc: s.svc, events: s.events, logger: s.logger}
	r.Get("/healthz", h.health)
	r.Route("/datasets", func(r chi.Router) {
		r.Post("/", h.addDataset)
		r.Get("/{name}", h.getDataset)
	})
	r.Route("/containers", func(r chi.Router) {
		r.Get("/", h.listContainers)
		r.Get("/{id}", h.getContainer)
		r.Put("/{id}", h.registerContainer)
		r.Post("/{id}/refresh/{dataset}", h.refresh)
	})
	r.Get("/refreshes", h.history)
	if s.events != nil {
		r.Get("/events", h.stream)
	}
	return r
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start))
	})
}
