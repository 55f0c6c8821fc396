package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/health"
	middleware "github.com/mohammed-shakir/bikeways-nearby/internal/core/middleware"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/router"
)

type Deps struct {
	Sessions router.SessionStore
	// Layers serves /layers; nil leaves the routes out.
	Layers router.LayerCatalog
	Ready  health.ReadinessReporter
	// Metrics serves /metrics; nil leaves the route out.
	Metrics     http.Handler
	WaitTimeout time.Duration
}

func NewHandler(logger *slog.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	if deps.Ready != nil {
		r.Get("/readyz", health.Readiness(deps.Ready))
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	router.New(logger, deps.Sessions, deps.WaitTimeout).Routes(r)
	if deps.Layers != nil {
		router.NewLayers(logger, deps.Layers).Routes(r)
	}
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, addr string, logger *slog.Logger, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
