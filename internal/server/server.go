// Package server exposes the pending update actions and the webform
// renderer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aqasim81/crm-updater/internal/settings"
	"github.com/aqasim81/crm-updater/internal/webform"
)

const shutdownTimeout = 5 * time.Second

// TaskCompleter marks an updating task as done.
type TaskCompleter interface {
	Complete(ctx context.Context, id uint) error
}

// Publisher refreshes the pending-action settings.
type Publisher interface {
	Publish(ctx context.Context) (int, error)
}

// FieldRenderer renders webform elements.
type FieldRenderer interface {
	Render(element string, f webform.Field) (string, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Settings  *settings.Store
	Tasks     TaskCompleter
	Publisher Publisher
	Renderer  FieldRenderer
	Logger    zerolog.Logger
}

// Server is the HTTP surface.
type Server struct {
	router *chi.Mux
	deps   Deps
}

// New builds the router.
func New(deps Deps) *Server {
	s := &Server{router: chi.NewRouter(), deps: deps}

	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(deps.Logger))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Get("/api/updating", handle(s.handlePending))
	s.router.Post("/api/updating/{id}/complete", handle(s.handleComplete))
	s.router.Post("/webform/elements/{element}", handle(s.handleElement))

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Routes lists the registered routes as "METHOD pattern".
func (s *Server) Routes() ([]string, error) {
	var routes []string

	err := chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking routes: %w", err)
	}

	return routes, nil
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.deps.Logger.Info().Str("addr", addr).Msg("starting server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", addr, err)
		}

		return nil
	case <-ctx.Done():
	}

	s.deps.Logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.deps.Logger.Info().Msg("server stopped")

	return nil
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
