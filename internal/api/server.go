// Package api exposes the install engine over HTTP.
//
// Routes:
//
//	POST /v1/install          body {"dependencies": {"react": "^18"}}
//	GET  /v1/progress         current session snapshot; ?stream=1 for SSE
//	GET  /v1/resolve/{name}   ?specifier=^1 (defaults to latest)
//	GET  /healthz
//
// Every response carries an X-Request-ID header, taken from the request
// when present and generated otherwise.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/nodevfs/pkg/install"
)

// Installer runs install sessions. *install.Installer implements it.
type Installer interface {
	Install(ctx context.Context, deps map[string]string) (*install.Result, error)
	Progress() *install.Tracker
}

// Resolver resolves version specifiers. *registry.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, name, specifier string) (string, error)
}

// Server is the HTTP front end.
type Server struct {
	installer Installer
	resolver  Resolver
	logger    *log.Logger
	router    chi.Router
}

// New creates a Server and mounts its routes.
func New(installer Installer, resolver Resolver, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{installer: installer, resolver: resolver, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/install", s.handleInstall)
		r.Get("/progress", s.handleProgress)
		r.Get("/resolve/*", s.handleResolve)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Code: "NOT_FOUND"})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start),
			"request_id", RequestIDFromContext(r.Context()))
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
