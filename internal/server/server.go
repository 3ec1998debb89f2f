package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hopchain/hopchain/internal/config"
	"github.com/hopchain/hopchain/internal/metrics"
)

// Server is the HTTP scaffold every hop runs on: the common surface
// (/health, /, /metrics), request logging, and graceful shutdown. The
// hop's primary endpoint is registered through the register callback.
type Server struct {
	cfg        config.Service
	httpServer *http.Server
	met        *metrics.Service
	logger     *slog.Logger
}

func New(cfg config.Service, met *metrics.Service, logger *slog.Logger, register func(chi.Router)) (*Server, error) {
	if met == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	if register == nil {
		return nil, fmt.Errorf("route registration cannot be nil")
	}
	logger = logger.With("component", "server")

	s := &Server{
		cfg:    cfg,
		met:    met,
		logger: logger,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.routes(register),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) routes(register func(chi.Router)) http.Handler {
	r := chi.NewRouter()

	r.Use(s.observe)
	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)
	r.Method(http.MethodGet, "/metrics", s.met.Handler())
	register(r)

	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		s.met.RequestDuration.
			WithLabelValues(r.URL.Path, strconv.Itoa(ww.Status())).
			Observe(duration.Seconds())
		s.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", duration,
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"service": s.cfg.ServiceName,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("%s is running", s.cfg.ServiceName),
	})
}

// Handler exposes the full route tree, primary endpoint included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}

	return nil
}

// JSON writes v as the response body with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already written; logging is all that is left.
		slog.Error("failed to encode response", "error", err)
	}
}
