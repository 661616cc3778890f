package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/fitwire/fitwire/internal/groutine"
)

const shutdownTimeout = 5 * time.Second

// Server serves a Recorder's state as JSON.
type Server struct {
	addr     string
	recorder *Recorder
	logger   *logrus.Logger
}

// NewServer creates a status server that will listen on addr.
func NewServer(addr string, recorder *Recorder, logger *logrus.Logger) (*Server, error) {
	if addr == "" {
		return nil, fmt.Errorf("listen address cannot be empty")
	}
	if recorder == nil {
		return nil, fmt.Errorf("recorder cannot be nil")
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Server{addr: addr, recorder: recorder, logger: logger}, nil
}

// Handler returns the routing table. Exposed so tests can drive the
// endpoints without a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/status/recent", s.handleRecent)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
// Cancellation is the normal way to stop the server and is not an error.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	groutine.Go(ctx, "status-listener", func(context.Context) {
		errCh <- srv.ListenAndServe()
	})

	s.logger.WithField("addr", s.addr).Info("Status endpoint listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.recorder.Snapshot())
}

func (s *Server) handleRecent(w http.ResponseWriter, _ *http.Request) {
	recent := s.recorder.Recent()
	if recent == nil {
		recent = []Observation{}
	}
	s.writeJSON(w, recent)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode status response")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("Status request served")
	})
}
