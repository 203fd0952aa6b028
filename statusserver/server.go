// Package statusserver exposes orchestrator state over HTTP:
//
//	GET    /healthz            liveness
//	GET    /status             last cycle result
//	GET    /quarantine         tracked items (?all=true includes items still retried)
//	DELETE /quarantine/{name}  release a quarantined item
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/input-output-hk/macrosync/orchestrator"
)

// StatusSource reports the most recent cycle.
type StatusSource interface {
	LastResult() *orchestrator.CycleResult
}

// QuarantineControl lists and releases quarantined items.
type QuarantineControl interface {
	List(onlyQuarantined bool) []orchestrator.Attempt
	Release(name string) bool
}

// Server serves the status endpoints.
type Server struct {
	status     StatusSource
	quarantine QuarantineControl
	logger     *slog.Logger
	router     chi.Router
	started    time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server.
func New(status StatusSource, quarantine QuarantineControl, opts ...Option) *Server {
	s := &Server{
		status:     status,
		quarantine: quarantine,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		started:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Route("/quarantine", func(r chi.Router) {
		r.Get("/", s.handleListQuarantine)
		r.Delete("/{name}", s.handleRelease)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("status server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type statusResponse struct {
	LastCycle   *orchestrator.CycleResult `json:"last_cycle"`
	Quarantined int                       `json:"quarantined"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		LastCycle:   s.status.LastResult(),
		Quarantined: len(s.quarantine.List(true)),
	})
}

func (s *Server) handleListQuarantine(w http.ResponseWriter, r *http.Request) {
	all := false
	if v := r.URL.Query().Get("all"); v != "" {
		var err error
		if all, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "all must be a boolean")
			return
		}
	}
	writeJSON(w, http.StatusOK, s.quarantine.List(!all))
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeError(w, http.StatusBadRequest, "invalid item name")
		return
	}

	if !s.quarantine.Release(name) {
		writeError(w, http.StatusNotFound, "item is not quarantined")
		return
	}
	s.logger.Info("released quarantined document", "item", name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
