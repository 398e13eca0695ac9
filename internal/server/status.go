package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck reports a dependency's health; a non-nil error fails /healthz.
type HealthCheck func(ctx context.Context) error

type namedCheck struct {
	name string
	fn   HealthCheck
}

// StatusServer exposes /metrics, /healthz and /status over HTTP.
// /status serves the most recently published snapshot as JSON.
type StatusServer struct {
	addr     string
	logger   *zap.Logger
	srv      *http.Server
	snapshot atomic.Pointer[[]byte]

	mu     sync.RWMutex
	checks []namedCheck
}

// NewStatusServer builds a StatusServer listening on addr.
//
// Precondition: gatherer and logger must be non-nil.
// Postcondition: /healthz answers ok until a check added with AddCheck fails.
func NewStatusServer(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *StatusServer {
	s := &StatusServer{addr: addr, logger: logger.Named("status")}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	s.srv = &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *StatusServer) Handler() http.Handler { return s.srv.Handler }

// AddCheck registers fn under name. Checks run in registration order on
// every /healthz request, with the request's context.
//
// Precondition: fn must be non-nil.
func (s *StatusServer) AddCheck(name string, fn HealthCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, namedCheck{name: name, fn: fn})
}

// Publish replaces the /status snapshot with v encoded as JSON.
func (s *StatusServer) Publish(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding status snapshot: %w", err)
	}
	s.snapshot.Store(&b)
	return nil
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checks := s.checks
	s.mu.RUnlock()
	for _, c := range checks {
		if err := c.fn(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.String("check", c.name), zap.Error(err))
			http.Error(w, c.name+": unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	b := s.snapshot.Load()
	if b == nil {
		http.Error(w, "no status yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(*b)
}

// Start listens on the configured address and serves until Stop.
func (s *StatusServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.logger.Info("status server listening", zap.String("addr", lis.Addr().String()))
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *StatusServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("status server shutdown", zap.Error(err))
	}
}
