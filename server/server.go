// Package server exposes the attestation client over HTTP.
//
// Every request gets its own Session, so no unsealed key or TPM state is
// shared between requests. Attestations are serialized because they share the
// vTPM report-data NV index.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-cvm-attestation/client"
	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/internal/logging"
	"github.com/google/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route paths.
const (
	AttestPlatformPath     = "/api/attest_platform"
	AttestGuestPath        = "/api/attest_guest"
	HardwareEvidencePath   = "/api/generate_hw_evidence"
	MetricsPath            = "/metrics"
	defaultShutdownTimeout = 5 * time.Second
)

// Attester is the part of *client.Client used by the server.
type Attester interface {
	AttestPlatform(ctx context.Context) (string, error)
	AttestGuest(ctx context.Context) (string, error)
	HardwareEvidence(ctx context.Context) (*evidence.PlatformEvidence, error)
}

// Session is an Attester holding resources (typically an open TPM) that are
// released by Close once the request is served.
type Session interface {
	Attester
	Close() error
}

// NewSession creates the Session serving a single request.
type NewSession func(ctx context.Context) (Session, error)

// Opts are optional Server settings.
type Opts struct {
	Logger *logger.Logger
	// Registry receives the server metrics and backs the metrics endpoint.
	// A private registry is used when nil.
	Registry *prometheus.Registry
}

// Server is the attestation HTTP server.
type Server struct {
	newSession NewSession
	logger     *logger.Logger
	metrics    *metrics
	registry   *prometheus.Registry
	server     *http.Server

	// Guards the TPM across sessions.
	mu sync.Mutex
}

// TokenResponse is the body of a successful attest call.
type TokenResponse struct {
	Token string `json:"token"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// New returns a Server creating a Session per request with newSession.
func New(newSession NewSession, opts *Opts) *Server {
	if opts == nil {
		opts = &Opts{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	s := &Server{
		newSession: newSession,
		logger:     logging.OrDiscard(opts.Logger),
		metrics:    newMetrics(registry),
		registry:   registry,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler creates a multiplexer for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// curl -X POST http://localhost:5000/api/attest_platform
	mux.HandleFunc(AttestPlatformPath, s.handle("attest_platform", func(ctx context.Context, a Attester) (any, error) {
		token, err := a.AttestPlatform(ctx)
		return TokenResponse{Token: token}, err
	}))
	mux.HandleFunc(AttestGuestPath, s.handle("attest_guest", func(ctx context.Context, a Attester) (any, error) {
		token, err := a.AttestGuest(ctx)
		return TokenResponse{Token: token}, err
	}))
	mux.HandleFunc(HardwareEvidencePath, s.handle("generate_hw_evidence", func(ctx context.Context, a Attester) (any, error) {
		return a.HardwareEvidence(ctx)
	}))
	mux.Handle(MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

type operation func(ctx context.Context, a Attester) (any, error)

func (s *Server) handle(name string, op operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("%s received an invalid HTTP method: %s", r.URL.Path, r.Method))
			return
		}

		start := time.Now()
		resp, err := s.run(r.Context(), op)
		s.metrics.observe(name, err, time.Since(start))
		if err != nil {
			s.writeError(w, statusFor(err), fmt.Errorf("%s failed: %w", name, err))
			return
		}
		s.logger.V(1).Infof("%s succeeded in %v", name, time.Since(start))
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) run(ctx context.Context, op operation) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.newSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warningf("closing attestation session: %v", cerr)
		}
	}()
	return op(ctx, session)
}

// statusFor maps integrity failures to 403 and everything else to 500.
func statusFor(err error) int {
	switch client.KindOf(err) {
	case client.KindUnseal, client.KindAuthentication:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Errorf("%v", err)
	resp := ErrorResponse{Error: err.Error()}
	if kind := client.KindOf(err); kind != client.KindUnknown {
		resp.Kind = kind.String()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Serve accepts connections on l and blocks until the server is shut down.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Infof("serving attestation API on %v", l.Addr())
	if err := s.server.Serve(l); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(l)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// Shutdown gracefully stops the server and its listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
