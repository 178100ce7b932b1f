// Package health exposes the Agent Runtime's lifecycle state over HTTP:
// a liveness probe, a readiness probe, and a full status endpoint backed
// by pluggable dependency checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentflow/core/runtime"
)

// Check is one pluggable dependency probe — storage reachable, event bus
// ok, LLM provider initialized — registered by name at construction.
type Check func(ctx context.Context) error

// Server exposes /health, /health/live, and /health/ready over net/http,
// backed by a runtime.Runtime's Status().
type Server struct {
	rt      *runtime.Runtime
	checks  map[string]Check
	httpSrv *http.Server
}

type checkResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type fullStatus struct {
	State          runtime.State          `json:"state"`
	UptimeSeconds  float64                `json:"uptime_seconds"`
	ActiveRunCount int                    `json:"active_run_count"`
	Checks         map[string]checkResult `json:"checks,omitempty"`
}

// NewServer builds a Server for rt. checks may be nil or empty; each is run
// fresh on every /health request.
func NewServer(rt *runtime.Runtime, checks map[string]Check) *Server {
	s := &Server{rt: rt, checks: checks}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/live", s.handleLive)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe starts the health server and blocks until it is shut
// down via Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv.Addr = addr
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleHealth returns the full status: lifecycle state, uptime,
// active run count, and every registered dependency check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.rt.Status()
	body := fullStatus{
		State:          status.State,
		UptimeSeconds:  status.UptimeSeconds,
		ActiveRunCount: status.ActiveRunCount,
		Checks:         s.runChecks(r.Context()),
	}
	code := http.StatusOK
	if status.State == runtime.StateError {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

// handleLive reports healthy unless the runtime is in the sink error state.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	status := s.rt.Status()
	if status.State == runtime.StateError {
		writeJSON(w, http.StatusServiceUnavailable, checkResult{Error: status.LastError})
		return
	}
	writeJSON(w, http.StatusOK, checkResult{OK: true})
}

// handleReady reports healthy only while the runtime is ready or running.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.rt.Status()
	if status.State == runtime.StateReady || status.State == runtime.StateRunning {
		writeJSON(w, http.StatusOK, checkResult{OK: true})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, checkResult{Error: "state: " + string(status.State)})
}

func (s *Server) runChecks(ctx context.Context) map[string]checkResult {
	if len(s.checks) == 0 {
		return nil
	}
	out := make(map[string]checkResult, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			out[name] = checkResult{Error: err.Error()}
		} else {
			out[name] = checkResult{OK: true}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
