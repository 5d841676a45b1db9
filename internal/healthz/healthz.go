// Package healthz exposes a minimal liveness/readiness endpoint for the
// worker process, adapted from the teacher's httpx.JSON helper. The
// original_source FastAPI app exposes an equivalent /health route
// consumed by its container orchestrator (see SPEC_FULL.md §4); the
// worker carries the same contract even though its own intake is
// queue-driven, not HTTP.
package healthz

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Status reports the fields a readiness probe cares about.
type Status struct {
	Ready   bool   `json:"ready"`
	Reason  string `json:"reason,omitempty"`
	Version string `json:"version"`
}

// Server tracks readiness and serves it as JSON.
type Server struct {
	version string
	ready   atomic.Bool
	reason  atomic.Value // string
}

// New creates a Server that reports not-ready until MarkReady is called.
func New(version string) *Server {
	s := &Server{version: version}
	s.reason.Store("starting up")
	return s
}

// MarkReady flips the server to ready, e.g. once validation assets and
// database pools are confirmed usable.
func (s *Server) MarkReady() { s.ready.Store(true) }

// MarkNotReady flips the server back to not-ready with a reason,
// e.g. when a dependency check fails during a periodic self-check.
func (s *Server) MarkNotReady(reason string) {
	s.ready.Store(false)
	s.reason.Store(reason)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ready := s.ready.Load()
	status := Status{Ready: ready, Version: s.version}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
		if reason, ok := s.reason.Load().(string); ok {
			status.Reason = reason
		}
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
