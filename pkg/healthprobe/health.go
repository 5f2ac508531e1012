// Package healthprobe serves liveness and readiness. Liveness is
// unconditional; readiness is gated on an overall flag plus named components
// (venue, sink) so the process stops taking traffic the moment a dependency
// degrades.
package healthprobe

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HealthChecker provides health and readiness checks.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool

	mu         sync.RWMutex
	components map[string]bool
}

// New creates a HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime:  time.Now(),
		components: make(map[string]bool),
	}
}

// SetReady marks the application as wired and ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetComponent records one subsystem's readiness. Any component reporting
// false holds /ready at 503 regardless of the overall flag.
func (h *HealthChecker) SetComponent(name string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.components[name] = ok
}

// componentView returns a copy of the component map and whether all pass.
func (h *HealthChecker) componentView() (map[string]bool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.components) == 0 {
		return nil, true
	}

	out := make(map[string]bool, len(h.components))
	allOK := true

	for name, ok := range h.components {
		out[name] = ok
		if !ok {
			allOK = false
		}
	}

	return out, allOK
}

// HealthResponse is the body served by both probes.
type HealthResponse struct {
	Status     string          `json:"status"`
	Uptime     string          `json:"uptime"`
	Components map[string]bool `json:"components,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// Health returns the liveness handler: 200 whenever the process can answer.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready returns the readiness handler: 200 only when the application flag is
// set and every registered component passes.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		components, allOK := h.componentView()

		if !h.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:     "not_ready",
				Components: components,
				Message:    "application is starting",
			})

			return
		}

		if !allOK {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:     "degraded",
				Uptime:     time.Since(h.startTime).String(),
				Components: components,
				Message:    "component degraded",
			})

			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status:     "ready",
			Uptime:     time.Since(h.startTime).String(),
			Components: components,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
