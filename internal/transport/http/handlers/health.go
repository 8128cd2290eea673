package http_handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const readyTimeout = 2 * time.Second

// Check is one readiness dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthReporter receives the outcome of each readiness check.
type HealthReporter interface {
	SetDependencyHealth(dependency string, healthy bool)
}

type HealthHandler struct {
	checks   []Check
	reporter HealthReporter
}

func NewHealthHandler(reporter HealthReporter, checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks, reporter: reporter}
}

// Healthz handles GET /healthz. It never touches dependencies.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Readyz handles GET /readyz.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	ready := true
	for _, c := range h.checks {
		err := c.Ping(ctx)
		if h.reporter != nil {
			h.reporter.SetDependencyHealth(c.Name, err == nil)
		}
		if err != nil {
			ready = false
			deps[c.Name] = "unavailable"
			continue
		}
		deps[c.Name] = "ok"
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "dependencies": deps})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "dependencies": deps})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
