// Package health provides the HTTP liveness and readiness probes for the
// story generation service.
//
//   - /healthz — liveness; a process that can serve HTTP answers 200.
//   - /readyz  — readiness; evaluates every registered [Checker].
//
// Checks come in two severities. A failing required check (the outcome
// database) makes readiness fail with 503. A failing optional check (voice
// providers — audio is best-effort, text still serves) degrades the status
// but keeps the probe at 200 so the service stays in rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// defaultCheckTimeout bounds a single readiness check.
const defaultCheckTimeout = 5 * time.Second

// Checker is a named dependency probe.
type Checker struct {
	// Name labels the check in the JSON response (e.g. "database").
	Name string

	// Optional marks the dependency as non-fatal: a failure degrades the
	// reported status instead of failing readiness.
	Optional bool

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// checkResult is one check's entry in the readiness response.
type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// response is the JSON body for both probes. Status is "ok", "degraded" or
// "fail".
type response struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Safe for concurrent use; the checker
// list is fixed at construction time.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
}

// New creates a [Handler] that evaluates the given checkers, in order, on
// each /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		timeout:  defaultCheckTimeout,
	}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz evaluates every checker with a per-check timeout. Required failures
// yield 503/"fail"; optional-only failures yield 200/"degraded".
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := response{
		Status: "ok",
		Checks: make(map[string]checkResult, len(h.checkers)),
	}
	httpStatus := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		start := time.Now()
		err := c.Check(ctx)
		latency := time.Since(start)
		cancel()

		entry := checkResult{Status: "ok", LatencyMs: latency.Milliseconds()}
		if err != nil {
			entry.Status = "fail"
			entry.Error = err.Error()
			if c.Optional {
				if res.Status == "ok" {
					res.Status = "degraded"
				}
			} else {
				res.Status = "fail"
				httpStatus = http.StatusServiceUnavailable
			}
		}
		res.Checks[c.Name] = entry
	}

	writeJSON(w, httpStatus, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
