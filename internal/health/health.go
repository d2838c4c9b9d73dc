// Package health serves the liveness and readiness probes of the call
// engine.
//
//   - /healthz reports liveness: the process is up and serving HTTP.
//   - /readyz reports readiness to accept new call legs: every dependency
//     probe (session store, call-record database) passes and the node is not
//     draining.
//
// The dialer routes new calls only to ready nodes, so failing readiness is
// how a node sheds load without touching in-flight calls. Responses are JSON
// with a top-level "status" of ok, fail, or draining and a per-check
// breakdown that includes the probe latency.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// checkTimeout bounds one dependency probe. A store that cannot answer a
// ping in this window is treated as down.
const checkTimeout = 5 * time.Second

// Checker is a named dependency probe. Check returns nil when the dependency
// can serve new calls and a descriptive error otherwise; it must respect
// context cancellation.
type Checker struct {
	// Name labels the probe in the JSON response, e.g. "session_store" or
	// "call_records".
	Name string

	Check func(ctx context.Context) error
}

// checkResult is one probe's entry in the readiness response.
type checkResult struct {
	Status  string `json:"status"`
	Latency string `json:"latency"`
}

// result is the JSON response body for both probe endpoints.
type result struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Safe for concurrent use; the checker
// list is fixed at construction, only the draining flag changes afterwards.
type Handler struct {
	checkers []Checker
	draining atomic.Bool
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// SetDraining flips the readiness gate. A draining node answers /readyz with
// 503 so no new call legs are routed to it while the in-flight calls finish;
// liveness is unaffected.
func (h *Handler) SetDraining(v bool) {
	h.draining.Store(v)
}

// Healthz is the liveness probe. A process that can serve HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs every checker and returns 200 only when all pass and the node
// is not draining. The checkers probe independent stores, so they run
// concurrently; one slow store must not hide the state of the others.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, result{Status: "draining"})
		return
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]checkResult, len(h.checkers))
		allOK  = true
	)
	for _, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			begin := time.Now()
			err := c.Check(ctx)
			res := checkResult{
				Status:  "ok",
				Latency: time.Since(begin).Round(time.Millisecond).String(),
			}
			if err != nil {
				res.Status = "fail: " + err.Error()
			}

			mu.Lock()
			checks[c.Name] = res
			if err != nil {
				allOK = false
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
