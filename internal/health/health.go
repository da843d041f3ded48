// Package health serves the liveness and readiness probes of the coach.
//
// /healthz answers 200 while the process can serve HTTP. /readyz runs every
// registered [Checker] concurrently and answers 503 only when a required one
// fails. Optional dependencies (speech recognition and synthesis) merely
// degrade the report, since an interview can still be typed and read.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Report statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker probes one dependency.
type Checker struct {
	// Name keys the check in the report, e.g. "llm" or "stt".
	Name string

	// Check returns nil while the dependency is usable. It must honour ctx.
	Check func(ctx context.Context) error

	// Optional marks a dependency the coach can run without.
	Optional bool
}

// Prober is implemented by components that report their own health, such as
// the failover providers in the resilience package.
type Prober interface {
	Check(ctx context.Context) error
}

// Probe adapts p to a [Checker].
func Probe(name string, p Prober, optional bool) Checker {
	return Checker{Name: name, Check: p.Check, Optional: optional}
}

// CheckResult is the outcome of one [Checker].
type CheckResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// Report is the JSON body of both probes.
type Report struct {
	Status string                 `json:"status"`
	Uptime string                 `json:"uptime,omitempty"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves the probes. The checker list is fixed at construction.
type Handler struct {
	checkers []Checker
	started  time.Time
}

// New returns a Handler evaluating checkers on every /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		started:  time.Now(),
	}
}

// Register mounts /healthz and /readyz on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

// Healthz reports liveness and process uptime.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Report{
		Status: StatusOK,
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz runs all checks and reports the combined status.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	code := http.StatusOK
	if rep.Status == StatusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

// Evaluate runs every checker concurrently, each under its own timeout, and
// combines the results. A failing required check fails the report; a failing
// optional one degrades it.
func (h *Handler) Evaluate(ctx context.Context) Report {
	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(h.checkers))
		g       errgroup.Group
	)
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			res := CheckResult{Status: StatusOK, Optional: c.Optional}
			if err := c.Check(cctx); err != nil {
				res.Status = StatusFail
				if c.Optional {
					res.Status = StatusDegraded
				}
				res.Error = err.Error()
			}
			mu.Lock()
			results[c.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusOK}
	if len(results) > 0 {
		rep.Checks = results
	}
	for _, res := range results {
		switch {
		case res.Status == StatusFail:
			rep.Status = StatusFail
		case res.Status == StatusDegraded && rep.Status == StatusOK:
			rep.Status = StatusDegraded
		}
	}
	return rep
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
