// Copyright 2025 Certen Protocol
//
// Routes wires Handlers into an http.ServeMux. Grounded on main.go's flat
// mux.HandleFunc registration style (one block listing every route), here
// split by concern instead of by chain phase.
package server

import (
	"net/http"
	"strconv"
	"time"
)

// NewMux builds the top-level router for the did:webvh hosting surface.
// The identifier routes (creation template, create/append, did.jsonl,
// did.json, whois, resources) share a single handler because namespace and
// alias are caller-chosen path segments that precede any fixed suffix;
// tails and admin routes sit under fixed prefixes and dispatch by
// trimming that prefix off the remainder.
func (h *Handlers) NewMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if h.metrics == nil {
			h.writeError(w, http.StatusNotFound, "NotFound", "metrics not configured")
			return
		}
		h.metrics.Handler().ServeHTTP(w, r)
	})

	mux.HandleFunc("/tails/hash/", h.HandleTails)

	mux.HandleFunc("/admin/policy", h.HandlePolicy)
	mux.HandleFunc("/admin/witnesses", h.HandleWitnesses)
	mux.HandleFunc("/admin/tasks", h.HandleTaskList)
	mux.HandleFunc("/admin/tasks/", h.HandleTask)
	mux.HandleFunc("/admin/controllers", h.HandleControllers)

	mux.HandleFunc("/", h.HandleRoot)

	return mux
}

// statusRecorder captures the status code a handler writes so metrics
// middleware can observe it after the fact; http.ResponseWriter has no
// getter for what WriteHeader was called with.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// statusClass buckets an HTTP status into its first digit plus "xx", the
// usual Prometheus label cardinality convention (e.g. "2xx", "4xx").
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// WithMetrics wraps mux so every request is timed and counted by request
// path and status class. A nil Metrics makes this a no-op passthrough.
func (h *Handlers) WithMetrics(mux http.Handler) http.Handler {
	if h.metrics == nil {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)
		h.metrics.ObserveHTTP(r.URL.Path, statusClass(rec.status), time.Since(start))
	})
}
