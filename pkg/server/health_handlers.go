// Copyright 2025 Certen Protocol
//
// Health handler: a single status/database payload reflecting this
// service's one external dependency.
package server

import "net/http"

// HandleHealth serves GET /health. When a *database.Client is wired in, the
// database field reflects schema currency as well as connectivity: a
// service connected to a database that hasn't finished migrating is not
// safe to admit mutations against, so it reports degraded rather than ok.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET is allowed at /health")
		return
	}

	if h.dbClient == nil {
		status := "ok"
		dbStatus := "connected"
		if _, err := h.repos.Controllers.CountControllers(r.Context(), ""); err != nil {
			status = "degraded"
			dbStatus = "disconnected"
		}
		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		h.writeJSON(w, code, map[string]string{
			"status":   status,
			"database": dbStatus,
		})
		return
	}

	dbHealth, err := h.dbClient.Health(r.Context())
	if err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "disconnected"})
		return
	}
	status := "ok"
	if !dbHealth.Healthy || !dbHealth.SchemaCurrent {
		status = "degraded"
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]interface{}{
		"status":   status,
		"database": dbHealth,
	})
}
