// Copyright 2025 Certen Protocol
//
// Admin handlers serve the operator-facing routes gated by the
// X-Admin-Api-Key header: policy and witness-registry management, task
// status/listing, and a paginated controller listing, in the same
// diagnostics-payload shape as the health handler.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/didwebvh/webvh-hosting/pkg/database"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
)

func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	key := r.Header.Get("X-Admin-Api-Key")
	if h.adminAPIKey == "" || key != h.adminAPIKey {
		h.writeError(w, http.StatusUnauthorized, "AuthorMismatch", "missing or invalid admin API key")
		return false
	}
	return true
}

// HandlePolicy serves GET/PUT /admin/policy.
func (h *Handlers) HandlePolicy(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, http.StatusOK, h.policy.Policy())
	case http.MethodPut:
		var p policy.Policy
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "malformed policy body")
			return
		}
		h.policy.Publish(&p, nil)

		snapshot := &database.PolicySnapshot{
			Version:            p.Version,
			WitnessRequired:    p.WitnessRequired,
			Watcher:            p.Watcher,
			Portability:        p.Portability,
			Prerotation:        p.Prerotation,
			Endorsement:        p.Endorsement,
			Validity:           p.Validity,
			WitnessRegistryURL: p.WitnessRegistryURL,
		}
		if _, err := h.repos.Policies.Upsert(r.Context(), snapshot); err != nil {
			h.writeTypedError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, h.policy.Policy())
	default:
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET or PUT is allowed at /admin/policy")
	}
}

// HandleWitnesses serves GET/POST /admin/witnesses.
func (h *Handlers) HandleWitnesses(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		rows, err := h.repos.Registries.List(r.Context())
		if err != nil {
			h.writeTypedError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		var entry database.RegistryEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil || entry.DID == "" {
			h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "malformed witness registry entry")
			return
		}
		if _, err := h.repos.Registries.Upsert(r.Context(), &entry); err != nil {
			h.writeTypedError(w, err)
			return
		}
		rows, err := h.repos.Registries.List(r.Context())
		if err != nil {
			h.writeTypedError(w, err)
			return
		}
		entries := make(map[string]policy.KnownWitness, len(rows))
		for _, row := range rows {
			entries[row.DID] = policy.KnownWitness{Name: row.Name, ServiceEndpoint: row.ServiceEndpoint}
		}
		h.policy.Publish(nil, &policy.WitnessRegistry{Entries: entries})
		h.writeJSON(w, http.StatusCreated, entry)
	default:
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET or POST is allowed at /admin/witnesses")
	}
}

// HandleTaskList serves GET /admin/tasks: the most recent background task
// records, optionally filtered by ?type= and bounded by ?limit= (default 50).
func (h *Handlers) HandleTaskList(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET is allowed at /admin/tasks")
		return
	}
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	tasks, err := h.repos.Tasks.List(r.Context(), q.Get("type"), limit)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks, "limit": limit})
}

// HandleTask serves GET /admin/tasks/{id}.
func (h *Handlers) HandleTask(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET is allowed at /admin/tasks/{id}")
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/admin/tasks/"), "/")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "task id is required")
		return
	}
	task, err := h.repos.Tasks.Get(r.Context(), id)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// HandleControllers serves GET /admin/controllers: a paginated listing of
// hosted identifiers plus the matching total count, for operator
// dashboards. Accepts ?namespace=, ?limit= (default 50), ?offset=.
func (h *Handlers) HandleControllers(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET is allowed at /admin/controllers")
		return
	}

	q := r.URL.Query()
	namespace := q.Get("namespace")
	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	count, err := h.repos.Controllers.CountControllers(r.Context(), namespace)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	rows, err := h.repos.Controllers.GetControllers(r.Context(), namespace, limit, offset)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":       count,
		"controllers": rows,
		"limit":       limit,
		"offset":      offset,
	})
}
