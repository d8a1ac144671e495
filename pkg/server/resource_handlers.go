// Copyright 2025 Certen Protocol
package server

import (
	"encoding/json"
	"net/http"

	"github.com/didwebvh/webvh-hosting/pkg/database"
	"github.com/didwebvh/webvh-hosting/pkg/resource"
)

type resourceUploadBody struct {
	AttestedResource map[string]interface{} `json:"attestedResource"`
}

func (h *Handlers) handleResourceUpload(w http.ResponseWriter, r *http.Request, namespace, alias string) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only POST is allowed at resources")
		return
	}
	h.admitResource(w, r, namespace, alias, http.StatusCreated)
}

func (h *Handlers) handleResourceByDigest(w http.ResponseWriter, r *http.Request, namespace, alias, digest string) {
	switch r.Method {
	case http.MethodGet:
		h.fetchResource(w, r, namespace, alias, digest)
	case http.MethodPut:
		h.admitResource(w, r, namespace, alias, http.StatusOK)
	default:
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET or PUT is allowed at resources/{digest}")
	}
}

func (h *Handlers) admitResource(w http.ResponseWriter, r *http.Request, namespace, alias string, successStatus int) {
	var body resourceUploadBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AttestedResource == nil {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "malformed request body")
		return
	}

	c, err := h.repos.Controllers.GetByAlias(r.Context(), namespace, alias)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}

	provider := repoDocumentProvider{repos: h.repos}
	requireWitness := h.policy.Policy().Endorsement
	admitted, err := resource.Admit(r.Context(), c.DID, body.AttestedResource, provider, requireWitness, false, h.now())
	if err != nil {
		h.writeTypedError(w, err)
		return
	}

	raw, err := json.Marshal(admitted.Raw)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	if _, err := h.repos.Resources.Upsert(r.Context(), &database.NewResourceRecord{
		ID:           admitted.ID,
		DID:          admitted.DID,
		Digest:       admitted.Digest,
		ResourceType: admitted.ResourceType,
		ResourceName: admitted.ResourceName,
		Raw:          raw,
	}); err != nil {
		h.writeTypedError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ResourcesTotal.Inc()
	}

	h.writeJSON(w, successStatus, admitted.Raw)
}

func (h *Handlers) fetchResource(w http.ResponseWriter, r *http.Request, namespace, alias, digest string) {
	c, err := h.repos.Controllers.GetByAlias(r.Context(), namespace, alias)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	res, err := h.repos.Resources.GetByID(r.Context(), c.DID+"/resources/"+digest)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Raw); err != nil {
		h.logger.Printf("error writing resource: %v", err)
	}
}
