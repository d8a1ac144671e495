// Copyright 2025 Certen Protocol
package server

import (
	"encoding/json"
	"net/http"

	"github.com/didwebvh/webvh-hosting/pkg/whois"
)

type whoisUploadBody struct {
	VerifiablePresentation map[string]interface{} `json:"verifiablePresentation"`
}

func (h *Handlers) handleWhoisUpload(w http.ResponseWriter, r *http.Request, namespace, alias string) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only POST is allowed at whois")
		return
	}

	var body whoisUploadBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VerifiablePresentation == nil {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "malformed request body")
		return
	}

	c, err := h.repos.Controllers.GetByAlias(r.Context(), namespace, alias)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	if c.Deactivated {
		h.writeError(w, http.StatusNotFound, "NotFound", "identifier is deactivated")
		return
	}
	var document map[string]interface{}
	if err := json.Unmarshal(c.Document, &document); err != nil {
		h.writeTypedError(w, err)
		return
	}

	admitted, err := whois.Admit(r.Context(), c.DID, document, body.VerifiablePresentation, h.now())
	if err != nil {
		h.writeTypedError(w, err)
		return
	}

	raw, err := json.Marshal(admitted)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	if err := h.repos.Controllers.SetWhois(r.Context(), c.DID, raw); err != nil {
		h.writeTypedError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, admitted)
}

func (h *Handlers) handleWhoisFetch(w http.ResponseWriter, r *http.Request, namespace, alias string) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET is allowed at whois.vp")
		return
	}
	c, err := h.repos.Controllers.GetByAlias(r.Context(), namespace, alias)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	if len(c.Whois) == 0 {
		h.writeError(w, http.StatusNotFound, "NotFound", "no whois presentation stored for this identifier")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(c.Whois); err != nil {
		h.logger.Printf("error writing whois.vp: %v", err)
	}
}
