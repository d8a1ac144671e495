// Copyright 2025 Certen Protocol
//
// Controller handlers serve the identifier lifecycle endpoints: the
// creation template, create/append, and the did.jsonl/did.json reads.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/coordinator"
	"github.com/didwebvh/webvh-hosting/pkg/database"
	"github.com/didwebvh/webvh-hosting/pkg/docstate"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
)

// HandleRoot serves GET /?namespace=&alias= (the creation template) and is
// the catch-all entry point for every other per-identifier route, since
// namespace/alias are caller-chosen path segments that precede any fixed
// suffix.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	if path == "" {
		h.handleCreationTemplate(w, r)
		return
	}

	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		h.writeError(w, http.StatusNotFound, "NotFound", "identifier path requires a namespace and alias")
		return
	}
	namespace, alias := segments[0], segments[1]

	switch {
	case len(segments) == 2:
		h.handleMutation(w, r, namespace, alias)
	case len(segments) == 3 && segments[2] == "did.jsonl":
		h.handleDIDLog(w, r, namespace, alias)
	case len(segments) == 3 && segments[2] == "did.json":
		h.handleDIDDocument(w, r, namespace, alias)
	case len(segments) == 3 && segments[2] == "whois":
		h.handleWhoisUpload(w, r, namespace, alias)
	case len(segments) == 3 && segments[2] == "whois.vp":
		h.handleWhoisFetch(w, r, namespace, alias)
	case len(segments) == 3 && segments[2] == "resources":
		h.handleResourceUpload(w, r, namespace, alias)
	case len(segments) == 4 && segments[2] == "resources":
		h.handleResourceByDigest(w, r, namespace, alias, segments[3])
	default:
		h.writeError(w, http.StatusNotFound, "NotFound", "no route for this path")
	}
}

func (h *Handlers) handleCreationTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET is allowed at /")
		return
	}
	namespace := r.URL.Query().Get("namespace")
	alias := r.URL.Query().Get("alias")
	if namespace == "" || alias == "" {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "namespace and alias query parameters are required")
		return
	}

	active := h.policy.Policy()
	if active.IsReservedNamespace(namespace) {
		h.writeError(w, http.StatusBadRequest, "AliasReserved", "namespace is reserved")
		return
	}
	if _, err := h.repos.Controllers.GetByAlias(r.Context(), namespace, alias); err == nil {
		h.writeError(w, http.StatusConflict, "AliasExists", "namespace/alias already hosts an identifier")
		return
	} else if err != database.ErrControllerNotFound {
		h.writeTypedError(w, err)
		return
	}

	id := "did:webvh:" + docstate.SCIDPlaceholder + ":" + h.domain + ":" + namespace + ":" + alias
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"versionId":   docstate.SCIDPlaceholder,
		"versionTime": h.now().UTC().Format(time.RFC3339),
		"parameters":  active.ParametersSkeleton(h.policy.Registry()),
		"state":       map[string]interface{}{"id": id},
		"proof":       nil,
	})
}

// mutationRequestBody is the wire shape of a POST /{ns}/{alias} body.
type mutationRequestBody struct {
	LogEntry         docstate.LogEntry     `json:"logEntry"`
	WitnessSignature *witnessSignatureWire `json:"witnessSignature,omitempty"`
}

// witnessSignatureWire is the wire shape of a witnessSignature member.
type witnessSignatureWire struct {
	VersionID string                   `json:"versionId"`
	Proof     []map[string]interface{} `json:"proof"`
}

func (w *witnessSignatureWire) toDomain() *policy.WitnessSignature {
	if w == nil {
		return nil
	}
	return &policy.WitnessSignature{VersionID: w.VersionID, Proofs: w.Proof}
}

func (h *Handlers) handleMutation(w http.ResponseWriter, r *http.Request, namespace, alias string) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only POST is allowed at /{namespace}/{alias}")
		return
	}

	var body mutationRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "malformed request body")
		return
	}

	result, err := h.coordinator.Mutate(r.Context(), namespace, alias, coordinator.MutationRequest{
		Entry:            body.LogEntry,
		WitnessSignature: body.WitnessSignature.toDomain(),
	})
	if err != nil {
		h.writeTypedError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, body.LogEntry)
}

func (h *Handlers) handleDIDLog(w http.ResponseWriter, r *http.Request, namespace, alias string) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET is allowed at did.jsonl")
		return
	}
	c, err := h.repos.Controllers.GetByAlias(r.Context(), namespace, alias)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}

	var entries []docstate.LogEntry
	if err := json.Unmarshal(c.Log, &entries); err != nil {
		h.writeTypedError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/jsonl")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			h.logger.Printf("error encoding did.jsonl line: %v", err)
			return
		}
	}
}

func (h *Handlers) handleDIDDocument(w http.ResponseWriter, r *http.Request, namespace, alias string) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET is allowed at did.json")
		return
	}
	c, err := h.repos.Controllers.GetByAlias(r.Context(), namespace, alias)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(c.Document); err != nil {
		h.logger.Printf("error writing did.json: %v", err)
	}
}
