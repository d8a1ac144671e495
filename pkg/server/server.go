// Copyright 2025 Certen Protocol
//
// Package server is the HTTP transport boundary: it decodes request
// bodies, calls into the coordinator/policy/resource/whois/tails packages,
// and maps their typed errors to status codes under one shared
// boundary-translation rule. Built around a handler-struct-plus-logger
// shape with shared writeJSON/writeError helpers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/coordinator"
	"github.com/didwebvh/webvh-hosting/pkg/database"
	"github.com/didwebvh/webvh-hosting/pkg/diproof"
	"github.com/didwebvh/webvh-hosting/pkg/docstate"
	"github.com/didwebvh/webvh-hosting/pkg/metrics"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
	"github.com/didwebvh/webvh-hosting/pkg/resource"
	"github.com/didwebvh/webvh-hosting/pkg/tails"
	"github.com/didwebvh/webvh-hosting/pkg/whois"
)

// Handlers holds every collaborator the HTTP surface dispatches into.
type Handlers struct {
	repos       *database.Repositories
	policy      *policy.Store
	coordinator *coordinator.Coordinator
	tails       *tails.Store
	metrics     *metrics.Metrics
	dbClient    *database.Client
	domain      string
	adminAPIKey string
	logger      *log.Logger
	now         func() time.Time
}

// New creates Handlers. A nil logger defaults to one writing to os.Stdout
// with the package's prefix. dbClient may be nil (health reporting then
// falls back to a repository ping, without schema-currency detail).
func New(repos *database.Repositories, store *policy.Store, coord *coordinator.Coordinator, tailsStore *tails.Store, m *metrics.Metrics, dbClient *database.Client, domain, adminAPIKey string, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(os.Stdout, "[server] ", log.LstdFlags)
	}
	return &Handlers{
		repos:       repos,
		policy:      store,
		coordinator: coord,
		tails:       tailsStore,
		metrics:     m,
		dbClient:    dbClient,
		domain:      domain,
		adminAPIKey: adminAPIKey,
		logger:      logger,
		now:         time.Now,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("error encoding response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

// writeTypedError maps err through errToStatus and writes the resulting
// status/code/message.
func (h *Handlers) writeTypedError(w http.ResponseWriter, err error) {
	status, code := errToStatus(err)
	if status >= 500 {
		h.logger.Printf("internal error: %v", err)
	}
	h.writeError(w, status, code, err.Error())
}

// errToStatus maps an error class to an HTTP status. Validation/crypto/
// state-machine errors -> 400; policy -> 400 or 403; AliasExists -> 409;
// NotFound -> 404; PayloadTooLarge -> 413; infrastructure -> 500.
func errToStatus(err error) (int, string) {
	switch {
	case errors.Is(err, database.ErrAliasExists):
		return http.StatusConflict, "AliasExists"
	case errors.Is(err, coordinator.ErrNamespaceReserved), errors.Is(err, policy.ErrAliasReserved):
		return http.StatusBadRequest, "AliasReserved"
	case errors.Is(err, policy.ErrPolicyForbidden):
		return http.StatusForbidden, "PolicyForbidden"
	case errors.Is(err, policy.ErrUnknownWitness):
		return http.StatusBadRequest, "UnknownWitness"
	case errors.Is(err, policy.ErrWitnessThresholdNotMet):
		return http.StatusBadRequest, "WitnessThresholdNotMet"
	case errors.Is(err, database.ErrControllerNotFound),
		errors.Is(err, database.ErrResourceNotFound),
		errors.Is(err, database.ErrPolicyNotFound),
		errors.Is(err, database.ErrRegistryNotFound),
		errors.Is(err, database.ErrTailsFileNotFound),
		errors.Is(err, database.ErrTaskNotFound),
		errors.Is(err, database.ErrNotFound),
		errors.Is(err, tails.ErrNotFound),
		errors.Is(err, resource.ErrIdentifierNotLive):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, tails.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "PayloadTooLarge"
	case errors.Is(err, tails.ErrMalformed), errors.Is(err, tails.ErrDigestMismatch):
		return http.StatusBadRequest, "DigestMismatch"
	case errors.Is(err, resource.ErrDigestMismatch):
		return http.StatusBadRequest, "DigestMismatch"
	case errors.Is(err, resource.ErrAuthorMismatch):
		return http.StatusBadRequest, "AuthorMismatch"
	case errors.Is(err, resource.ErrProofInvalid), errors.Is(err, whois.ErrProofInvalid),
		errors.Is(err, diproof.ErrProofInvalid), errors.Is(err, diproof.ErrSignatureInvalid),
		errors.Is(err, diproof.ErrKeyUnresolved), errors.Is(err, diproof.ErrProofExpired),
		errors.Is(err, coordinator.ErrEntryProofInvalid):
		return http.StatusBadRequest, "ProofInvalid"
	case errors.Is(err, whois.ErrHolderMismatch):
		return http.StatusBadRequest, "AuthorMismatch"
	case errors.Is(err, resource.ErrSchemaInvalid), errors.Is(err, whois.ErrSchemaInvalid),
		errors.Is(err, docstate.ErrSchemaInvalid):
		return http.StatusBadRequest, "SchemaInvalid"
	case errors.Is(err, docstate.ErrVersionIDMismatch):
		return http.StatusBadRequest, "VersionIdMismatch"
	case errors.Is(err, docstate.ErrTimestampNonMonotonic):
		return http.StatusBadRequest, "TimestampNonMonotonic"
	case errors.Is(err, docstate.ErrMultikeyInvalid):
		return http.StatusBadRequest, "MultikeyInvalid"
	case errors.Is(err, docstate.ErrKeyRotationInvalid):
		return http.StatusBadRequest, "KeyRotationInvalid"
	case errors.Is(err, docstate.ErrAlreadyDeactivated):
		return http.StatusBadRequest, "AlreadyDeactivated"
	case errors.Is(err, docstate.ErrParameterImmutable):
		return http.StatusBadRequest, "ParameterImmutable"
	case errors.Is(err, docstate.ErrMethodUnsupported):
		return http.StatusBadRequest, "MethodUnsupported"
	case errors.Is(err, resource.ErrWitnessRequired):
		return http.StatusBadRequest, "WitnessThresholdNotMet"
	default:
		return http.StatusInternalServerError, "RepositoryConflict"
	}
}

// repoDocumentProvider adapts database.Repositories to resource.DocumentProvider:
// attested-resource admission never trusts a caller-supplied copy of the DID
// document, only the most recently committed one.
type repoDocumentProvider struct {
	repos *database.Repositories
}

func (p repoDocumentProvider) CurrentDocument(ctx context.Context, did string) (map[string]interface{}, bool, error) {
	c, err := p.repos.Controllers.GetByDID(ctx, did)
	if err != nil {
		return nil, false, err
	}
	var document map[string]interface{}
	if err := json.Unmarshal(c.Document, &document); err != nil {
		return nil, false, err
	}
	return document, c.Deactivated, nil
}
