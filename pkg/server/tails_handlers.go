// Copyright 2025 Certen Protocol
package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/didwebvh/webvh-hosting/pkg/tails"
)

// HandleTails serves GET/PUT /tails/hash/{h}.
func (h *Handlers) HandleTails(w http.ResponseWriter, r *http.Request) {
	digest := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/tails/hash/"), "/")
	if digest == "" {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "tails digest is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTails(w, r, digest)
	case http.MethodPut:
		h.putTails(w, r, digest)
	default:
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "only GET or PUT is allowed at /tails/hash/{h}")
	}
}

func (h *Handlers) getTails(w http.ResponseWriter, r *http.Request, digest string) {
	data, err := h.tails.Get(r.Context(), digest)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Printf("error writing tails bytes: %v", err)
	}
}

func (h *Handlers) putTails(w http.ResponseWriter, r *http.Request, digest string) {
	data, err := io.ReadAll(io.LimitReader(r.Body, tails.MaxSize+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "SchemaInvalid", "failed to read request body")
		return
	}
	if len(data) > tails.MaxSize {
		h.writeError(w, http.StatusRequestEntityTooLarge, "PayloadTooLarge", "tails upload exceeds 10 MiB")
		return
	}

	stored, err := h.tails.Put(r.Context(), digest, data)
	if err != nil {
		h.writeTypedError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.TailsBytesStored.Add(float64(len(data)))
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"digest": stored})
}
