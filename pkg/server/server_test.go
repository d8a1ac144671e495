// Copyright 2025 Certen Protocol
//
// Unit tests for the HTTP surface. Method-validation tests run without a
// database; the full create/read lifecycle test requires one and is
// skipped otherwise.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
	"github.com/didwebvh/webvh-hosting/pkg/config"
	"github.com/didwebvh/webvh-hosting/pkg/coordinator"
	"github.com/didwebvh/webvh-hosting/pkg/database"
	"github.com/didwebvh/webvh-hosting/pkg/docstate"
	"github.com/didwebvh/webvh-hosting/pkg/keys"
	"github.com/didwebvh/webvh-hosting/pkg/metrics"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
	"github.com/didwebvh/webvh-hosting/pkg/tails"
	"github.com/didwebvh/webvh-hosting/pkg/witness"
	"github.com/prometheus/client_golang/prometheus"
)

func TestHandleRootRejectsEmptyTemplateQuery(t *testing.T) {
	h := New(nil, policy.NewStore(&policy.Policy{}, &policy.WitnessRegistry{Entries: map[string]policy.KnownWitness{}}), nil, nil, nil, nil, "example.com", "", nil)
	req := httptest.NewRequest(http.MethodGet, "/?namespace=&alias=", nil)
	rr := httptest.NewRecorder()

	h.HandleRoot(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleTailsRejectsUnsupportedMethod(t *testing.T) {
	h := New(nil, nil, nil, tails.New(nil), nil, nil, "example.com", "", nil)
	req := httptest.NewRequest(http.MethodDelete, "/tails/hash/zSomeDigest", nil)
	rr := httptest.NewRecorder()

	h.HandleTails(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandlePolicyRejectsMissingAdminKey(t *testing.T) {
	store := policy.NewStore(&policy.Policy{}, &policy.WitnessRegistry{Entries: map[string]policy.KnownWitness{}})
	h := New(nil, store, nil, nil, nil, nil, "example.com", "super-secret-key", nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/policy", nil)
	rr := httptest.NewRecorder()

	h.HandlePolicy(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func newTestServer(t *testing.T) (*Handlers, *database.Repositories) {
	t.Helper()
	dsn := os.Getenv("WEBVH_TEST_DB")
	if dsn == "" {
		t.Skip("Test database not configured")
	}
	cfg := &config.Config{DatabaseURL: dsn, DatabaseMaxConns: 5, DatabaseMinConns: 1, DatabaseMaxIdleTime: 300, DatabaseMaxLifetime: 3600}
	client, err := database.NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	if err := client.MigrateUp(context.Background()); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	repos := database.NewRepositories(client)
	store := policy.NewStore(&policy.Policy{Version: "1.0"}, &policy.WitnessRegistry{Entries: map[string]policy.KnownWitness{}})
	m := metrics.New(prometheus.NewRegistry())
	coord := coordinator.New(coordinator.Dependencies{
		Repos:          repos,
		PolicyStore:    store,
		WitnessChecker: witness.NewChecker(),
		Metrics:        m,
	})
	return New(repos, store, coord, tails.New(repos.Tails), m, client, "example.com", "test-admin-key-0123456789", nil), repos
}

func signTestEntry(t *testing.T, kp *keys.KeyPair, entry docstate.LogEntry) docstate.LogEntry {
	t.Helper()
	document := map[string]interface{}{
		"versionId":   entry.VersionID,
		"versionTime": entry.VersionTime,
		"parameters":  entry.Parameters,
		"state":       entry.State,
	}
	did := "did:key:" + kp.Multikey
	proof := map[string]interface{}{
		"type":               "DataIntegrityProof",
		"cryptosuite":        "eddsa-jcs-2022",
		"proofPurpose":       "authentication",
		"verificationMethod": did + "#" + kp.Multikey,
	}
	optsBytes, err := canonical.Canonicalize(proof)
	if err != nil {
		t.Fatalf("canonicalize opts: %v", err)
	}
	docBytes, err := canonical.Canonicalize(document)
	if err != nil {
		t.Fatalf("canonicalize doc: %v", err)
	}
	optsHash := canonical.SHA256(optsBytes)
	docHash := canonical.SHA256(docBytes)
	combined := append(append([]byte{}, optsHash...), docHash...)
	sig := keys.Sign(kp.Private, combined)
	pv, err := canonical.EncodeBase58btc(sig)
	if err != nil {
		t.Fatalf("encode proofValue: %v", err)
	}
	proof["proofValue"] = pv
	entry.Proof = proof
	return entry
}

func buildTestEntry1(t *testing.T, kp *keys.KeyPair, alias string) docstate.LogEntry {
	t.Helper()
	params := map[string]interface{}{
		"method":     "did:webvh:1.0",
		"scid":       docstate.SCIDPlaceholder,
		"updateKeys": []interface{}{kp.Multikey},
	}
	state := map[string]interface{}{"id": "did:webvh:" + docstate.SCIDPlaceholder + ":example.com:ns1:" + alias}
	versionTime := time.Now().UTC().Format(time.RFC3339)

	draftDoc := map[string]interface{}{"versionId": docstate.SCIDPlaceholder, "versionTime": versionTime, "parameters": params, "state": state}
	draftCanon, err := canonical.Canonicalize(draftDoc)
	if err != nil {
		t.Fatalf("canonicalize draft: %v", err)
	}
	mh, err := canonical.MultihashSHA256(draftCanon)
	if err != nil {
		t.Fatalf("multihash: %v", err)
	}
	scidEncoded, err := canonical.EncodeBase58btc(mh)
	if err != nil {
		t.Fatalf("encode scid: %v", err)
	}
	scid, err := canonical.StripMultibasePrefix(scidEncoded)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}

	params["scid"] = scid
	state["id"] = "did:webvh:" + scid + ":example.com:ns1:" + alias
	substituted := map[string]interface{}{"versionId": scid, "versionTime": versionTime, "parameters": params, "state": state}
	subCanon, err := canonical.Canonicalize(substituted)
	if err != nil {
		t.Fatalf("canonicalize substituted: %v", err)
	}
	entryHash, err := canonical.HashAndEncode(subCanon)
	if err != nil {
		t.Fatalf("hash and encode: %v", err)
	}

	entry := docstate.LogEntry{VersionID: "1-" + entryHash, VersionTime: versionTime, Parameters: params, State: state}
	return signTestEntry(t, kp, entry)
}

func TestCreateAndFetchIdentifier(t *testing.T) {
	h, _ := newTestServer(t)
	mux := h.NewMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	alias := "alias-" + time.Now().Format("150405.000000000")
	entry := buildTestEntry1(t, kp, alias)

	body, err := json.Marshal(mutationRequestBody{LogEntry: entry})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(srv.URL+"/ns1/"+alias, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	docResp, err := http.Get(srv.URL + "/ns1/" + alias + "/did.json")
	if err != nil {
		t.Fatalf("GET did.json: %v", err)
	}
	defer docResp.Body.Close()
	if docResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", docResp.StatusCode)
	}
}
