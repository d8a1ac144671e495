// Copyright 2025 Certen Protocol
package whois

import (
	"context"
	"testing"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
	"github.com/didwebvh/webvh-hosting/pkg/keys"
)

func signedPresentation(t *testing.T, kp *keys.KeyPair, did, vmID string) map[string]interface{} {
	t.Helper()
	presentation := map[string]interface{}{
		"type":   "VerifiablePresentation",
		"holder": did,
	}
	proof := map[string]interface{}{
		"type":               "DataIntegrityProof",
		"cryptosuite":        "eddsa-jcs-2022",
		"proofPurpose":       "authentication",
		"verificationMethod": vmID,
	}
	optsBytes, err := canonical.Canonicalize(proof)
	if err != nil {
		t.Fatalf("canonicalize opts: %v", err)
	}
	docBytes, err := canonical.Canonicalize(presentation)
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
	presentation["proof"] = proof
	return presentation
}

func TestAdmitAcceptsValidPresentation(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	did := "did:webvh:zExample:example.com:ns1:alias1"
	vmID := did + "#key-1"
	document := map[string]interface{}{
		"id":             did,
		"authentication": []interface{}{vmID},
		"verificationMethod": []interface{}{
			map[string]interface{}{"id": vmID, "publicKeyMultibase": kp.Multikey},
		},
	}
	presentation := signedPresentation(t, kp, did, vmID)

	out, err := Admit(context.Background(), did, document, presentation, time.Now())
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if out["holder"] != did {
		t.Fatalf("expected holder %q, got %v", did, out["holder"])
	}
}

func TestAdmitRejectsHolderMismatch(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	did := "did:webvh:zExample:example.com:ns1:alias1"
	vmID := did + "#key-1"
	document := map[string]interface{}{"id": did, "authentication": []interface{}{vmID}}
	presentation := signedPresentation(t, kp, "did:webvh:zOther:example.com:ns1:other", vmID)

	if _, err := Admit(context.Background(), did, document, presentation, time.Now()); err != ErrHolderMismatch {
		t.Fatalf("expected ErrHolderMismatch, got %v", err)
	}
}

func TestAdmitRejectsUnlistedVerificationMethod(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	did := "did:webvh:zExample:example.com:ns1:alias1"
	vmID := did + "#key-1"
	document := map[string]interface{}{"id": did, "authentication": []interface{}{}}
	presentation := signedPresentation(t, kp, did, vmID)

	if _, err := Admit(context.Background(), did, document, presentation, time.Now()); err != ErrProofInvalid {
		t.Fatalf("expected ErrProofInvalid, got %v", err)
	}
}
