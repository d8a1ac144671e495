package diproof

import (
	"context"
	"testing"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
	"github.com/didwebvh/webvh-hosting/pkg/keys"
)

func signedDocument(t *testing.T, kp *keys.KeyPair, purpose string) map[string]interface{} {
	t.Helper()
	document := map[string]interface{}{
		"id":    "did:webvh:example",
		"state": map[string]interface{}{"foo": "bar"},
	}
	proof := map[string]interface{}{
		"type":               ProofType,
		"cryptosuite":        Cryptosuite,
		"proofPurpose":       purpose,
		"verificationMethod": "did:key:" + kp.Multikey + "#" + kp.Multikey,
		"created":            "2026-01-01T00:00:00Z",
	}
	optsBytes, err := canonical.Canonicalize(proof)
	if err != nil {
		t.Fatalf("canonicalize proof options: %v", err)
	}
	docBytes, err := canonical.Canonicalize(document)
	if err != nil {
		t.Fatalf("canonicalize document: %v", err)
	}
	optsHash := canonical.SHA256(optsBytes)
	docHash := canonical.SHA256(docBytes)
	combined := append(append([]byte{}, optsHash...), docHash...)
	sig := keys.Sign(kp.Private, combined)
	proofValue, err := canonical.EncodeBase58btc(sig)
	if err != nil {
		t.Fatalf("encode proofValue: %v", err)
	}
	proof["proofValue"] = proofValue
	document["proof"] = proof
	return document
}

func TestVerifyValidProof(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	document := signedDocument(t, kp, "assertionMethod")
	proof := Normalize(document)[0]
	doc := documentWithoutProof(document)
	doc["proof"] = document["proof"]

	if err := Verify(context.Background(), doc, proof, nil, "assertionMethod", time.Now()); err != nil {
		t.Fatalf("expected valid proof, got %v", err)
	}
}

func TestVerifyRejectsWrongPurpose(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	document := signedDocument(t, kp, "assertionMethod")
	proof := Normalize(document)[0]

	err = Verify(context.Background(), document, proof, nil, "authentication", time.Now())
	if err != ErrProofInvalid {
		t.Fatalf("expected ErrProofInvalid, got %v", err)
	}
}

func TestVerifyRejectsTamperedDocument(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	document := signedDocument(t, kp, "assertionMethod")
	proof := Normalize(document)[0]
	document["state"] = map[string]interface{}{"foo": "tampered"}

	err = Verify(context.Background(), document, proof, nil, "assertionMethod", time.Now())
	if err != ErrSignatureInvalid {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestNormalizeSingleAndArrayForms(t *testing.T) {
	single := map[string]interface{}{"proof": map[string]interface{}{"type": ProofType}}
	if got := Normalize(single); len(got) != 1 {
		t.Fatalf("expected one proof from single form, got %d", len(got))
	}
	arr := map[string]interface{}{"proof": []interface{}{
		map[string]interface{}{"type": ProofType},
		map[string]interface{}{"type": ProofType},
	}}
	if got := Normalize(arr); len(got) != 2 {
		t.Fatalf("expected two proofs from array form, got %d", len(got))
	}
}
