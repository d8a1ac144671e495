package resource

import (
	"context"
	"testing"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
	"github.com/didwebvh/webvh-hosting/pkg/diproof"
	"github.com/didwebvh/webvh-hosting/pkg/keys"
)

type fakeProvider struct {
	document    map[string]interface{}
	deactivated bool
	err         error
}

func (f *fakeProvider) CurrentDocument(_ context.Context, _ string) (map[string]interface{}, bool, error) {
	return f.document, f.deactivated, f.err
}

func buildResourceFixture(t *testing.T, did string, content interface{}) (map[string]interface{}, map[string]interface{}) {
	t.Helper()
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	vmID := did + "#key-1"
	document := map[string]interface{}{
		"id": did,
		"verificationMethod": []interface{}{
			map[string]interface{}{"id": vmID, "publicKeyMultibase": kp.Multikey},
		},
		"assertionMethod": []interface{}{vmID},
	}

	contentCanon, err := canonical.Canonicalize(content)
	if err != nil {
		t.Fatalf("canonicalize content: %v", err)
	}
	digest, err := canonical.HashAndEncode(contentCanon)
	if err != nil {
		t.Fatalf("HashAndEncode: %v", err)
	}

	attested := map[string]interface{}{
		"id":      did + "/resources/" + digest,
		"content": content,
		"metadata": map[string]interface{}{
			"resourceId":   digest,
			"resourceType": "schema",
		},
	}
	proof := map[string]interface{}{
		"type":               diproof.ProofType,
		"cryptosuite":        diproof.Cryptosuite,
		"proofPurpose":       "assertionMethod",
		"verificationMethod": vmID,
	}
	optsBytes, err := canonical.Canonicalize(proof)
	if err != nil {
		t.Fatalf("canonicalize proof: %v", err)
	}
	docBytes, err := canonical.Canonicalize(attested)
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
	attested["proof"] = proof

	return attested, document
}

func TestAdmitValidResource(t *testing.T) {
	did := "did:webvh:zABC:example.com:ns1:alias1"
	attested, document := buildResourceFixture(t, did, map[string]interface{}{"n": float64(1)})
	provider := &fakeProvider{document: document}

	res, err := Admit(context.Background(), did, attested, provider, false, false, time.Now())
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if res.DID != did {
		t.Fatalf("expected did %q, got %q", did, res.DID)
	}
}

func TestAdmitRejectsDigestMismatch(t *testing.T) {
	did := "did:webvh:zABC:example.com:ns1:alias1"
	attested, document := buildResourceFixture(t, did, map[string]interface{}{"n": float64(1)})
	attested["content"] = map[string]interface{}{"n": float64(2)}
	provider := &fakeProvider{document: document}

	if _, err := Admit(context.Background(), did, attested, provider, false, false, time.Now()); err != ErrDigestMismatch {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}

func TestAdmitRejectsDeactivatedIdentifier(t *testing.T) {
	did := "did:webvh:zABC:example.com:ns1:alias1"
	attested, document := buildResourceFixture(t, did, map[string]interface{}{"n": float64(1)})
	provider := &fakeProvider{document: document, deactivated: true}

	if _, err := Admit(context.Background(), did, attested, provider, false, false, time.Now()); err != ErrIdentifierNotLive {
		t.Fatalf("expected ErrIdentifierNotLive, got %v", err)
	}
}

func TestAdmitRequiresWitnessWhenPolicyDemands(t *testing.T) {
	did := "did:webvh:zABC:example.com:ns1:alias1"
	attested, document := buildResourceFixture(t, did, map[string]interface{}{"n": float64(1)})
	provider := &fakeProvider{document: document}

	if _, err := Admit(context.Background(), did, attested, provider, true, false, time.Now()); err != ErrWitnessRequired {
		t.Fatalf("expected ErrWitnessRequired, got %v", err)
	}
}

func TestParseResourceID(t *testing.T) {
	did, digest, err := ParseResourceID("did:webvh:zABC:example.com:ns1:alias1/resources/zDigest")
	if err != nil {
		t.Fatalf("ParseResourceID: %v", err)
	}
	if did != "did:webvh:zABC:example.com:ns1:alias1" || digest != "zDigest" {
		t.Fatalf("unexpected parse result: did=%q digest=%q", did, digest)
	}
}
