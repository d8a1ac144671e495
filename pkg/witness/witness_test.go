package witness

import (
	"testing"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
	"github.com/didwebvh/webvh-hosting/pkg/docstate"
	"github.com/didwebvh/webvh-hosting/pkg/keys"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
)

func signWitnessProof(t *testing.T, kp *keys.KeyPair, versionID string) map[string]interface{} {
	t.Helper()
	did := "did:key:" + kp.Multikey
	proof := map[string]interface{}{
		"type":               diproofType,
		"cryptosuite":        diproofSuite,
		"proofPurpose":       "assertionMethod",
		"verificationMethod": did + "#" + kp.Multikey,
	}
	doc := map[string]interface{}{"versionId": versionID}
	optsBytes, err := canonical.Canonicalize(proof)
	if err != nil {
		t.Fatalf("canonicalize opts: %v", err)
	}
	docBytes, err := canonical.Canonicalize(doc)
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
	return proof
}

const (
	diproofType  = "DataIntegrityProof"
	diproofSuite = "eddsa-jcs-2022"
)

func TestCheckThresholdMeetsDefaultWeight(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	did := "did:key:" + kp.Multikey
	versionID := "1-zSomeHash"
	proof := signWitnessProof(t, kp, versionID)

	rule := &docstate.WitnessParam{Threshold: 1, Witnesses: []docstate.Witness{{ID: did}}}
	registry := &policy.WitnessRegistry{Entries: map[string]policy.KnownWitness{did: {}}}
	sig := &policy.WitnessSignature{VersionID: versionID, Proofs: []map[string]interface{}{proof}}

	c := &Checker{Now: func() time.Time { return time.Now() }}
	if err := c.CheckThreshold(rule, versionID, sig, registry, true); err != nil {
		t.Fatalf("expected threshold met, got %v", err)
	}
}

func TestCheckThresholdRejectsUnmetThreshold(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	did := "did:key:" + kp.Multikey
	versionID := "1-zSomeHash"
	proof := signWitnessProof(t, kp, versionID)

	rule := &docstate.WitnessParam{Threshold: 2, Witnesses: []docstate.Witness{{ID: did}}}
	registry := &policy.WitnessRegistry{Entries: map[string]policy.KnownWitness{did: {}}}
	sig := &policy.WitnessSignature{VersionID: versionID, Proofs: []map[string]interface{}{proof}}

	c := NewChecker()
	if err := c.CheckThreshold(rule, versionID, sig, registry, true); err != policy.ErrWitnessThresholdNotMet {
		t.Fatalf("expected ErrWitnessThresholdNotMet, got %v", err)
	}
}

func TestCheckThresholdDropsUnknownWitnessProof(t *testing.T) {
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	did := "did:key:" + kp.Multikey
	versionID := "1-zSomeHash"
	proof := signWitnessProof(t, kp, versionID)

	rule := &docstate.WitnessParam{Threshold: 1, Witnesses: []docstate.Witness{{ID: did}}}
	registry := &policy.WitnessRegistry{Entries: map[string]policy.KnownWitness{}} // not registered
	sig := &policy.WitnessSignature{VersionID: versionID, Proofs: []map[string]interface{}{proof}}

	c := NewChecker()
	if err := c.CheckThreshold(rule, versionID, sig, registry, true); err != policy.ErrWitnessThresholdNotMet {
		t.Fatalf("expected threshold not met after dropping unknown witness, got %v", err)
	}
}

func TestCheckThresholdRejectsVersionIDMismatch(t *testing.T) {
	rule := &docstate.WitnessParam{Threshold: 1}
	sig := &policy.WitnessSignature{VersionID: "1-other"}
	c := NewChecker()
	if err := c.CheckThreshold(rule, "1-expected", sig, nil, true); err != ErrWitnessVersionIDMismatch {
		t.Fatalf("expected ErrWitnessVersionIDMismatch, got %v", err)
	}
}
