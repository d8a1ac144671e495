// Copyright 2025 Certen Protocol
//
// Package witness implements the witness-threshold validator (C6):
// checking a witnessSignature's proofs against a prior state's witness
// rule and the known-witness registry. Proof verification itself is
// delegated to pkg/diproof; this package only does registry membership
// and weight arithmetic.
package witness

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/diproof"
	"github.com/didwebvh/webvh-hosting/pkg/docstate"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
)

// Typed errors from the policy error taxonomy, raised here instead of in
// pkg/policy so the arithmetic that produces them stays next to the
// threshold logic.
var (
	ErrWitnessSignatureInvalid = errors.New("witness: signature invalid")
	ErrWitnessVersionIDMismatch = errors.New("witness: witnessSignature.versionId does not match postState.versionId")
)

// Checker implements policy.WitnessChecker.
type Checker struct {
	Now func() time.Time
}

// NewChecker creates a witness Checker using the real clock.
func NewChecker() *Checker {
	return &Checker{Now: time.Now}
}

func (c *Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// witnessDocument is the trivial "document" over which a did:key
// witness proof is verified: the document is simply the signed versionId,
// wrapped so pkg/diproof's generic document/proof shape applies.
func witnessDocument(versionID string, proof map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"versionId": versionID,
		"proof":     proof,
	}
}

// witnessDID extracts the did:key subject (without fragment) from a
// verificationMethod of the expected form did:key:MK#MK.
func witnessDID(verificationMethod string) string {
	idx := strings.IndexByte(verificationMethod, '#')
	if idx < 0 {
		return verificationMethod
	}
	return verificationMethod[:idx]
}

// CheckThreshold verifies sig.VersionID matches versionID, then verifies
// each proof, drops proofs from witnesses outside the registry when
// strict, sums the weight of surviving proofs whose DID is declared in
// rule.Witnesses, and requires the sum to meet rule.Threshold.
func (c *Checker) CheckThreshold(rule *docstate.WitnessParam, versionID string, sig *policy.WitnessSignature, registry *policy.WitnessRegistry, strict bool) error {
	if rule == nil {
		return nil
	}
	if sig == nil {
		return ErrWitnessSignatureInvalid
	}
	if sig.VersionID != versionID {
		return ErrWitnessVersionIDMismatch
	}

	declaredWeight := make(map[string]int, len(rule.Witnesses))
	for _, w := range rule.Witnesses {
		declaredWeight[w.ID] = w.WeightOrDefault()
	}

	sum := 0
	ctx := context.Background()
	for _, proof := range sig.Proofs {
		vm, _ := proof["verificationMethod"].(string)
		did := witnessDID(vm)
		if strict && !registry.Contains(did) {
			continue
		}
		doc := witnessDocument(versionID, proof)
		if err := diproof.Verify(ctx, doc, proof, nil, "assertionMethod", c.now()); err != nil {
			continue
		}
		weight, declared := declaredWeight[did]
		if !declared {
			continue
		}
		sum += weight
	}

	if rule.SelfWeight != nil {
		sum += *rule.SelfWeight
	}

	if sum < rule.Threshold {
		return policy.ErrWitnessThresholdNotMet
	}
	return nil
}
