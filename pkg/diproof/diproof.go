// Copyright 2025 Certen Protocol
//
// Package diproof verifies DataIntegrityProof objects using the
// eddsa-jcs-2022 cryptosuite: an Ed25519 signature over the concatenation
// of two SHA-256 digests, one over the canonicalized proof options and one
// over the canonicalized target document.
package diproof

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
	"github.com/didwebvh/webvh-hosting/pkg/keys"
)

const (
	// ProofType is the only proof type this verifier accepts.
	ProofType = "DataIntegrityProof"
	// Cryptosuite is the only cryptosuite this verifier accepts.
	Cryptosuite = "eddsa-jcs-2022"
)

// Typed errors, mapped to HTTP status by the server boundary — components
// never wrap or reinterpret these, they propagate as-is.
var (
	ErrProofInvalid     = errors.New("diproof: proof type, cryptosuite, or purpose invalid")
	ErrProofExpired      = errors.New("diproof: proof has expired")
	ErrSignatureInvalid  = errors.New("diproof: signature mismatch")
	ErrKeyUnresolved     = errors.New("diproof: verification method could not be resolved")
)

// KeyResolver dereferences a verificationMethod id that is not a bare
// did:key to the multikey of the controlling key, normally by looking the
// fragment up in the most recent DID document of the referenced subject.
type KeyResolver interface {
	ResolveVerificationMethod(ctx context.Context, verificationMethodID string) (multikey string, err error)
}

// Proof is the minimal, dynamically-typed view of a DataIntegrityProof
// object this package needs. Unknown fields are preserved in Raw so that
// proof options can be canonicalized byte-for-byte.
type Proof struct {
	Raw map[string]interface{}
}

// NewProof wraps a raw proof object.
func NewProof(raw map[string]interface{}) Proof {
	return Proof{Raw: raw}
}

func (p Proof) str(key string) string {
	v, _ := p.Raw[key].(string)
	return v
}

// VerificationMethod returns the proof's verificationMethod id.
func (p Proof) VerificationMethod() string { return p.str("verificationMethod") }

// ProofPurpose returns the proof's declared purpose.
func (p Proof) ProofPurpose() string { return p.str("proofPurpose") }

// Normalize returns doc's "proof" member as a slice, regardless of whether
// the document stored a single proof object or an array of them — per the
// normalization rule, the internal form is always an array.
func Normalize(doc map[string]interface{}) []map[string]interface{} {
	raw, ok := doc["proof"]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]interface{}:
		return []map[string]interface{}{v}
	default:
		return nil
	}
}

// documentWithoutProof returns a shallow copy of doc with the "proof"
// member removed, as required for the document half of the signed message.
func documentWithoutProof(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == "proof" {
			continue
		}
		out[k] = v
	}
	return out
}

// proofOptions returns a shallow copy of proof with "proofValue" removed.
func proofOptions(proof map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(proof))
	for k, v := range proof {
		if k == "proofValue" {
			continue
		}
		out[k] = v
	}
	return out
}

// resolveMultikey extracts the signing multikey for a verificationMethod
// id. For did:key verifiers the fragment after '#' is itself the multikey;
// otherwise the resolver dereferences it in the referenced DID document.
func resolveMultikey(ctx context.Context, vm string, resolver KeyResolver) (string, error) {
	if strings.HasPrefix(vm, "did:key:") {
		idx := strings.IndexByte(vm, '#')
		if idx < 0 || idx+1 >= len(vm) {
			return "", ErrKeyUnresolved
		}
		fragment := vm[idx+1:]
		if !canonical.ValidMultikeyForm(fragment) {
			return "", ErrKeyUnresolved
		}
		return fragment, nil
	}
	if resolver == nil {
		return "", ErrKeyUnresolved
	}
	mk, err := resolver.ResolveVerificationMethod(ctx, vm)
	if err != nil || mk == "" {
		return "", ErrKeyUnresolved
	}
	return mk, nil
}

// Verify checks a single DataIntegrityProof object against document. If
// purpose is non-empty, the proof's declared proofPurpose must match it.
// now is the instant used to evaluate proof.expires.
func Verify(ctx context.Context, document map[string]interface{}, proof map[string]interface{}, resolver KeyResolver, purpose string, now time.Time) error {
	p := NewProof(proof)

	if p.str("type") != ProofType || p.str("cryptosuite") != Cryptosuite {
		return ErrProofInvalid
	}
	if purpose != "" && p.ProofPurpose() != purpose {
		return ErrProofInvalid
	}
	if expires := p.str("expires"); expires != "" {
		t, err := time.Parse(time.RFC3339, expires)
		if err == nil && now.After(t) {
			return ErrProofExpired
		}
	}

	proofValue := p.str("proofValue")
	if proofValue == "" {
		return ErrProofInvalid
	}
	sig, err := canonical.DecodeBase58btc(proofValue)
	if err != nil || len(sig) != 64 {
		return ErrSignatureInvalid
	}

	optsBytes, err := canonical.Canonicalize(proofOptions(proof))
	if err != nil {
		return ErrProofInvalid
	}
	docBytes, err := canonical.Canonicalize(documentWithoutProof(document))
	if err != nil {
		return ErrProofInvalid
	}
	optsHash := canonical.SHA256(optsBytes)
	docHash := canonical.SHA256(docBytes)
	combined := append(append([]byte{}, optsHash...), docHash...)

	vm := p.VerificationMethod()
	if vm == "" {
		return ErrKeyUnresolved
	}
	multikey, err := resolveMultikey(ctx, vm, resolver)
	if err != nil {
		return err
	}

	ok, err := keys.Verify(multikey, combined, sig)
	if err != nil {
		return ErrSignatureInvalid
	}
	if !ok {
		return ErrSignatureInvalid
	}
	return nil
}

// DocumentKeyResolver resolves a verificationMethod id by looking it up
// in a single DID document's embedded "verificationMethod" array — a
// plain map lookup against the current document, no external fetch.
type DocumentKeyResolver struct {
	Document map[string]interface{}
}

// ResolveVerificationMethod implements KeyResolver.
func (r DocumentKeyResolver) ResolveVerificationMethod(_ context.Context, vmID string) (string, error) {
	vms, _ := r.Document["verificationMethod"].([]interface{})
	for _, item := range vms {
		vm, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := vm["id"].(string)
		if id != vmID {
			continue
		}
		if mk, ok := vm["publicKeyMultibase"].(string); ok && mk != "" {
			return mk, nil
		}
	}
	return "", ErrKeyUnresolved
}

// VerificationMethodIDs returns the string ids listed under fieldName
// (e.g. "assertionMethod", "authentication") in a DID document, whether
// they are embedded objects or bare string references.
func VerificationMethodIDs(document map[string]interface{}, fieldName string) []string {
	raw, _ := document[fieldName].([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]interface{}:
			if id, ok := v["id"].(string); ok {
				out = append(out, id)
			}
		}
	}
	return out
}

// VerifyAny verifies that at least one of proofs is valid, returning the
// first valid proof's verification method id. It is used wherever the
// spec only requires "at least one proof" (resources, WHOIS).
func VerifyAny(ctx context.Context, document map[string]interface{}, proofs []map[string]interface{}, resolver KeyResolver, purpose string, now time.Time) (string, error) {
	var lastErr error = ErrProofInvalid
	for _, proof := range proofs {
		if err := Verify(ctx, document, proof, resolver, purpose, now); err != nil {
			lastErr = err
			continue
		}
		return NewProof(proof).VerificationMethod(), nil
	}
	return "", lastErr
}
