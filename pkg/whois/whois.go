// Copyright 2025 Certen Protocol
//
// Package whois admits WHOIS-style verifiable presentations: a
// presentation whose holder equals the DID and whose proof uses
// proofPurpose=authentication with a verification method drawn from the
// DID's current authentication set. Mirrors pkg/resource's admission
// shape (resolve the live document, check the proof against a named
// verification relationship), re-targeted from assertionMethod/content-
// digest to holder/authentication.
package whois

import (
	"context"
	"errors"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/diproof"
)

// Typed errors from the crypto/admission error taxonomy.
var (
	ErrSchemaInvalid  = errors.New("whois: schema invalid")
	ErrHolderMismatch = errors.New("whois: presentation holder does not match identifier")
	ErrProofInvalid   = errors.New("whois: no valid authentication proof")
)

// Admit verifies a verifiablePresentation against the DID's current
// document and returns it unchanged, ready to persist as the single
// latest WHOIS value for the identifier.
func Admit(ctx context.Context, did string, document map[string]interface{}, presentation map[string]interface{}, now time.Time) (map[string]interface{}, error) {
	holder, _ := presentation["holder"].(string)
	if holder == "" {
		return nil, ErrSchemaInvalid
	}
	if holder != did {
		return nil, ErrHolderMismatch
	}

	authMethods := diproof.VerificationMethodIDs(document, "authentication")
	allowed := make(map[string]bool, len(authMethods))
	for _, id := range authMethods {
		allowed[id] = true
	}

	resolver := diproof.DocumentKeyResolver{Document: document}
	proofs := diproof.Normalize(presentation)
	for _, proof := range proofs {
		vm, _ := proof["verificationMethod"].(string)
		if !allowed[vm] {
			continue
		}
		if err := diproof.Verify(ctx, presentation, proof, resolver, "authentication", now); err == nil {
			return presentation, nil
		}
	}
	return nil, ErrProofInvalid
}
