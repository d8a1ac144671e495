// Copyright 2025 Certen Protocol
//
// Package resource implements attested-resource admission (C7): content
// digest verification, controller-proof verification against the DID's
// current assertionMethod set, an optional witness proof, and binding to a
// live, non-deactivated identifier. Admit checks the binding to the live
// identifier, then the content digest, then the controller proof;
// persisting the admitted resource is left to the caller.
package resource

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
	"github.com/didwebvh/webvh-hosting/pkg/diproof"
)

// Typed errors from the attested-resource error taxonomy.
var (
	ErrSchemaInvalid     = errors.New("resource: schema invalid")
	ErrDigestMismatch    = errors.New("resource: digest mismatch")
	ErrIdentifierNotLive = errors.New("resource: identifier not found or deactivated")
	ErrAuthorMismatch    = errors.New("resource: resource id does not match stored key")
	ErrProofInvalid      = errors.New("resource: no valid controller proof")
	ErrWitnessRequired   = errors.New("resource: witness proof required by policy")
)

// DocumentProvider resolves a DID to its most recently committed document
// and liveness, so resource admission never trusts a caller-supplied copy
// of the DID document.
type DocumentProvider interface {
	CurrentDocument(ctx context.Context, did string) (document map[string]interface{}, deactivated bool, err error)
}

// Resource is an admitted attested resource ready for persistence.
type Resource struct {
	ID           string
	DID          string
	Digest       string
	Content      interface{}
	ResourceID   string
	ResourceType string
	ResourceName string
	MediaType    string
	Raw          map[string]interface{}
}

// ParseResourceID splits an attested-resource id of the form
// "<did>/resources/<digest>" into its parts.
func ParseResourceID(id string) (did, digest string, err error) {
	const sep = "/resources/"
	idx := strings.LastIndex(id, sep)
	if idx < 0 {
		return "", "", ErrSchemaInvalid
	}
	return id[:idx], id[idx+len(sep):], nil
}

// Admit verifies attestedResource and returns the normalized
// Resource ready to persist. expectedDID is the identifier hosted under
// the request's (namespace, alias) target. hasWitnessProof is the
// caller's report of whether a witness proof accompanies the resource;
// Admit only enforces that one is reported when requireWitnessProof is
// set, and verifies no witness proof itself.
func Admit(ctx context.Context, expectedDID string, attestedResource map[string]interface{}, provider DocumentProvider, requireWitnessProof bool, hasWitnessProof bool, now time.Time) (*Resource, error) {
	id, _ := attestedResource["id"].(string)
	did, digest, err := ParseResourceID(id)
	if err != nil {
		return nil, err
	}
	if did != expectedDID {
		return nil, ErrIdentifierNotLive
	}

	document, deactivated, err := provider.CurrentDocument(ctx, did)
	if err != nil {
		return nil, ErrIdentifierNotLive
	}
	if deactivated {
		return nil, ErrIdentifierNotLive
	}

	content := attestedResource["content"]
	contentCanon, err := canonical.Canonicalize(content)
	if err != nil {
		return nil, ErrSchemaInvalid
	}
	expectedDigest, err := canonical.HashAndEncode(contentCanon)
	if err != nil {
		return nil, ErrSchemaInvalid
	}
	if digest != expectedDigest {
		return nil, ErrDigestMismatch
	}

	metadata, _ := attestedResource["metadata"].(map[string]interface{})
	resourceID, _ := metadata["resourceId"].(string)
	resourceType, _ := metadata["resourceType"].(string)
	resourceName, _ := metadata["resourceName"].(string)
	if resourceID != "" && resourceID != digest {
		return nil, ErrAuthorMismatch
	}

	assertionMethods := diproof.VerificationMethodIDs(document, "assertionMethod")
	allowed := make(map[string]bool, len(assertionMethods))
	for _, id := range assertionMethods {
		allowed[id] = true
	}

	resolver := diproof.DocumentKeyResolver{Document: document}
	proofs := diproof.Normalize(attestedResource)
	verified := false
	for _, proof := range proofs {
		vm, _ := proof["verificationMethod"].(string)
		if !allowed[vm] {
			continue
		}
		if err := diproof.Verify(ctx, attestedResource, proof, resolver, "assertionMethod", now); err == nil {
			verified = true
			break
		}
	}
	if !verified {
		return nil, ErrProofInvalid
	}

	if requireWitnessProof && !hasWitnessProof {
		return nil, ErrWitnessRequired
	}

	return &Resource{
		ID:           id,
		DID:          did,
		Digest:       digest,
		Content:      content,
		ResourceID:   digest,
		ResourceType: resourceType,
		ResourceName: resourceName,
		Raw:          attestedResource,
	}, nil
}
