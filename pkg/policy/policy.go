// Copyright 2025 Certen Protocol
//
// Package policy holds the process-wide active policy and known-witness
// registry as immutable snapshots published behind an atomic pointer, and
// implements the admission gates that decide whether a candidate mutation
// may be committed.
package policy

import (
	"errors"
	"sync/atomic"

	"github.com/didwebvh/webvh-hosting/pkg/docstate"
)

// Typed errors from the policy/admission error taxonomy.
var (
	ErrUnknownWitness        = errors.New("policy: witness not in known-witness registry")
	ErrWitnessThresholdNotMet = errors.New("policy: witness signature threshold not met")
	ErrPolicyForbidden       = errors.New("policy: mutation forbidden by active policy")
	ErrAliasReserved         = errors.New("policy: namespace is reserved")
)

// defaultReservedNamespaces is the fixed set of namespaces controller-
// facing paths may never inhabit.
var defaultReservedNamespaces = map[string]bool{
	"api":          true,
	"admin":        true,
	".well-known":  true,
	"static":       true,
	"tails":        true,
}

// KnownWitness is one entry of the known-witness registry, keyed by
// did:key:<multikey>.
type KnownWitness struct {
	Name            string `json:"name,omitempty"`
	ServiceEndpoint string `json:"serviceEndpoint,omitempty"`
}

// RegistryMeta tracks provenance timestamps for the known-witness
// registry document, recovered from the original Python service's model.
type RegistryMeta struct {
	Created string `json:"created"`
	Updated string `json:"updated"`
}

// WitnessRegistry is the process-wide known-witness registry.
type WitnessRegistry struct {
	Meta     RegistryMeta
	Entries  map[string]KnownWitness // did:key:<multikey> -> entry
}

// Contains reports whether did is a known witness.
func (r *WitnessRegistry) Contains(did string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Entries[did]
	return ok
}

// Policy is the process-wide active policy record.
type Policy struct {
	Version            string          `json:"version"`
	WitnessRequired    bool            `json:"witnessRequired"`
	Watcher            string          `json:"watcher,omitempty"`
	Portability        bool            `json:"portability"`
	Prerotation        bool            `json:"prerotation"`
	Endorsement        bool            `json:"endorsement"`
	Validity           int             `json:"validity"`
	WitnessRegistryURL string          `json:"witnessRegistryUrl,omitempty"`
	ReservedNamespaces map[string]bool `json:"-"`
}

// snapshot bundles a policy with its companion registry so both publish
// atomically together.
type snapshot struct {
	policy   *Policy
	registry *WitnessRegistry
}

// Store is the atomic holder for the current policy/registry snapshot.
type Store struct {
	ptr atomic.Pointer[snapshot]
}

// NewStore creates a Store published with an initial policy and registry.
func NewStore(p *Policy, r *WitnessRegistry) *Store {
	if p.ReservedNamespaces == nil {
		p.ReservedNamespaces = defaultReservedNamespaces
	}
	s := &Store{}
	s.ptr.Store(&snapshot{policy: p, registry: r})
	return s
}

// Policy returns the currently published policy. Callers must not mutate
// the returned value.
func (s *Store) Policy() *Policy {
	return s.ptr.Load().policy
}

// Registry returns the currently published known-witness registry.
func (s *Store) Registry() *WitnessRegistry {
	return s.ptr.Load().registry
}

// Publish atomically replaces the policy and/or registry. Passing nil for
// either leaves that half of the snapshot unchanged.
func (s *Store) Publish(p *Policy, r *WitnessRegistry) {
	cur := s.ptr.Load()
	next := &snapshot{policy: cur.policy, registry: cur.registry}
	if p != nil {
		if p.ReservedNamespaces == nil {
			p.ReservedNamespaces = defaultReservedNamespaces
		}
		next.policy = p
	}
	if r != nil {
		next.registry = r
	}
	s.ptr.Store(next)
}

// ParametersSkeleton returns the initial parameter template offered to a
// prospective controller for GET / (creation template).
func (p *Policy) ParametersSkeleton(registry *WitnessRegistry) map[string]interface{} {
	params := map[string]interface{}{
		"method":     "did:webvh:1.0",
		"scid":       docstate.SCIDPlaceholder,
		"portable":   p.Portability,
		"updateKeys": []interface{}{},
	}
	if p.Prerotation {
		params["nextKeyHashes"] = []interface{}{}
	}
	if p.WitnessRequired {
		witnesses := make([]interface{}, 0)
		if registry != nil {
			for id := range registry.Entries {
				witnesses = append(witnesses, map[string]interface{}{"id": id})
			}
		}
		params["witness"] = map[string]interface{}{
			"threshold": 1,
			"witnesses": witnesses,
		}
	}
	if p.Watcher != "" {
		params["watchers"] = []interface{}{p.Watcher}
	}
	return params
}

// IsReservedNamespace reports whether ns may never be used as a
// controller-facing namespace.
func (p *Policy) IsReservedNamespace(ns string) bool {
	if p.ReservedNamespaces == nil {
		return defaultReservedNamespaces[ns]
	}
	return p.ReservedNamespaces[ns]
}

// WitnessChecker is implemented by pkg/witness; policy delegates the
// threshold/proof-surviving arithmetic to it to avoid an import cycle
// (witness itself depends on policy's registry).
type WitnessChecker interface {
	CheckThreshold(rule *docstate.WitnessParam, versionID string, witnessSig *WitnessSignature, registry *WitnessRegistry, strict bool) error
}

// WitnessSignature mirrors the wire shape of a witnessSignature request
// member: {versionId, proof:[...]}.
type WitnessSignature struct {
	VersionID string
	Proofs    []map[string]interface{}
}

// admitCommon applies the guards shared by create/update/deactivate. rule
// is the witness rule proofs are checked against: the *prior* state's
// effective witness rule, or the post-state's own rule for a create
// (there being no prior state yet).
func (p *Policy) admitCommon(rule *docstate.WitnessParam, versionID string, declared *docstate.WitnessParam, sig *WitnessSignature, checker WitnessChecker, registry *WitnessRegistry) error {
	if !p.WitnessRequired {
		return nil
	}
	if sig == nil {
		return ErrWitnessThresholdNotMet
	}
	if declared != nil {
		for _, w := range declared.Witnesses {
			if !registry.Contains(w.ID) {
				return ErrUnknownWitness
			}
		}
	}
	return checker.CheckThreshold(rule, versionID, sig, registry, true)
}

// AdmitCreate gates a create mutation: there is no prior state, so the
// entry's own declared witness rule is what proofs are checked against.
func (p *Policy) AdmitCreate(post *docstate.PostState, sig *WitnessSignature, checker WitnessChecker, registry *WitnessRegistry) error {
	return p.admitCommon(post.EffectiveParams.Witness, post.VersionID, post.EffectiveParams.Witness, sig, checker, registry)
}

// AdmitUpdate gates an update mutation: in addition to the create guards,
// it enforces portability (namespace/alias immutability) and prerotation
// policy, and checks witness proofs against the *prior* state's rule.
func (p *Policy) AdmitUpdate(prevNamespace, prevAlias, newNamespace, newAlias string, prev, post *docstate.PostState, sig *WitnessSignature, checker WitnessChecker, registry *WitnessRegistry) error {
	if !p.Portability && (prevNamespace != newNamespace || prevAlias != newAlias) {
		return ErrPolicyForbidden
	}
	if !p.Prerotation && len(post.EffectiveParams.NextKeyHashes) > 0 {
		return ErrPolicyForbidden
	}
	return p.admitCommon(prev.EffectiveParams.Witness, post.VersionID, post.EffectiveParams.Witness, sig, checker, registry)
}

// AdmitDeactivate gates a deactivation mutation with the same guards as
// update, minus the portability/prerotation checks (a deactivating entry
// changes neither).
func (p *Policy) AdmitDeactivate(prev, post *docstate.PostState, sig *WitnessSignature, checker WitnessChecker, registry *WitnessRegistry) error {
	return p.admitCommon(prev.EffectiveParams.Witness, post.VersionID, post.EffectiveParams.Witness, sig, checker, registry)
}
