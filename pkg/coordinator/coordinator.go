// Copyright 2025 Certen Protocol
//
// Package coordinator is the Mutation Coordinator (C9): the one place the
// full C3-C8 pipeline executes for a single identifier mutation. Built as
// one struct holding every injected dependency, with a sync.Map of
// per-identifier mutexes guarding the load-verify-persist cycle.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/database"
	"github.com/didwebvh/webvh-hosting/pkg/diproof"
	"github.com/didwebvh/webvh-hosting/pkg/docstate"
	"github.com/didwebvh/webvh-hosting/pkg/metrics"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
)

// Typed errors raised by the coordinator itself, in addition to whatever
// C3-C7 raise and propagate unwrapped.
var (
	ErrNamespaceReserved = errors.New("coordinator: namespace reserved")
	ErrEntryProofInvalid = errors.New("coordinator: log entry proof invalid")
)

// Dependencies are the collaborators a Coordinator composes. All fields
// are required except Metrics, which may be nil, and Now, which defaults
// to time.Now.
type Dependencies struct {
	Repos          *database.Repositories
	PolicyStore    *policy.Store
	WitnessChecker policy.WitnessChecker
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

// Coordinator implements C9.
type Coordinator struct {
	repos   *database.Repositories
	policy  *policy.Store
	checker policy.WitnessChecker
	metrics *metrics.Metrics
	now     func() time.Time
	locks   sync.Map // map[string]*sync.Mutex, keyed by "namespace/alias"
}

// New creates a Coordinator. Metrics may be nil, in which case mutations
// simply aren't observed.
func New(deps Dependencies) *Coordinator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		repos:   deps.Repos,
		policy:  deps.PolicyStore,
		checker: deps.WitnessChecker,
		metrics: deps.Metrics,
		now:     now,
	}
}

func (c *Coordinator) lockFor(namespace, alias string) *sync.Mutex {
	key := namespace + "/" + alias
	actual, _ := c.locks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// MutationRequest is the input to Mutate: the candidate new log entry plus
// an optional witness signature object.
type MutationRequest struct {
	Entry            docstate.LogEntry
	WitnessSignature *policy.WitnessSignature
}

// MutationResult is the normalized outcome of a successful mutation.
type MutationResult struct {
	Created   bool
	PostState *docstate.PostState
	Document  map[string]interface{}
}

// Mutate executes the full pipeline for (namespace, alias): acquire the
// per-identifier lock, load prior state, replay/verify/gate the candidate
// entry, persist, release, and return the normalized result.
func (c *Coordinator) Mutate(ctx context.Context, namespace, alias string, req MutationRequest) (*MutationResult, error) {
	activePolicy := c.policy.Policy()
	if activePolicy.IsReservedNamespace(namespace) {
		return nil, ErrNamespaceReserved
	}

	mu := c.lockFor(namespace, alias)
	mu.Lock()
	defer mu.Unlock()

	start := c.now()
	existing, err := c.repos.Controllers.GetByAlias(ctx, namespace, alias)
	if err != nil && err != database.ErrControllerNotFound {
		return nil, err
	}

	isCreate := err == database.ErrControllerNotFound
	var result *MutationResult
	if isCreate {
		result, err = c.create(ctx, namespace, alias, req)
	} else {
		result, err = c.update(ctx, namespace, alias, existing, req)
	}
	c.recordMutation(isCreate, result, err, start)
	return result, err
}

// recordMutation reports a completed Mutate call to metrics, if wired: the
// kind label (create/update/deactivate) and outcome (success/error), and a
// WitnessRejects increment specifically for witness-threshold failures,
// which callers otherwise only see as an opaque 400.
func (c *Coordinator) recordMutation(isCreate bool, result *MutationResult, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	kind := "update"
	switch {
	case isCreate:
		kind = "create"
	case result != nil && result.PostState != nil && result.PostState.Deactivated:
		kind = "deactivate"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		if errors.Is(err, policy.ErrWitnessThresholdNotMet) {
			c.metrics.WitnessRejects.Inc()
		}
	}
	c.metrics.ObserveMutation(kind, outcome, c.now().Sub(start))
}

func (c *Coordinator) create(ctx context.Context, namespace, alias string, req MutationRequest) (*MutationResult, error) {
	post, err := docstate.ApplyInitial(req.Entry)
	if err != nil {
		return nil, err
	}

	if err := verifyEntryProofs(ctx, req.Entry, post.EffectiveParams.UpdateKeys, c.now()); err != nil {
		return nil, err
	}

	registry := c.policy.Registry()
	activePolicy := c.policy.Policy()
	if err := activePolicy.AdmitCreate(post, req.WitnessSignature, c.checker, registry); err != nil {
		return nil, err
	}

	logJSON, err := json.Marshal([]docstate.LogEntry{req.Entry})
	if err != nil {
		return nil, err
	}
	documentJSON, err := json.Marshal(post.Document)
	if err != nil {
		return nil, err
	}

	if _, err := c.repos.Controllers.Create(ctx, &database.NewControllerRecord{
		DID:         post.DocumentID,
		SCID:        post.SCID,
		Namespace:   namespace,
		Alias:       alias,
		Log:         logJSON,
		Document:    documentJSON,
		VersionID:   post.VersionID,
		VersionTime: mustParseTime(post.VersionTime),
	}); err != nil {
		return nil, err
	}

	return &MutationResult{Created: true, PostState: post, Document: post.Document}, nil
}

func (c *Coordinator) update(ctx context.Context, namespace, alias string, existing *database.Controller, req MutationRequest) (*MutationResult, error) {
	var entries []docstate.LogEntry
	if err := json.Unmarshal(existing.Log, &entries); err != nil {
		return nil, err
	}

	prev, err := docstate.Replay(entries)
	if err != nil {
		return nil, err
	}
	if prev.Deactivated {
		return nil, docstate.ErrAlreadyDeactivated
	}

	post, err := docstate.ApplyNext(prev, req.Entry)
	if err != nil {
		return nil, err
	}

	if err := verifyEntryProofs(ctx, req.Entry, prev.EffectiveParams.UpdateKeys, c.now()); err != nil {
		return nil, err
	}

	registry := c.policy.Registry()
	activePolicy := c.policy.Policy()
	if post.Deactivated {
		err = activePolicy.AdmitDeactivate(prev, post, req.WitnessSignature, c.checker, registry)
	} else {
		err = activePolicy.AdmitUpdate(namespace, alias, namespace, alias, prev, post, req.WitnessSignature, c.checker, registry)
	}
	if err != nil {
		return nil, err
	}

	logJSON, err := json.Marshal(append(entries, req.Entry))
	if err != nil {
		return nil, err
	}
	documentJSON, err := json.Marshal(post.Document)
	if err != nil {
		return nil, err
	}

	if _, err := c.repos.Controllers.Update(ctx, post.DocumentID, logJSON, documentJSON, post.VersionID, mustParseTime(post.VersionTime), post.Deactivated); err != nil {
		return nil, err
	}

	return &MutationResult{Created: false, PostState: post, Document: post.Document}, nil
}

// verifyEntryProofs checks that every proof on entry verifies under some
// key in allowedUpdateKeys (the pre-entry updateKeys set). The signed
// document is the entry with its proof member removed, the same shape
// C4 hashes for entryHash.
func verifyEntryProofs(ctx context.Context, entry docstate.LogEntry, allowedUpdateKeys []string, now time.Time) error {
	document := map[string]interface{}{
		"versionId":   entry.VersionID,
		"versionTime": entry.VersionTime,
		"parameters":  entry.Parameters,
		"state":       entry.State,
	}

	allowed := make(map[string]bool, len(allowedUpdateKeys))
	for _, k := range allowedUpdateKeys {
		allowed["did:key:"+k+"#"+k] = true
	}

	proofs := diproof.Normalize(map[string]interface{}{"proof": entry.Proof})
	if len(proofs) == 0 {
		return ErrEntryProofInvalid
	}
	for _, proof := range proofs {
		vm, _ := proof["verificationMethod"].(string)
		if !allowed[vm] {
			return ErrEntryProofInvalid
		}
		if err := diproof.Verify(ctx, document, proof, nil, "", now); err != nil {
			return err
		}
	}
	return nil
}

func mustParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
