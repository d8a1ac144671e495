// Copyright 2025 Certen Protocol
//
// Package docstate is the DocumentState Engine: a pure, allocation-light
// left-fold over an identifier's raw log entries that derives the SCID,
// entry hashes, versionIds, and the effective parameter set at every
// position. It never trusts proofs itself — proof verification happens in
// a separate pass in pkg/diproof, driven by pkg/coordinator.
package docstate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
)

// SCIDPlaceholder is substituted for the not-yet-known SCID throughout an
// initial log entry before the real value is derived.
const SCIDPlaceholder = "{SCID}"

// SupportedMethods lists the webvh protocol versions this engine accepts
// in parameters.method.
var SupportedMethods = map[string]bool{
	"did:webvh:1.0": true,
}

// Typed errors from the validation and state-machine error taxonomies.
// Components raise these without wrapping; only the HTTP boundary
// translates them to status codes.
var (
	ErrSchemaInvalid        = errors.New("docstate: schema invalid")
	ErrVersionIDMismatch    = errors.New("docstate: versionId mismatch")
	ErrTimestampNonMonotonic = errors.New("docstate: versionTime non-monotonic")
	ErrMultikeyInvalid      = errors.New("docstate: multikey invalid")
	ErrKeyRotationInvalid   = errors.New("docstate: key rotation invalid")
	ErrAlreadyDeactivated   = errors.New("docstate: identifier already deactivated")
	ErrParameterImmutable   = errors.New("docstate: immutable parameter changed")
	ErrMethodUnsupported    = errors.New("docstate: unsupported method")
)

// maxClockSkew is how far into the future a versionTime may be before it
// is rejected as non-monotonic.
const maxClockSkew = 5 * time.Minute

// LogEntry is the raw, as-submitted form of one line of a did.jsonl log.
// Parameters carries the full initial parameters for entry 1 and a diff
// against the previous effective parameters for every later entry.
type LogEntry struct {
	VersionID   string                 `json:"versionId"`
	VersionTime string                 `json:"versionTime"`
	Parameters  map[string]interface{} `json:"parameters"`
	State       map[string]interface{} `json:"state"`
	Proof       interface{}            `json:"proof,omitempty"`
}

// Witness is one member of a witness threshold rule.
type Witness struct {
	ID     string `json:"id"`
	Weight *int   `json:"weight,omitempty"`
}

// WeightOrDefault returns the witness's declared weight, defaulting to 1
// when absent.
func (w Witness) WeightOrDefault() int {
	if w.Weight == nil {
		return 1
	}
	return *w.Weight
}

// WitnessParam is the effective witness threshold rule.
type WitnessParam struct {
	Threshold  int       `json:"threshold"`
	SelfWeight *int      `json:"selfWeight,omitempty"`
	Witnesses  []Witness `json:"witnesses"`
}

// EffectiveParams is the left-folded parameter state after some prefix of
// the log.
type EffectiveParams struct {
	Method        string
	SCID          string
	UpdateKeys    []string
	NextKeyHashes []string
	Witness       *WitnessParam
	Watchers      []string
	Portable      bool
	Prerotation   bool
	Deactivated   bool
	TTL           *int
}

// PostState is what the engine produces after folding entries 1..N: the
// current SCID, document, effective parameters, and chain position.
type PostState struct {
	N               int
	SCID            string
	DocumentID      string
	Document        map[string]interface{}
	EffectiveParams EffectiveParams
	VersionID       string
	VersionTime     string
	Deactivated     bool
}

// entryHashInput builds the object whose canonicalization is hashed to
// produce an entryHash: versionId, versionTime, parameters and state, with
// "proof" deliberately excluded (the proof signs the resulting versionId,
// so it cannot be part of its own hash input).
func entryHashInput(versionID string, e LogEntry) map[string]interface{} {
	return map[string]interface{}{
		"versionId":   versionID,
		"versionTime": e.VersionTime,
		"parameters":  e.Parameters,
		"state":       e.State,
	}
}

func computeEntryHash(versionID string, e LogEntry) (string, error) {
	canon, err := canonical.Canonicalize(entryHashInput(versionID, e))
	if err != nil {
		return "", ErrSchemaInvalid
	}
	return canonical.HashAndEncode(canon)
}

// deepReplaceString walks v (maps, slices, strings) replacing every
// occurrence of old inside string values with new, so a SCID embedded in a
// longer string such as a DID is replaced too. Object keys and non-string
// leaves are returned unmodified.
func deepReplaceString(v interface{}, old, new string) interface{} {
	switch t := v.(type) {
	case string:
		return strings.ReplaceAll(t, old, new)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepReplaceString(val, old, new)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepReplaceString(val, old, new)
		}
		return out
	default:
		return v
	}
}

func asStringSlice(v interface{}) ([]string, bool) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func validateMultikeys(keys []string) error {
	for _, k := range keys {
		if !canonical.ValidMultikeyForm(k) {
			return ErrMultikeyInvalid
		}
	}
	return nil
}

func parseWitnessParam(v interface{}) (*WitnessParam, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, ErrSchemaInvalid
	}
	wp := &WitnessParam{}
	switch t := m["threshold"].(type) {
	case float64:
		wp.Threshold = int(t)
	default:
		return nil, ErrSchemaInvalid
	}
	if sw, ok := m["selfWeight"].(float64); ok {
		weight := int(sw)
		wp.SelfWeight = &weight
	}
	witnessesRaw, _ := m["witnesses"].([]interface{})
	for _, item := range witnessesRaw {
		wm, ok := item.(map[string]interface{})
		if !ok {
			return nil, ErrSchemaInvalid
		}
		id, _ := wm["id"].(string)
		w := Witness{ID: id}
		if weightRaw, ok := wm["weight"].(float64); ok {
			wv := int(weightRaw)
			w.Weight = &wv
		}
		wp.Witnesses = append(wp.Witnesses, w)
	}
	return wp, nil
}

func buildInitialEffectiveParams(params map[string]interface{}, updateKeys []string) (EffectiveParams, error) {
	eff := EffectiveParams{UpdateKeys: updateKeys}
	method, _ := params["method"].(string)
	eff.Method = method
	scid, _ := params["scid"].(string)
	eff.SCID = scid
	if nkh, ok := asStringSlice(params["nextKeyHashes"]); ok {
		eff.NextKeyHashes = nkh
	}
	if watchers, ok := asStringSlice(params["watchers"]); ok {
		eff.Watchers = watchers
	}
	if portable, ok := params["portable"].(bool); ok {
		eff.Portable = portable
	}
	if prerotation, ok := params["prerotation"].(bool); ok {
		eff.Prerotation = prerotation
	}
	if deactivated, ok := params["deactivated"].(bool); ok {
		eff.Deactivated = deactivated
	}
	if ttl, ok := params["ttl"].(float64); ok {
		v := int(ttl)
		eff.TTL = &v
	}
	wp, err := parseWitnessParam(params["witness"])
	if err != nil {
		return EffectiveParams{}, err
	}
	eff.Witness = wp
	return eff, nil
}

// ApplyInitial folds entry 1: derives the SCID, validates the entryHash
// chain root, and materializes the initial effective parameters.
func ApplyInitial(entry LogEntry) (*PostState, error) {
	method, _ := entry.Parameters["method"].(string)
	if !SupportedMethods[method] {
		return nil, ErrMethodUnsupported
	}

	// Rebuild the pre-image: every occurrence of the claimed SCID goes back
	// to the placeholder before the SCID is derived.
	scidClaim, _ := entry.Parameters["scid"].(string)
	if scidClaim == "" {
		return nil, ErrSchemaInvalid
	}
	draftParams, _ := deepReplaceString(entry.Parameters, scidClaim, SCIDPlaceholder).(map[string]interface{})
	draftState, _ := deepReplaceString(entry.State, scidClaim, SCIDPlaceholder).(map[string]interface{})
	draft := LogEntry{VersionTime: entry.VersionTime, Parameters: draftParams, State: draftState}
	draftCanon, err := canonical.Canonicalize(entryHashInput(SCIDPlaceholder, draft))
	if err != nil {
		return nil, ErrSchemaInvalid
	}
	mh, err := canonical.MultihashSHA256(draftCanon)
	if err != nil {
		return nil, ErrSchemaInvalid
	}
	scidEncoded, err := canonical.EncodeBase58btc(mh)
	if err != nil {
		return nil, ErrSchemaInvalid
	}
	scid, err := canonical.StripMultibasePrefix(scidEncoded)
	if err != nil {
		return nil, ErrSchemaInvalid
	}

	substitutedParams, _ := deepReplaceString(entry.Parameters, SCIDPlaceholder, scid).(map[string]interface{})
	substitutedState, _ := deepReplaceString(entry.State, SCIDPlaceholder, scid).(map[string]interface{})
	substituted := LogEntry{VersionTime: entry.VersionTime, Parameters: substitutedParams, State: substitutedState}

	entryHash, err := computeEntryHash(scid, substituted)
	if err != nil {
		return nil, err
	}
	required := "1-" + entryHash
	if entry.VersionID != required {
		return nil, ErrVersionIDMismatch
	}

	scidParam, _ := substitutedParams["scid"].(string)
	if scidParam != scid {
		return nil, ErrSchemaInvalid
	}

	updateKeys, ok := asStringSlice(substitutedParams["updateKeys"])
	if !ok || len(updateKeys) == 0 {
		return nil, ErrSchemaInvalid
	}
	if err := validateMultikeys(updateKeys); err != nil {
		return nil, err
	}

	eff, err := buildInitialEffectiveParams(substitutedParams, updateKeys)
	if err != nil {
		return nil, err
	}

	docID, _ := substitutedState["id"].(string)

	return &PostState{
		N:               1,
		SCID:            scid,
		DocumentID:      docID,
		Document:        substitutedState,
		EffectiveParams: eff,
		VersionID:       entry.VersionID,
		VersionTime:     entry.VersionTime,
		Deactivated:     eff.Deactivated,
	}, nil
}

// mergeParameterDiff applies entry n's parameter diff on top of the prior
// effective parameters: present fields replace, absent fields inherit,
// method/scid are immutable.
func mergeParameterDiff(prev EffectiveParams, diff map[string]interface{}) (EffectiveParams, error) {
	merged := prev

	if v, ok := diff["method"]; ok {
		s, _ := v.(string)
		if s != prev.Method {
			return EffectiveParams{}, ErrParameterImmutable
		}
	}
	if v, ok := diff["scid"]; ok {
		s, _ := v.(string)
		if s != prev.SCID {
			return EffectiveParams{}, ErrParameterImmutable
		}
	}
	if v, ok := diff["updateKeys"]; ok {
		keys, ok := asStringSlice(v)
		if !ok || len(keys) == 0 {
			return EffectiveParams{}, ErrSchemaInvalid
		}
		if err := validateMultikeys(keys); err != nil {
			return EffectiveParams{}, err
		}
		merged.UpdateKeys = keys
	}
	if v, ok := diff["nextKeyHashes"]; ok {
		keys, ok := asStringSlice(v)
		if !ok {
			return EffectiveParams{}, ErrSchemaInvalid
		}
		merged.NextKeyHashes = keys
	}
	if v, ok := diff["watchers"]; ok {
		watchers, ok := asStringSlice(v)
		if !ok {
			return EffectiveParams{}, ErrSchemaInvalid
		}
		merged.Watchers = watchers
	}
	if v, ok := diff["portable"]; ok {
		b, _ := v.(bool)
		merged.Portable = b
	}
	if v, ok := diff["prerotation"]; ok {
		b, _ := v.(bool)
		merged.Prerotation = b
	}
	if v, ok := diff["deactivated"]; ok {
		b, _ := v.(bool)
		merged.Deactivated = b
	}
	if v, ok := diff["ttl"]; ok {
		f, _ := v.(float64)
		iv := int(f)
		merged.TTL = &iv
	}
	if v, ok := diff["witness"]; ok {
		wp, err := parseWitnessParam(v)
		if err != nil {
			return EffectiveParams{}, err
		}
		merged.Witness = wp
	}

	return merged, nil
}

// multikeyRotationHash is the SHA-256-multihash-base58btc form of a
// multikey's textual representation, compared against prev.nextKeyHashes
// under the pre-rotation rule.
func multikeyRotationHash(multikey string) (string, error) {
	return canonical.HashAndEncode([]byte(multikey))
}

// ApplyNext folds entry n>1 on top of prev: validates the entryHash chain,
// monotonic timestamps, the parameter diff, the pre-rotation commitment,
// and the deactivation gate.
func ApplyNext(prev *PostState, entry LogEntry) (*PostState, error) {
	entryHash, err := computeEntryHash(prev.VersionID, entry)
	if err != nil {
		return nil, err
	}
	n := prev.N + 1
	required := fmt.Sprintf("%d-%s", n, entryHash)
	if entry.VersionID != required {
		return nil, ErrVersionIDMismatch
	}

	prevTime, err := time.Parse(time.RFC3339, prev.VersionTime)
	if err != nil {
		return nil, ErrSchemaInvalid
	}
	newTime, err := time.Parse(time.RFC3339, entry.VersionTime)
	if err != nil {
		return nil, ErrSchemaInvalid
	}
	if newTime.Before(prevTime) {
		return nil, ErrTimestampNonMonotonic
	}
	if newTime.After(time.Now().Add(maxClockSkew)) {
		return nil, ErrTimestampNonMonotonic
	}

	if prev.Deactivated {
		return nil, ErrAlreadyDeactivated
	}

	merged, err := mergeParameterDiff(prev.EffectiveParams, entry.Parameters)
	if err != nil {
		return nil, err
	}

	if len(prev.EffectiveParams.NextKeyHashes) > 0 {
		allowed := make(map[string]bool, len(prev.EffectiveParams.NextKeyHashes))
		for _, h := range prev.EffectiveParams.NextKeyHashes {
			allowed[h] = true
		}
		for _, uk := range merged.UpdateKeys {
			h, err := multikeyRotationHash(uk)
			if err != nil || !allowed[h] {
				return nil, ErrKeyRotationInvalid
			}
		}
	}

	docID, _ := entry.State["id"].(string)

	return &PostState{
		N:               n,
		SCID:            prev.SCID,
		DocumentID:      docID,
		Document:        entry.State,
		EffectiveParams: merged,
		VersionID:       entry.VersionID,
		VersionTime:     entry.VersionTime,
		Deactivated:     merged.Deactivated,
	}, nil
}

// Replay folds an entire ordered log, entry 1 through entry N, returning
// the final post-state or the first validation error encountered.
func Replay(entries []LogEntry) (*PostState, error) {
	if len(entries) == 0 {
		return nil, ErrSchemaInvalid
	}
	state, err := ApplyInitial(entries[0])
	if err != nil {
		return nil, err
	}
	for _, entry := range entries[1:] {
		state, err = ApplyNext(state, entry)
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}
