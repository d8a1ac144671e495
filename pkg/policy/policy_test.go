package policy

import (
	"testing"

	"github.com/didwebvh/webvh-hosting/pkg/docstate"
)

type fakeChecker struct {
	err error
}

func (f *fakeChecker) CheckThreshold(rule *docstate.WitnessParam, versionID string, sig *WitnessSignature, registry *WitnessRegistry, strict bool) error {
	return f.err
}

func TestAdmitCreateRequiresWitnessSignature(t *testing.T) {
	p := &Policy{WitnessRequired: true}
	post := &docstate.PostState{VersionID: "1-abc"}
	registry := &WitnessRegistry{Entries: map[string]KnownWitness{}}

	if err := p.AdmitCreate(post, nil, &fakeChecker{}, registry); err != ErrWitnessThresholdNotMet {
		t.Fatalf("expected ErrWitnessThresholdNotMet, got %v", err)
	}
}

func TestAdmitCreateRejectsUnknownWitness(t *testing.T) {
	p := &Policy{WitnessRequired: true}
	post := &docstate.PostState{
		VersionID: "1-abc",
		EffectiveParams: docstate.EffectiveParams{
			Witness: &docstate.WitnessParam{Threshold: 1, Witnesses: []docstate.Witness{{ID: "did:key:unknown"}}},
		},
	}
	registry := &WitnessRegistry{Entries: map[string]KnownWitness{}}
	sig := &WitnessSignature{VersionID: "1-abc"}

	if err := p.AdmitCreate(post, sig, &fakeChecker{}, registry); err != ErrUnknownWitness {
		t.Fatalf("expected ErrUnknownWitness, got %v", err)
	}
}

func TestAdmitUpdateForbidsAliasChangeWithoutPortability(t *testing.T) {
	p := &Policy{WitnessRequired: false, Portability: false}
	prev := &docstate.PostState{}
	post := &docstate.PostState{}

	err := p.AdmitUpdate("ns1", "alias1", "ns1", "alias2", prev, post, nil, &fakeChecker{}, nil)
	if err != ErrPolicyForbidden {
		t.Fatalf("expected ErrPolicyForbidden, got %v", err)
	}
}

func TestAdmitUpdateAllowsAliasChangeWithPortability(t *testing.T) {
	p := &Policy{WitnessRequired: false, Portability: true}
	prev := &docstate.PostState{}
	post := &docstate.PostState{}

	if err := p.AdmitUpdate("ns1", "alias1", "ns1", "alias2", prev, post, nil, &fakeChecker{}, nil); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestAdmitUpdateForbidsPrerotationWhenDisabled(t *testing.T) {
	p := &Policy{WitnessRequired: false, Prerotation: false}
	prev := &docstate.PostState{}
	post := &docstate.PostState{EffectiveParams: docstate.EffectiveParams{NextKeyHashes: []string{"zSomeHash"}}}

	err := p.AdmitUpdate("ns1", "a1", "ns1", "a1", prev, post, nil, &fakeChecker{}, nil)
	if err != ErrPolicyForbidden {
		t.Fatalf("expected ErrPolicyForbidden, got %v", err)
	}
}

func TestParametersSkeletonIncludesWitnessWhenRequired(t *testing.T) {
	p := &Policy{WitnessRequired: true, Portability: true}
	registry := &WitnessRegistry{Entries: map[string]KnownWitness{"did:key:zAbc": {Name: "w1"}}}

	skeleton := p.ParametersSkeleton(registry)
	if skeleton["scid"] != docstate.SCIDPlaceholder {
		t.Fatalf("expected scid placeholder, got %v", skeleton["scid"])
	}
	if _, ok := skeleton["witness"]; !ok {
		t.Fatalf("expected witness member in skeleton when witness required")
	}
}

func TestIsReservedNamespace(t *testing.T) {
	p := &Policy{}
	if !p.IsReservedNamespace("admin") {
		t.Fatalf("expected 'admin' to be reserved by default")
	}
	if p.IsReservedNamespace("customers") {
		t.Fatalf("expected 'customers' not to be reserved")
	}
}
