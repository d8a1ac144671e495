package canonical

import (
	"crypto/ed25519"
	"testing"
)

func TestCanonicalizeStableUnderKeyReorder(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"y": 1, "x": 2}}
	b := map[string]interface{}{"c": map[string]interface{}{"x": 2, "y": 1}, "a": 2, "b": 1}

	ca, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("canonicalize a: %v", err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("canonicalize b: %v", err)
	}
	if string(ca) != string(cb) {
		t.Fatalf("expected canonical forms to match, got %q vs %q", ca, cb)
	}
}

func TestHashAndEncodeRoundTrip(t *testing.T) {
	encoded, err := HashAndEncode([]byte("hello"))
	if err != nil {
		t.Fatalf("HashAndEncode: %v", err)
	}
	if encoded[0] != 'z' {
		t.Fatalf("expected base58btc prefix 'z', got %q", encoded)
	}
	decoded, err := MultihashSHA256Encoded(encoded)
	if err != nil {
		t.Fatalf("MultihashSHA256Encoded: %v", err)
	}
	if decoded[0] != 0x12 || decoded[1] != 0x20 {
		t.Fatalf("expected sha-256 multihash prefix 12 20, got % x", decoded[:2])
	}
}

func TestStripMultibasePrefix(t *testing.T) {
	encoded, err := HashAndEncode([]byte("scid-preimage"))
	if err != nil {
		t.Fatalf("HashAndEncode: %v", err)
	}
	stripped, err := StripMultibasePrefix(encoded)
	if err != nil {
		t.Fatalf("StripMultibasePrefix: %v", err)
	}
	if stripped != encoded[1:] {
		t.Fatalf("expected suffix form, got %q", stripped)
	}
}

func TestMultikeyRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	mk, err := EncodeMultikeyEd25519(pub)
	if err != nil {
		t.Fatalf("EncodeMultikeyEd25519: %v", err)
	}
	if !ValidMultikeyForm(mk) {
		t.Fatalf("expected valid multikey textual form, got %q (len=%d)", mk, len(mk))
	}
	decoded, err := DecodeMultikeyEd25519(mk)
	if err != nil {
		t.Fatalf("DecodeMultikeyEd25519: %v", err)
	}
	if !decoded.Equal(pub) {
		t.Fatalf("round-tripped key does not match original")
	}
}

func TestDecodeMultikeyRejectsWrongPrefix(t *testing.T) {
	encoded, err := EncodeBase58btc([]byte{0x00, 0x00, 1, 2, 3})
	if err != nil {
		t.Fatalf("EncodeBase58btc: %v", err)
	}
	if _, err := DecodeMultikeyEd25519(encoded); err == nil {
		t.Fatalf("expected error for wrong multicodec prefix")
	}
}
