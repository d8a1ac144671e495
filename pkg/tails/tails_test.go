// Copyright 2025 Certen Protocol
package tails

import "testing"

func validTailsBytes(extra int) []byte {
	data := []byte{0x00, 0x02}
	for i := 0; i < 128+extra*128; i++ {
		data = append(data, byte(i))
	}
	return data
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	if err := Validate(validTailsBytes(0)); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := Validate(validTailsBytes(2)); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateRejectsBadPrefix(t *testing.T) {
	data := validTailsBytes(0)
	data[0] = 0x01
	if err := Validate(data); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestValidateRejectsBadLength(t *testing.T) {
	data := append(validTailsBytes(0), 0x01)
	if err := Validate(data); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestValidateRejectsOversize(t *testing.T) {
	data := make([]byte, MaxSize+2)
	data[0], data[1] = 0x00, 0x02
	if err := Validate(data); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDigestDeterministic(t *testing.T) {
	data := validTailsBytes(0)
	d1, err := Digest(data)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, err := Digest(data)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("expected deterministic digest, got %q and %q", d1, d2)
	}
}
