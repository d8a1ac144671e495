package keys

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msg := []byte("entry-hash-material")
	sig := Sign(kp.Private, msg)

	ok, err := Verify(kp.Multikey, msg, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sig := Sign(kp.Private, []byte("original"))
	ok, err := Verify(kp.Multikey, []byte("tampered"), sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("expected signature verification to fail on tampered message")
	}
}

func TestVerifyRejectsBadMultikey(t *testing.T) {
	if _, err := Verify("not-a-multikey", []byte("x"), []byte("y")); err == nil {
		t.Fatalf("expected error for malformed multikey")
	}
}
