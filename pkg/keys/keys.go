// Copyright 2025 Certen Protocol
//
// Package keys wraps Ed25519 sign/verify behind the multikey encoding used
// throughout the webvh hosting service, so every other component deals in
// opaque multikey strings rather than raw key bytes.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
)

// ErrInvalidSignature names a signature that does not match the message
// under the given public key. Verify does not return it: it reports a
// mismatch as (false, nil).
var ErrInvalidSignature = errors.New("keys: invalid signature")

// KeyPair is an Ed25519 key pair plus its multikey textual encodings.
type KeyPair struct {
	Public     ed25519.PublicKey
	Private    ed25519.PrivateKey
	Multikey   string
}

// Generate creates a fresh Ed25519 key pair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	mk, err := canonical.EncodeMultikeyEd25519(pub)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: pub, Private: priv, Multikey: mk}, nil
}

// Sign produces a 64-byte Ed25519 signature over message.
func Sign(priv ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(priv, message)
}

// Verify reports whether sig is a valid Ed25519 signature over message
// under the public key encoded by multikey.
func Verify(multikey string, message, sig []byte) (bool, error) {
	pub, err := canonical.DecodeMultikeyEd25519(multikey)
	if err != nil {
		return false, err
	}
	if len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(pub, message, sig), nil
}

// VerifyRaw reports whether sig verifies under the raw public key pub.
func VerifyRaw(pub ed25519.PublicKey, message, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}
