// Copyright 2025 Certen Protocol
//
// Package canonical implements JSON canonicalization (JCS), SHA-256
// hashing, and the multihash/multibase/multikey encodings used to derive
// and verify content-addressed identifiers throughout the webvh hosting
// service.
package canonical

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"errors"

	"github.com/gowebpki/jcs"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// Sentinel errors for malformed canonical encodings.
var (
	ErrNonFiniteNumber  = errors.New("canonical: value contains a non-finite number")
	ErrInvalidMultibase = errors.New("canonical: invalid multibase string")
	ErrInvalidMultikey  = errors.New("canonical: invalid ed25519 multikey")
	ErrInvalidMultihash = errors.New("canonical: invalid sha-256 multihash")
)

// ed25519MulticodecPrefix is the two-byte multicodec prefix "ED 01" that
// identifies a raw Ed25519 public key inside a multikey.
var ed25519MulticodecPrefix = [2]byte{0xed, 0x01}

// Canonicalize renders v as JCS-canonical bytes: marshal to JSON, then
// apply RFC 8785 transformation so object key order and number formatting
// are deterministic. json.Marshal already rejects NaN/Inf floats and map
// key types other than strings, integers and text marshalers, and it
// renders every object key it accepts as a JSON string, so no extra
// bookkeeping for non-finite numbers or non-string keys is needed here.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		var unsupported *json.UnsupportedValueError
		if errors.As(err, &unsupported) {
			return nil, ErrNonFiniteNumber
		}
		return nil, err
	}
	return jcs.Transform(raw)
}

// SHA256 returns the 32-byte SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// MultihashSHA256 returns the self-describing multihash encoding of a
// SHA-256 digest over data: the multicodec/length varint prefix (which,
// for SHA-256, serializes as the fixed two bytes 0x12 0x20) followed by
// the 32-byte digest.
func MultihashSHA256(data []byte) ([]byte, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return nil, err
	}
	return []byte(mh), nil
}

// EncodeBase58btc multibase-encodes data in the base58btc alphabet,
// prefixing it with the 'z' multibase code.
func EncodeBase58btc(data []byte) (string, error) {
	return multibase.Encode(multibase.Base58BTC, data)
}

// DecodeBase58btc reverses EncodeBase58btc. It fails on any other
// multibase prefix.
func DecodeBase58btc(s string) ([]byte, error) {
	enc, data, err := multibase.Decode(s)
	if err != nil {
		return nil, ErrInvalidMultibase
	}
	if enc != multibase.Base58BTC {
		return nil, ErrInvalidMultibase
	}
	return data, nil
}

// HashAndEncode computes the multibase(base58btc) multihash of data in
// one step; this is the form used for entryHash, resource digests, and
// SCIDs before the leading multibase byte is stripped.
func HashAndEncode(data []byte) (string, error) {
	mh, err := MultihashSHA256(data)
	if err != nil {
		return "", err
	}
	return EncodeBase58btc(mh)
}

// StripMultibasePrefix removes the leading multibase code byte ('z') from
// an already-encoded base58btc string, producing the bare suffix form used
// to embed a SCID inside an identifier string.
func StripMultibasePrefix(encoded string) (string, error) {
	if len(encoded) < 2 || encoded[0] != 'z' {
		return "", ErrInvalidMultibase
	}
	return encoded[1:], nil
}

// EncodeMultikeyEd25519 encodes an Ed25519 public key as a multikey:
// multibase(base58btc, 0xED 0x01 || pub). The resulting string begins with
// "z6M" and is 48 characters long for a standard 32-byte key.
func EncodeMultikeyEd25519(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidMultikey
	}
	buf := make([]byte, 0, 2+ed25519.PublicKeySize)
	buf = append(buf, ed25519MulticodecPrefix[:]...)
	buf = append(buf, pub...)
	return EncodeBase58btc(buf)
}

// DecodeMultikeyEd25519 reverses EncodeMultikeyEd25519, validating the
// 0xED 0x01 multicodec prefix and the 32-byte key length.
func DecodeMultikeyEd25519(multikey string) (ed25519.PublicKey, error) {
	data, err := DecodeBase58btc(multikey)
	if err != nil {
		return nil, ErrInvalidMultikey
	}
	if len(data) != 2+ed25519.PublicKeySize {
		return nil, ErrInvalidMultikey
	}
	if data[0] != ed25519MulticodecPrefix[0] || data[1] != ed25519MulticodecPrefix[1] {
		return nil, ErrInvalidMultikey
	}
	return ed25519.PublicKey(append([]byte(nil), data[2:]...)), nil
}

// ValidMultikeyForm reports whether s has the textual shape of an Ed25519
// multikey (the "z6M..." prefix, 48 characters) without decoding it.
func ValidMultikeyForm(s string) bool {
	return len(s) == 48 && len(s) >= 3 && s[:3] == "z6M"
}

// MultihashSHA256Encoded decodes an encoded (multibase) multihash string
// and verifies it is a well-formed SHA-256 multihash: prefix 0x12 0x20
// followed by exactly 32 bytes.
func MultihashSHA256Encoded(encoded string) ([]byte, error) {
	data, err := DecodeBase58btc(encoded)
	if err != nil {
		return nil, err
	}
	if len(data) != 34 || data[0] != 0x12 || data[1] != 0x20 {
		return nil, ErrInvalidMultihash
	}
	return data, nil
}
