// Copyright 2025 Certen Protocol
//
// Package tails implements the content-addressed byte store for tails
// files: opaque blobs in the fixed layout Validate checks (the bytes 00 02
// followed by whole 128-byte blocks), addressed by hash and persisted
// through database.TailsRepository.
package tails

import (
	"context"
	"errors"

	"github.com/didwebvh/webvh-hosting/pkg/canonical"
	"github.com/didwebvh/webvh-hosting/pkg/database"
)

// Typed errors from the validation/infrastructure error taxonomy.
var (
	ErrPayloadTooLarge = errors.New("tails: payload exceeds 10 MiB limit")
	ErrMalformed       = errors.New("tails: content does not begin with 00 02 or has invalid length")
	ErrDigestMismatch  = errors.New("tails: filename/URL hash does not equal base58btc(sha256(bytes))")
	ErrNotFound        = errors.New("tails: file not found")
)

// MaxSize is the upload cap for a single tails file.
const MaxSize = 10 * 1024 * 1024

// Store wraps database.TailsRepository with structural and digest
// validation for tails-file bytes.
type Store struct {
	repo *database.TailsRepository
}

// New creates a Store over repo.
func New(repo *database.TailsRepository) *Store {
	return &Store{repo: repo}
}

// Validate checks data's structure: it must begin with the two bytes
// 00 02, and len(data)-2 must be a positive multiple of 128. It does not
// check the digest, since that requires the caller's claimed hash.
func Validate(data []byte) error {
	if len(data) > MaxSize {
		return ErrPayloadTooLarge
	}
	if len(data) < 2 || data[0] != 0x00 || data[1] != 0x02 {
		return ErrMalformed
	}
	rest := len(data) - 2
	if rest <= 0 || rest%128 != 0 {
		return ErrMalformed
	}
	return nil
}

// Digest computes the base58btc(SHA-256(data)) hash used as a tails file's
// filename/URL path segment.
func Digest(data []byte) (string, error) {
	return canonical.EncodeBase58btc(canonical.SHA256(data))
}

// Put validates data, confirms it hashes to claimedDigest, and persists it.
// It returns the stored record's digest (identical to claimedDigest on
// success) so callers can echo it back in the response body.
func (s *Store) Put(ctx context.Context, claimedDigest string, data []byte) (string, error) {
	if err := Validate(data); err != nil {
		return "", err
	}
	actual, err := Digest(data)
	if err != nil {
		return "", err
	}
	if claimedDigest != "" && claimedDigest != actual {
		return "", ErrDigestMismatch
	}
	if _, err := s.repo.Put(ctx, actual, data); err != nil {
		return "", err
	}
	return actual, nil
}

// Get fetches stored bytes by digest.
func (s *Store) Get(ctx context.Context, digest string) ([]byte, error) {
	rec, err := s.repo.Get(ctx, digest)
	if err != nil {
		if err == database.ErrTailsFileNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec.Data, nil
}
