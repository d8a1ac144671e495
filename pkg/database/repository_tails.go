// Copyright 2025 Certen Protocol
//
// Tails Repository - content-addressed binary blob storage.
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TailsRepository handles content-addressed tails-file storage.
type TailsRepository struct {
	client *Client
}

// NewTailsRepository creates a new tails repository.
func NewTailsRepository(client *Client) *TailsRepository {
	return &TailsRepository{client: client}
}

// Put stores a tails file, keyed by its content digest. Re-submitting the
// same digest with identical bytes is a no-op.
func (r *TailsRepository) Put(ctx context.Context, digest string, data []byte) (*TailsFile, error) {
	t := &TailsFile{Digest: digest, Data: data, Size: len(data)}
	query := `
		INSERT INTO tails_files (digest, data, size_bytes, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (digest) DO NOTHING
		RETURNING created_at`

	err := r.client.QueryRowContext(ctx, query, t.Digest, t.Data, t.Size).Scan(&t.CreatedAt)
	if err == sql.ErrNoRows {
		// Already present with this digest; fetch the existing record.
		return r.Get(ctx, digest)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store tails file: %w", err)
	}
	return t, nil
}

// Get retrieves a tails file by digest.
func (r *TailsRepository) Get(ctx context.Context, digest string) (*TailsFile, error) {
	t := &TailsFile{}
	err := r.client.QueryRowContext(ctx, `
		SELECT digest, data, size_bytes, created_at FROM tails_files WHERE digest = $1`, digest).
		Scan(&t.Digest, &t.Data, &t.Size, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTailsFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tails file: %w", err)
	}
	return t, nil
}
