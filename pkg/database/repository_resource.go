// Copyright 2025 Certen Protocol
//
// Resource Repository - CRUD operations for attested resources.
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// ResourceRepository handles attested-resource record operations.
type ResourceRepository struct {
	client *Client
}

// NewResourceRepository creates a new resource repository.
func NewResourceRepository(client *Client) *ResourceRepository {
	return &ResourceRepository{client: client}
}

// Upsert inserts a new attested resource, or replaces it in place when the
// same content-addressed id is resubmitted with a newer controller proof.
func (r *ResourceRepository) Upsert(ctx context.Context, input *NewResourceRecord) (*Resource, error) {
	query := `
		INSERT INTO resources (id, did, digest, resource_type, resource_name, raw, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			resource_type = EXCLUDED.resource_type,
			resource_name = EXCLUDED.resource_name,
			raw = EXCLUDED.raw,
			updated_at = now()
		RETURNING created_at, updated_at`

	res := &Resource{
		ID:           input.ID,
		DID:          input.DID,
		Digest:       input.Digest,
		ResourceType: input.ResourceType,
		ResourceName: input.ResourceName,
		Raw:          input.Raw,
	}
	err := r.client.QueryRowContext(ctx, query,
		res.ID, res.DID, res.Digest, res.ResourceType, res.ResourceName, res.Raw,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert resource: %w", err)
	}
	return res, nil
}

// GetByID retrieves a resource by its full "<did>/resources/<digest>" id.
func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	res := &Resource{}
	err := r.client.QueryRowContext(ctx, `
		SELECT id, did, digest, resource_type, resource_name, raw, created_at, updated_at
		FROM resources WHERE id = $1`, id).Scan(
		&res.ID, &res.DID, &res.Digest, &res.ResourceType, &res.ResourceName, &res.Raw,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query resource: %w", err)
	}
	return res, nil
}

// ListByDID returns all resources attested under a given identifier.
func (r *ResourceRepository) ListByDID(ctx context.Context, did string) ([]*Resource, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT id, did, digest, resource_type, resource_name, raw, created_at, updated_at
		FROM resources WHERE did = $1 ORDER BY created_at`, did)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var out []*Resource
	for rows.Next() {
		res := &Resource{}
		if err := rows.Scan(&res.ID, &res.DID, &res.Digest, &res.ResourceType, &res.ResourceName,
			&res.Raw, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
