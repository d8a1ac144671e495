// Copyright 2025 Certen Protocol
//
// Registry Repository - CRUD operations for the known-witness registry.
package database

import (
	"context"
	"fmt"
)

// RegistryRepository handles known-witness registry entries.
type RegistryRepository struct {
	client *Client
}

// NewRegistryRepository creates a new registry repository.
func NewRegistryRepository(client *Client) *RegistryRepository {
	return &RegistryRepository{client: client}
}

// Upsert adds or updates a known-witness entry.
func (r *RegistryRepository) Upsert(ctx context.Context, entry *RegistryEntry) (*RegistryEntry, error) {
	query := `
		INSERT INTO registries (did, name, service_endpoint, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (did) DO UPDATE SET
			name = EXCLUDED.name,
			service_endpoint = EXCLUDED.service_endpoint,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := r.client.QueryRowContext(ctx, query, entry.DID, entry.Name, entry.ServiceEndpoint).
		Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert registry entry: %w", err)
	}
	return entry, nil
}

// Remove deletes a known-witness entry.
func (r *RegistryRepository) Remove(ctx context.Context, did string) error {
	if _, err := r.client.ExecContext(ctx, `DELETE FROM registries WHERE did = $1`, did); err != nil {
		return fmt.Errorf("failed to remove registry entry: %w", err)
	}
	return nil
}

// List returns all known-witness entries.
func (r *RegistryRepository) List(ctx context.Context) ([]*RegistryEntry, error) {
	rows, err := r.client.QueryContext(ctx, `
		SELECT did, name, service_endpoint, created_at, updated_at
		FROM registries ORDER BY did`)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry entries: %w", err)
	}
	defer rows.Close()

	var out []*RegistryEntry
	for rows.Next() {
		e := &RegistryEntry{}
		if err := rows.Scan(&e.DID, &e.Name, &e.ServiceEndpoint, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan registry entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
