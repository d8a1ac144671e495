// Copyright 2025 Certen Protocol
//
// Policy Repository - persistence for the single active policy snapshot.
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// PolicyRepository handles the singleton active-policy row.
type PolicyRepository struct {
	client *Client
}

// NewPolicyRepository creates a new policy repository.
func NewPolicyRepository(client *Client) *PolicyRepository {
	return &PolicyRepository{client: client}
}

// Get returns the active policy snapshot.
func (r *PolicyRepository) Get(ctx context.Context) (*PolicySnapshot, error) {
	p := &PolicySnapshot{}
	var watcher, registryURL sql.NullString
	err := r.client.QueryRowContext(ctx, `
		SELECT id, version, witness_required, watcher, portability, prerotation,
			endorsement, validity, witness_registry_url, created_at, updated_at
		FROM policies WHERE id = 1`).Scan(
		&p.ID, &p.Version, &p.WitnessRequired, &watcher, &p.Portability, &p.Prerotation,
		&p.Endorsement, &p.Validity, &registryURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query policy: %w", err)
	}
	p.Watcher = watcher.String
	p.WitnessRegistryURL = registryURL.String
	return p, nil
}

// Upsert replaces the singleton active policy row.
func (r *PolicyRepository) Upsert(ctx context.Context, p *PolicySnapshot) (*PolicySnapshot, error) {
	query := `
		INSERT INTO policies (id, version, witness_required, watcher, portability,
			prerotation, endorsement, validity, witness_registry_url, created_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			witness_required = EXCLUDED.witness_required,
			watcher = EXCLUDED.watcher,
			portability = EXCLUDED.portability,
			prerotation = EXCLUDED.prerotation,
			endorsement = EXCLUDED.endorsement,
			validity = EXCLUDED.validity,
			witness_registry_url = EXCLUDED.witness_registry_url,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err := r.client.QueryRowContext(ctx, query,
		p.Version, p.WitnessRequired, p.Watcher, p.Portability, p.Prerotation,
		p.Endorsement, p.Validity, p.WitnessRegistryURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert policy: %w", err)
	}
	return p, nil
}
