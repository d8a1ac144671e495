// Copyright 2025 Certen Protocol
//
// Controller Repository - CRUD operations for hosted did:webvh identifiers.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ControllerRepository handles hosted-identifier record operations.
type ControllerRepository struct {
	client *Client
}

// NewControllerRepository creates a new controller repository.
func NewControllerRepository(client *Client) *ControllerRepository {
	return &ControllerRepository{client: client}
}

// Create inserts a new controller row for an identifier's first log entry.
// Returns ErrAliasExists if the (namespace, alias) pair is already taken.
func (r *ControllerRepository) Create(ctx context.Context, input *NewControllerRecord) (*Controller, error) {
	c := &Controller{
		DID:         input.DID,
		SCID:        input.SCID,
		Namespace:   input.Namespace,
		Alias:       input.Alias,
		Log:         input.Log,
		Document:    input.Document,
		VersionID:   input.VersionID,
		VersionTime: input.VersionTime,
	}

	query := `
		INSERT INTO controllers (
			did, scid, namespace, alias, log, document, version_id, version_time,
			deactivated, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, now(), now())
		RETURNING created_at, updated_at`

	err := r.client.QueryRowContext(ctx, query,
		c.DID, c.SCID, c.Namespace, c.Alias, c.Log, c.Document, c.VersionID, c.VersionTime,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	if isUniqueViolation(err) {
		return nil, ErrAliasExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}
	return c, nil
}

// Update appends a new state to an existing identifier: replaces the log,
// document, versionId/versionTime, and deactivated flag.
func (r *ControllerRepository) Update(ctx context.Context, did string, log, document json.RawMessage, versionID string, versionTime time.Time, deactivated bool) (*Controller, error) {
	query := `
		UPDATE controllers
		SET log = $2, document = $3, version_id = $4, version_time = $5,
			deactivated = $6, updated_at = now()
		WHERE did = $1
		RETURNING did, scid, namespace, alias, log, document, version_id, version_time,
			deactivated, witness_file, whois, created_at, updated_at`

	c := &Controller{}
	var witnessFile, whois sql.NullString
	err := r.client.QueryRowContext(ctx, query, did, log, document, versionID, versionTime, deactivated).Scan(
		&c.DID, &c.SCID, &c.Namespace, &c.Alias, &c.Log, &c.Document, &c.VersionID, &c.VersionTime,
		&c.Deactivated, &witnessFile, &whois, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrControllerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update controller: %w", err)
	}
	if witnessFile.Valid {
		c.WitnessFile = json.RawMessage(witnessFile.String)
	}
	if whois.Valid {
		c.Whois = json.RawMessage(whois.String)
	}
	return c, nil
}

// SetWitnessFile persists the did-witness.json contents alongside the log.
func (r *ControllerRepository) SetWitnessFile(ctx context.Context, did string, witnessFile json.RawMessage) error {
	res, err := r.client.ExecContext(ctx, `UPDATE controllers SET witness_file = $2, updated_at = now() WHERE did = $1`, did, witnessFile)
	if err != nil {
		return fmt.Errorf("failed to set witness file: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrControllerNotFound
	}
	return nil
}

// SetWhois persists the latest WHOIS verifiable presentation, replacing any
// prior value — WHOIS is a single latest value per identifier, not a log.
func (r *ControllerRepository) SetWhois(ctx context.Context, did string, whois json.RawMessage) error {
	res, err := r.client.ExecContext(ctx, `UPDATE controllers SET whois = $2, updated_at = now() WHERE did = $1`, did, whois)
	if err != nil {
		return fmt.Errorf("failed to set whois: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrControllerNotFound
	}
	return nil
}

// GetByDID retrieves a controller by its full DID.
func (r *ControllerRepository) GetByDID(ctx context.Context, did string) (*Controller, error) {
	return r.scanOne(ctx, `
		SELECT did, scid, namespace, alias, log, document, version_id, version_time,
			deactivated, witness_file, whois, created_at, updated_at
		FROM controllers WHERE did = $1`, did)
}

// GetByAlias retrieves a controller by its (namespace, alias) routing key.
func (r *ControllerRepository) GetByAlias(ctx context.Context, namespace, alias string) (*Controller, error) {
	return r.scanOne(ctx, `
		SELECT did, scid, namespace, alias, log, document, version_id, version_time,
			deactivated, witness_file, whois, created_at, updated_at
		FROM controllers WHERE namespace = $1 AND alias = $2`, namespace, alias)
}

// GetBySCID retrieves a controller by its self-certifying identifier.
func (r *ControllerRepository) GetBySCID(ctx context.Context, scid string) (*Controller, error) {
	return r.scanOne(ctx, `
		SELECT did, scid, namespace, alias, log, document, version_id, version_time,
			deactivated, witness_file, whois, created_at, updated_at
		FROM controllers WHERE scid = $1`, scid)
}

func (r *ControllerRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*Controller, error) {
	c := &Controller{}
	var witnessFile, whois sql.NullString
	err := r.client.QueryRowContext(ctx, query, args...).Scan(
		&c.DID, &c.SCID, &c.Namespace, &c.Alias, &c.Log, &c.Document, &c.VersionID, &c.VersionTime,
		&c.Deactivated, &witnessFile, &whois, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrControllerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query controller: %w", err)
	}
	if witnessFile.Valid {
		c.WitnessFile = json.RawMessage(witnessFile.String)
	}
	if whois.Valid {
		c.Whois = json.RawMessage(whois.String)
	}
	return c, nil
}

// CountControllers returns the total number of hosted identifiers,
// optionally restricted to a namespace.
func (r *ControllerRepository) CountControllers(ctx context.Context, namespace string) (int, error) {
	var count int
	var err error
	if namespace == "" {
		err = r.client.QueryRowContext(ctx, `SELECT count(*) FROM controllers`).Scan(&count)
	} else {
		err = r.client.QueryRowContext(ctx, `SELECT count(*) FROM controllers WHERE namespace = $1`, namespace).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count controllers: %w", err)
	}
	return count, nil
}

// GetControllers returns a page of hosted identifiers ordered by creation
// time, optionally restricted to a namespace, for the operator controller
// listing. limit <= 0 defaults to 50.
func (r *ControllerRepository) GetControllers(ctx context.Context, namespace string, limit, offset int) ([]*Controller, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT did, scid, namespace, alias, log, document, version_id, version_time,
			deactivated, witness_file, whois, created_at, updated_at
		FROM controllers`
	args := []interface{}{}
	if namespace != "" {
		query += ` WHERE namespace = $1`
		args = append(args, namespace)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list controllers: %w", err)
	}
	defer rows.Close()

	var out []*Controller
	for rows.Next() {
		c := &Controller{}
		var witnessFile, whois sql.NullString
		if err := rows.Scan(
			&c.DID, &c.SCID, &c.Namespace, &c.Alias, &c.Log, &c.Document, &c.VersionID, &c.VersionTime,
			&c.Deactivated, &witnessFile, &whois, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan controller: %w", err)
		}
		if witnessFile.Valid {
			c.WitnessFile = json.RawMessage(witnessFile.String)
		}
		if whois.Valid {
			c.Whois = json.RawMessage(whois.String)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") || strings.Contains(msg, "23505")
}
