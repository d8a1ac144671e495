// Copyright 2025 Certen Protocol
//
// Database types for webvh hosting storage. These map directly to the
// PostgreSQL schema defined in migrations/001_initial_schema.sql.
package database

import (
	"encoding/json"
	"time"
)

// ============================================================================
// CONTROLLER (identifier) TYPES
// ============================================================================

// Controller is the persisted record of a hosted did:webvh identifier: its
// full append-only log, the current resolved document, and routing info.
// Maps to: controllers table.
type Controller struct {
	DID             string          `db:"did" json:"did"`
	SCID            string          `db:"scid" json:"scid"`
	Namespace       string          `db:"namespace" json:"namespace"`
	Alias           string          `db:"alias" json:"alias"`
	Log             json.RawMessage `db:"log" json:"log"`             // JSON array of log entries (did.jsonl lines)
	Document        json.RawMessage `db:"document" json:"document"`   // current resolved did.json
	VersionID       string          `db:"version_id" json:"versionId"`
	VersionTime     time.Time       `db:"version_time" json:"versionTime"`
	Deactivated     bool            `db:"deactivated" json:"deactivated"`
	WitnessFile     json.RawMessage `db:"witness_file" json:"witnessFile,omitempty"` // did-witness.json contents
	Whois           json.RawMessage `db:"whois" json:"whois,omitempty"`              // latest WHOIS verifiable presentation
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// NewControllerRecord is the input to create a new controller row.
type NewControllerRecord struct {
	DID         string
	SCID        string
	Namespace   string
	Alias       string
	Log         json.RawMessage
	Document    json.RawMessage
	VersionID   string
	VersionTime time.Time
}

// ============================================================================
// RESOURCE TYPES
// ============================================================================

// Resource is a persisted attested resource bound to a hosted identifier.
// Maps to: resources table.
type Resource struct {
	ID           string          `db:"id" json:"id"` // "<did>/resources/<digest>"
	DID          string          `db:"did" json:"did"`
	Digest       string          `db:"digest" json:"digest"`
	ResourceType string          `db:"resource_type" json:"resourceType,omitempty"`
	ResourceName string          `db:"resource_name" json:"resourceName,omitempty"`
	Raw          json.RawMessage `db:"raw" json:"raw"` // full attestedResource document
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// NewResourceRecord is the input to create or replace a resource row.
type NewResourceRecord struct {
	ID           string
	DID          string
	Digest       string
	ResourceType string
	ResourceName string
	Raw          json.RawMessage
}

// ============================================================================
// POLICY TYPES
// ============================================================================

// PolicySnapshot is the persisted active policy row. Singleton: the table
// always has a single row with ID = 1.
// Maps to: policies table.
type PolicySnapshot struct {
	ID                 int       `db:"id" json:"-"`
	Version            string    `db:"version" json:"version"`
	WitnessRequired    bool      `db:"witness_required" json:"witnessRequired"`
	Watcher            string    `db:"watcher" json:"watcher,omitempty"`
	Portability        bool      `db:"portability" json:"portability"`
	Prerotation        bool      `db:"prerotation" json:"prerotation"`
	Endorsement        bool      `db:"endorsement" json:"endorsement"`
	Validity           int       `db:"validity" json:"validity"`
	WitnessRegistryURL string    `db:"witness_registry_url" json:"witnessRegistryUrl,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

// ============================================================================
// WITNESS REGISTRY TYPES
// ============================================================================

// RegistryEntry is a single known-witness row.
// Maps to: registries table.
type RegistryEntry struct {
	DID             string    `db:"did" json:"id"`
	Name            string    `db:"name" json:"name,omitempty"`
	ServiceEndpoint string    `db:"service_endpoint" json:"serviceEndpoint,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// ============================================================================
// TAILS FILE TYPES
// ============================================================================

// TailsFile is a persisted content-addressed binary blob.
// Maps to: tails_files table.
type TailsFile struct {
	Digest    string    `db:"digest" json:"digest"`
	Data      []byte    `db:"data" json:"-"`
	Size      int       `db:"size_bytes" json:"sizeBytes"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ============================================================================
// TASK TYPES
// ============================================================================

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is a persisted record of a one-shot startup or background job.
// Maps to: tasks table.
type Task struct {
	ID        string     `db:"id" json:"id"`
	Type      string     `db:"type" json:"type"`
	Status    TaskStatus `db:"status" json:"status"`
	Progress  int        `db:"progress" json:"progress"`
	Message   string     `db:"message" json:"message,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}
