// Copyright 2025 Certen Protocol
//
// Package database provides sentinel errors for repository operations.
// Explicit errors instead of nil, nil returns.

package database

import "errors"

// Sentinel errors for database operations.
var (
	// ErrNotFound is returned when a requested entity is not found in the database.
	ErrNotFound = errors.New("entity not found")

	// ErrControllerNotFound is returned when an identifier's controller record is not found.
	ErrControllerNotFound = errors.New("controller not found")

	// ErrAliasExists is returned when a (namespace, alias) pair is already taken.
	ErrAliasExists = errors.New("namespace/alias already exists")

	// ErrResourceNotFound is returned when an attested resource is not found.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrPolicyNotFound is returned when no policy snapshot has been persisted yet.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrRegistryNotFound is returned when no witness registry has been persisted yet.
	ErrRegistryNotFound = errors.New("witness registry not found")

	// ErrTailsFileNotFound is returned when a tails file is not found by digest.
	ErrTailsFileNotFound = errors.New("tails file not found")

	// ErrTaskNotFound is returned when a background task record is not found.
	ErrTaskNotFound = errors.New("task not found")
)
