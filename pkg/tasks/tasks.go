// Copyright 2025 Certen Protocol
//
// Package tasks implements the one-shot startup tasks run while the
// service comes up: reconciling the configured policy into the database
// and process-wide policy.Store, and seeding the known-witness registry
// from configuration. Each task logs its own start/success, and records
// its own progress through database.TaskRepository rather than only
// in-memory state.
package tasks

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/didwebvh/webvh-hosting/pkg/config"
	"github.com/didwebvh/webvh-hosting/pkg/database"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
)

// Task type names recorded in the tasks table.
const (
	TypeReconcilePolicy        = "reconcile_policy"
	TypeRegisterInitialWitness = "register_initial_witness"
)

// Runner executes the startup tasks against a database and policy store.
type Runner struct {
	repos  *database.Repositories
	store  *policy.Store
	logger *log.Logger
}

// NewRunner creates a Runner. A nil logger defaults to one writing to
// os.Stdout with the package's prefix.
func NewRunner(repos *database.Repositories, store *policy.Store, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(os.Stdout, "[tasks] ", log.LstdFlags)
	}
	return &Runner{repos: repos, store: store, logger: logger}
}

// ReconcilePolicy writes cfg's policy fields into the database's singleton
// policy row and publishes the corresponding policy.Policy to the Store,
// so every process boots from (and converges toward) the same policy
// regardless of which instance last changed it.
func (r *Runner) ReconcilePolicy(ctx context.Context, cfg *config.Config) error {
	task, err := r.repos.Tasks.Create(ctx, TypeReconcilePolicy)
	if err != nil {
		return fmt.Errorf("reconcile policy: create task record: %w", err)
	}
	r.logger.Printf("reconciling policy (task %s)", task.ID)

	existing, err := r.repos.Policies.Get(ctx)
	if err != nil && err != database.ErrPolicyNotFound {
		r.fail(ctx, task.ID, err)
		return err
	}

	snapshot := &database.PolicySnapshot{
		Version:            "1.0",
		WitnessRequired:    cfg.PolicyWitnessRequired,
		Watcher:            cfg.PolicyWatcher,
		Portability:        cfg.PolicyPortability,
		Prerotation:        cfg.PolicyPrerotation,
		Endorsement:        cfg.PolicyEndorsement,
		Validity:           cfg.PolicyValidity,
		WitnessRegistryURL: cfg.WitnessRegistryURL,
	}
	if existing != nil {
		snapshot.ID = existing.ID
	}
	if _, err := r.repos.Policies.Upsert(ctx, snapshot); err != nil {
		r.fail(ctx, task.ID, err)
		return err
	}

	r.store.Publish(&policy.Policy{
		Version:            snapshot.Version,
		WitnessRequired:    snapshot.WitnessRequired,
		Watcher:            snapshot.Watcher,
		Portability:        snapshot.Portability,
		Prerotation:        snapshot.Prerotation,
		Endorsement:        snapshot.Endorsement,
		Validity:           snapshot.Validity,
		WitnessRegistryURL: snapshot.WitnessRegistryURL,
	}, nil)

	if err := r.repos.Tasks.UpdateProgress(ctx, task.ID, database.TaskStatusCompleted, 100, "policy reconciled"); err != nil {
		return err
	}
	r.logger.Printf("policy reconciled: witnessRequired=%v portability=%v prerotation=%v", snapshot.WitnessRequired, snapshot.Portability, snapshot.Prerotation)
	return nil
}

// RegisterInitialWitness seeds the known-witness registry, both in the
// database and the published policy.Store snapshot, from cfg's
// InitialWitnesses list (each entry a did:key multikey string).
func (r *Runner) RegisterInitialWitness(ctx context.Context, cfg *config.Config) error {
	task, err := r.repos.Tasks.Create(ctx, TypeRegisterInitialWitness)
	if err != nil {
		return fmt.Errorf("register initial witness: create task record: %w", err)
	}
	r.logger.Printf("registering %d initial witness(es) (task %s)", len(cfg.InitialWitnesses), task.ID)

	entries := make(map[string]policy.KnownWitness, len(cfg.InitialWitnesses))
	for _, multikey := range cfg.InitialWitnesses {
		did := "did:key:" + multikey
		if _, err := r.repos.Registries.Upsert(ctx, &database.RegistryEntry{DID: did}); err != nil {
			r.fail(ctx, task.ID, err)
			return err
		}
		entries[did] = policy.KnownWitness{}
	}

	rows, err := r.repos.Registries.List(ctx)
	if err != nil {
		r.fail(ctx, task.ID, err)
		return err
	}
	for _, row := range rows {
		entries[row.DID] = policy.KnownWitness{Name: row.Name, ServiceEndpoint: row.ServiceEndpoint}
	}

	r.store.Publish(nil, &policy.WitnessRegistry{Entries: entries})

	if err := r.repos.Tasks.UpdateProgress(ctx, task.ID, database.TaskStatusCompleted, 100, "witness registry seeded"); err != nil {
		return err
	}
	r.logger.Printf("witness registry seeded with %d entries", len(entries))
	return nil
}

func (r *Runner) fail(ctx context.Context, taskID string, cause error) {
	if err := r.repos.Tasks.UpdateProgress(ctx, taskID, database.TaskStatusFailed, 0, cause.Error()); err != nil {
		r.logger.Printf("failed to record task failure: %v", err)
	}
}
