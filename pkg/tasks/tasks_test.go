// Copyright 2025 Certen Protocol
package tasks

import (
	"context"
	"os"
	"testing"

	"github.com/didwebvh/webvh-hosting/pkg/config"
	"github.com/didwebvh/webvh-hosting/pkg/database"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
)

func newTestRunner(t *testing.T) (*Runner, *policy.Store) {
	t.Helper()
	dsn := os.Getenv("WEBVH_TEST_DB")
	if dsn == "" {
		t.Skip("Test database not configured")
	}
	cfg := &config.Config{DatabaseURL: dsn, DatabaseMaxConns: 5, DatabaseMinConns: 1, DatabaseMaxIdleTime: 300, DatabaseMaxLifetime: 3600}
	client, err := database.NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	if err := client.MigrateUp(context.Background()); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	store := policy.NewStore(&policy.Policy{Version: "0.0"}, &policy.WitnessRegistry{Entries: map[string]policy.KnownWitness{}})
	return NewRunner(database.NewRepositories(client), store, nil), store
}

func TestReconcilePolicyPublishesConfiguredPolicy(t *testing.T) {
	runner, store := newTestRunner(t)
	cfg := &config.Config{PolicyWitnessRequired: true, PolicyPortability: false, PolicyValidity: 30}

	if err := runner.ReconcilePolicy(context.Background(), cfg); err != nil {
		t.Fatalf("ReconcilePolicy: %v", err)
	}
	p := store.Policy()
	if !p.WitnessRequired {
		t.Fatalf("expected WitnessRequired=true after reconcile")
	}
	if p.Validity != 30 {
		t.Fatalf("expected Validity=30, got %d", p.Validity)
	}
}

func TestRegisterInitialWitnessSeedsRegistry(t *testing.T) {
	runner, store := newTestRunner(t)
	cfg := &config.Config{InitialWitnesses: []string{"z6MkExampleMultikey000000000000000000000000"}}

	if err := runner.RegisterInitialWitness(context.Background(), cfg); err != nil {
		t.Fatalf("RegisterInitialWitness: %v", err)
	}
	reg := store.Registry()
	if !reg.Contains("did:key:z6MkExampleMultikey000000000000000000000000") {
		t.Fatalf("expected registry to contain seeded witness")
	}
}
