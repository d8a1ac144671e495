// Copyright 2025 Certen Protocol
//
// Unit tests for ControllerRepository.
// Uses a test database when configured; skipped otherwise.

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("WEBVH_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("Failed to connect to test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

func testClient(t *testing.T) *Client {
	t.Helper()
	if testDB == nil {
		t.Skip("Test database not configured")
	}
	return &Client{db: testDB}
}

func TestCreateAndGetController(t *testing.T) {
	client := testClient(t)
	repo := NewControllerRepository(client)
	ctx := context.Background()

	did := "did:webvh:zTestSCID:example.com:ns1:alias-" + time.Now().Format("150405.000000")
	input := &NewControllerRecord{
		DID:         did,
		SCID:        "zTestSCID" + time.Now().Format("150405.000000"),
		Namespace:   "ns1",
		Alias:       "alias-" + time.Now().Format("150405.000000"),
		Log:         json.RawMessage(`[]`),
		Document:    json.RawMessage(`{"id":"` + did + `"}`),
		VersionID:   "1-zHash",
		VersionTime: time.Now().UTC(),
	}

	created, err := repo.Create(ctx, input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.DID != did {
		t.Fatalf("expected did %q, got %q", did, created.DID)
	}

	fetched, err := repo.GetByDID(ctx, did)
	if err != nil {
		t.Fatalf("GetByDID: %v", err)
	}
	if fetched.VersionID != "1-zHash" {
		t.Fatalf("expected versionId 1-zHash, got %q", fetched.VersionID)
	}
}

func TestGetByDIDNotFound(t *testing.T) {
	client := testClient(t)
	repo := NewControllerRepository(client)

	if _, err := repo.GetByDID(context.Background(), "did:webvh:zMissing:example.com:ns1:nope"); err != ErrControllerNotFound {
		t.Fatalf("expected ErrControllerNotFound, got %v", err)
	}
}
