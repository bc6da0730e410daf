// Package testenv provides the external databases used by integration
// tests.
//
// Every helper skips the calling test when the environment variable naming
// its database is unset, so `go test ./...` stays hermetic by default.
package testenv

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	surrealdb "github.com/surrealdb/surrealdb.go"
)

const (
	// EnvSurrealDBURL names the SurrealDB endpoint, e.g. ws://localhost:8000.
	EnvSurrealDBURL = "SURREALDB_URL"
	// EnvPostgresDSN names the Postgres connection string.
	EnvPostgresDSN = "SURREALPORT_POSTGRES_DSN"
)

// SurrealDBURL returns the configured endpoint, or "" when unset.
func SurrealDBURL() string {
	return os.Getenv(EnvSurrealDBURL)
}

// SurrealDB connects as root to namespace/database and removes tables, or
// skips t when no endpoint is configured.
func SurrealDB(t testing.TB, namespace, database string, tables ...string) *surrealdb.DB {
	t.Helper()

	url := SurrealDBURL()
	if url == "" {
		t.Skipf("%s not set", EnvSurrealDBURL)
	}

	db, err := NewSurrealDB(context.Background(), url, namespace, database, tables...)
	if err != nil {
		t.Fatalf("surrealdb: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(context.Background())
	})
	return db
}

// NewSurrealDB connects to url as root and prepares namespace/database.
func NewSurrealDB(ctx context.Context, url, namespace, database string, tables ...string) (*surrealdb.DB, error) {
	if database == "" {
		return nil, fmt.Errorf("database name must be specified")
	}

	db, err := surrealdb.FromEndpointURLString(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if err = db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("failed to use database: %w", err)
	}

	token, err := db.SignIn(ctx, &surrealdb.Auth{
		Username: "root",
		Password: "root",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	if err = db.Authenticate(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	// REMOVE TABLE does not accept parameters.
	for _, table := range tables {
		if strings.ContainsAny(table, " ;`") {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
		if _, err = surrealdb.Query[[]any](ctx, db, "REMOVE TABLE IF EXISTS "+table, nil); err != nil {
			return nil, fmt.Errorf("failed to remove table %s: %w", table, err)
		}
	}

	return db, nil
}
