// Package testdb provides database handles and environment checks for tests.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLitePath returns the path of a fresh SQLite database file in a
// per-test temporary directory.
func SQLitePath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// OpenSQLite opens the SQLite database at path with foreign keys enabled.
// The file is shared between handles, so data written through one handle
// is visible to the next.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// RequireDocker skips the test when no container runtime is reachable,
// unless REQUIRE_DOCKER=true, in which case the test fails instead.
// IGNORE_DOCKER_TESTS=true always skips.
func RequireDocker(t testing.TB) {
	t.Helper()
	if reason := DockerUnavailable(); reason != "" {
		if os.Getenv("REQUIRE_DOCKER") == "true" {
			t.Fatalf("Docker required but unavailable: %s", reason)
		}
		t.Skipf("Docker not available: %s", reason)
	}
}

// DockerUnavailable returns why Docker tests cannot run, or "" if they can.
func DockerUnavailable() string {
	if os.Getenv("IGNORE_DOCKER_TESTS") == "true" {
		return "IGNORE_DOCKER_TESTS=true"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		return "docker info failed: " + err.Error()
	}
	return ""
}

// PostgresURL returns POSTGRES_TEST_URL after checking the server answers,
// skipping the test otherwise (or failing when REQUIRE_TEST_DB=true).
func PostgresURL(t testing.TB) string {
	t.Helper()

	requireDB := os.Getenv("REQUIRE_TEST_DB") == "true"
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		if requireDB {
			t.Fatal("PostgreSQL required but POSTGRES_TEST_URL is not set")
		}
		t.Skip("POSTGRES_TEST_URL not set")
	}

	db, err := sql.Open("postgres", url)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		_ = db.Close()
	}
	if err != nil {
		if requireDB {
			t.Fatalf("PostgreSQL required but unreachable: %v", err)
		}
		t.Skipf("PostgreSQL not reachable: %v", err)
	}
	return url
}
