package database

import (
	"context"
	"os"
	"testing"
)

// NewTestDB opens a migrated in-memory SQLite store that is closed when the test ends
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{Driver: string(SQLite3), DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// SkipIfNoDatabase skips the test if TEST_POSTGRES_DSN is not set and returns it otherwise
func SkipIfNoDatabase(t testing.TB) string {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping test: TEST_POSTGRES_DSN environment variable not set (database not available)")
	}
	return dsn
}
