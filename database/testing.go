package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PostgresURLEnv names the environment variable that enables Postgres-backed tests.
const PostgresURLEnv = "EDITLOCK_TEST_POSTGRES_URL"

// TestingT is an interface for testing compatibility.
type TestingT interface {
	Logf(format string, args ...any)
	Skipf(format string, args ...any)
	FailNow()
	Cleanup(func())
	TempDir() string
}

// SetupTestDatabase creates a Postgres test database with isolated schema.
// The test is skipped when EDITLOCK_TEST_POSTGRES_URL is not set.
func SetupTestDatabase(t TestingT) *sql.DB {
	var connURL = os.Getenv(PostgresURLEnv)
	if connURL == "" {
		t.Skipf("%s not set; skipping Postgres test", PostgresURLEnv)
		return nil
	}

	var schema = fmt.Sprintf("test_%s", uuid.New().String()[0:8])

	// First, connect to create the schema
	conn, err := sql.Open("postgres", connURL)
	if err != nil {
		t.Logf("failed to connect to database. Is your local database running?: %v", err)
		t.FailNow()
	}

	_, err = conn.Exec("CREATE SCHEMA IF NOT EXISTS " + schema)
	if err != nil {
		t.Logf("Failed to create schema %s", schema)
		t.Logf("Error: %s", err)
		t.FailNow()
	}

	_ = conn.Close()

	// Create a new connection with the schema in the connection string
	var separator = "?"
	if strings.Contains(connURL, "?") {
		separator = "&"
	}
	conn, err = sql.Open("postgres", connURL+separator+"search_path="+schema)
	if err != nil {
		t.Logf("failed to connect to database with schema: %v", err)
		t.FailNow()
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

// SetupSQLiteDatabase opens a file-backed SQLite database in the test's temp dir.
func SetupSQLiteDatabase(t TestingT) *sql.DB {
	var path = filepath.Join(t.TempDir(), "editlock.db")

	conn, _, err := Open(context.Background(), "sqlite://"+path)
	if err != nil {
		t.Logf("failed to open sqlite database: %v", err)
		t.FailNow()
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}
