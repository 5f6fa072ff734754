package database

import (
	"errors"
	"regexp"
)

// Dialect selects the SQL flavour spoken by a connection.
type Dialect int

const (
	// Postgres is spoken through github.com/lib/pq.
	Postgres Dialect = iota
	// SQLite is spoken through modernc.org/sqlite.
	SQLite
)

var (
	// ErrInvalidTableName is returned when the table prefix contains invalid characters
	ErrInvalidTableName = errors.New("table name must contain only lowercase letters, numbers, and underscores, and start with a letter")

	validTableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// lockTargetSQL serializes admission for one (document_id, version_seq) pair
// inside the current transaction. SQLite needs no statement: its write
// transactions are already exclusive.
func (d Dialect) lockTargetSQL() string {
	if d == Postgres {
		return `SELECT pg_advisory_xact_lock(hashtextextended($1, $2));`
	}
	return ""
}

// ValidateTableName checks if the table prefix is a safe SQL identifier.
func ValidateTableName(name string) error {
	if name == "" {
		return errors.New("table name cannot be empty")
	}

	// Leaves room for the longest suffix ("_versions_document_idx") within Postgres' 63 byte limit.
	if len(name) > 40 {
		return errors.New("table name must be 40 characters or less")
	}

	if !validTableNamePattern.MatchString(name) {
		return ErrInvalidTableName
	}

	return nil
}
