package database

import (
	"database/sql"
	"fmt"
)

// The DDL below is accepted verbatim by both Postgres and SQLite.
// Timestamps are stored as unix microseconds so that expiry comparisons
// behave identically on both engines.
var (
	createLeasesTableSQL = `
CREATE TABLE IF NOT EXISTS %s_leases (
    document_id   VARCHAR       NOT NULL,
    version_seq   INTEGER       NOT NULL,
    lease_key     VARCHAR       NOT NULL,
    holder        VARCHAR       NOT NULL,
    session_id    VARCHAR       NOT NULL,
    co_editing    BOOLEAN       NOT NULL,
    created_at    BIGINT        NOT NULL,
    expires_at    BIGINT        NOT NULL,

    PRIMARY KEY (document_id, version_seq, lease_key),
    UNIQUE (document_id, version_seq, holder),
    CHECK (expires_at > created_at)
);`

	createLeasesExpiryIndexSQL = `
CREATE INDEX IF NOT EXISTS %s_leases_expiry_idx
ON %s_leases (document_id, version_seq, expires_at);`

	createLeasesSessionIndexSQL = `
CREATE INDEX IF NOT EXISTS %s_leases_session_idx
ON %s_leases (document_id, version_seq, session_id);`

	createDocumentsTableSQL = `
CREATE TABLE IF NOT EXISTS %s_documents (
    id                      VARCHAR   NOT NULL PRIMARY KEY,
    state                   VARCHAR   NOT NULL,
    latest_version_seq      INTEGER   NOT NULL DEFAULT 0,
    published_version_seq   INTEGER
);`

	createVersionsTableSQL = `
CREATE TABLE IF NOT EXISTS %s_versions (
    document_id   VARCHAR   NOT NULL,
    version_seq   INTEGER   NOT NULL,
    format        VARCHAR   NOT NULL,
    created_at    BIGINT    NOT NULL,
    changelog     VARCHAR   NOT NULL DEFAULT '',

    PRIMARY KEY (document_id, version_seq, format)
);`

	createVersionsIndexSQL = `
CREATE INDEX IF NOT EXISTS %s_versions_document_idx
ON %s_versions (document_id, version_seq);`
)

// Migrate creates the leases table with its indexes.
func Migrate(db *sql.DB, tableName string) error {
	if err := ValidateTableName(tableName); err != nil {
		return err
	}

	if err := exec(db, fmt.Sprintf(createLeasesTableSQL, tableName)); err != nil {
		return fmt.Errorf("failed to create leases table: %w", err)
	}

	if err := exec(db, fmt.Sprintf(createLeasesExpiryIndexSQL, tableName, tableName)); err != nil {
		return fmt.Errorf("failed to create leases expiry index: %w", err)
	}

	if err := exec(db, fmt.Sprintf(createLeasesSessionIndexSQL, tableName, tableName)); err != nil {
		return fmt.Errorf("failed to create leases session index: %w", err)
	}

	return nil
}

// MigrateDocuments creates the document and version tables.
// In production these belong to the document service; this exists for development and tests.
func MigrateDocuments(db *sql.DB, tableName string) error {
	if err := ValidateTableName(tableName); err != nil {
		return err
	}

	if err := exec(db, fmt.Sprintf(createDocumentsTableSQL, tableName)); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	if err := exec(db, fmt.Sprintf(createVersionsTableSQL, tableName)); err != nil {
		return fmt.Errorf("failed to create versions table: %w", err)
	}

	if err := exec(db, fmt.Sprintf(createVersionsIndexSQL, tableName, tableName)); err != nil {
		return fmt.Errorf("failed to create versions index: %w", err)
	}

	return nil
}

func exec(db *sql.DB, query string) error {
	_, err := db.Exec(query)
	return err
}
