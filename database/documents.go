package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DocumentQueries reads document and version metadata. The editing core never
// writes these tables in production; the insert helpers serve development seeding and tests.
type DocumentQueries struct {
	db        DBTX
	tableName string
}

// NewDocumentQueries creates a new DocumentQueries instance with the given table prefix.
func NewDocumentQueries(db DBTX, tableName string) *DocumentQueries {
	return &DocumentQueries{
		db:        db,
		tableName: tableName,
	}
}

var (
	getDocumentSQL = `
SELECT id, state, latest_version_seq, published_version_seq
FROM %s_documents
WHERE id = $1;`

	upsertDocumentSQL = `
INSERT INTO %s_documents (id, state, latest_version_seq, published_version_seq)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id)
DO UPDATE SET
    state = EXCLUDED.state,
    latest_version_seq = EXCLUDED.latest_version_seq,
    published_version_seq = EXCLUDED.published_version_seq;`

	getLatestVersionSQL = `
SELECT document_id, version_seq, format, created_at, changelog
FROM %s_versions
WHERE document_id = $1
ORDER BY version_seq DESC, created_at DESC
LIMIT 1;`

	listVersionsSQL = `
SELECT document_id, version_seq, format, created_at, changelog
FROM %s_versions
WHERE document_id = $1
ORDER BY version_seq DESC, format ASC;`

	insertVersionSQL = `
INSERT INTO %s_versions (document_id, version_seq, format, created_at, changelog)
VALUES ($1, $2, $3, $4, $5);`
)

// GetDocument retrieves a document by id, or nil if it does not exist.
func (q *DocumentQueries) GetDocument(ctx context.Context, id string) (*DocumentRecord, error) {
	var (
		query     = fmt.Sprintf(getDocumentSQL, q.tableName)
		doc       DocumentRecord
		published sql.NullInt64
		err       = q.db.QueryRowContext(ctx, query, id).Scan(
			&doc.ID, &doc.State, &doc.LatestVersionSeq, &published,
		)
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if published.Valid {
		doc.PublishedVersionSeq = int(published.Int64)
	}
	return &doc, nil
}

// UpsertDocument inserts or updates a document.
func (q *DocumentQueries) UpsertDocument(ctx context.Context, doc *DocumentRecord) error {
	var (
		query     = fmt.Sprintf(upsertDocumentSQL, q.tableName)
		published sql.NullInt64
	)
	if doc.PublishedVersionSeq > 0 {
		published = sql.NullInt64{Int64: int64(doc.PublishedVersionSeq), Valid: true}
	}

	_, err := q.db.ExecContext(ctx, query, doc.ID, doc.State, doc.LatestVersionSeq, published)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// GetLatestVersion returns the highest version of a document, or nil if it has none.
func (q *DocumentQueries) GetLatestVersion(ctx context.Context, documentID string) (*VersionRecord, error) {
	var (
		query     = fmt.Sprintf(getLatestVersionSQL, q.tableName)
		version   VersionRecord
		createdAt int64
		err       = q.db.QueryRowContext(ctx, query, documentID).Scan(
			&version.DocumentID, &version.VersionSeq, &version.Format, &createdAt, &version.Changelog,
		)
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}

	version.CreatedAt = fromMicros(createdAt)
	return &version, nil
}

// ListVersions returns all versions of a document, newest first.
func (q *DocumentQueries) ListVersions(ctx context.Context, documentID string) ([]*VersionRecord, error) {
	var rows, err = q.db.QueryContext(ctx, fmt.Sprintf(listVersionsSQL, q.tableName), documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*VersionRecord
	for rows.Next() {
		var (
			version   VersionRecord
			createdAt int64
		)
		if err := rows.Scan(&version.DocumentID, &version.VersionSeq, &version.Format, &createdAt, &version.Changelog); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		version.CreatedAt = fromMicros(createdAt)
		versions = append(versions, &version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return versions, nil
}

// InsertVersion inserts a version row.
func (q *DocumentQueries) InsertVersion(ctx context.Context, version *VersionRecord) error {
	var createdAt = version.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := q.db.ExecContext(ctx, fmt.Sprintf(insertVersionSQL, q.tableName),
		version.DocumentID, version.VersionSeq, version.Format, toMicros(createdAt), version.Changelog,
	)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}
