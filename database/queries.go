package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is an interface that both sql.DB and sql.Tx implement.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries provides table-aware lease operations.
type Queries struct {
	db        DBTX
	dialect   Dialect
	tableName string
}

// NewQueries creates a new Queries instance with the given table name.
func NewQueries(db DBTX, dialect Dialect, tableName string) *Queries {
	return &Queries{
		db:        db,
		dialect:   dialect,
		tableName: tableName,
	}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return NewQueries(tx, q.dialect, q.tableName)
}

// TableName returns the table prefix.
func (q *Queries) TableName() string {
	return q.tableName
}

// Dialect returns the SQL dialect the queries are written for.
func (q *Queries) Dialect() Dialect {
	return q.dialect
}

const leaseColumns = `document_id, version_seq, lease_key, holder, session_id, co_editing, created_at, expires_at`

var (
	listTargetLeasesSQL = `
SELECT ` + leaseColumns + `
FROM %s_leases
WHERE document_id = $1 AND version_seq = $2
ORDER BY created_at ASC, lease_key ASC;`

	listLiveLeasesSQL = `
SELECT ` + leaseColumns + `
FROM %s_leases
WHERE expires_at > $1
ORDER BY document_id ASC, version_seq ASC, created_at ASC;`

	listLeasesByHolderSQL = `
SELECT ` + leaseColumns + `
FROM %s_leases
WHERE holder = $1 AND expires_at > $2
ORDER BY document_id ASC, version_seq ASC;`

	insertLeaseSQL = `
INSERT INTO %s_leases (` + leaseColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	setLeaseExpirySQL = `
UPDATE %s_leases
SET expires_at = $4
WHERE document_id = $1 AND version_seq = $2 AND lease_key = $3;`

	deleteLeasesByHolderSQL = `
DELETE FROM %s_leases
WHERE document_id = $1 AND version_seq = $2 AND holder = $3;`

	deleteLeasesBySessionSQL = `
DELETE FROM %s_leases
WHERE document_id = $1 AND version_seq = $2 AND session_id = $3;`

	deleteExpiredLeasesSQL = `
DELETE FROM %s_leases
WHERE expires_at <= $1;`

	deleteExpiredTargetLeasesSQL = `
DELETE FROM %s_leases
WHERE document_id = $1 AND version_seq = $2 AND expires_at <= $3;`
)

// LockTarget blocks other transactions from admitting leases on the same target
// until the surrounding transaction ends. Must be called on a transaction.
func (q *Queries) LockTarget(ctx context.Context, documentID string, versionSeq int) error {
	var query = q.dialect.lockTargetSQL()
	if query == "" {
		return nil
	}

	var key = fmt.Sprintf("%s/%s", q.tableName, documentID)
	if _, err := q.db.ExecContext(ctx, query, key, int64(versionSeq)); err != nil {
		return fmt.Errorf("failed to lock target: %w", err)
	}
	return nil
}

// ListTargetLeases returns every lease row for a target, expired ones included,
// ordered by creation time.
func (q *Queries) ListTargetLeases(ctx context.Context, documentID string, versionSeq int) ([]*LeaseRecord, error) {
	var records, err = q.queryLeases(ctx, fmt.Sprintf(listTargetLeasesSQL, q.tableName), documentID, versionSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to list target leases: %w", err)
	}
	return records, nil
}

// ListLiveLeases returns all leases that have not expired at now.
func (q *Queries) ListLiveLeases(ctx context.Context, now time.Time) ([]*LeaseRecord, error) {
	var records, err = q.queryLeases(ctx, fmt.Sprintf(listLiveLeasesSQL, q.tableName), toMicros(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list live leases: %w", err)
	}
	return records, nil
}

// ListLeasesByHolder returns the live leases held by holder.
func (q *Queries) ListLeasesByHolder(ctx context.Context, holder string, now time.Time) ([]*LeaseRecord, error) {
	var records, err = q.queryLeases(ctx, fmt.Sprintf(listLeasesByHolderSQL, q.tableName), holder, toMicros(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list leases by holder: %w", err)
	}
	return records, nil
}

// InsertLease inserts a lease. Fails if the lease key or the holder already
// has a row for the target.
func (q *Queries) InsertLease(ctx context.Context, lease *LeaseRecord) error {
	var query = fmt.Sprintf(insertLeaseSQL, q.tableName)
	_, err := q.db.ExecContext(ctx, query,
		lease.DocumentID, lease.VersionSeq, lease.LeaseKey, lease.Holder, lease.SessionID,
		lease.CoEditing, toMicros(lease.CreatedAt), toMicros(lease.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lease: %w", err)
	}
	return nil
}

// SetLeaseExpiry sets an absolute expiry on one lease and reports rows affected.
func (q *Queries) SetLeaseExpiry(ctx context.Context, documentID string, versionSeq int, leaseKey string, expiresAt time.Time) (int64, error) {
	var n, err = q.execAffected(ctx, fmt.Sprintf(setLeaseExpirySQL, q.tableName),
		documentID, versionSeq, leaseKey, toMicros(expiresAt))
	if err != nil {
		return 0, fmt.Errorf("failed to set lease expiry: %w", err)
	}
	return n, nil
}

// DeleteLeasesByHolder removes the holder's leases on a target.
func (q *Queries) DeleteLeasesByHolder(ctx context.Context, documentID string, versionSeq int, holder string) (int64, error) {
	var n, err = q.execAffected(ctx, fmt.Sprintf(deleteLeasesByHolderSQL, q.tableName), documentID, versionSeq, holder)
	if err != nil {
		return 0, fmt.Errorf("failed to delete leases by holder: %w", err)
	}
	return n, nil
}

// DeleteLeasesBySession removes every lease of a session on a target.
func (q *Queries) DeleteLeasesBySession(ctx context.Context, documentID string, versionSeq int, sessionID string) (int64, error) {
	var n, err = q.execAffected(ctx, fmt.Sprintf(deleteLeasesBySessionSQL, q.tableName), documentID, versionSeq, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete leases by session: %w", err)
	}
	return n, nil
}

// DeleteExpiredLeases removes all leases whose expiry is at or before now.
func (q *Queries) DeleteExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	var n, err = q.execAffected(ctx, fmt.Sprintf(deleteExpiredLeasesSQL, q.tableName), toMicros(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired leases: %w", err)
	}
	return n, nil
}

// DeleteExpiredTargetLeases removes the expired leases of one target.
func (q *Queries) DeleteExpiredTargetLeases(ctx context.Context, documentID string, versionSeq int, now time.Time) (int64, error) {
	var n, err = q.execAffected(ctx, fmt.Sprintf(deleteExpiredTargetLeasesSQL, q.tableName), documentID, versionSeq, toMicros(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired target leases: %w", err)
	}
	return n, nil
}

func (q *Queries) queryLeases(ctx context.Context, query string, args ...interface{}) ([]*LeaseRecord, error) {
	var rows, err = q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leases []*LeaseRecord
	for rows.Next() {
		var (
			lease     LeaseRecord
			createdAt int64
			expiresAt int64
		)
		if err := rows.Scan(&lease.DocumentID, &lease.VersionSeq, &lease.LeaseKey, &lease.Holder,
			&lease.SessionID, &lease.CoEditing, &createdAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan lease: %w", err)
		}
		lease.CreatedAt = fromMicros(createdAt)
		lease.ExpiresAt = fromMicros(expiresAt)
		leases = append(leases, &lease)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return leases, nil
}

func (q *Queries) execAffected(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var result, err = q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
