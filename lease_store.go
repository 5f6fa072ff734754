package editlock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go-editlock/database"
)

// SQLStore persists leases in Postgres or SQLite through database.Queries.
type SQLStore struct {
	db      *sql.DB
	queries *database.Queries
}

// NewSQLStore creates a SQLStore over the table prefix. Call Migrate first.
func NewSQLStore(db *sql.DB, dialect database.Dialect, tableName string) (*SQLStore, error) {
	if err := database.ValidateTableName(tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	return &SQLStore{
		db:      db,
		queries: database.NewQueries(db, dialect, tableName),
	}, nil
}

// Migrate creates the lease table and indexes.
func (s *SQLStore) Migrate() error {
	var tableName = s.tableName()
	if err := database.Migrate(s.db, tableName); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Update runs fn inside a transaction holding the target's admission lock.
func (s *SQLStore) Update(ctx context.Context, target Target, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var queries = s.queries.WithTx(tx)
	if err = queries.LockTarget(ctx, target.DocumentID, target.VersionSeq); err != nil {
		return err
	}

	if err = fn(&sqlTx{target: target, queries: queries}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListTarget returns every lease row of a target, oldest first.
func (s *SQLStore) ListTarget(ctx context.Context, target Target) ([]Lease, error) {
	var records, err = s.queries.ListTargetLeases(ctx, target.DocumentID, target.VersionSeq)
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

// ListLive returns all leases live at now.
func (s *SQLStore) ListLive(ctx context.Context, now time.Time) ([]Lease, error) {
	var records, err = s.queries.ListLiveLeases(ctx, now)
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

// ListByHolder returns the holder's leases live at now.
func (s *SQLStore) ListByHolder(ctx context.Context, holder string, now time.Time) ([]Lease, error) {
	var records, err = s.queries.ListLeasesByHolder(ctx, holder, now)
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

// DeleteByHolder removes the holder's leases on a target.
func (s *SQLStore) DeleteByHolder(ctx context.Context, target Target, holder string) (int64, error) {
	return s.queries.DeleteLeasesByHolder(ctx, target.DocumentID, target.VersionSeq, holder)
}

// DeleteBySession removes every lease of a session on a target.
func (s *SQLStore) DeleteBySession(ctx context.Context, target Target, sessionID string) (int64, error) {
	return s.queries.DeleteLeasesBySession(ctx, target.DocumentID, target.VersionSeq, sessionID)
}

// DeleteExpired removes every expired lease.
func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.queries.DeleteExpiredLeases(ctx, now)
}

// DeleteExpiredTarget removes the expired leases of one target.
func (s *SQLStore) DeleteExpiredTarget(ctx context.Context, target Target, now time.Time) (int64, error) {
	return s.queries.DeleteExpiredTargetLeases(ctx, target.DocumentID, target.VersionSeq, now)
}

func (s *SQLStore) tableName() string {
	return s.queries.TableName()
}

type sqlTx struct {
	target  Target
	queries *database.Queries
}

func (tx *sqlTx) List(ctx context.Context) ([]Lease, error) {
	var records, err = tx.queries.ListTargetLeases(ctx, tx.target.DocumentID, tx.target.VersionSeq)
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

func (tx *sqlTx) Insert(ctx context.Context, lease Lease) error {
	return tx.queries.InsertLease(ctx, toRecord(lease))
}

func (tx *sqlTx) SetExpiry(ctx context.Context, leaseKey string, expiresAt time.Time) error {
	var n, err = tx.queries.SetLeaseExpiry(ctx, tx.target.DocumentID, tx.target.VersionSeq, leaseKey, expiresAt)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("lease %q: %w", leaseKey, ErrNotFound)
	}
	return nil
}

func (tx *sqlTx) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return tx.queries.DeleteExpiredTargetLeases(ctx, tx.target.DocumentID, tx.target.VersionSeq, now)
}

func toRecord(l Lease) *database.LeaseRecord {
	return &database.LeaseRecord{
		DocumentID: l.DocumentID,
		VersionSeq: l.VersionSeq,
		LeaseKey:   l.LeaseKey,
		Holder:     l.Holder,
		SessionID:  l.SessionID,
		CoEditing:  l.CoEditing,
		CreatedAt:  l.CreatedAt,
		ExpiresAt:  l.ExpiresAt,
	}
}

func fromRecords(records []*database.LeaseRecord) []Lease {
	var leases = make([]Lease, len(records))
	for i, record := range records {
		leases[i] = Lease{
			Target:    Target{DocumentID: record.DocumentID, VersionSeq: record.VersionSeq},
			LeaseKey:  record.LeaseKey,
			Holder:    record.Holder,
			SessionID: record.SessionID,
			CoEditing: record.CoEditing,
			CreatedAt: record.CreatedAt,
			ExpiresAt: record.ExpiresAt,
		}
	}
	return leases
}
