package editlock

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock_store_test.go -package=editlock go-editlock Store

// Store persists edit leases. The Engine keeps no lease state of its own;
// every decision re-reads the store.
type Store interface {
	// Update runs fn against the leases of one target. Implementations must
	// serialize Update calls for the same target and apply fn's writes only
	// when it returns nil.
	Update(ctx context.Context, target Target, fn func(tx Tx) error) error

	// ListTarget returns every lease row of a target, expired rows included,
	// ordered by creation time.
	ListTarget(ctx context.Context, target Target) ([]Lease, error)

	// ListLive returns all leases that are live at now.
	ListLive(ctx context.Context, now time.Time) ([]Lease, error)

	// ListByHolder returns the holder's leases that are live at now.
	ListByHolder(ctx context.Context, holder string, now time.Time) ([]Lease, error)

	// DeleteByHolder removes the holder's leases on a target.
	DeleteByHolder(ctx context.Context, target Target, holder string) (int64, error)

	// DeleteBySession removes every lease of a session on a target.
	DeleteBySession(ctx context.Context, target Target, sessionID string) (int64, error)

	// DeleteExpired removes every lease expired at now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// DeleteExpiredTarget removes the expired leases of one target.
	DeleteExpiredTarget(ctx context.Context, target Target, now time.Time) (int64, error)
}

// Tx is the view of a single target inside Store.Update.
type Tx interface {
	// List returns the target's lease rows, expired included, oldest first.
	List(ctx context.Context) ([]Lease, error)

	// Insert adds a lease to the target.
	Insert(ctx context.Context, lease Lease) error

	// SetExpiry sets an absolute expiry on one lease.
	SetExpiry(ctx context.Context, leaseKey string, expiresAt time.Time) error

	// DeleteExpired removes the target's leases expired at now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
