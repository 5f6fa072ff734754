package editlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	for _, backend := range storeBackends {
		t.Run(backend.name, func(t *testing.T) {
			testStore(t, backend)
		})
	}
}

func testStore(t *testing.T, backend storeBackend) {
	var (
		ctx    = context.Background()
		base   = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		target = Target{DocumentID: "doc-1", VersionSeq: 1}
		other  = Target{DocumentID: "doc-2", VersionSeq: 3}

		newLease = func(target Target, holder, session string, created, expires time.Time) Lease {
			return Lease{
				Target:    target,
				LeaseKey:  "lock_" + holder + "_" + session,
				Holder:    holder,
				SessionID: session,
				CoEditing: true,
				CreatedAt: created,
				ExpiresAt: expires,
			}
		}
		insert = func(t *testing.T, store Store, leases ...Lease) {
			for _, l := range leases {
				err := store.Update(ctx, l.Target, func(tx Tx) error {
					return tx.Insert(ctx, l)
				})
				require.NoError(t, err)
			}
		}
	)

	t.Run("should insert and list target leases oldest first", func(t *testing.T) {
		// Arrange
		var store = backend.newStore(t)
		insert(t, store,
			newLease(target, "bob", "s1", base.Add(time.Second), base.Add(time.Hour)),
			newLease(target, "alice", "s1", base, base.Add(time.Hour)),
		)

		// Act
		leases, err := store.ListTarget(ctx, target)

		// Assert
		require.NoError(t, err)
		require.Len(t, leases, 2)
		assert.Equal(t, "alice", leases[0].Holder)
		assert.Equal(t, "bob", leases[1].Holder)
		assert.Equal(t, target, leases[0].Target)
		assert.True(t, leases[0].CoEditing)
		assert.True(t, base.Equal(leases[0].CreatedAt))
		assert.True(t, base.Add(time.Hour).Equal(leases[0].ExpiresAt))
	})

	t.Run("should return empty list for unknown target", func(t *testing.T) {
		// Arrange
		var store = backend.newStore(t)

		// Act
		leases, err := store.ListTarget(ctx, target)

		// Assert
		require.NoError(t, err)
		assert.Empty(t, leases)
	})

	t.Run("should reject second lease for same holder", func(t *testing.T) {
		// Arrange
		var store = backend.newStore(t)
		insert(t, store, newLease(target, "alice", "s1", base, base.Add(time.Hour)))

		// Act
		var err = store.Update(ctx, target, func(tx Tx) error {
			var l = newLease(target, "alice", "s2", base, base.Add(time.Hour))
			return tx.Insert(ctx, l)
		})

		// Assert
		require.Error(t, err)
		leases, listErr := store.ListTarget(ctx, target)
		require.NoError(t, listErr)
		assert.Len(t, leases, 1)
	})

	t.Run("should discard writes when update fails", func(t *testing.T) {
		// Arrange
		var (
			store   = backend.newStore(t)
			failure = errors.New("boom")
		)

		// Act
		var err = store.Update(ctx, target, func(tx Tx) error {
			if err := tx.Insert(ctx, newLease(target, "alice", "s1", base, base.Add(time.Hour))); err != nil {
				return err
			}
			return failure
		})

		// Assert
		assert.ErrorIs(t, err, failure)
		leases, listErr := store.ListTarget(ctx, target)
		require.NoError(t, listErr)
		assert.Empty(t, leases)
	})

	t.Run("should see own inserts inside update", func(t *testing.T) {
		// Arrange
		var (
			store = backend.newStore(t)
			seen  []Lease
		)

		// Act
		var err = store.Update(ctx, target, func(tx Tx) error {
			if err := tx.Insert(ctx, newLease(target, "alice", "s1", base, base.Add(time.Hour))); err != nil {
				return err
			}
			var err error
			seen, err = tx.List(ctx)
			return err
		})

		// Assert
		require.NoError(t, err)
		require.Len(t, seen, 1)
		assert.Equal(t, "alice", seen[0].Holder)
	})

	t.Run("should list rows oldest first inside update", func(t *testing.T) {
		// Arrange
		var (
			store = backend.newStore(t)
			seen  []Lease
		)
		insert(t, store,
			newLease(target, "carol", "s1", base.Add(2*time.Second), base.Add(time.Hour)),
			newLease(target, "alice", "s1", base, base.Add(time.Hour)),
			newLease(target, "bob", "s1", base.Add(time.Second), base.Add(time.Hour)),
		)

		// Act
		var err = store.Update(ctx, target, func(tx Tx) error {
			var err error
			seen, err = tx.List(ctx)
			return err
		})

		// Assert
		require.NoError(t, err)
		require.Len(t, seen, 3)
		assert.Equal(t, []string{"alice", "bob", "carol"}, []string{seen[0].Holder, seen[1].Holder, seen[2].Holder})
	})

	t.Run("should set absolute expiry", func(t *testing.T) {
		// Arrange
		var (
			store   = backend.newStore(t)
			lease   = newLease(target, "alice", "s1", base, base.Add(time.Hour))
			renewed = base.Add(2 * time.Hour)
		)
		insert(t, store, lease)

		// Act
		var err = store.Update(ctx, target, func(tx Tx) error {
			return tx.SetExpiry(ctx, lease.LeaseKey, renewed)
		})

		// Assert
		require.NoError(t, err)
		leases, listErr := store.ListTarget(ctx, target)
		require.NoError(t, listErr)
		require.Len(t, leases, 1)
		assert.True(t, renewed.Equal(leases[0].ExpiresAt))
	})

	t.Run("should return not found when setting expiry of unknown lease", func(t *testing.T) {
		// Arrange
		var store = backend.newStore(t)
		insert(t, store, newLease(target, "alice", "s1", base, base.Add(time.Hour)))

		// Act
		var err = store.Update(ctx, target, func(tx Tx) error {
			return tx.SetExpiry(ctx, "lock_missing", base.Add(2*time.Hour))
		})

		// Assert
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should delete expired rows inside update", func(t *testing.T) {
		// Arrange
		var (
			store   = backend.newStore(t)
			removed int64
		)
		insert(t, store,
			newLease(target, "alice", "s1", base, base.Add(time.Minute)),
			newLease(target, "bob", "s1", base, base.Add(time.Hour)),
		)

		// Act
		var err = store.Update(ctx, target, func(tx Tx) error {
			var err error
			removed, err = tx.DeleteExpired(ctx, base.Add(time.Minute))
			return err
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
		leases, listErr := store.ListTarget(ctx, target)
		require.NoError(t, listErr)
		require.Len(t, leases, 1)
		assert.Equal(t, "bob", leases[0].Holder)
	})

	t.Run("should list live leases across targets", func(t *testing.T) {
		// Arrange
		var store = backend.newStore(t)
		insert(t, store,
			newLease(target, "alice", "s1", base, base.Add(time.Hour)),
			newLease(target, "bob", "s1", base, base.Add(time.Minute)),
			newLease(other, "carol", "s2", base, base.Add(time.Hour)),
		)

		// Act
		leases, err := store.ListLive(ctx, base.Add(time.Minute))

		// Assert
		require.NoError(t, err)
		require.Len(t, leases, 2)
		assert.Equal(t, "alice", leases[0].Holder)
		assert.Equal(t, "carol", leases[1].Holder)
	})

	t.Run("should list live leases by holder", func(t *testing.T) {
		// Arrange
		var store = backend.newStore(t)
		insert(t, store,
			newLease(target, "alice", "s1", base, base.Add(time.Hour)),
			newLease(other, "alice", "s2", base, base.Add(time.Second)),
			newLease(other, "bob", "s2", base, base.Add(time.Hour)),
		)

		// Act
		leases, err := store.ListByHolder(ctx, "alice", base.Add(time.Minute))

		// Assert
		require.NoError(t, err)
		require.Len(t, leases, 1)
		assert.Equal(t, target, leases[0].Target)
	})

	t.Run("should delete only the holder's lease", func(t *testing.T) {
		// Arrange
		var store = backend.newStore(t)
		insert(t, store,
			newLease(target, "alice", "s1", base, base.Add(time.Hour)),
			newLease(target, "bob", "s1", base.Add(time.Second), base.Add(time.Hour)),
		)

		// Act
		removed, err := store.DeleteByHolder(ctx, target, "alice")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
		leases, listErr := store.ListTarget(ctx, target)
		require.NoError(t, listErr)
		require.Len(t, leases, 1)
		assert.Equal(t, "bob", leases[0].Holder)
	})

	t.Run("should delete every lease of a session", func(t *testing.T) {
		// Arrange
		var store = backend.newStore(t)
		insert(t, store,
			newLease(target, "alice", "s1", base, base.Add(time.Hour)),
			newLease(target, "bob", "s1", base.Add(time.Second), base.Add(time.Hour)),
			newLease(other, "carol", "s1", base, base.Add(time.Hour)),
		)

		// Act
		removed, err := store.DeleteBySession(ctx, target, "s1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)
		leases, listErr := store.ListTarget(ctx, other)
		require.NoError(t, listErr)
		assert.Len(t, leases, 1, "sessions are scoped to their target")
	})

	t.Run("should report zero when nothing matches", func(t *testing.T) {
		// Arrange
		var store = backend.newStore(t)

		// Act
		byHolder, err := store.DeleteByHolder(ctx, target, "nobody")
		require.NoError(t, err)
		bySession, err := store.DeleteBySession(ctx, target, "missing")
		require.NoError(t, err)

		// Assert
		assert.Zero(t, byHolder)
		assert.Zero(t, bySession)
	})

	t.Run("should sweep expired leases globally", func(t *testing.T) {
		// Arrange
		var (
			store = backend.newStore(t)
			now   = base.Add(time.Minute)
		)
		insert(t, store,
			newLease(target, "alice", "s1", base, now),
			newLease(target, "bob", "s1", base, base.Add(time.Hour)),
			newLease(other, "carol", "s2", base, base.Add(time.Second)),
		)

		// Act
		removed, err := store.DeleteExpired(ctx, now)
		require.NoError(t, err)
		again, err := store.DeleteExpired(ctx, now)
		require.NoError(t, err)

		// Assert
		assert.Equal(t, int64(2), removed, "a lease expiring exactly now is expired")
		assert.Zero(t, again)
		leases, listErr := store.ListLive(ctx, base)
		require.NoError(t, listErr)
		require.Len(t, leases, 1)
		assert.Equal(t, "bob", leases[0].Holder)
	})

	t.Run("should sweep expired leases of one target", func(t *testing.T) {
		// Arrange
		var (
			store = backend.newStore(t)
			now   = base.Add(time.Minute)
		)
		insert(t, store,
			newLease(target, "alice", "s1", base, base.Add(time.Second)),
			newLease(other, "carol", "s2", base, base.Add(time.Second)),
		)

		// Act
		removed, err := store.DeleteExpiredTarget(ctx, target, now)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
		leases, listErr := store.ListTarget(ctx, other)
		require.NoError(t, listErr)
		assert.Len(t, leases, 1)
	})
}
