package editlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staleTx lists a snapshot taken before a concurrent delete committed.
type staleTx struct {
	*memoryTx
	snapshot []Lease
}

func (tx *staleTx) List(ctx context.Context) ([]Lease, error) {
	return tx.snapshot, nil
}

func TestStoreFailures(t *testing.T) {
	var (
		ctx     = context.Background()
		target  = Target{DocumentID: "doc-1", VersionSeq: 1}
		failure = errors.New("connection reset by peer")

		setup = func(t *testing.T) (*Engine, *MockStore) {
			var (
				ctrl  = gomock.NewController(t)
				store = NewMockStore(ctrl)
			)
			return newTestEngine(t, store, newFakeClock()), store
		}
	)

	t.Run("should report unavailable when acquire cannot commit", func(t *testing.T) {
		// Arrange
		var sut, store = setup(t)
		store.EXPECT().Update(gomock.Any(), target, gomock.Any()).Return(failure).Times(1)

		// Act
		result, err := sut.Acquire(ctx, target, "alice", time.Minute, false)

		// Assert
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.ErrorIs(t, err, failure)
		assert.False(t, result.OK)
	})

	t.Run("should report unavailable when write check cannot read", func(t *testing.T) {
		// Arrange
		var sut, store = setup(t)
		store.EXPECT().ListTarget(gomock.Any(), target).Return(nil, failure)

		// Act
		_, err := sut.CanWrite(ctx, target, "alice")

		// Assert
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("should report unavailable for release, end session and sweep", func(t *testing.T) {
		// Arrange
		var sut, store = setup(t)
		store.EXPECT().DeleteByHolder(gomock.Any(), target, "alice").Return(int64(0), failure)
		store.EXPECT().DeleteBySession(gomock.Any(), target, "session_1").Return(int64(0), failure)
		store.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).Return(int64(0), failure)

		// Act
		_, releaseErr := sut.Release(ctx, target, "alice")
		_, endErr := sut.EndSession(ctx, target, "session_1")
		_, sweepErr := sut.Sweep(ctx)

		// Assert
		assert.ErrorIs(t, releaseErr, ErrUnavailable)
		assert.ErrorIs(t, endErr, ErrUnavailable)
		assert.ErrorIs(t, sweepErr, ErrUnavailable)
	})

	t.Run("should pass context cancellation through", func(t *testing.T) {
		// Arrange
		var sut, store = setup(t)
		store.EXPECT().ListLive(gomock.Any(), gomock.Any()).Return(nil, context.Canceled)

		// Act
		_, err := sut.ListActive(ctx)

		// Assert
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrUnavailable)
	})

	t.Run("should create a fresh lease when the renewed one was released meanwhile", func(t *testing.T) {
		// Arrange
		var (
			sut, store = setup(t)
			released   = Lease{
				Target:    target,
				LeaseKey:  "lock_released",
				Holder:    "alice",
				SessionID: "single_released",
				CreatedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
				ExpiresAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			}
			tx = &staleTx{memoryTx: &memoryTx{target: target}, snapshot: []Lease{released}}
		)
		store.EXPECT().Update(gomock.Any(), target, gomock.Any()).
			DoAndReturn(func(ctx context.Context, target Target, fn func(Tx) error) error {
				return fn(tx)
			})

		// Act
		result, err := sut.Acquire(ctx, target, "alice", time.Minute, false)

		// Assert
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, OutcomeAcquired, result.Outcome)
		assert.NotEqual(t, released.LeaseKey, result.LeaseKey)
		require.Len(t, tx.leases, 1)
		assert.Equal(t, result.LeaseKey, tx.leases[0].LeaseKey)
	})

	t.Run("should not touch the store for invalid input", func(t *testing.T) {
		// Arrange
		var sut, _ = setup(t)

		// Act
		_, err := sut.Acquire(ctx, target, "", time.Minute, false)

		// Assert
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}
