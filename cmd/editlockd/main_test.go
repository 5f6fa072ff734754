package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	editlock "go-editlock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend(t *testing.T) {
	var (
		ctx    = context.Background()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	)

	t.Run("should open an in-memory store", func(t *testing.T) {
		// Act
		b, err := openBackend(ctx, "memory://", "editlock", logger)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "memory", b.kind)
		assert.Nil(t, b.docs)
		assert.NoError(t, b.close())
	})

	t.Run("should open a docstore collection", func(t *testing.T) {
		// Act
		b, err := openBackend(ctx, "docstore:mem://leases/ID", "editlock", logger)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "docstore", b.kind)
		assert.NoError(t, b.close())
	})

	t.Run("should open and migrate a sqlite store with documents", func(t *testing.T) {
		// Arrange
		var url = "sqlite://" + filepath.Join(t.TempDir(), "editlock.db")

		// Act
		b, err := openBackend(ctx, url, "editlock", logger)

		// Assert
		require.NoError(t, err)
		defer b.close()
		assert.Equal(t, "sqlite", b.kind)
		assert.NotNil(t, b.docs)
	})

	t.Run("should reject unknown urls", func(t *testing.T) {
		// Act
		_, err := openBackend(ctx, "redis://localhost", "editlock", logger)

		// Assert
		assert.Error(t, err)
	})
}

func TestCommands(t *testing.T) {
	var run = func(t *testing.T, store string, args ...string) (string, error) {
		var (
			cmd = newRootCommand()
			out bytes.Buffer
		)
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(append([]string{"--store", store, "--log-level", "error"}, args...))
		var err = cmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	t.Run("should acquire, report and release a lease across invocations", func(t *testing.T) {
		// Arrange
		var store = "sqlite://" + filepath.Join(t.TempDir(), "editlock.db")

		// Act
		acquired, acquireErr := run(t, store, "acquire", "manual-1", "2", "alice", "--ttl", "10m")
		_, contendedErr := run(t, store, "acquire", "manual-1", "2", "bob")
		status, statusErr := run(t, store, "status", "manual-1", "2", "bob")
		locks, locksErr := run(t, store, "locks")
		_, releaseErr := run(t, store, "release", "manual-1", "2", "alice")
		_, secondReleaseErr := run(t, store, "release", "manual-1", "2", "alice")

		// Assert
		require.NoError(t, acquireErr)
		assert.Contains(t, acquired, "acquired")
		assert.ErrorIs(t, contendedErr, editlock.ErrLocked)
		require.NoError(t, statusErr)
		assert.Contains(t, status, "can edit: false")
		require.NoError(t, locksErr)
		assert.Contains(t, locks, "manual-1@2")
		assert.Contains(t, locks, "alice")
		assert.NoError(t, releaseErr)
		assert.Error(t, secondReleaseErr)
	})

	t.Run("should list co-editors and end their session", func(t *testing.T) {
		// Arrange
		var store = "sqlite://" + filepath.Join(t.TempDir(), "editlock.db")
		_, err := run(t, store, "acquire", "manual-1", "1", "alice", "--co-editing")
		require.NoError(t, err)
		_, err = run(t, store, "acquire", "manual-1", "1", "bob", "--co-editing")
		require.NoError(t, err)

		// Act
		coEditors, coEditorsErr := run(t, store, "coeditors", "manual-1", "1")
		_, unknownErr := run(t, store, "end-session", "manual-1", "1", "session_missing")
		swept, sweepErr := run(t, store, "sweep")

		// Assert
		require.NoError(t, coEditorsErr)
		assert.Equal(t, "alice\nbob\n", coEditors)
		assert.Error(t, unknownErr)
		require.NoError(t, sweepErr)
		assert.Contains(t, swept, "removed 0")
	})

	t.Run("should reject a non-numeric version", func(t *testing.T) {
		// Act
		_, err := run(t, "memory://", "status", "manual-1", "two", "alice")

		// Assert
		assert.ErrorIs(t, err, editlock.ErrInvalidArgument)
	})

	t.Run("should migrate a sqlite store", func(t *testing.T) {
		// Act
		out, err := run(t, "sqlite://"+filepath.Join(t.TempDir(), "editlock.db"), "migrate")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "sqlite store ready\n", out)
	})
}
