package editlock

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"go-editlock/database"

	"github.com/stretchr/testify/require"
	"gocloud.dev/docstore/memdocstore"
)

const testTable = "test"

// fakeClock is a settable time source shared by an engine and its test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type storeBackend struct {
	name     string
	newStore func(t *testing.T) Store
}

var storeBackends = []storeBackend{
	{
		name:     "memory",
		newStore: func(t *testing.T) Store { return NewMemoryStore() },
	},
	{
		name: "sqlite",
		newStore: func(t *testing.T) Store {
			return newSQLStore(t, database.SetupSQLiteDatabase(t), database.SQLite)
		},
	},
	{
		name: "postgres",
		newStore: func(t *testing.T) Store {
			return newSQLStore(t, database.SetupTestDatabase(t), database.Postgres)
		},
	},
	{
		name: "docstore",
		newStore: func(t *testing.T) Store {
			coll, err := memdocstore.OpenCollection("ID", nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = coll.Close() })
			return NewDocStore(coll)
		},
	},
}

func newSQLStore(t *testing.T, db *sql.DB, dialect database.Dialect) Store {
	store, err := NewSQLStore(db, dialect, testTable)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	return store
}

func newTestEngine(t *testing.T, store Store, clock *fakeClock, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(store, append([]Option{WithClock(clock.Now)}, opts...)...)
}
