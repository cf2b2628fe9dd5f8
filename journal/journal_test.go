package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewInMemoryStore(),
		"sqlite": sqlite,
	}
}

func seed(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []Entry{
		{RunID: "r1", TaskID: "t1", Kind: "change_request", To: "Manager", State: "enqueued"},
		{RunID: "r1", TaskID: "t2", Kind: "inter_agent_message", From: "Manager", To: "UserService", State: "enqueued"},
		{RunID: "r1", TaskID: "t2", Kind: "inter_agent_message", From: "Manager", To: "UserService", State: "done", Result: "ok"},
		{RunID: "r2", TaskID: "t3", Kind: "change_request", To: "Manager", State: "failed", Error: "boom"},
	} {
		require.NoError(t, s.Record(ctx, e))
	}
}

func TestStores(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			ctx := context.Background()

			all, err := s.List(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			for i := 1; i < len(all); i++ {
				assert.Greater(t, all[i].Seq, all[i-1].Seq)
			}
			assert.False(t, all[0].At.IsZero())
			assert.Equal(t, "boom", all[3].Error)

			byTask, err := s.List(ctx, Filter{TaskID: "t2"})
			require.NoError(t, err)
			require.Len(t, byTask, 2)
			assert.Equal(t, "done", byTask[1].State)
			assert.Equal(t, "ok", byTask[1].Result)

			byAgent, err := s.List(ctx, Filter{Agent: "UserService"})
			require.NoError(t, err)
			assert.Len(t, byAgent, 2)

			byRun, err := s.List(ctx, Filter{RunID: "r2"})
			require.NoError(t, err)
			assert.Len(t, byRun, 1)

			last, err := s.List(ctx, Filter{Limit: 2})
			require.NoError(t, err)
			require.Len(t, last, 2)
			assert.Equal(t, "t2", last[0].TaskID)
			assert.Equal(t, "t3", last[1].TaskID)

			none, err := s.List(ctx, Filter{TaskID: "missing"})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestSQLite_PreservesTimestamp(t *testing.T) {
	s, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	at := time.Date(2024, 5, 1, 12, 30, 0, 123, time.UTC)
	require.NoError(t, s.Record(context.Background(), Entry{TaskID: "t", Kind: "k", State: "done", At: at}))

	got, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, at.Equal(got[0].At))
}

func TestSQLite_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "encapt.db")

	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Entry{TaskID: "t", Kind: "k", State: "done"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, nil)
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)

	got, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
