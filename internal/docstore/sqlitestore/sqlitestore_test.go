package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tadalive/internal/docstore"
)

func openStore(t *testing.T, path string, poll time.Duration) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, Options{PollInterval: poll})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func next(t *testing.T, sub *docstore.Subscription) docstore.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok)
		return snap
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return docstore.Snapshot{}
}

func titles(s docstore.Snapshot) []string {
	var out []string
	for _, d := range s.Docs {
		out = append(out, d.Data["title"].(string))
	}
	return out
}

func TestStore_AppendPatchSubscribe(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "todos.db"), 0)

	sub, err := s.Subscribe(ctx, docstore.Query{Collection: "todos", OrderBy: "title"})
	require.NoError(t, err)
	defer sub.Close()
	require.Empty(t, next(t, sub).Docs)

	id, err := s.Append(ctx, "todos", docstore.Document{"title": "b", "complete": false})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, []string{"b"}, titles(next(t, sub)))

	_, err = s.Append(ctx, "todos", docstore.Document{"title": "a", "complete": false})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, titles(next(t, sub)))

	require.NoError(t, s.Patch(ctx, "todos", id, docstore.Document{"complete": true}))
	snap := next(t, sub)
	require.Equal(t, []string{"a", "b"}, titles(snap))
	require.Equal(t, id, snap.Docs[1].ID)
	require.Equal(t, true, snap.Docs[1].Data["complete"])
	require.Equal(t, "b", snap.Docs[1].Data["title"])

	v, err := s.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, v)
}

func TestStore_PatchMissing(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "todos.db"), 0)
	err := s.Patch(context.Background(), "todos", "nope", docstore.Document{"complete": true})
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStore_RejectsBadNames(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "todos.db"), 0)
	_, err := s.Append(context.Background(), "todos", docstore.Document{"bad field": 1})
	require.ErrorIs(t, err, docstore.ErrInvalidName)
	_, err = s.Append(context.Background(), "../x", docstore.Document{})
	require.ErrorIs(t, err, docstore.ErrInvalidName)
}

func TestStore_SeesWritesFromAnotherHandle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "todos.db")
	reader := openStore(t, path, 10*time.Millisecond)
	writer := openStore(t, path, 0)

	sub, err := reader.Subscribe(ctx, docstore.Query{Collection: "todos", OrderBy: "title"})
	require.NoError(t, err)
	defer sub.Close()
	require.Empty(t, next(t, sub).Docs)

	// let the poller take its baseline
	time.Sleep(30 * time.Millisecond)
	_, err = writer.Append(ctx, "todos", docstore.Document{"title": "from elsewhere"})
	require.NoError(t, err)

	require.Equal(t, []string{"from elsewhere"}, titles(next(t, sub)))
}
