package jsonstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tadalive/internal/docstore"
)

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

func TestStore_AppendPatchPersist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DataFileName)
	s, err := Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	sub, err := s.Subscribe(ctx, docstore.Query{Collection: "todos", OrderBy: "title"})
	require.NoError(t, err)
	defer sub.Close()
	require.Empty(t, next(t, sub).Docs)

	id, err := s.Append(ctx, "todos", docstore.Document{"title": "Buy milk", "complete": false})
	require.NoError(t, err)
	snap := next(t, sub)
	require.Len(t, snap.Docs, 1)
	require.Equal(t, id, snap.Docs[0].ID)

	require.NoError(t, s.Patch(ctx, "todos", id, docstore.Document{"complete": true}))
	snap = next(t, sub)
	require.Equal(t, true, snap.Docs[0].Data["complete"])
	require.Equal(t, "Buy milk", snap.Docs[0].Data["title"])

	// the file is plain JSON
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var fd fileData
	require.NoError(t, json.Unmarshal(b, &fd))
	require.Equal(t, "Buy milk", fd.Collections["todos"][id]["title"])
}

func TestStore_PatchMissing(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), DataFileName), Options{})
	require.NoError(t, err)
	defer s.Close()
	err = s.Patch(context.Background(), "todos", "nope", docstore.Document{"complete": true})
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStore_SeesFileRewrittenElsewhere(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DataFileName)
	s, err := Open(path, Options{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	sub, err := s.Subscribe(ctx, docstore.Query{Collection: "todos", OrderBy: "title"})
	require.NoError(t, err)
	defer sub.Close()
	require.Empty(t, next(t, sub).Docs)
	time.Sleep(30 * time.Millisecond)

	other, err := Open(path, Options{})
	require.NoError(t, err)
	defer other.Close()
	_, err = other.Append(ctx, "todos", docstore.Document{"title": "external"})
	require.NoError(t, err)

	snap := next(t, sub)
	require.Len(t, snap.Docs, 1)
	require.Equal(t, "external", snap.Docs[0].Data["title"])
}

func TestStore_StampChangesOnSameSizeRewrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DataFileName)
	s, err := Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	empty, err := s.stamp(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	id, err := s.Append(ctx, "todos", docstore.Document{"title": "a"})
	require.NoError(t, err)
	fi, err := os.Stat(path)
	require.NoError(t, err)
	before, err := s.stamp(ctx)
	require.NoError(t, err)

	// Same byte count, and the mtime is pinned back to look like one tick.
	require.NoError(t, s.Patch(ctx, "todos", id, docstore.Document{"title": "b"}))
	require.NoError(t, os.Chtimes(path, fi.ModTime(), fi.ModTime()))
	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, fi.Size(), after.Size())

	stamp, err := s.stamp(ctx)
	require.NoError(t, err)
	require.NotEqual(t, before, stamp)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var fd fileData
	require.NoError(t, json.Unmarshal(b, &fd))
	require.Equal(t, int64(2), fd.Version)
}
