package docstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string][]DocumentSnapshot
}

func (m *memDocs) load(_ context.Context, collection string) ([]DocumentSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DocumentSnapshot(nil), m.docs[collection]...), nil
}

func (m *memDocs) put(collection string, d DocumentSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[collection] = append(m.docs[collection], d)
}

func recv(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case s, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestHub_SubscribeDeliversInitialSnapshot(t *testing.T) {
	m := &memDocs{docs: map[string][]DocumentSnapshot{
		"todos": {{ID: "a", Data: Document{"title": "Buy milk"}}},
	}}
	h := NewHub(m.load)
	defer h.Close()

	sub, err := h.Subscribe(context.Background(), Query{Collection: "todos", OrderBy: "title"})
	require.NoError(t, err)
	defer sub.Close()

	require.Equal(t, []string{"a"}, ids(recv(t, sub)))
	require.Equal(t, 1, h.Active())
}

func TestHub_NotifyOnlyTouchesCollection(t *testing.T) {
	m := &memDocs{docs: map[string][]DocumentSnapshot{}}
	h := NewHub(m.load)
	defer h.Close()

	todos, err := h.Subscribe(context.Background(), Query{Collection: "todos"})
	require.NoError(t, err)
	other, err := h.Subscribe(context.Background(), Query{Collection: "other"})
	require.NoError(t, err)
	recv(t, todos)
	recv(t, other)

	m.put("todos", DocumentSnapshot{ID: "x", Data: Document{}})
	h.Notify(context.Background(), "todos")

	require.Equal(t, []string{"x"}, ids(recv(t, todos)))
	select {
	case s := <-other.Snapshots():
		t.Fatalf("other collection notified: %+v", s)
	default:
	}
}

func TestHub_ContextCancelReleases(t *testing.T) {
	m := &memDocs{docs: map[string][]DocumentSnapshot{}}
	h := NewHub(m.load)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.Subscribe(ctx, Query{Collection: "todos"})
	require.NoError(t, err)
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not released")
	}
	require.Eventually(t, func() bool { return h.Active() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_PollingPicksUpExternalChanges(t *testing.T) {
	m := &memDocs{docs: map[string][]DocumentSnapshot{}}
	var stamp atomic.Int64
	h := NewHub(m.load, WithPolling(func(context.Context) (string, error) {
		return time.Unix(stamp.Load(), 0).String(), nil
	}, 5*time.Millisecond))
	defer h.Close()

	sub, err := h.Subscribe(context.Background(), Query{Collection: "todos"})
	require.NoError(t, err)
	recv(t, sub)

	// Give the poller a chance to read its baseline stamp.
	time.Sleep(20 * time.Millisecond)
	m.put("todos", DocumentSnapshot{ID: "ext", Data: Document{}})
	stamp.Add(1)

	require.Equal(t, []string{"ext"}, ids(recv(t, sub)))
}

func TestHub_SubscribeErrors(t *testing.T) {
	boom := errors.New("boom")
	h := NewHub(func(context.Context, string) ([]DocumentSnapshot, error) { return nil, boom })

	_, err := h.Subscribe(context.Background(), Query{Collection: "todos"})
	require.ErrorIs(t, err, boom)

	_, err = h.Subscribe(context.Background(), Query{Collection: "bad name"})
	require.ErrorIs(t, err, ErrInvalidName)

	h.Close()
	h2 := NewHub(func(context.Context, string) ([]DocumentSnapshot, error) { return nil, nil })
	h2.Close()
	_, err = h2.Subscribe(context.Background(), Query{Collection: "todos"})
	require.ErrorIs(t, err, ErrClosed)
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	h := NewHub(func(context.Context, string) ([]DocumentSnapshot, error) { return nil, nil })
	sub, err := h.Subscribe(context.Background(), Query{Collection: "todos"})
	require.NoError(t, err)
	h.Close()
	<-sub.Done()
	require.Equal(t, 0, h.Active())
}

func TestHub_PollingStopsWhenIdle(t *testing.T) {
	m := &memDocs{docs: map[string][]DocumentSnapshot{}}
	var calls atomic.Int64
	h := NewHub(m.load, WithPolling(func(context.Context) (string, error) {
		calls.Add(1)
		return "same", nil
	}, 5*time.Millisecond))
	defer h.Close()
	require.False(t, h.Polling())

	sub, err := h.Subscribe(context.Background(), Query{Collection: "todos"})
	require.NoError(t, err)
	recv(t, sub)
	require.True(t, h.Polling())
	require.Eventually(t, func() bool { return calls.Load() > 2 }, time.Second, 5*time.Millisecond)

	sub.Close()
	require.Eventually(t, func() bool { return !h.Polling() && h.Active() == 0 }, time.Second, 5*time.Millisecond)
	// Let an in-flight tick finish before taking the baseline.
	time.Sleep(20 * time.Millisecond)
	idle := calls.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, idle, calls.Load(), "stamp polled with no subscriptions")

	sub, err = h.Subscribe(context.Background(), Query{Collection: "todos"})
	require.NoError(t, err)
	defer sub.Close()
	recv(t, sub)
	require.True(t, h.Polling())
	require.Eventually(t, func() bool { return calls.Load() > idle+2 }, time.Second, 5*time.Millisecond)
}
