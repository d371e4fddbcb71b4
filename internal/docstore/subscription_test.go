package docstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscription_LatestWins(t *testing.T) {
	sub := NewSubscription(nil)
	require.True(t, sub.Deliver(Snapshot{Collection: "one"}))
	require.True(t, sub.Deliver(Snapshot{Collection: "two"}))

	got := <-sub.Snapshots()
	require.Equal(t, "two", got.Collection)

	select {
	case s := <-sub.Snapshots():
		t.Fatalf("unexpected pending snapshot %+v", s)
	default:
	}
}

func TestSubscription_Close(t *testing.T) {
	calls := 0
	sub := NewSubscription(func(*Subscription) { calls++ })
	sub.Close()
	sub.Close()

	require.Equal(t, 1, calls)
	require.False(t, sub.Deliver(Snapshot{}))
	_, ok := <-sub.Snapshots()
	require.False(t, ok)
	<-sub.Done()
}
