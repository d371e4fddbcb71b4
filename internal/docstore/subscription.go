package docstore

import "sync"

// Subscription is a live query. Snapshots are delivered latest-wins: the
// channel holds at most one pending snapshot and a newer one replaces it,
// so a slow reader never blocks the store and never sees a stale list
// after a fresh one.
type Subscription struct {
	c    chan Snapshot
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	onClose func(*Subscription)
}

// NewSubscription returns an open subscription. onClose, if set, runs once
// when the subscription is closed.
func NewSubscription(onClose func(*Subscription)) *Subscription {
	return &Subscription{
		c:       make(chan Snapshot, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Snapshots returns the delivery channel. It is closed by Close.
func (s *Subscription) Snapshots() <-chan Snapshot { return s.c }

// Done is closed once the subscription is released.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Deliver replaces any pending snapshot with snap. It reports false if the
// subscription is already closed.
func (s *Subscription) Deliver(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case <-s.c:
	default:
	}
	s.c <- snap
	return true
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.c)
	close(s.done)
	onClose := s.onClose
	s.mu.Unlock()

	if onClose != nil {
		onClose(s)
	}
}
