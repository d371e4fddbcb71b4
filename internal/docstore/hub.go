package docstore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Loader returns every document of a collection.
type Loader func(ctx context.Context, collection string) ([]DocumentSnapshot, error)

// Stamper returns a value that changes whenever the backing data changes,
// including writes made by other processes.
type Stamper func(ctx context.Context) (string, error)

// Hub fans collection changes out to live queries. Backends call Notify
// after their own writes; with a Stamper configured, a poll loop picks up
// writes from elsewhere.
type Hub struct {
	load     Loader
	stamp    Stamper
	interval time.Duration
	logger   *slog.Logger

	// refresh serializes load+deliver so snapshots reach a subscriber in
	// the order they were read.
	refresh sync.Mutex

	mu      sync.Mutex
	subs    map[*Subscription]Query
	closed  bool
	polling bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithPolling enables change detection through stamp every interval.
func WithPolling(stamp Stamper, interval time.Duration) HubOption {
	return func(h *Hub) {
		h.stamp = stamp
		h.interval = interval
	}
}

// WithLogger sets the logger used for background failures.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHub(load Loader, opts ...HubOption) *Hub {
	h := &Hub{
		load:   load,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		subs:   make(map[*Subscription]Query),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscribe registers a live query and delivers its first snapshot before
// returning. The subscription ends when ctx is done or it is closed.
func (h *Hub) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	h.refresh.Lock()
	defer h.refresh.Unlock()

	docs, err := h.load(ctx, q.Collection)
	if err != nil {
		return nil, err
	}

	sub := NewSubscription(h.remove)
	sub.Deliver(Evaluate(q, docs))

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.Close()
		return nil, ErrClosed
	}
	h.subs[sub] = q
	h.startPollingLocked()
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.Done():
		}
	}()
	return sub, nil
}

// Notify re-runs every live query on collection.
func (h *Hub) Notify(ctx context.Context, collection string) {
	h.refresh.Lock()
	defer h.refresh.Unlock()
	h.notifyLocked(ctx, map[string]bool{collection: true})
}

// NotifyAll re-runs every live query.
func (h *Hub) NotifyAll(ctx context.Context) {
	h.refresh.Lock()
	defer h.refresh.Unlock()
	h.notifyLocked(ctx, nil)
}

func (h *Hub) notifyLocked(ctx context.Context, only map[string]bool) {
	h.mu.Lock()
	targets := make(map[*Subscription]Query, len(h.subs))
	for s, q := range h.subs {
		if only == nil || only[q.Collection] {
			targets[s] = q
		}
	}
	h.mu.Unlock()

	loaded := make(map[string][]DocumentSnapshot)
	for sub, q := range targets {
		docs, ok := loaded[q.Collection]
		if !ok {
			var err error
			docs, err = h.load(ctx, q.Collection)
			if err != nil {
				h.logger.Warn("live query reload failed", "collection", q.Collection, "error", err)
				continue
			}
			loaded[q.Collection] = docs
		}
		sub.Deliver(Evaluate(q, docs))
	}
}

// Active reports the number of open subscriptions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription and stops polling.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	cancel := h.cancel
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
}

// remove drops s and stops polling once nothing is subscribed. The next
// Subscribe starts it again.
func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
	if len(h.subs) == 0 && h.polling {
		h.cancel()
		h.polling = false
		h.cancel = nil
	}
}

// Polling reports whether the change poller is running.
func (h *Hub) Polling() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.polling
}

func (h *Hub) startPollingLocked() {
	if h.polling || h.stamp == nil || h.interval <= 0 {
		return
	}
	h.polling = true
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.wg.Add(1)
	go h.poll(ctx)
}

func (h *Hub) poll(ctx context.Context) {
	defer h.wg.Done()

	last, err := h.stamp(ctx)
	if err != nil {
		h.logger.Warn("change stamp failed", "error", err)
	}
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		cur, err := h.stamp(ctx)
		if err != nil {
			h.logger.Warn("change stamp failed", "error", err)
			continue
		}
		if cur == last {
			continue
		}
		last = cur
		h.logger.Debug("external change detected", "stamp", cur)
		h.NotifyAll(ctx)
	}
}
