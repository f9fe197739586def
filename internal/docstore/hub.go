package docstore

import (
	"context"
	"sync"

	"trackx/backend/internal/model"
)

type loader func(ctx context.Context, collection string) ([]model.Document, error)

// hub fans full collection snapshots out to subscribers. Lock order is
// hub.mu before feed.mu.
type hub struct {
	mu    sync.Mutex
	feeds map[string]*feed
	load  loader
}

type feed struct {
	collection string

	mu      sync.Mutex
	version uint64
	subs    map[*Subscription]struct{}
	closed  bool
}

// Subscription is a cancelable stream of snapshots for one collection.
type Subscription struct {
	ch   chan Snapshot
	hub  *hub
	feed *feed

	mu   sync.Mutex
	stop func() bool
}

// Snapshots delivers snapshots in increasing Version order. A slow reader
// only ever misses intermediate snapshots, never the latest one. The
// channel is closed after Cancel.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.ch
}

// Cancel stops delivery. It is idempotent, and once it returns no further
// snapshot can be received.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.hub.unsubscribe(s)
}

func newHub(load loader) *hub {
	return &hub{feeds: map[string]*feed{}, load: load}
}

func (h *hub) subscribe(ctx context.Context, collection string) (*Subscription, error) {
	for {
		sub, err := h.trySubscribe(ctx, collection)
		if err != nil || sub != nil {
			return sub, err
		}
	}
}

// trySubscribe returns (nil, nil) when the feed it found was released
// before registration and the caller should retry.
func (h *hub) trySubscribe(ctx context.Context, collection string) (*Subscription, error) {
	h.mu.Lock()
	f := h.feeds[collection]
	if f == nil || f.isClosed() {
		f = &feed{collection: collection, subs: map[*Subscription]struct{}{}}
		h.feeds[collection] = f
	}
	h.mu.Unlock()

	sub := &Subscription{ch: make(chan Snapshot, 1), hub: h, feed: f}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, nil
	}
	docs, err := h.load(ctx, collection)
	if err != nil {
		f.mu.Unlock()
		h.release(f)
		return nil, err
	}
	f.subs[sub] = struct{}{}
	f.version++
	sub.ch <- NewSnapshot(collection, f.version, docs)
	f.mu.Unlock()

	stop := context.AfterFunc(ctx, sub.Cancel)
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()
	return sub, nil
}

// publish materializes the collection once and delivers it to every
// subscriber. Holding the feed lock across load and delivery keeps
// versions in the same order as the underlying writes.
func (h *hub) publish(ctx context.Context, collection string) error {
	h.mu.Lock()
	f := h.feeds[collection]
	h.mu.Unlock()
	if f == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}

	docs, err := h.load(ctx, collection)
	if err != nil {
		return err
	}
	f.version++
	snapshot := NewSnapshot(collection, f.version, docs)
	for sub := range f.subs {
		deliver(sub.ch, snapshot)
	}
	return nil
}

func (h *hub) unsubscribe(sub *Subscription) {
	f := sub.feed

	f.mu.Lock()
	if _, ok := f.subs[sub]; !ok {
		f.mu.Unlock()
		return
	}
	delete(f.subs, sub)
	// Drop anything undelivered so nothing is readable after Cancel.
	select {
	case <-sub.ch:
	default:
	}
	close(sub.ch)
	if len(f.subs) == 0 {
		f.closed = true
	}
	f.mu.Unlock()

	h.release(f)
}

// release forgets f once it has no subscribers left.
func (h *hub) release(f *feed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.feeds[f.collection] != f {
		return
	}
	f.mu.Lock()
	if len(f.subs) == 0 {
		f.closed = true
		delete(h.feeds, f.collection)
	}
	f.mu.Unlock()
}

func (h *hub) subscriberCount(collection string) int {
	h.mu.Lock()
	f := h.feeds[collection]
	h.mu.Unlock()
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// deliver replaces a pending snapshot with a newer one. Only the feed,
// under its lock, sends on ch.
func deliver(ch chan Snapshot, snapshot Snapshot) {
	select {
	case ch <- snapshot:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snapshot:
	default:
	}
}
