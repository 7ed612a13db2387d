// Package transport provides the in-process publish/subscribe channel
// between the stepping loop and its observers. Publishing is the only
// asynchronous boundary in the system: Publish never blocks the stepping
// thread, while PublishAck waits for delivery and is reserved for
// teardown messages that must be observed before an entity is destroyed.
package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Message wraps one published payload with the topic it arrived on.
type Message struct {
	Topic string
	Data  any
}

// Subscription receives messages from a single topic on C.
type Subscription struct {
	C     chan Message
	topic *Topic
	done  chan struct{}

	// senders currently blocked on C inside PublishAck; C is closed
	// only after all of them have moved on
	sending sync.WaitGroup
}

// Unsubscribe detaches the subscription from its topic and closes C.
// Buffered messages remain readable until C is drained.
func (s *Subscription) Unsubscribe() {
	s.topic.remove(s)
}

// Topic fans published messages out to its subscribers.
type Topic struct {
	name string
	log  *slog.Logger

	mu      sync.RWMutex
	subs    []*Subscription
	dropped atomic.Int64
}

// Name returns the topic name.
func (t *Topic) Name() string { return t.name }

// Subscribe registers a new subscriber with the given channel buffer.
func (t *Topic) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{
		C:     make(chan Message, buffer),
		topic: t,
		done:  make(chan struct{}),
	}
	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return sub
}

func (t *Topic) remove(sub *Subscription) {
	t.mu.Lock()
	found := false
	for i, s := range t.subs {
		if s == sub {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			found = true
			break
		}
	}
	if found {
		close(sub.done)
	}
	t.mu.Unlock()
	if !found {
		return
	}
	// a PublishAck blocked on this subscription bails out on done; wait
	// for it before closing so the send never hits a closed channel
	sub.sending.Wait()
	close(sub.C)
}

// Publish delivers data to every subscriber without blocking. Messages to
// subscribers with full buffers are dropped.
func (t *Topic) Publish(data any) {
	msg := Message{Topic: t.name, Data: data}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, sub := range t.subs {
		select {
		case sub.C <- msg:
		default:
			n := t.dropped.Add(1)
			t.log.Debug("dropping message to slow subscriber",
				"topic", t.name, "dropped", n)
		}
	}
}

// Dropped returns the number of messages dropped on full buffers.
func (t *Topic) Dropped() int64 { return t.dropped.Load() }

// PublishAck delivers data to every subscriber, waiting for each delivery.
// Subscribers that unsubscribe mid-publish are skipped. It returns the
// context error if delivery cannot complete in time.
func (t *Topic) PublishAck(ctx context.Context, data any) error {
	msg := Message{Topic: t.name, Data: data}
	t.mu.RLock()
	subs := make([]*Subscription, len(t.subs))
	copy(subs, t.subs)
	for _, sub := range subs {
		sub.sending.Add(1)
	}
	t.mu.RUnlock()

	var err error
	for _, sub := range subs {
		if err == nil {
			select {
			case sub.C <- msg:
			case <-sub.done:
			case <-ctx.Done():
				err = ctx.Err()
				t.log.Error("acknowledged publish interrupted",
					"topic", t.name, "err", err)
			}
		}
		sub.sending.Done()
	}
	return err
}

// SubscriberCount returns the number of attached subscriptions.
func (t *Topic) SubscriberCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Hub owns the set of named topics.
type Hub struct {
	log    *slog.Logger
	mu     sync.Mutex
	topics map[string]*Topic
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log, topics: make(map[string]*Topic)}
}

// Topic returns the named topic, creating it on first use.
func (h *Hub) Topic(name string) *Topic {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[name]
	if !ok {
		t = &Topic{name: name, log: h.log}
		h.topics[name] = t
	}
	return t
}
