package relay

import (
	"context"
	"sync"
)

// DefaultBacklog is how many messages a subscriber may fall behind before it
// starts losing the oldest ones.
const DefaultBacklog = 10

// Hub is a broadcast channel with a bounded backlog. Every subscriber reads
// the same sequence through its own cursor. Publish never waits for readers:
// a reader that falls more than backlog messages behind skips ahead to the
// oldest message still retained and is told so with a *LagError.
type Hub struct {
	mu     sync.Mutex
	ring   []Message
	next   uint64        // sequence number of the next publish
	wake   chan struct{} // closed and replaced on every publish
	subs   int
	closed bool
}

func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Hub{
		ring: make([]Message, backlog),
		wake: make(chan struct{}),
	}
}

// Publish hands m to every current subscriber and returns how many there
// were. With no subscribers it is a no-op.
func (h *Hub) Publish(m Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.subs == 0 {
		return 0
	}
	h.ring[h.next%uint64(len(h.ring))] = m
	h.next++
	close(h.wake)
	h.wake = make(chan struct{})
	return h.subs
}

// Subscribe returns a subscription that sees every message published from
// now on.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs++
	return &Subscription{hub: h, cursor: h.next}
}

// Subscribers returns the number of open subscriptions
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subs
}

// Close stops publishing. Subscribers drain what is buffered and then get
// ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.wake)
}

// Subscription is one reader's cursor into the hub. It is not safe for use
// by more than one goroutine.
type Subscription struct {
	hub    *Hub
	cursor uint64
	closed bool
}

// Recv blocks until the next message is available, ctx is done, or the hub is
// closed. A *LagError is returned once per gap; call Recv again to continue.
func (s *Subscription) Recv(ctx context.Context) (Message, error) {
	h := s.hub
	for {
		h.mu.Lock()
		if s.closed {
			h.mu.Unlock()
			return Message{}, ErrSubscriptionClosed
		}

		size := uint64(len(h.ring))
		if h.next > size && s.cursor < h.next-size {
			oldest := h.next - size
			skipped := oldest - s.cursor
			s.cursor = oldest
			h.mu.Unlock()
			return Message{}, &LagError{Skipped: skipped}
		}
		if s.cursor < h.next {
			m := h.ring[s.cursor%size]
			s.cursor++
			h.mu.Unlock()
			return m, nil
		}
		if h.closed {
			h.mu.Unlock()
			return Message{}, ErrHubClosed
		}
		wake := h.wake
		h.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Close releases the subscription. Further Recv calls fail.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	h.subs--
}
