// Package fanout provides a bounded, lossy, multi-subscriber broadcaster.
package fanout

import "sync"

// DefaultBuffer is the per-subscriber buffer capacity.
const DefaultBuffer = 100

// Broadcaster fans values out to any number of subscribers. One instance per
// job. Publishing never blocks: when a subscriber's buffer is full the oldest
// buffered value is evicted to make room. There is no replay; a subscriber
// only sees values published after it attaches.
type Broadcaster[T any] struct {
	mu      sync.Mutex
	buffer  int
	clients map[uint64]chan T
	nextID  uint64
	drops   uint64
	closed  bool
	doneCh  chan struct{}
}

// New creates a broadcaster with the default per-subscriber buffer.
func New[T any]() *Broadcaster[T] { return NewBuffered[T](DefaultBuffer) }

// NewBuffered creates a broadcaster with the given per-subscriber buffer
// capacity. Non-positive values fall back to DefaultBuffer.
func NewBuffered[T any](buffer int) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster[T]{
		buffer:  buffer,
		clients: make(map[uint64]chan T),
		doneCh:  make(chan struct{}),
	}
}

// Publish delivers v to every live subscriber without blocking. Publishing
// after Close is a no-op.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.clients {
		select {
		case ch <- v:
		default:
			// Full buffer: evict the oldest value, then enqueue. The
			// publisher is the only sender, so the retry cannot fail.
			select {
			case <-ch:
				b.drops++
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Subscribe attaches a new subscriber and returns its receive channel, a
// channel closed when the broadcaster closes, and an unsubscribe function.
// Subscribing after Close yields an already-closed receive channel.
func (b *Broadcaster[T]) Subscribe() (<-chan T, <-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, b.doneCh, func() {}
	}

	id := b.nextID
	b.nextID++
	b.clients[id] = ch

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.clients[id]; ok {
			delete(b.clients, id)
			close(ch)
		}
	}
	return ch, b.doneCh, unsub
}

// Close ends the stream for every subscriber. Idempotent.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.doneCh)
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

// Done returns a channel closed when the broadcaster closes.
func (b *Broadcaster[T]) Done() <-chan struct{} { return b.doneCh }

// Subscribers returns the number of currently attached subscribers.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Drops returns the total values evicted from slow subscriber buffers.
func (b *Broadcaster[T]) Drops() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drops
}
