package app

import "sync"

// broadcaster fans snapshots out to subscribers. A slow subscriber loses the
// older snapshot rather than blocking the publisher.
type broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[chan T]struct{}
	last        T
	closed      bool
}

func newBroadcaster[T any](initial T) *broadcaster[T] {
	return &broadcaster[T]{
		subscribers: make(map[chan T]struct{}),
		last:        initial,
	}
}

// subscribe returns a channel primed with the latest snapshot. The caller
// must invoke cancel to avoid leaks.
func (b *broadcaster[T]) subscribe() (<-chan T, func()) {
	ch := make(chan T, 8)

	b.mu.Lock()
	ch <- b.last
	if b.closed {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = v
	for ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// closeAll closes every subscriber channel; later subscribers receive the
// last snapshot on an already closed channel.
func (b *broadcaster[T]) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}
