package peer

import "sync"

// inbox is an unbounded FIFO with a wakeup channel. Pushing never blocks,
// so the orchestrator cannot stall on a slow link.
type inbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

func newInbox[T any]() *inbox[T] {
	return &inbox[T]{ready: make(chan struct{}, 1)}
}

// push appends v, reporting false once the inbox is closed.
func (b *inbox[T]) push(v T) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.items = append(b.items, v)
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
	return true
}

// drain takes everything queued so far, in push order.
func (b *inbox[T]) drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

func (b *inbox[T]) close() {
	b.mu.Lock()
	b.closed = true
	b.items = nil
	b.mu.Unlock()
}
