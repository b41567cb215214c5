package events

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscriber queue length used by NewBus when
// given a non-positive size.
const DefaultBufferSize = 256

// Bus is a process-wide fan-out point. Publish never blocks: a subscriber
// whose queue is full misses the event and its drop counter is incremented.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewBus creates a bus whose subscribers each get a queue of bufferSize events.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: bufferSize,
	}
}

// Subscription is one listener on a Bus.
type Subscription struct {
	bus     *Bus
	ch      chan Event
	dropped atomic.Uint64
	once    sync.Once
}

// C returns the channel events are delivered on. It is closed when the
// subscription or the bus is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped reports how many events were discarded because the queue was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from the bus. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.remove(s)
}

// Subscribe registers a new listener. Subscribing to a closed bus returns a
// subscription whose channel is already closed.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{bus: b, ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers e to every current subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
			s.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of attached listeners.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches and closes every subscription. Later publications are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
	s.once.Do(func() { close(s.ch) })
}
