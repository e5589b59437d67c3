package server

import (
	"sync"

	"github.com/Guliveer/livetiming-connector/internal/model"
)

// Broadcaster hands every consumed message to all current subscribers. A
// subscriber that falls behind misses messages instead of slowing the feed.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan model.LiveTimingMessage]struct{}
	buffer int
	closed bool
}

// NewBroadcaster creates a Broadcaster with buffer messages of slack per
// subscriber.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{subs: make(map[chan model.LiveTimingMessage]struct{}), buffer: buffer}
}

// Consume publishes msg to every subscriber without blocking.
func (b *Broadcaster) Consume(msg model.LiveTimingMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe returns a message channel and a function that cancels the
// subscription. The channel is closed on cancel or when the broadcaster
// closes.
func (b *Broadcaster) Subscribe() (<-chan model.LiveTimingMessage, func()) {
	ch := make(chan model.LiveTimingMessage, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
