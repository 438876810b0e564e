package events

import (
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 100

// StreamMessage is one item pushed to stream subscribers.
type StreamMessage struct {
	Kind string
	Data any
}

// Subscriber is a single stream subscription.
type Subscriber struct {
	Messages chan StreamMessage
	Done     chan struct{}
	dropped  atomic.Int64
}

// Dropped returns how many messages were discarded because the subscriber
// fell behind.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Broadcaster fans stream messages out to subscribers without blocking the
// publisher. Slow subscribers lose messages.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new subscriber.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{
		Messages: make(chan StreamMessage, subscriberBuffer),
		Done:     make(chan struct{}),
	}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription. Calling it twice is harmless.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub.Done)
}

// Broadcast delivers msg to every subscriber that has room for it.
func (b *Broadcaster) Broadcast(msg StreamMessage) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.Messages <- msg:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		delete(b.subscribers, sub)
		close(sub.Done)
	}
}
