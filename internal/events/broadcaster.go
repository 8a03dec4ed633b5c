package events

import (
	"sync"
)

// Subscriber represents a channel that receives events.
type Subscriber chan Event

// Broadcaster manages live event subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]struct{}
}

func newBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[Subscriber]struct{})}
}

// Subscribe adds a new subscriber and returns its channel.
// The channel has a buffer to prevent blocking on slow readers.
func (r *Recorder) Subscribe() Subscriber {
	ch := make(Subscriber, 64)
	r.broadcaster.mu.Lock()
	r.broadcaster.subscribers[ch] = struct{}{}
	r.broadcaster.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (r *Recorder) Unsubscribe(sub Subscriber) {
	r.broadcaster.mu.Lock()
	_, ok := r.broadcaster.subscribers[sub]
	delete(r.broadcaster.subscribers, sub)
	r.broadcaster.mu.Unlock()
	if ok {
		close(sub)
	}
}

// SubscriberCount returns the current number of subscribers.
func (r *Recorder) SubscriberCount() int {
	r.broadcaster.mu.RLock()
	defer r.broadcaster.mu.RUnlock()
	return len(r.broadcaster.subscribers)
}

// broadcast sends an event to all subscribers.
// Non-blocking: if a subscriber's buffer is full, the event is dropped for that subscriber.
func (b *Broadcaster) broadcast(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- e:
		default:
			// Buffer full, drop event for this slow subscriber
		}
	}
}

// CloseAll closes every subscriber channel. Used on shutdown.
func (r *Recorder) CloseAll() {
	r.broadcaster.mu.Lock()
	defer r.broadcaster.mu.Unlock()

	for sub := range r.broadcaster.subscribers {
		close(sub)
		delete(r.broadcaster.subscribers, sub)
	}
}
