// Package notify fans domain events out to live subscribers such as the
// API's event stream.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// bufferSize is how many undelivered messages a slow listener may hold
// before further messages to it are dropped.
const bufferSize = 16

// Message is one delivered event.
type Message struct {
	Event core.Event
	At    time.Time
}

// Notifier broadcasts events to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Message]struct{}
	now       func() time.Time
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Message]struct{}),
		now:       time.Now,
	}
}

// Subscribe returns a channel that receives every published event.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan Message {
	ch := make(chan Message, bufferSize)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[ch]; !ok {
		return
	}
	delete(n.listeners, ch)
	close(ch)
}

// Listeners returns the number of subscribed listeners.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Publish sends e to all listeners without blocking. A listener whose
// buffer is full misses the event.
func (n *Notifier) Publish(e core.Event) {
	msg := Message{Event: e, At: n.now()}

	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.listeners {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Handle publishes e. It has the shape of a bus event handler.
func (n *Notifier) Handle(_ context.Context, e core.Event) ([]core.Event, error) {
	n.Publish(e)
	return nil, nil
}
