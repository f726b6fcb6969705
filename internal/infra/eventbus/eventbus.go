// Package eventbus is a minimal in-process publish/subscribe bus. The chat
// service publishes finalized traces on it and the archive writer consumes
// them, which keeps archive I/O off the request path.
//
// Events are fire-and-forget: each subscriber gets a buffered channel and a
// publish that would block is dropped instead. There is no persistence and
// no unsubscribe; subscribers live for the process lifetime.
package eventbus

import "sync"

// Event is one published message on a topic.
type Event struct {
	Topic   string
	Payload any
}

// EventBus is what producers and consumers depend on.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
}

// subscriberBuffer bounds how far a slow consumer can fall behind before
// events are dropped.
const subscriberBuffer = 100

// Bus implements EventBus with per-topic channel fan-out.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]chan Event
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{topics: make(map[string][]chan Event)}
}

// Subscribe registers a consumer for topic. The caller must drain the
// returned channel; a full buffer makes later publishes drop the event.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers the payload to every subscriber of topic without
// blocking. Subscribers whose buffer is full miss the event.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := b.topics[topic]
	b.mu.RUnlock()

	evt := Event{Topic: topic, Payload: payload}
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
