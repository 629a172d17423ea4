package runlog

import "sync"

// Event is one published occurrence, queued for the uploader's drain.
type Event struct {
	Name    string
	Payload any
}

// EventBus is a small in-process pub/sub plus a durable queue. Subscribers
// registered via Subscribe are called synchronously on Publish (matching
// the teacher's pattern of synchronous event handlers); the queue exists
// separately so a drain loop (the uploader's event-queue drain, spec.md
// §4.6/§5) can consume every published event exactly once, even if no
// Subscribe-based handler is registered for it.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[string][]func(payload any)
	queue       []Event
}

// NewEventBus constructs an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]func(payload any))}
}

// Subscribe registers handler to be called synchronously whenever an event
// named eventName is published.
func (b *EventBus) Subscribe(eventName string, handler func(payload any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventName] = append(b.subscribers[eventName], handler)
}

// Publish calls every subscriber of eventName and enqueues the event for
// draining.
func (b *EventBus) Publish(eventName string, payload any) {
	b.mu.Lock()
	handlers := append([]func(payload any){}, b.subscribers[eventName]...)
	b.queue = append(b.queue, Event{Name: eventName, Payload: payload})
	b.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

// Drain removes and returns every currently queued event, in publish
// order. Callers loop Drain until it returns an empty slice to observe
// "queue empty" (spec.md §5 "Event queue drain is guaranteed before
// finalize returns").
func (b *EventBus) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.queue
	b.queue = nil
	return drained
}

// Pending reports how many events are currently queued, for drain-loop
// termination checks without allocating.
func (b *EventBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
