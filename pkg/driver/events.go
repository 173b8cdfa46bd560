// pkg/driver/events.go
package driver

import (
	"sync"

	"printer-service/internal/model"
)

// EventHandler receives lifecycle events
type EventHandler func(event model.PrinterEvent)

// SubscriptionID identifies one handler registration
type SubscriptionID uint64

// EventBus is a synchronous fan-out of events to subscribers.
// Handlers run on the publishing goroutine, in subscription order,
// with no bus lock held.
type EventBus struct {
	mutex    sync.RWMutex
	nextID   SubscriptionID
	handlers map[SubscriptionID]EventHandler
	order    []SubscriptionID
}

// NewEventBus creates an empty event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[SubscriptionID]EventHandler),
	}
}

// Subscribe registers a handler
func (b *EventBus) Subscribe(handler EventHandler) SubscriptionID {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = handler
	b.order = append(b.order, id)
	return id
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (b *EventBus) Unsubscribe(id SubscriptionID) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.handlers[id]; !exists {
		return
	}
	delete(b.handlers, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers the event to every current subscriber
func (b *EventBus) Publish(event model.PrinterEvent) {
	b.mutex.RLock()
	handlers := make([]EventHandler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mutex.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Clear removes every subscriber
func (b *EventBus) Clear() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.handlers = make(map[SubscriptionID]EventHandler)
	b.order = nil
}

// Len returns the number of subscribers
func (b *EventBus) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.handlers)
}
