// pkg/driver/status_tracker.go
package driver

import (
	"sync"
	"time"

	"printer-service/internal/model"
)

// StatusTracker holds a driver's status and event bus. Drivers embed one
// and delegate status bookkeeping and event emission to it.
type StatusTracker struct {
	printerID string
	mutex     sync.RWMutex
	status    model.PrinterStatus
	bus       *EventBus
}

// NewStatusTracker creates a tracker starting in Offline
func NewStatusTracker(printerID string) *StatusTracker {
	return &StatusTracker{
		printerID: printerID,
		status:    model.PrinterStatusOffline,
		bus:       NewEventBus(),
	}
}

// Status returns the current status
func (t *StatusTracker) Status() model.PrinterStatus {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.status
}

// SetStatus transitions to status and emits status_changed.
// Self-transitions are suppressed and return false.
func (t *StatusTracker) SetStatus(status model.PrinterStatus) bool {
	t.mutex.Lock()
	old := t.status
	if old == status {
		t.mutex.Unlock()
		return false
	}
	t.status = status
	t.mutex.Unlock()

	t.bus.Publish(model.PrinterEvent{
		Type:      model.EventStatusChanged,
		PrinterID: t.printerID,
		OldStatus: old,
		NewStatus: status,
		Timestamp: time.Now(),
	})
	return true
}

// Emit publishes a non-status event for this printer
func (t *StatusTracker) Emit(eventType model.EventType, jobID string, err error) {
	event := model.PrinterEvent{
		Type:      eventType,
		PrinterID: t.printerID,
		JobID:     jobID,
		Timestamp: time.Now(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	t.bus.Publish(event)
}

// Subscribe registers a handler for this printer's events
func (t *StatusTracker) Subscribe(handler EventHandler) SubscriptionID {
	return t.bus.Subscribe(handler)
}

// Unsubscribe removes a handler
func (t *StatusTracker) Unsubscribe(id SubscriptionID) {
	t.bus.Unsubscribe(id)
}

// Close drops every subscriber
func (t *StatusTracker) Close() {
	t.bus.Clear()
}
