package driver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printer-service/internal/model"
)

func TestStatusTracker_StartsOffline(t *testing.T) {
	tracker := NewStatusTracker("p1")
	assert.Equal(t, model.PrinterStatusOffline, tracker.Status())
}

func TestStatusTracker_SuppressesSelfTransitions(t *testing.T) {
	tracker := NewStatusTracker("p1")

	var events []model.PrinterEvent
	tracker.Subscribe(func(event model.PrinterEvent) {
		events = append(events, event)
	})

	assert.True(t, tracker.SetStatus(model.PrinterStatusIdle))
	assert.False(t, tracker.SetStatus(model.PrinterStatusIdle))
	assert.True(t, tracker.SetStatus(model.PrinterStatusPrinting))

	require.Len(t, events, 2)
	assert.Equal(t, model.EventStatusChanged, events[0].Type)
	assert.Equal(t, model.PrinterStatusOffline, events[0].OldStatus)
	assert.Equal(t, model.PrinterStatusIdle, events[0].NewStatus)
	assert.Equal(t, model.PrinterStatusIdle, events[1].OldStatus)
	assert.Equal(t, model.PrinterStatusPrinting, events[1].NewStatus)
	assert.Equal(t, "p1", events[1].PrinterID)
}

func TestStatusTracker_Emit(t *testing.T) {
	tracker := NewStatusTracker("p1")

	var got model.PrinterEvent
	tracker.Subscribe(func(event model.PrinterEvent) { got = event })

	tracker.Emit(model.EventJobFailed, "job-1", errors.New("boom"))

	assert.Equal(t, model.EventJobFailed, got.Type)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "boom", got.Error)
	assert.False(t, got.Timestamp.IsZero())
}

func TestEventBus_OrderAndUnsubscribe(t *testing.T) {
	bus := NewEventBus()

	var calls []string
	first := bus.Subscribe(func(model.PrinterEvent) { calls = append(calls, "first") })
	bus.Subscribe(func(model.PrinterEvent) { calls = append(calls, "second") })

	bus.Publish(model.PrinterEvent{Type: model.EventError})
	assert.Equal(t, []string{"first", "second"}, calls)

	bus.Unsubscribe(first)
	bus.Unsubscribe(SubscriptionID(999))
	calls = nil
	bus.Publish(model.PrinterEvent{Type: model.EventError})
	assert.Equal(t, []string{"second"}, calls)
	assert.Equal(t, 1, bus.Len())

	bus.Clear()
	assert.Equal(t, 0, bus.Len())
}

func TestEventBus_HandlerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewEventBus()

	bus.Subscribe(func(model.PrinterEvent) {
		bus.Subscribe(func(model.PrinterEvent) {})
	})

	assert.NotPanics(t, func() {
		bus.Publish(model.PrinterEvent{Type: model.EventError})
	})
	assert.Equal(t, 2, bus.Len())
}
