// internal/model/event.go
package model

import "time"

// EventType represents the type of event
type EventType string

const (
	EventStatusChanged      EventType = "status_changed"
	EventJobStarted         EventType = "job_started"
	EventJobCompleted       EventType = "job_completed"
	EventJobFailed          EventType = "job_failed"
	EventConnectionLost     EventType = "connection_lost"
	EventConnectionRestored EventType = "connection_restored"
	EventError              EventType = "error"

	EventServiceInitialized EventType = "service_initialized"
	EventServiceShutdown    EventType = "service_shutdown"
)

// PrinterEvent is a lifecycle event raised by a driver or the service
type PrinterEvent struct {
	Type      EventType     `json:"type"`
	PrinterID string        `json:"printerId,omitempty"`
	OldStatus PrinterStatus `json:"oldStatus,omitempty"`
	NewStatus PrinterStatus `json:"newStatus,omitempty"`
	JobID     string        `json:"jobId,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
