// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"printer-service/internal/model"
)

// ErrNotOpen is returned by transports used before Open or after Close
var ErrNotOpen = errors.New("connection not open")

// ErrReadUnsupported is returned by write-only transports
var ErrReadUnsupported = errors.New("transport does not support reading")

// DeviceProtocol represents a communication channel to a printer
type DeviceProtocol interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Protocol information
	GetProtocolType() model.ConnectionType

	// Health and diagnostics
	Ping(ctx context.Context) error
}

// pingCommand is DLE EOT 1, a real-time status request every ESC/POS device answers
var pingCommand = []byte{0x10, 0x04, 0x01}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

func (s *ProtocolStats) recordWrite(bytes int, latency time.Duration) {
	s.BytesWritten += int64(bytes)
	s.OperationCount++
	s.LastActivity = time.Now()
	if s.AverageLatency == 0 {
		s.AverageLatency = latency
	} else {
		s.AverageLatency = (s.AverageLatency + latency) / 2
	}
}

func (s *ProtocolStats) recordRead(bytes int) {
	s.BytesRead += int64(bytes)
	s.OperationCount++
	s.LastActivity = time.Now()
}

// readDeadline returns the earlier of the ctx deadline and now plus timeout.
// It is zero when neither bound is set.
func readDeadline(ctx context.Context, timeout time.Duration) time.Time {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	return deadline
}

// deadlineReader is a reader whose blocking Read honours a read deadline
type deadlineReader interface {
	Read(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
}

// readWithDeadline reads once from r on the calling goroutine. The read is
// bounded by ctx and timeout, and cancelling ctx moves the deadline to now.
func readWithDeadline(ctx context.Context, r deadlineReader, maxBytes int, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.SetReadDeadline(readDeadline(ctx, timeout)); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = r.SetReadDeadline(time.Now())
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	buffer := make([]byte, maxBytes)
	n, err := r.Read(buffer)
	if err != nil && n == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if ctxDeadline, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) && !time.Now().Before(ctxDeadline) {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	return buffer[:n], nil
}
