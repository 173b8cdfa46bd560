// internal/protocol/spooler_connection.go
package protocol

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"printer-service/internal/model"
)

// CommandRunner runs an external command with stdin and returns its combined output
type CommandRunner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// ExecRunner runs commands through os/exec
func ExecRunner(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	return cmd.CombinedOutput()
}

// SpoolerConnection submits every write as one raw job to an OS print queue
type SpoolerConnection struct {
	queue  string
	runner CommandRunner
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  ProtocolStats
}

// NewSpoolerConnection creates a connection to an OS print queue
func NewSpoolerConnection(queue string, runner CommandRunner, logger *zap.Logger) *SpoolerConnection {
	if runner == nil {
		runner = ExecRunner
	}
	return &SpoolerConnection{
		queue:  queue,
		runner: runner,
		logger: logger.With(zap.String("protocol", "spooler"), zap.String("queue", queue)),
	}
}

// Open checks the queue is known to the spooler
func (sp *SpoolerConnection) Open(ctx context.Context) error {
	sp.mutex.Lock()
	defer sp.mutex.Unlock()

	if sp.isOpen {
		return nil
	}
	if runtime.GOOS == "windows" {
		return fmt.Errorf("raw spooling to Windows queue %s is not supported", sp.queue)
	}

	output, err := sp.runner(ctx, nil, "lpstat", "-p", sp.queue)
	if err != nil {
		return fmt.Errorf("print queue %s unavailable: %s: %w", sp.queue, strings.TrimSpace(string(output)), err)
	}

	sp.isOpen = true
	sp.stats.IsConnected = true
	sp.stats.LastActivity = time.Now()
	sp.logger.Info("Print queue opened")
	return nil
}

// Close marks the queue closed
func (sp *SpoolerConnection) Close() error {
	sp.mutex.Lock()
	defer sp.mutex.Unlock()
	sp.isOpen = false
	sp.stats.IsConnected = false
	return nil
}

// IsOpen returns whether the queue is open
func (sp *SpoolerConnection) IsOpen() bool {
	sp.mutex.RLock()
	defer sp.mutex.RUnlock()
	return sp.isOpen
}

// Write submits data as a raw job
func (sp *SpoolerConnection) Write(ctx context.Context, data []byte) error {
	sp.mutex.Lock()
	defer sp.mutex.Unlock()

	if !sp.isOpen {
		return ErrNotOpen
	}

	startTime := time.Now()
	output, err := sp.runner(ctx, data, "lp", "-d", sp.queue, "-o", "raw")
	if err != nil {
		sp.stats.ErrorCount++
		return fmt.Errorf("failed to submit raw job: %s: %w", strings.TrimSpace(string(output)), err)
	}
	sp.stats.recordWrite(len(data), time.Since(startTime))
	sp.logger.Debug("Raw job submitted", zap.Int("bytes", len(data)))
	return nil
}

// Read is not supported by the spooler
func (sp *SpoolerConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	return nil, ErrReadUnsupported
}

// GetProtocolType returns the protocol type
func (sp *SpoolerConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeUSB
}

// Ping checks the queue still exists
func (sp *SpoolerConnection) Ping(ctx context.Context) error {
	if !sp.IsOpen() {
		return ErrNotOpen
	}
	if _, err := sp.runner(ctx, nil, "lpstat", "-p", sp.queue); err != nil {
		return fmt.Errorf("print queue %s unavailable: %w", sp.queue, err)
	}
	return nil
}
