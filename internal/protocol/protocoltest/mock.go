// Package protocoltest provides an in-memory transport for driver tests.
package protocoltest

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"printer-service/internal/model"
	"printer-service/internal/protocol"
)

// ErrNoResponse is returned by Read when no response is queued
var ErrNoResponse = errors.New("no response queued")

// MockProtocol records written bytes and replays queued read responses
type MockProtocol struct {
	mutex sync.Mutex

	open      bool
	OpenErr   error
	OpenFails int // number of initial Open calls that fail with OpenErr
	CloseErr  error

	WriteErr        error
	FailWritesAfter int  // writes allowed before WriteErr applies, 0 means from the first
	CloseOnWriteErr bool // simulate a dropped link on write failure

	Type      model.ConnectionType
	Writes    [][]byte
	Responses [][]byte

	OpenCalls  int
	CloseCalls int
}

// NewMockProtocol creates a mock USB transport
func NewMockProtocol() *MockProtocol {
	return &MockProtocol{Type: model.ConnectionTypeUSB}
}

// Opener returns a protocol opener that always hands out m
func (m *MockProtocol) Opener() func(model.PrinterConfig) (protocol.DeviceProtocol, error) {
	return func(model.PrinterConfig) (protocol.DeviceProtocol, error) {
		return m, nil
	}
}

func (m *MockProtocol) Open(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.OpenCalls++
	if m.OpenErr != nil && (m.OpenFails == 0 || m.OpenCalls <= m.OpenFails) {
		return m.OpenErr
	}
	m.open = true
	return nil
}

func (m *MockProtocol) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.CloseCalls++
	m.open = false
	return m.CloseErr
}

func (m *MockProtocol) IsOpen() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.open
}

func (m *MockProtocol) Write(ctx context.Context, data []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.open {
		return protocol.ErrNotOpen
	}
	if m.WriteErr != nil && len(m.Writes) >= m.FailWritesAfter {
		if m.CloseOnWriteErr {
			m.open = false
		}
		return m.WriteErr
	}
	m.Writes = append(m.Writes, append([]byte(nil), data...))
	return nil
}

func (m *MockProtocol) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.open {
		return nil, protocol.ErrNotOpen
	}
	if len(m.Responses) == 0 {
		return nil, ErrNoResponse
	}
	response := m.Responses[0]
	m.Responses = m.Responses[1:]
	if len(response) > maxBytes {
		response = response[:maxBytes]
	}
	return response, nil
}

func (m *MockProtocol) GetProtocolType() model.ConnectionType {
	return m.Type
}

func (m *MockProtocol) Ping(ctx context.Context) error {
	return m.Write(ctx, []byte{0x10, 0x04, 0x01})
}

// QueueResponses appends read responses
func (m *MockProtocol) QueueResponses(responses ...[]byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Responses = append(m.Responses, responses...)
}

// SetWriteError makes writes fail from now on
func (m *MockProtocol) SetWriteError(err error, closeLink bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.WriteErr = err
	m.FailWritesAfter = len(m.Writes)
	m.CloseOnWriteErr = closeLink
}

// Written returns all bytes written so far
func (m *MockProtocol) Written() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return bytes.Join(m.Writes, nil)
}

// WriteCount returns the number of Write calls that succeeded
func (m *MockProtocol) WriteCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.Writes)
}

// Reset clears recorded writes
func (m *MockProtocol) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Writes = nil
}
