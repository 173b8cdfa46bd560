// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"printer-service/internal/model"
)

// SerialConnection implements DeviceProtocol for serial ports. Bluetooth
// printers bound to an RFCOMM device use the same transport.
type SerialConnection struct {
	config       *SerialConfig
	port         serial.Port
	protocolType model.ConnectionType
	logger       *zap.Logger
	mutex        sync.RWMutex
	isOpen       bool
	stats        ProtocolStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return newSerialConnection(config, model.ConnectionTypeSerial, logger)
}

// NewBluetoothConnection creates a serial connection over an RFCOMM port
func NewBluetoothConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return newSerialConnection(config, model.ConnectionTypeBluetooth, logger)
}

func newSerialConnection(config *SerialConfig, protocolType model.ConnectionType, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config:       config,
		protocolType: protocolType,
		logger: logger.With(
			zap.String("protocol", string(protocolType)),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial port
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: sc.config.DataBits,
		StopBits: serial.OneStopBit,
	}
	if sc.config.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch sc.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(sc.config.Port, mode)
	if err != nil {
		sc.logger.Warn("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", sc.config.Port, err)
	}

	if sc.config.Timeout > 0 {
		if err := port.SetReadTimeout(sc.config.Timeout); err != nil {
			port.Close()
			return fmt.Errorf("failed to set read timeout: %w", err)
		}
	}

	sc.port = port
	sc.isOpen = true
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()

	sc.logger.Info("Serial port opened", zap.Int("baud_rate", sc.config.BaudRate))
	return nil
}

// Close closes the serial port
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	sc.stats.IsConnected = false

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	sc.logger.Info("Serial port closed")
	return nil
}

// IsOpen returns whether the port is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port and waits for it to drain
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	startTime := time.Now()
	n, err := sc.port.Write(data)
	if err != nil {
		sc.stats.ErrorCount++
		sc.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	if err := sc.port.Drain(); err != nil {
		sc.logger.Debug("Serial drain failed", zap.Error(err))
	}

	sc.stats.recordWrite(n, time.Since(startTime))
	sc.logger.Debug("Serial write completed", zap.Int("bytes", n))
	return nil
}

// Read reads data from the serial port
func (sc *SerialConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil, ErrNotOpen
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The port cannot interrupt a read in progress, so ctx only bounds the timeout
	if err := sc.port.SetReadTimeout(serialReadTimeout(readDeadline(ctx, sc.config.Timeout))); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	buffer := make([]byte, maxBytes)
	n, err := sc.port.Read(buffer)
	if err != nil && n == 0 {
		sc.stats.ErrorCount++
		return nil, fmt.Errorf("failed to read from serial port: %w", err)
	}
	data := buffer[:n]
	if len(data) == 0 {
		// go.bug.st/serial returns 0 bytes on read timeout
		return nil, fmt.Errorf("serial read timed out")
	}

	sc.stats.recordRead(len(data))
	return data, nil
}

// serialReadTimeout converts a read deadline to a port read timeout
func serialReadTimeout(deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return serial.NoTimeout
	}
	// zero makes the port return immediately
	return max(time.Until(deadline), time.Millisecond)
}

// GetProtocolType returns the protocol type
func (sc *SerialConnection) GetProtocolType() model.ConnectionType {
	return sc.protocolType
}

// Ping tests the connection
func (sc *SerialConnection) Ping(ctx context.Context) error {
	return sc.Write(ctx, pingCommand)
}
