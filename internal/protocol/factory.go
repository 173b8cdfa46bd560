// internal/protocol/factory.go
package protocol

import (
	"fmt"

	"go.uber.org/zap"

	"printer-service/internal/model"
)

// Factory creates transports for printer configurations
type Factory struct {
	defaults Defaults
	runner   CommandRunner
	logger   *zap.Logger
}

// NewFactory creates a protocol factory with the given transport defaults
func NewFactory(defaults Defaults, logger *zap.Logger) *Factory {
	return &Factory{
		defaults: defaults,
		runner:   ExecRunner,
		logger:   logger,
	}
}

// CreateProtocol creates an unopened transport for the printer's connection string
func (f *Factory) CreateProtocol(cfg model.PrinterConfig) (DeviceProtocol, error) {
	logger := f.logger.With(zap.String("printer_id", cfg.ID))

	switch cfg.ConnectionType {
	case model.ConnectionTypeUSB:
		return f.createUSBProtocol(cfg, logger)
	case model.ConnectionTypeSerial:
		serialConfig, err := f.serialConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewSerialConnection(serialConfig, logger), nil
	case model.ConnectionTypeNetwork:
		return f.createTCPProtocol(cfg, logger)
	case model.ConnectionTypeBluetooth:
		if IsMACAddress(cfg.ConnectionString) {
			return nil, fmt.Errorf("bluetooth address %s must be bound to an RFCOMM serial port first", cfg.ConnectionString)
		}
		serialConfig, err := f.serialConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewBluetoothConnection(serialConfig, logger), nil
	default:
		return nil, fmt.Errorf("unsupported protocol type: %s", cfg.ConnectionType)
	}
}

// createUSBProtocol picks libusb, a device file or a spooler queue
func (f *Factory) createUSBProtocol(cfg model.PrinterConfig, logger *zap.Logger) (DeviceProtocol, error) {
	target, err := ParseUSBTarget(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	switch target.Kind {
	case USBTargetFile:
		return NewDeviceFileConnection(target.Path, logger), nil
	case USBTargetQueue:
		return NewSpoolerConnection(target.Queue, f.runner, logger), nil
	}

	timeout := f.defaults.USBTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.TimeoutDuration()
	}

	logger.Debug("Creating USB protocol",
		zap.String("vendor_id", target.VendorID),
		zap.String("product_id", target.ProductID),
	)

	return NewUSBConnection(&USBConfig{
		VendorID:     target.VendorID,
		ProductID:    target.ProductID,
		SerialNumber: target.SerialNumber,
		Interface:    f.defaults.USBInterface,
		Timeout:      timeout,
	}, logger), nil
}

// serialConfig builds a serial configuration from defaults and the connection string
func (f *Factory) serialConfig(cfg model.PrinterConfig) (*SerialConfig, error) {
	port, baud, err := ParseSerialTarget(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	serialConfig := &SerialConfig{
		Port:     port,
		BaudRate: f.defaults.SerialBaudRate,
		DataBits: f.defaults.SerialDataBits,
		StopBits: f.defaults.SerialStopBits,
		Parity:   f.defaults.SerialParity,
		Timeout:  f.defaults.SerialTimeout,
	}
	if baud > 0 {
		serialConfig.BaudRate = baud
	}
	if cfg.Timeout > 0 {
		serialConfig.Timeout = cfg.TimeoutDuration()
	}
	return serialConfig, nil
}

// createTCPProtocol creates a raw TCP protocol
func (f *Factory) createTCPProtocol(cfg model.PrinterConfig, logger *zap.Logger) (DeviceProtocol, error) {
	host, port, err := ParseNetworkTarget(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	tcpConfig := &TCPConfig{
		Host:         host,
		Port:         port,
		KeepAlive:    f.defaults.TCPKeepAlive,
		Timeout:      f.defaults.TCPConnectTimeout,
		ReadTimeout:  f.defaults.TCPReadTimeout,
		WriteTimeout: f.defaults.TCPWriteTimeout,
	}
	if cfg.Timeout > 0 {
		tcpConfig.Timeout = cfg.TimeoutDuration()
		tcpConfig.WriteTimeout = cfg.TimeoutDuration()
	}

	return NewTCPConnection(tcpConfig, logger), nil
}
