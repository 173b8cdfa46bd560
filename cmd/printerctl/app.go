package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"printer-service/internal/config"
	"printer-service/internal/discovery"
	"printer-service/internal/discovery/mdns"
	"printer-service/internal/discovery/serial"
	"printer-service/internal/discovery/spooler"
	"printer-service/internal/discovery/tcp"
	"printer-service/internal/discovery/usb"
	internalDriver "printer-service/internal/driver"
	"printer-service/internal/driver/escpos"
	"printer-service/internal/protocol"
	"printer-service/internal/registry"
	"printer-service/internal/service"
	"printer-service/internal/store"
	"printer-service/internal/utils"
)

// Application holds every component of one printerctl invocation
type Application struct {
	config        *config.Config
	logger        *zap.Logger
	serviceLogger *utils.ServiceLogger

	store     *store.BoltStore
	factory   *internalDriver.Factory
	discovery *discovery.Manager
	registry  *registry.Registry
	service   *service.PrinterService
}

// NewApplication loads configuration, builds the component graph and
// initializes the printer service
func NewApplication(ctx context.Context, configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &Application{
		config:        cfg,
		logger:        logger,
		serviceLogger: utils.NewServiceLogger(logger, "printerctl"),
	}

	if err := app.initializeDrivers(); err != nil {
		return nil, fmt.Errorf("failed to initialize printer drivers: %w", err)
	}
	app.initializeDiscovery()
	app.initializeService()

	if err := app.service.Initialize(ctx); err != nil {
		_ = utils.CloseLogger(logger)
		return nil, fmt.Errorf("failed to initialize printer service: %w", err)
	}

	app.serviceLogger.LogServiceStart(
		zap.String("version", cfg.App.Version),
		zap.String("store", cfg.Store.Path),
		zap.Strings("scanners", app.discovery.AvailableScanners()),
	)
	return app, nil
}

// protocolDefaults maps the configured port defaults onto transport defaults
func protocolDefaults(ports config.DevicePortConfig) protocol.Defaults {
	defaults := protocol.DefaultSettings()

	if ports.Serial.BaudRate > 0 {
		defaults.SerialBaudRate = ports.Serial.BaudRate
	}
	if ports.Serial.DataBits > 0 {
		defaults.SerialDataBits = ports.Serial.DataBits
	}
	if ports.Serial.StopBits > 0 {
		defaults.SerialStopBits = ports.Serial.StopBits
	}
	if ports.Serial.Parity != "" {
		defaults.SerialParity = ports.Serial.Parity
	}
	if ports.Serial.Timeout > 0 {
		defaults.SerialTimeout = ports.Serial.Timeout
	}

	if ports.TCP.ConnectTimeout > 0 {
		defaults.TCPConnectTimeout = ports.TCP.ConnectTimeout
	}
	if ports.TCP.ReadTimeout > 0 {
		defaults.TCPReadTimeout = ports.TCP.ReadTimeout
	}
	if ports.TCP.WriteTimeout > 0 {
		defaults.TCPWriteTimeout = ports.TCP.WriteTimeout
	}
	defaults.TCPKeepAlive = ports.TCP.KeepAlive

	if ports.USB.Timeout > 0 {
		defaults.USBTimeout = ports.USB.Timeout
	}
	defaults.USBInterface = ports.USB.Interface
	return defaults
}

// initializeDrivers registers the ESC/POS printer types
func (app *Application) initializeDrivers() error {
	transports := protocol.NewFactory(protocolDefaults(app.config.Device.DefaultPort), app.logger)

	app.factory = internalDriver.NewFactory(app.logger)
	return internalDriver.RegisterDefaultPrinters(app.factory, app.logger,
		escpos.WithProtocolFactory(transports.CreateProtocol),
		escpos.WithRetryDelay(app.config.Device.RetryDelay),
		escpos.WithStatusReadTimeout(app.config.Device.StatusReadTimeout),
	)
}

// initializeDiscovery registers the enabled scanners
func (app *Application) initializeDiscovery() {
	cfg := app.config.Discovery
	app.discovery = discovery.NewManager(app.logger, cfg.ScanTimeout)

	if cfg.USB.Enabled {
		app.discovery.RegisterScanner(usb.NewScanner(app.logger))
	}
	if cfg.Spooler.Enabled {
		app.discovery.RegisterScanner(spooler.NewScanner(app.logger))
	}
	if cfg.Serial.Enabled {
		app.discovery.RegisterScanner(serial.NewScanner(app.logger, nil))
	}
	if cfg.Network.Enabled {
		app.discovery.RegisterScanner(tcp.NewScanner(app.logger, tcp.Config{
			Candidates:    cfg.Network.Candidates,
			Port:          cfg.Network.Port,
			Timeout:       cfg.Network.Timeout,
			MaxConcurrent: cfg.Network.MaxConcurrent,
		}, nil))
	}
	if cfg.MDNS.Enabled {
		app.discovery.RegisterScanner(mdns.NewScanner(app.logger, mdns.Params{
			Service: cfg.MDNS.Service,
			Domain:  cfg.MDNS.Domain,
			Timeout: cfg.MDNS.Timeout,
		}, nil))
	}
}

// initializeService wires the store and registry into the printer service
func (app *Application) initializeService() {
	app.store = store.NewBoltStore(app.config.Store.Path, app.config.Store.OpenTimeout, app.logger)
	app.registry = registry.New(app.factory, app.discovery, app.logger)
	app.service = service.NewPrinterService(app.registry, app.store, app.factory.Validate, app.logger)
}

// Close shuts the service down and flushes the logger
func (app *Application) Close(ctx context.Context) error {
	err := app.service.Shutdown(ctx)
	if err != nil {
		app.logger.Error("Printer service shutdown error", zap.Error(err))
	}
	app.serviceLogger.LogServiceStop("command completed")

	// Sync on a console fd fails on some platforms
	_ = utils.CloseLogger(app.logger)
	return err
}
