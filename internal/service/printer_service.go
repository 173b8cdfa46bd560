// internal/service/printer_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	internalDriver "printer-service/internal/driver"
	"printer-service/internal/driver/escpos"
	"printer-service/internal/model"
	"printer-service/internal/registry"
	"printer-service/internal/store"
	"printer-service/internal/utils"
	"printer-service/pkg/driver"
)

// PrinterService is the facade over the registry and the config store
type PrinterService struct {
	registry *registry.Registry
	store    store.ConfigStore
	validate func(model.PrinterConfig) error
	logger   *utils.ServiceLogger
	bus      *driver.EventBus
	now      func() time.Time

	lifecycle   sync.Mutex
	initialized atomic.Bool
}

// NewPrinterService wires a service. validate checks imported records and may be nil.
func NewPrinterService(
	reg *registry.Registry,
	configStore store.ConfigStore,
	validate func(model.PrinterConfig) error,
	logger *zap.Logger,
) *PrinterService {
	s := &PrinterService{
		registry: reg,
		store:    configStore,
		validate: validate,
		logger:   utils.NewServiceLogger(logger, "printer-service"),
		bus:      driver.NewEventBus(),
		now:      time.Now,
	}
	reg.Subscribe(s.bus.Publish)
	return s
}

func (s *PrinterService) emit(eventType model.EventType) {
	s.bus.Publish(model.PrinterEvent{Type: eventType, Timestamp: s.now()})
}

func (s *PrinterService) requireInitialized() error {
	if !s.initialized.Load() {
		return model.NewError(model.ErrCodeNotInitialized, "", "", nil)
	}
	return nil
}

// Initialize opens the store and registers every stored printer. It is idempotent.
func (s *PrinterService) Initialize(ctx context.Context) error {
	s.lifecycle.Lock()
	if s.initialized.Load() {
		s.lifecycle.Unlock()
		return nil
	}

	if err := s.store.Open(ctx); err != nil {
		s.lifecycle.Unlock()
		return model.NewError(model.ErrCodeNotInitialized, "", "failed to open config store", err)
	}

	configs, err := s.store.LoadAll(ctx)
	if err != nil {
		_ = s.store.Close()
		s.lifecycle.Unlock()
		return model.NewError(model.ErrCodeNotInitialized, "", "failed to load printer configurations", err)
	}

	registered := 0
	for _, cfg := range configs {
		if _, err := s.registry.Register(ctx, cfg); err != nil {
			s.logger.Warn("Skipping stored printer", zap.String("printer_id", cfg.ID), zap.Error(err))
			continue
		}
		registered++
	}

	if defaultID, err := s.store.DefaultID(ctx); err != nil {
		s.logger.Warn("Failed to read stored default printer", zap.Error(err))
	} else if defaultID != "" {
		if err := s.registry.SetDefaultPrinter(defaultID); err != nil {
			s.logger.Warn("Stored default printer is not registered", zap.String("printer_id", defaultID))
		}
	}
	if err := s.mirrorDefault(ctx); err != nil {
		s.logger.Warn("Failed to persist default printer", zap.Error(err))
	}

	s.initialized.Store(true)
	s.lifecycle.Unlock()

	s.logger.LogServiceStart(
		zap.Int("stored", len(configs)),
		zap.Int("registered", registered),
		zap.String("default_id", s.registry.DefaultPrinterID()),
	)
	s.emit(model.EventServiceInitialized)
	return nil
}

// Shutdown disposes every printer, then closes the store. It is idempotent.
func (s *PrinterService) Shutdown(ctx context.Context) error {
	s.lifecycle.Lock()
	if !s.initialized.Load() {
		s.lifecycle.Unlock()
		return nil
	}

	err := s.registry.Dispose(ctx)
	if closeErr := s.store.Close(); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close config store: %w", closeErr))
	}
	s.initialized.Store(false)
	s.lifecycle.Unlock()

	s.logger.LogServiceStop("shutdown")
	s.emit(model.EventServiceShutdown)
	return err
}

// IsInitialized reports whether Initialize has completed
func (s *PrinterService) IsInitialized() bool {
	return s.initialized.Load()
}

// mirrorDefault writes the registry's default id to the store when they differ
func (s *PrinterService) mirrorDefault(ctx context.Context) error {
	current := s.registry.DefaultPrinterID()
	stored, err := s.store.DefaultID(ctx)
	if err != nil {
		return err
	}
	if stored == current {
		return nil
	}
	return s.store.SetDefaultID(ctx, current)
}

// resolve returns the printer with id, or the default printer for an empty id
func (s *PrinterService) resolve(printerID string) (driver.PrinterDriver, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	if printerID == "" {
		return s.registry.DefaultPrinter()
	}
	return s.registry.GetPrinter(printerID)
}

// connected resolves a printer and connects it when needed
func (s *PrinterService) connected(ctx context.Context, printerID string) (driver.PrinterDriver, error) {
	printer, err := s.resolve(printerID)
	if err != nil {
		return nil, err
	}
	if !printer.IsConnected() {
		if err := printer.Connect(ctx); err != nil {
			return nil, err
		}
	}
	return printer, nil
}

// Print prints content on a printer, connecting it first if needed
func (s *PrinterService) Print(ctx context.Context, printerID string, content []model.Content, job model.JobConfig) (string, error) {
	printer, err := s.connected(ctx, printerID)
	if err != nil {
		return "", err
	}
	return printer.Print(ctx, content, job)
}

// PrintText prints a single text item
func (s *PrinterService) PrintText(ctx context.Context, printerID, text string, format model.TextFormat, job model.JobConfig) (string, error) {
	return s.Print(ctx, printerID, []model.Content{model.NewText(text, format)}, job)
}

// QuickPrint prints plain text with the default job settings
func (s *PrinterService) QuickPrint(ctx context.Context, text, printerID string) (string, error) {
	return s.Print(ctx, printerID, []model.Content{model.NewText(text)}, model.JobConfig{})
}

// PrintHello prints the greeting page
func (s *PrinterService) PrintHello(ctx context.Context, printerID string) (string, error) {
	return s.Print(ctx, printerID, escpos.HelloPage(s.now()), model.JobConfig{})
}

// TestPrinter runs a printer's self-test
func (s *PrinterService) TestPrinter(ctx context.Context, printerID string) (bool, error) {
	printer, err := s.connected(ctx, printerID)
	if err != nil {
		return false, err
	}
	return printer.SelfTest(ctx)
}

// GetJob returns a recent job of a printer
func (s *PrinterService) GetJob(printerID, jobID string) (model.PrintJob, error) {
	printer, err := s.resolve(printerID)
	if err != nil {
		return model.PrintJob{}, err
	}
	job, ok := printer.GetJob(jobID)
	if !ok {
		return model.PrintJob{}, model.NewError(model.ErrCodeCommandError, printer.ID(), fmt.Sprintf("job %s not found", jobID), nil)
	}
	return job, nil
}

// CancelJob is not supported, jobs run to completion
func (s *PrinterService) CancelJob(ctx context.Context, printerID, jobID string) error {
	return model.NewError(model.ErrCodeUnsupportedOperation, printerID, "print jobs cannot be cancelled", nil)
}

// AddPrinter registers and persists a printer. An empty id is assigned.
func (s *PrinterService) AddPrinter(ctx context.Context, cfg model.PrinterConfig) (model.PrinterConfig, error) {
	if err := s.requireInitialized(); err != nil {
		return model.PrinterConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	id, err := s.registry.Register(ctx, cfg)
	if err != nil {
		return model.PrinterConfig{}, err
	}
	registered, err := s.registry.GetConfig(id)
	if err != nil {
		return model.PrinterConfig{}, err
	}

	if err := s.store.Save(ctx, registered); err != nil {
		if rollbackErr := s.registry.Unregister(ctx, id); rollbackErr != nil {
			s.logger.Error("Failed to roll back registration", zap.String("printer_id", id), zap.Error(rollbackErr))
		}
		return model.PrinterConfig{}, model.NewError(model.ErrCodeCommandError, id, "failed to persist printer configuration", err)
	}
	if err := s.mirrorDefault(ctx); err != nil {
		s.logger.Warn("Failed to persist default printer", zap.Error(err))
	}

	s.logger.Info("Printer added", zap.String("printer_id", id), zap.String("printer_type", string(cfg.Type)))
	return registered, nil
}

// RemovePrinter unregisters and deletes a printer
func (s *PrinterService) RemovePrinter(ctx context.Context, printerID string) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}

	unregisterErr := s.registry.Unregister(ctx, printerID)
	if model.ErrorCodeOf(unregisterErr) == model.ErrCodePrinterNotFound {
		return unregisterErr
	}

	if err := s.store.Delete(ctx, printerID); err != nil && model.ErrorCodeOf(err) != model.ErrCodePrinterNotFound {
		return model.NewError(model.ErrCodeCommandError, printerID, "failed to delete printer configuration", err)
	}
	if err := s.mirrorDefault(ctx); err != nil {
		s.logger.Warn("Failed to persist default printer", zap.Error(err))
	}

	s.logger.Info("Printer removed", zap.String("printer_id", printerID))
	return unregisterErr
}

// UpdatePrinter merges a partial update, rebuilds the driver and persists the result
func (s *PrinterService) UpdatePrinter(ctx context.Context, printerID string, update model.PrinterConfigUpdate) (model.PrinterConfig, error) {
	if err := s.requireInitialized(); err != nil {
		return model.PrinterConfig{}, err
	}

	updated, err := s.registry.UpdatePrinterConfig(ctx, printerID, update)
	if updated.ID == "" {
		return model.PrinterConfig{}, err
	}
	if err != nil {
		s.logger.Warn("Updated printer failed to reconnect", zap.String("printer_id", printerID), zap.Error(err))
	}

	if saveErr := s.store.Save(ctx, updated); saveErr != nil {
		return updated, model.NewError(model.ErrCodeCommandError, printerID, "failed to persist printer configuration", saveErr)
	}
	if mirrorErr := s.mirrorDefault(ctx); mirrorErr != nil {
		s.logger.Warn("Failed to persist default printer", zap.Error(mirrorErr))
	}
	return updated, err
}

// SetDefaultPrinter makes a printer the default and persists the choice
func (s *PrinterService) SetDefaultPrinter(ctx context.Context, printerID string) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.registry.SetDefaultPrinter(printerID); err != nil {
		return err
	}
	if err := s.store.SetDefaultID(ctx, printerID); err != nil {
		return model.NewError(model.ErrCodeCommandError, printerID, "failed to persist default printer", err)
	}
	return nil
}

// ListPrinters returns the info of every printer
func (s *PrinterService) ListPrinters() ([]model.PrinterInfo, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	return s.registry.GetAllPrinterInfo(), nil
}

// GetPrinterInfo returns the info of a printer, the default one for an empty id
func (s *PrinterService) GetPrinterInfo(printerID string) (model.PrinterInfo, error) {
	printer, err := s.resolve(printerID)
	if err != nil {
		return model.PrinterInfo{}, err
	}
	return s.registry.GetPrinterInfo(printer.ID())
}

// RefreshStatus queries a printer's hardware status
func (s *PrinterService) RefreshStatus(ctx context.Context, printerID string) (model.PrinterStatus, error) {
	printer, err := s.resolve(printerID)
	if err != nil {
		return "", err
	}
	return printer.RefreshStatus(ctx)
}

// ConnectPrinter connects a printer, the default one for an empty id
func (s *PrinterService) ConnectPrinter(ctx context.Context, printerID string) (model.PrinterInfo, error) {
	printer, err := s.connected(ctx, printerID)
	if err != nil {
		return model.PrinterInfo{}, err
	}
	return s.registry.GetPrinterInfo(printer.ID())
}

// DisconnectPrinter closes a printer's transport, the default one for an empty id
func (s *PrinterService) DisconnectPrinter(ctx context.Context, printerID string) error {
	printer, err := s.resolve(printerID)
	if err != nil {
		return err
	}
	return s.registry.DisconnectPrinter(ctx, printer.ID())
}

// RecoverPrinter disconnects and reconnects a printer. This is the way out of
// a latched Error status.
func (s *PrinterService) RecoverPrinter(ctx context.Context, printerID string) (model.PrinterInfo, error) {
	printer, err := s.resolve(printerID)
	if err != nil {
		return model.PrinterInfo{}, err
	}
	if err := s.registry.DisconnectPrinter(ctx, printer.ID()); err != nil {
		s.logger.Warn("Disconnect before reconnect failed", zap.String("printer_id", printer.ID()), zap.Error(err))
	}
	if err := s.registry.ConnectPrinter(ctx, printer.ID()); err != nil {
		return model.PrinterInfo{}, err
	}
	s.logger.Info("Printer recovered", zap.String("printer_id", printer.ID()))
	return s.registry.GetPrinterInfo(printer.ID())
}

// Discover runs printer discovery
func (s *PrinterService) Discover(ctx context.Context) ([]model.PrinterDiscoveryResult, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	return s.registry.DiscoverPrinters(ctx), nil
}

// AutoConfigure adds every available discovered printer whose target is not configured yet
func (s *PrinterService) AutoConfigure(ctx context.Context) ([]model.PrinterConfig, error) {
	op := utils.NewOperationLogger(s.logger.Logger, "auto_configure")
	op.Start()

	results, err := s.Discover(ctx)
	if err != nil {
		op.Error(err)
		return nil, err
	}

	configured := s.registry.GetAllConfigs()
	isConfigured := func(result model.PrinterDiscoveryResult) bool {
		for _, cfg := range configured {
			if cfg.SameTarget(result.ConnectionType, result.ConnectionString) {
				return true
			}
		}
		return false
	}

	added := []model.PrinterConfig{}
	for _, result := range results {
		if !result.Available || isConfigured(result) {
			continue
		}

		template := internalDriver.TemplateFor(result.Type)
		cfg := template(result.Name, result.ConnectionString, internalDriver.WithConnectionType(result.ConnectionType))

		saved, err := s.AddPrinter(ctx, cfg)
		if err != nil {
			s.logger.Warn("Skipping discovered printer",
				zap.String("name", result.Name),
				zap.String("connection_string", result.ConnectionString),
				zap.Error(err),
			)
			continue
		}
		configured = append(configured, saved)
		added = append(added, saved)
	}

	op.Success(zap.Int("discovered", len(results)), zap.Int("added", len(added)))
	return added, nil
}

// ExportConfig renders every stored configuration as a JSON document
func (s *PrinterService) ExportConfig(ctx context.Context) ([]byte, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	doc, err := store.Export(ctx, s.store, s.now())
	if err != nil {
		return nil, model.NewError(model.ErrCodeCommandError, "", "failed to export configuration", err)
	}
	return doc.Encode()
}

// ImportConfig replaces the stored configuration with a document and
// re-registers every printer. Nothing changes when the document is invalid.
func (s *PrinterService) ImportConfig(ctx context.Context, data []byte) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}

	op := utils.NewOperationLogger(s.logger.Logger, "import_config", zap.Int("bytes", len(data)))
	op.Start()

	doc, err := store.DecodeDocument(data)
	if err != nil {
		err = model.NewError(model.ErrCodeInvalidConfig, "", "", err)
		op.Error(err)
		return err
	}
	normalized, err := doc.Normalize(s.validate)
	if err != nil {
		op.Error(err)
		return err
	}
	if err := s.store.Replace(ctx, normalized.Configurations, normalized.DefaultConfigID); err != nil {
		err = model.NewError(model.ErrCodeCommandError, "", "failed to store imported configuration", err)
		op.Error(err)
		return err
	}

	var syncErr error
	for _, cfg := range s.registry.GetAllConfigs() {
		if err := s.registry.Unregister(ctx, cfg.ID); err != nil {
			syncErr = multierr.Append(syncErr, err)
		}
	}
	for _, cfg := range normalized.Configurations {
		if _, err := s.registry.Register(ctx, cfg); err != nil {
			syncErr = multierr.Append(syncErr, err)
		}
	}
	if normalized.DefaultConfigID != "" {
		if err := s.registry.SetDefaultPrinter(normalized.DefaultConfigID); err != nil {
			syncErr = multierr.Append(syncErr, err)
		}
	}

	if syncErr != nil {
		op.Error(syncErr, zap.Int("printers", len(normalized.Configurations)))
		return syncErr
	}
	op.Success(
		zap.Int("printers", len(normalized.Configurations)),
		zap.String("default_id", normalized.DefaultConfigID),
	)
	return nil
}

// Subscribe registers a handler for printer and service events
func (s *PrinterService) Subscribe(handler driver.EventHandler) driver.SubscriptionID {
	return s.bus.Subscribe(handler)
}

// Unsubscribe removes a handler
func (s *PrinterService) Unsubscribe(id driver.SubscriptionID) {
	s.bus.Unsubscribe(id)
}
