// Package registry owns the printer drivers of a running service.
package registry

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"printer-service/internal/model"
	"printer-service/pkg/driver"
)

// PrinterCreator validates a configuration and constructs its driver
type PrinterCreator interface {
	CreatePrinter(cfg model.PrinterConfig) (driver.PrinterDriver, error)
}

// Discoverer finds printers that are not necessarily registered
type Discoverer interface {
	Discover(ctx context.Context) []model.PrinterDiscoveryResult
}

type entry struct {
	config       model.PrinterConfig
	driver       driver.PrinterDriver
	subscription driver.SubscriptionID
}

// Registry indexes drivers by identifier and tracks the default printer
type Registry struct {
	creator    PrinterCreator
	discoverer Discoverer
	logger     *zap.Logger
	bus        *driver.EventBus

	mu              sync.RWMutex
	entries         map[string]*entry
	order           []string
	defaultID       string
	defaultExplicit bool
}

// New creates an empty registry. discoverer may be nil.
func New(creator PrinterCreator, discoverer Discoverer, logger *zap.Logger) *Registry {
	return &Registry{
		creator:    creator,
		discoverer: discoverer,
		logger:     logger.With(zap.String("component", "registry")),
		bus:        driver.NewEventBus(),
		entries:    make(map[string]*entry),
	}
}

func (r *Registry) forward(event model.PrinterEvent) {
	r.bus.Publish(event)
}

func notFound(id string) error {
	return model.NewError(model.ErrCodePrinterNotFound, id, "", nil)
}

// Register validates cfg, creates its driver and indexes it. The driver is not connected.
func (r *Registry) Register(ctx context.Context, cfg model.PrinterConfig) (string, error) {
	if r.exists(cfg.ID) {
		return "", model.NewError(model.ErrCodeInvalidConfig, cfg.ID, "printer id already registered", nil)
	}

	printer, err := r.creator.CreatePrinter(cfg)
	if err != nil {
		return "", model.WrapError(err, model.ErrCodeInvalidConfig, cfg.ID, "")
	}

	r.mu.Lock()
	if _, exists := r.entries[cfg.ID]; exists {
		r.mu.Unlock()
		_ = printer.Dispose(ctx)
		return "", model.NewError(model.ErrCodeInvalidConfig, cfg.ID, "printer id already registered", nil)
	}

	switch {
	case len(r.order) == 0:
		r.defaultID = cfg.ID
		r.defaultExplicit = cfg.IsDefault
	case cfg.IsDefault && !r.defaultExplicit:
		r.defaultID = cfg.ID
		r.defaultExplicit = true
	case cfg.IsDefault:
		r.logger.Info("Default flag ignored, an explicit default is already set",
			zap.String("printer_id", cfg.ID),
			zap.String("default_id", r.defaultID),
		)
	}

	r.entries[cfg.ID] = &entry{
		config:       cfg,
		driver:       printer,
		subscription: printer.Subscribe(r.forward),
	}
	r.order = append(r.order, cfg.ID)
	r.mu.Unlock()

	r.logger.Info("Printer registered",
		zap.String("printer_id", cfg.ID),
		zap.String("printer_type", string(cfg.Type)),
		zap.String("connection_type", string(cfg.ConnectionType)),
	)
	return cfg.ID, nil
}

func (r *Registry) exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Unregister disposes and removes a printer. The earliest remaining printer
// becomes default if the removed one was default.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return notFound(id)
	}
	delete(r.entries, id)
	r.removeFromOrder(id)
	if r.defaultID == id {
		r.promoteDefault()
	}
	r.mu.Unlock()

	err := e.driver.Dispose(ctx)
	e.driver.Unsubscribe(e.subscription)

	r.logger.Info("Printer unregistered", zap.String("printer_id", id))
	if err != nil {
		return model.WrapError(err, model.ErrCodeCommandError, id, "failed to dispose printer")
	}
	return nil
}

// removeFromOrder drops id from the insertion order. Caller holds mu.
func (r *Registry) removeFromOrder(id string) {
	for i, current := range r.order {
		if current == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// promoteDefault makes the earliest-inserted printer default. Caller holds mu.
func (r *Registry) promoteDefault() {
	r.defaultExplicit = false
	if len(r.order) == 0 {
		r.defaultID = ""
		return
	}
	r.defaultID = r.order[0]
}

// GetPrinter returns the driver of a printer
func (r *Registry) GetPrinter(id string) (driver.PrinterDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, notFound(id)
	}
	return e.driver, nil
}

// GetAllPrinters returns every driver in insertion order
func (r *Registry) GetAllPrinters() []driver.PrinterDriver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	printers := make([]driver.PrinterDriver, 0, len(r.order))
	for _, id := range r.order {
		printers = append(printers, r.entries[id].driver)
	}
	return printers
}

// GetAvailablePrinters returns the connected drivers in insertion order
func (r *Registry) GetAvailablePrinters() []driver.PrinterDriver {
	all := r.GetAllPrinters()
	available := make([]driver.PrinterDriver, 0, len(all))
	for _, printer := range all {
		if printer.IsConnected() {
			available = append(available, printer)
		}
	}
	return available
}

// Len returns the number of registered printers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// configView returns the stored config with the registry's default flag. Caller holds mu.
func (r *Registry) configView(e *entry) model.PrinterConfig {
	cfg := e.config
	cfg.IsDefault = cfg.ID == r.defaultID
	return cfg
}

// GetConfig returns a copy of a printer's configuration
func (r *Registry) GetConfig(id string) (model.PrinterConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return model.PrinterConfig{}, notFound(id)
	}
	return r.configView(e), nil
}

// GetAllConfigs returns copies of every configuration in insertion order
func (r *Registry) GetAllConfigs() []model.PrinterConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]model.PrinterConfig, 0, len(r.order))
	for _, id := range r.order {
		configs = append(configs, r.configView(r.entries[id]))
	}
	return configs
}

// GetPrinterInfo returns a printer's info with the registry's default flag
func (r *Registry) GetPrinterInfo(id string) (model.PrinterInfo, error) {
	printer, err := r.GetPrinter(id)
	if err != nil {
		return model.PrinterInfo{}, err
	}
	info := printer.Info()
	info.IsDefault = id == r.DefaultPrinterID()
	return info, nil
}

// GetAllPrinterInfo returns the info of every printer in insertion order
func (r *Registry) GetAllPrinterInfo() []model.PrinterInfo {
	defaultID := r.DefaultPrinterID()
	printers := r.GetAllPrinters()
	infos := make([]model.PrinterInfo, 0, len(printers))
	for _, printer := range printers {
		info := printer.Info()
		info.IsDefault = info.ID == defaultID
		infos = append(infos, info)
	}
	return infos
}

// DefaultPrinterID returns the default printer id, empty when the registry is empty
func (r *Registry) DefaultPrinterID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// DefaultPrinter returns the default driver
func (r *Registry) DefaultPrinter() (driver.PrinterDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultID == "" {
		return nil, model.NewError(model.ErrCodePrinterNotFound, "", "no default printer", nil)
	}
	return r.entries[r.defaultID].driver, nil
}

// SetDefaultPrinter makes id the explicit default
func (r *Registry) SetDefaultPrinter(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return notFound(id)
	}
	r.defaultID = id
	r.defaultExplicit = true
	return nil
}

// UpdatePrinterConfig merges update into the printer's configuration and
// replaces its driver. The old driver is kept if the new one cannot be built.
func (r *Registry) UpdatePrinterConfig(ctx context.Context, id string, update model.PrinterConfigUpdate) (model.PrinterConfig, error) {
	current, err := r.GetConfig(id)
	if err != nil {
		return model.PrinterConfig{}, err
	}

	merged := update.Apply(current)
	merged.ID = id
	printer, err := r.creator.CreatePrinter(merged)
	if err != nil {
		return model.PrinterConfig{}, model.WrapError(err, model.ErrCodeInvalidConfig, id, "")
	}

	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		_ = printer.Dispose(ctx)
		return model.PrinterConfig{}, notFound(id)
	}

	old, oldSubscription := e.driver, e.subscription
	wasConnected := old.IsConnected()
	e.config = merged
	e.driver = printer
	e.subscription = printer.Subscribe(r.forward)

	if update.IsDefault != nil {
		switch {
		case *update.IsDefault:
			r.defaultID = id
			r.defaultExplicit = true
		case r.defaultID == id && len(r.order) > 1:
			for _, candidate := range r.order {
				if candidate != id {
					r.defaultID = candidate
					r.defaultExplicit = false
					break
				}
			}
		}
	}
	result := r.configView(e)
	r.mu.Unlock()

	old.Unsubscribe(oldSubscription)
	if err := old.Dispose(ctx); err != nil {
		r.logger.Warn("Failed to dispose replaced driver", zap.String("printer_id", id), zap.Error(err))
	}

	r.logger.Info("Printer configuration updated",
		zap.String("printer_id", id),
		zap.Bool("reconnect", wasConnected),
	)

	if wasConnected {
		if err := printer.Connect(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ConnectPrinter connects a printer
func (r *Registry) ConnectPrinter(ctx context.Context, id string) error {
	printer, err := r.GetPrinter(id)
	if err != nil {
		return err
	}
	return printer.Connect(ctx)
}

// DisconnectPrinter disconnects a printer
func (r *Registry) DisconnectPrinter(ctx context.Context, id string) error {
	printer, err := r.GetPrinter(id)
	if err != nil {
		return err
	}
	return printer.Disconnect(ctx)
}

// DiscoverPrinters runs discovery. It returns an empty list without a discoverer.
func (r *Registry) DiscoverPrinters(ctx context.Context) []model.PrinterDiscoveryResult {
	if r.discoverer == nil {
		return []model.PrinterDiscoveryResult{}
	}
	results := r.discoverer.Discover(ctx)
	if results == nil {
		return []model.PrinterDiscoveryResult{}
	}
	return results
}

// ValidatePrinter runs the printer's self-test
func (r *Registry) ValidatePrinter(ctx context.Context, id string) (bool, error) {
	printer, err := r.GetPrinter(id)
	if err != nil {
		return false, err
	}
	return printer.SelfTest(ctx)
}

// Subscribe registers a handler for the events of every printer
func (r *Registry) Subscribe(handler driver.EventHandler) driver.SubscriptionID {
	return r.bus.Subscribe(handler)
}

// Unsubscribe removes an aggregated handler
func (r *Registry) Unsubscribe(id driver.SubscriptionID) {
	r.bus.Unsubscribe(id)
}

// Dispose disposes every driver and empties the registry. Every failure is
// collected and the remaining drivers are still disposed.
func (r *Registry) Dispose(ctx context.Context) error {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.entries[id])
	}
	r.entries = make(map[string]*entry)
	r.order = nil
	r.defaultID = ""
	r.defaultExplicit = false
	r.mu.Unlock()

	var err error
	for _, e := range entries {
		if disposeErr := e.driver.Dispose(ctx); disposeErr != nil {
			r.logger.Warn("Failed to dispose printer", zap.String("printer_id", e.config.ID), zap.Error(disposeErr))
			err = multierr.Append(err, model.WrapError(disposeErr, model.ErrCodeCommandError, e.config.ID, "failed to dispose printer"))
		}
		e.driver.Unsubscribe(e.subscription)
	}

	r.logger.Info("Registry disposed", zap.Int("printers", len(entries)))
	return err
}
