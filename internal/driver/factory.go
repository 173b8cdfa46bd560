// internal/driver/factory.go
package driver

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"printer-service/internal/model"
	"printer-service/pkg/driver"
)

// Constructor creates an unconnected driver for a validated configuration
type Constructor func(cfg model.PrinterConfig) (driver.PrinterDriver, error)

// Validator checks the vendor-specific rules of a configuration
type Validator func(cfg model.PrinterConfig) error

// Registration binds a printer type tag to its constructor
type Registration struct {
	Type        model.PrinterType
	Description string
	Constructor Constructor
	Validator   Validator
}

// Factory validates configurations and creates drivers by type tag
type Factory struct {
	registrations map[model.PrinterType]Registration
	order         []model.PrinterType
	mu            sync.RWMutex
	logger        *zap.Logger
}

// NewFactory creates an empty printer factory
func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{
		registrations: make(map[model.PrinterType]Registration),
		logger:        logger,
	}
}

// Register adds or replaces the registration of a type tag
func (f *Factory) Register(registration Registration) error {
	if registration.Type == "" {
		return fmt.Errorf("registration has no printer type")
	}
	if registration.Constructor == nil {
		return fmt.Errorf("registration %s has no constructor", registration.Type)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.registrations[registration.Type]; !exists {
		f.order = append(f.order, registration.Type)
	}
	f.registrations[registration.Type] = registration

	f.logger.Info("Printer type registered",
		zap.String("printer_type", string(registration.Type)),
		zap.String("description", registration.Description),
	)
	return nil
}

// SupportedTypes returns the registered type tags in registration order
func (f *Factory) SupportedTypes() []model.PrinterType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]model.PrinterType, len(f.order))
	copy(types, f.order)
	return types
}

// Registration returns the registration of a type tag
func (f *Factory) Registration(printerType model.PrinterType) (Registration, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	registration, ok := f.registrations[printerType]
	return registration, ok
}

// Validate checks cfg and returns every problem in one INVALID_CONFIG error
func (f *Factory) Validate(cfg model.PrinterConfig) error {
	registration, registered := f.Registration(cfg.Type)

	err := validateGeneric(cfg)
	if cfg.Type != "" && !registered {
		err = multierr.Append(err, fmt.Errorf("unsupported printer type %q", cfg.Type))
	}
	if cfg.ConnectionType.IsValid() && cfg.ConnectionString != "" {
		err = multierr.Append(err, ValidateTransport(cfg.ConnectionType, cfg.ConnectionString))
	}
	if registered && registration.Validator != nil {
		err = multierr.Append(err, registration.Validator(cfg))
	}

	if err != nil {
		return model.NewError(model.ErrCodeInvalidConfig, cfg.ID, "", err)
	}
	return nil
}

// ValidateConfig reports whether cfg passes Validate
func (f *Factory) ValidateConfig(cfg model.PrinterConfig) bool {
	return f.Validate(cfg) == nil
}

// CreatePrinter validates cfg and constructs its driver
func (f *Factory) CreatePrinter(cfg model.PrinterConfig) (driver.PrinterDriver, error) {
	if err := f.Validate(cfg); err != nil {
		return nil, err
	}

	registration, _ := f.Registration(cfg.Type)
	printer, err := registration.Constructor(cfg)
	if err != nil {
		f.logger.Error("Failed to create printer driver",
			zap.String("printer_id", cfg.ID),
			zap.String("printer_type", string(cfg.Type)),
			zap.Error(err),
		)
		return nil, model.WrapError(err, model.ErrCodeInvalidConfig, cfg.ID, "failed to create printer driver")
	}
	return printer, nil
}
