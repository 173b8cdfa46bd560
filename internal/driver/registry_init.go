// internal/driver/registry_init.go
package driver

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"printer-service/internal/driver/escpos"
	"printer-service/internal/model"
	"printer-service/pkg/driver"
)

// RegisterDefaultPrinters registers the built-in ESC/POS printer types
func RegisterDefaultPrinters(factory *Factory, logger *zap.Logger, opts ...escpos.Option) error {
	var err error
	for _, profile := range escpos.Profiles() {
		err = multierr.Append(err, factory.Register(Registration{
			Type:        profile.Type,
			Description: profile.Description,
			Constructor: escposConstructor(logger, opts),
			Validator:   profileValidator(profile),
		}))
	}

	logger.Info("Printer types registered", zap.Int("types", len(factory.SupportedTypes())))
	return err
}

func escposConstructor(logger *zap.Logger, opts []escpos.Option) Constructor {
	return func(cfg model.PrinterConfig) (driver.PrinterDriver, error) {
		printer, err := escpos.New(cfg, logger, opts...)
		if err != nil {
			return nil, err
		}
		return printer, nil
	}
}

// profileValidator checks paper size and encoding against the vendor profile
func profileValidator(profile escpos.Profile) Validator {
	return func(cfg model.PrinterConfig) error {
		var err error
		if cfg.PaperSize.IsValid() && !profile.SupportsPaper(cfg.PaperSize) {
			err = multierr.Append(err, fmt.Errorf("%s does not support %s paper", profile.Type, cfg.PaperSize))
		}
		if !escpos.IsSupportedEncoding(cfg.Encoding) {
			err = multierr.Append(err, fmt.Errorf("unsupported encoding %q", cfg.Encoding))
		}
		return err
	}
}
