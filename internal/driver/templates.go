package driver

import (
	"github.com/google/uuid"

	"printer-service/internal/model"
)

const (
	templateTimeoutMillis = 3000
	templateRetryCount    = 3
)

// ConfigOption overrides one field of a template
type ConfigOption func(*model.PrinterConfig)

// Template builds a printer configuration from a name and connection string
type Template func(name, connectionString string, opts ...ConfigOption) model.PrinterConfig

// WithID sets the identifier instead of a generated one
func WithID(id string) ConfigOption {
	return func(cfg *model.PrinterConfig) { cfg.ID = id }
}

// WithConnectionType sets the transport kind
func WithConnectionType(connectionType model.ConnectionType) ConfigOption {
	return func(cfg *model.PrinterConfig) { cfg.ConnectionType = connectionType }
}

// WithPaperSize sets the paper width class
func WithPaperSize(size model.PaperSize) ConfigOption {
	return func(cfg *model.PrinterConfig) { cfg.PaperSize = size }
}

// WithEncoding sets the character encoding
func WithEncoding(encoding string) ConfigOption {
	return func(cfg *model.PrinterConfig) { cfg.Encoding = encoding }
}

// WithTimeout sets the transport timeout in milliseconds
func WithTimeout(millis int) ConfigOption {
	return func(cfg *model.PrinterConfig) { cfg.Timeout = millis }
}

// WithRetryCount sets the connection retry count
func WithRetryCount(count int) ConfigOption {
	return func(cfg *model.PrinterConfig) { cfg.RetryCount = count }
}

// WithDefault sets the default flag
func WithDefault(isDefault bool) ConfigOption {
	return func(cfg *model.PrinterConfig) { cfg.IsDefault = isDefault }
}

func buildConfig(base model.PrinterConfig, opts []ConfigOption) model.PrinterConfig {
	base.ID = uuid.NewString()
	base.Timeout = templateTimeoutMillis
	base.RetryCount = templateRetryCount
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// CreateCbxPos89eConfig returns a CBX POS-89E configuration: USB, 80mm, UTF-8
func CreateCbxPos89eConfig(name, connectionString string, opts ...ConfigOption) model.PrinterConfig {
	return buildConfig(model.PrinterConfig{
		Name:             name,
		Type:             model.PrinterTypeCbxPos89e,
		ConnectionType:   model.ConnectionTypeUSB,
		ConnectionString: connectionString,
		PaperSize:        model.PaperSize80mm,
		Encoding:         "UTF-8",
	}, opts)
}

// CreateEpsonTMConfig returns an Epson TM configuration: network, 80mm, CP437
func CreateEpsonTMConfig(name, connectionString string, opts ...ConfigOption) model.PrinterConfig {
	return buildConfig(model.PrinterConfig{
		Name:             name,
		Type:             model.PrinterTypeEpsonTM,
		ConnectionType:   model.ConnectionTypeNetwork,
		ConnectionString: connectionString,
		PaperSize:        model.PaperSize80mm,
		Encoding:         "CP437",
	}, opts)
}

// CreateGenericConfig returns a generic ESC/POS configuration: USB, 58mm, CP437
func CreateGenericConfig(name, connectionString string, opts ...ConfigOption) model.PrinterConfig {
	return buildConfig(model.PrinterConfig{
		Name:             name,
		Type:             model.PrinterTypeGenericESCPOS,
		ConnectionType:   model.ConnectionTypeUSB,
		ConnectionString: connectionString,
		PaperSize:        model.PaperSize58mm,
		Encoding:         "CP437",
	}, opts)
}

// TemplateFor picks the template of a printer type, generic for unknown types
func TemplateFor(printerType model.PrinterType) Template {
	switch printerType {
	case model.PrinterTypeCbxPos89e:
		return CreateCbxPos89eConfig
	case model.PrinterTypeEpsonTM:
		return CreateEpsonTMConfig
	default:
		return CreateGenericConfig
	}
}
