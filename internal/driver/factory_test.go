package driver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"printer-service/internal/driver/escpos"
	"printer-service/internal/model"
	"printer-service/internal/protocol/protocoltest"
	"printer-service/pkg/driver"
)

func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	logger := zaptest.NewLogger(t)
	factory := NewFactory(logger)
	mock := protocoltest.NewMockProtocol()
	require.NoError(t, RegisterDefaultPrinters(factory, logger, escpos.WithProtocolFactory(mock.Opener())))
	return factory
}

func validConfig() model.PrinterConfig {
	return model.PrinterConfig{
		ID:               "printer-1",
		Name:             "Kitchen",
		Type:             model.PrinterTypeCbxPos89e,
		ConnectionType:   model.ConnectionTypeUSB,
		ConnectionString: "0416:5011",
		PaperSize:        model.PaperSize80mm,
		Encoding:         "UTF-8",
		Timeout:          3000,
		RetryCount:       3,
	}
}

func TestFactory_SupportedTypes(t *testing.T) {
	factory := newTestFactory(t)
	assert.Equal(t, []model.PrinterType{
		model.PrinterTypeCbxPos89e,
		model.PrinterTypeEpsonTM,
		model.PrinterTypeGenericESCPOS,
	}, factory.SupportedTypes())
}

func TestFactory_Validate(t *testing.T) {
	factory := newTestFactory(t)

	tests := []struct {
		name    string
		mutate  func(cfg *model.PrinterConfig)
		message string
	}{
		{"missing id", func(cfg *model.PrinterConfig) { cfg.ID = "" }, "id is required"},
		{"missing name", func(cfg *model.PrinterConfig) { cfg.Name = " " }, "name is required"},
		{"unknown type", func(cfg *model.PrinterConfig) { cfg.Type = "laser" }, "unsupported printer type"},
		{"unknown transport", func(cfg *model.PrinterConfig) { cfg.ConnectionType = "infrared" }, "unsupported connection type"},
		{"unknown paper", func(cfg *model.PrinterConfig) { cfg.PaperSize = "A4" }, "unsupported paper size"},
		{"timeout too large", func(cfg *model.PrinterConfig) { cfg.Timeout = 60001 }, "timeout must be in"},
		{"negative timeout", func(cfg *model.PrinterConfig) { cfg.Timeout = -1 }, "timeout must be in"},
		{"retry too large", func(cfg *model.PrinterConfig) { cfg.RetryCount = 11 }, "retryCount must be in"},
		{"usb too long", func(cfg *model.PrinterConfig) { cfg.ConnectionString = fmt.Sprintf("%065d", 0) }, "longer than 64"},
		{"network without port", func(cfg *model.PrinterConfig) {
			cfg.ConnectionType = model.ConnectionTypeNetwork
			cfg.ConnectionString = "192.168.1.87"
		}, "invalid network address"},
		{"vendor paper", func(cfg *model.PrinterConfig) { cfg.PaperSize = model.PaperSize112mm }, "does not support 112mm"},
		{"vendor encoding", func(cfg *model.PrinterConfig) { cfg.Encoding = "KOI8-R" }, "unsupported encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := factory.Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.message)
			assert.False(t, factory.ValidateConfig(cfg))
		})
	}
}

func TestFactory_ValidateCollectsEveryProblem(t *testing.T) {
	factory := newTestFactory(t)

	err := factory.Validate(model.PrinterConfig{Timeout: -5, RetryCount: 99})
	require.Error(t, err)

	var printerErr *model.PrinterError
	require.True(t, errors.As(err, &printerErr))
	// six required fields plus timeout and retry count
	assert.Len(t, multierr.Errors(printerErr.Cause), 8)
}

func TestFactory_Generic112mm(t *testing.T) {
	factory := newTestFactory(t)
	cfg := validConfig()
	cfg.Type = model.PrinterTypeGenericESCPOS
	cfg.PaperSize = model.PaperSize112mm
	assert.NoError(t, factory.Validate(cfg))
}

func TestFactory_CreatePrinter(t *testing.T) {
	factory := newTestFactory(t)

	printer, err := factory.CreatePrinter(validConfig())
	require.NoError(t, err)
	assert.Equal(t, "printer-1", printer.ID())
	assert.Equal(t, model.PrinterStatusOffline, printer.GetStatus())
	assert.False(t, printer.IsConnected())

	cfg := validConfig()
	cfg.Type = "laser"
	printer, err = factory.CreatePrinter(cfg)
	assert.Nil(t, printer)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestFactory_RuntimeRegistration(t *testing.T) {
	factory := newTestFactory(t)

	assert.Error(t, factory.Register(Registration{Type: "kiosk"}))
	assert.Error(t, factory.Register(Registration{Constructor: func(model.PrinterConfig) (driver.PrinterDriver, error) { return nil, nil }}))

	require.NoError(t, factory.Register(Registration{
		Type:        "kiosk",
		Description: "Kiosk printer with a broken constructor",
		Constructor: func(model.PrinterConfig) (driver.PrinterDriver, error) {
			return nil, errors.New("firmware handshake unsupported")
		},
	}))
	assert.Contains(t, factory.SupportedTypes(), model.PrinterType("kiosk"))

	cfg := validConfig()
	cfg.Type = "kiosk"
	_, err := factory.CreatePrinter(cfg)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
	assert.ErrorContains(t, err, "firmware handshake unsupported")
}

func TestValidateSerialTarget(t *testing.T) {
	tests := []struct {
		goos       string
		connection string
		valid      bool
	}{
		{"linux", "/dev/ttyUSB0", true},
		{"linux", "/dev/ttyS1@19200", true},
		{"linux", "/dev/ttyACM0", true},
		{"linux", "/dev/ttyAMA0", true},
		{"linux", "/dev/rfcomm0", true},
		{"linux", "/dev/serial/by-id/usb-Prolific_USB-Serial-if00-port0", true},
		{"linux", "/dev/sda", false},
		{"linux", "/dev/ttyUSB0@1234", false},
		{"linux", "COM3", false},
		{"darwin", "/dev/tty.usbserial-1410", true},
		{"darwin", "/dev/cu.usbserial", true},
		{"darwin", "/dev/ttyUSB0", false},
		{"windows", "COM3", true},
		{"windows", "com12@115200", true},
		{"windows", `\\.\COM10`, true},
		{"windows", "/dev/ttyUSB0", false},
		{"freebsd", "/dev/cuau0", true},
	}

	for _, tt := range tests {
		t.Run(tt.goos+" "+tt.connection, func(t *testing.T) {
			err := validateSerialTarget(tt.connection, tt.goos)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateTransport_Bluetooth(t *testing.T) {
	assert.NoError(t, ValidateTransport(model.ConnectionTypeBluetooth, "00:11:22:33:44:55"))
	assert.Error(t, ValidateTransport(model.ConnectionTypeBluetooth, "printer"))
}

func configGenerator() *rapid.Generator[model.PrinterConfig] {
	return rapid.Custom(func(t *rapid.T) model.PrinterConfig {
		printerType := rapid.SampledFrom([]model.PrinterType{
			model.PrinterTypeCbxPos89e, model.PrinterTypeEpsonTM, model.PrinterTypeGenericESCPOS,
		}).Draw(t, "type")

		cfg := model.PrinterConfig{
			ID:         rapid.StringMatching(`[a-z0-9-]{1,16}`).Draw(t, "id"),
			Name:       rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,20}`).Draw(t, "name"),
			Type:       printerType,
			PaperSize:  rapid.SampledFrom([]model.PaperSize{model.PaperSize58mm, model.PaperSize80mm}).Draw(t, "paper"),
			Encoding:   rapid.SampledFrom(escpos.SupportedEncodings()).Draw(t, "encoding"),
			Timeout:    rapid.IntRange(0, model.MaxTimeoutMillis).Draw(t, "timeout"),
			RetryCount: rapid.IntRange(0, model.MaxRetryCount).Draw(t, "retries"),
		}

		if rapid.Bool().Draw(t, "network") {
			cfg.ConnectionType = model.ConnectionTypeNetwork
			cfg.ConnectionString = fmt.Sprintf("10.0.%d.%d:%d",
				rapid.IntRange(0, 255).Draw(t, "octet3"),
				rapid.IntRange(1, 254).Draw(t, "octet4"),
				rapid.IntRange(1, 65535).Draw(t, "port"))
		} else {
			cfg.ConnectionType = model.ConnectionTypeUSB
			cfg.ConnectionString = fmt.Sprintf("%04x:%04x",
				rapid.IntRange(0, 0xFFFF).Draw(t, "vid"),
				rapid.IntRange(0, 0xFFFF).Draw(t, "pid"))
		}
		return cfg
	})
}

func TestFactory_ValidConfigsCreateDrivers(t *testing.T) {
	factory := newTestFactory(t)

	rapid.Check(t, func(t *rapid.T) {
		cfg := configGenerator().Draw(t, "config")
		if err := factory.Validate(cfg); err != nil {
			t.Fatalf("valid config rejected: %v", err)
		}
		printer, err := factory.CreatePrinter(cfg)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if printer.ID() != cfg.ID || printer.GetStatus() != model.PrinterStatusOffline {
			t.Fatalf("unexpected driver state for %s", cfg.ID)
		}
	})
}

func TestFactory_OutOfRangeValuesAreRejected(t *testing.T) {
	factory := newTestFactory(t)

	rapid.Check(t, func(t *rapid.T) {
		cfg := configGenerator().Draw(t, "config")
		if rapid.Bool().Draw(t, "breakTimeout") {
			cfg.Timeout = rapid.OneOf(
				rapid.IntRange(-100000, -1),
				rapid.IntRange(model.MaxTimeoutMillis+1, 10*model.MaxTimeoutMillis),
			).Draw(t, "timeout")
		} else {
			cfg.RetryCount = rapid.OneOf(
				rapid.IntRange(-100, -1),
				rapid.IntRange(model.MaxRetryCount+1, 100),
			).Draw(t, "retries")
		}

		err := factory.Validate(cfg)
		if !errors.Is(err, model.ErrInvalidConfig) {
			t.Fatalf("expected INVALID_CONFIG, got %v", err)
		}
	})
}
