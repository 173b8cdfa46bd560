package driver

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"go.uber.org/multierr"

	"printer-service/internal/model"
	"printer-service/internal/protocol"
)

// validateGeneric applies the rules shared by every printer type
func validateGeneric(cfg model.PrinterConfig) error {
	var err error
	required := []struct {
		field string
		value string
	}{
		{"id", cfg.ID},
		{"name", cfg.Name},
		{"type", string(cfg.Type)},
		{"connectionType", string(cfg.ConnectionType)},
		{"connectionString", cfg.ConnectionString},
		{"paperSize", string(cfg.PaperSize)},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			err = multierr.Append(err, fmt.Errorf("%s is required", r.field))
		}
	}

	if cfg.ConnectionType != "" && !cfg.ConnectionType.IsValid() {
		err = multierr.Append(err, fmt.Errorf("unsupported connection type %q", cfg.ConnectionType))
	}
	if cfg.PaperSize != "" && !cfg.PaperSize.IsValid() {
		err = multierr.Append(err, fmt.Errorf("unsupported paper size %q", cfg.PaperSize))
	}
	if cfg.Timeout < 0 || cfg.Timeout > model.MaxTimeoutMillis {
		err = multierr.Append(err, fmt.Errorf("timeout must be in [0, %d] ms, got %d", model.MaxTimeoutMillis, cfg.Timeout))
	}
	if cfg.RetryCount < 0 || cfg.RetryCount > model.MaxRetryCount {
		err = multierr.Append(err, fmt.Errorf("retryCount must be in [0, %d], got %d", model.MaxRetryCount, cfg.RetryCount))
	}
	return err
}

// ValidateTransport checks the connection string shape for the transport
func ValidateTransport(connectionType model.ConnectionType, connection string) error {
	switch connectionType {
	case model.ConnectionTypeUSB:
		_, err := protocol.ParseUSBTarget(connection)
		return err
	case model.ConnectionTypeSerial:
		return validateSerialTarget(connection, runtime.GOOS)
	case model.ConnectionTypeNetwork:
		_, _, err := protocol.ParseNetworkTarget(connection)
		return err
	case model.ConnectionTypeBluetooth:
		if protocol.IsMACAddress(connection) {
			return nil
		}
		if err := validateSerialTarget(connection, runtime.GOOS); err != nil {
			return fmt.Errorf("bluetooth connection must be a MAC address or an RFCOMM serial port: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported connection type %q", connectionType)
	}
}

var serialPortPatterns = map[string]*regexp.Regexp{
	"linux":   regexp.MustCompile(`^/dev/(ttyS\d+|ttyUSB\d+|ttyACM\d+|ttyAMA\d+|rfcomm\d+|serial/by-id/\S+)$`),
	"darwin":  regexp.MustCompile(`^/dev/(tty|cu)\.\S+$`),
	"windows": regexp.MustCompile(`^(?i)(\\\\\.\\)?COM\d+$`),
}

var fallbackSerialPattern = regexp.MustCompile(`^/dev/\S+$`)

// validateSerialTarget checks "port[@baud]" against the platform's device naming
func validateSerialTarget(connection, goos string) error {
	port, _, err := protocol.ParseSerialTarget(connection)
	if err != nil {
		return err
	}

	pattern, ok := serialPortPatterns[goos]
	if !ok {
		pattern = fallbackSerialPattern
	}
	if !pattern.MatchString(port) {
		return fmt.Errorf("invalid serial port %q for %s", port, goos)
	}
	return nil
}
