// Package usb discovers receipt printers on the USB bus.
package usb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"printer-service/internal/discovery"
	"printer-service/internal/model"
	"printer-service/internal/protocol"
)

const (
	USBClassPrinter        = 7
	USBClassVendorSpecific = 255
)

// Device is the descriptor data of one enumerated USB device
type Device struct {
	Vendor       gousb.ID
	Product      gousb.ID
	Class        gousb.Class
	Manufacturer string
	ProductName  string
	SerialNumber string
	Bus          int
	Address      int
}

// Enumerator lists candidate USB devices
type Enumerator func(ctx context.Context) ([]Device, error)

// Scanner implements discovery.PrinterScanner over libusb
type Scanner struct {
	logger     *zap.Logger
	enumerate  Enumerator
	newContext protocol.USBContextFunc
}

// Option configures a Scanner
type Option func(*Scanner)

// WithEnumerator replaces libusb enumeration
func WithEnumerator(enumerate Enumerator) Option {
	return func(s *Scanner) {
		s.enumerate = enumerate
	}
}

// WithUSBContext replaces the libusb context constructor
func WithUSBContext(newContext protocol.USBContextFunc) Option {
	return func(s *Scanner) {
		s.newContext = newContext
	}
}

// NewScanner creates a USB scanner
func NewScanner(logger *zap.Logger, opts ...Option) *Scanner {
	s := &Scanner{logger: logger.With(zap.String("scanner", "usb"))}
	s.enumerate = s.enumerateLibUSB
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScannerType returns the scanner identifier
func (s *Scanner) ScannerType() string {
	return "usb"
}

// IsAvailable reports whether USB enumeration can run
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan enumerates USB devices and keeps those that look like receipt printers
func (s *Scanner) Scan(ctx context.Context) ([]model.PrinterDiscoveryResult, error) {
	start := time.Now()
	devices, err := s.enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("USB enumeration failed: %w", err)
	}

	results := make([]model.PrinterDiscoveryResult, 0, len(devices))
	for _, device := range devices {
		if result, ok := s.identify(device); ok {
			results = append(results, result)
		}
	}

	s.logger.Info("USB scan completed",
		zap.Int("devices_examined", len(devices)),
		zap.Int("printers_found", len(results)),
		zap.Duration("scan_duration", time.Since(start)),
	)
	return results, nil
}

func (s *Scanner) identify(device Device) (model.PrinterDiscoveryResult, bool) {
	vendor, known := discovery.LookupVendor(uint16(device.Vendor))
	texts := []string{device.Manufacturer, device.ProductName}
	if known {
		texts = append(texts, vendor.Name)
	}

	if !discovery.LooksLikePrinter(texts...) {
		s.logger.Debug("Device not identified as receipt printer",
			zap.String("vendor_id", fmt.Sprintf("0x%04X", uint16(device.Vendor))),
			zap.String("product_id", fmt.Sprintf("0x%04X", uint16(device.Product))),
		)
		return model.PrinterDiscoveryResult{}, false
	}

	printerType := discovery.GuessPrinterType(texts...)
	if printerType == model.PrinterTypeGenericESCPOS && known {
		printerType = vendor.Type
	}

	return model.PrinterDiscoveryResult{
		ID:               fmt.Sprintf("usb-%04x-%04x", uint16(device.Vendor), uint16(device.Product)),
		Name:             displayName(device, vendor, known),
		Type:             printerType,
		ConnectionType:   model.ConnectionTypeUSB,
		ConnectionString: fmt.Sprintf("%04x:%04x", uint16(device.Vendor), uint16(device.Product)),
		Available:        true,
	}, true
}

// displayName prefers the product string, then the known model, then VID:PID
func displayName(device Device, vendor discovery.Vendor, known bool) string {
	if name := strings.TrimSpace(device.ProductName); name != "" {
		return name
	}
	if known {
		if name, ok := vendor.Model(uint16(device.Product)); ok {
			return name
		}
		return fmt.Sprintf("%s %04X", vendor.Name, uint16(device.Product))
	}
	if name := strings.TrimSpace(device.Manufacturer); name != "" {
		return fmt.Sprintf("%s %04X", name, uint16(device.Product))
	}
	return fmt.Sprintf("USB %04X:%04X", uint16(device.Vendor), uint16(device.Product))
}

// shouldExamine filters descriptors before a device is opened
func shouldExamine(desc *gousb.DeviceDesc) bool {
	if _, known := discovery.LookupVendor(uint16(desc.Vendor)); known {
		return true
	}
	if desc.Class == USBClassPrinter || desc.Class == USBClassVendorSpecific {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == USBClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

func (s *Scanner) enumerateLibUSB(ctx context.Context) ([]Device, error) {
	usbCtx, err := protocol.OpenUSBContext(s.newContext)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	opened, err := usbCtx.OpenDevices(shouldExamine)
	defer func() {
		for _, device := range opened {
			if closeErr := device.Close(); closeErr != nil {
				s.logger.Warn("Failed to close USB device", zap.Error(closeErr))
			}
		}
	}()
	// OpenDevices reports per-device open failures but still returns the devices it opened
	if err != nil && len(opened) == 0 {
		return nil, err
	}
	if err != nil {
		s.logger.Debug("Some USB devices could not be opened", zap.Error(err))
	}

	devices := make([]Device, 0, len(opened))
	for _, device := range opened {
		if ctx.Err() != nil {
			return devices, ctx.Err()
		}
		devices = append(devices, s.describe(device))
	}
	return devices, nil
}

func (s *Scanner) describe(device *gousb.Device) Device {
	desc := device.Desc
	info := Device{
		Vendor:  desc.Vendor,
		Product: desc.Product,
		Class:   desc.Class,
		Bus:     desc.Bus,
		Address: desc.Address,
	}

	var err error
	if info.Manufacturer, err = device.Manufacturer(); err != nil {
		s.logger.Debug("Failed to read manufacturer string", zap.Error(err))
	}
	if info.ProductName, err = device.Product(); err != nil {
		s.logger.Debug("Failed to read product string", zap.Error(err))
	}
	if info.SerialNumber, err = device.SerialNumber(); err != nil {
		s.logger.Debug("Failed to read serial number", zap.Error(err))
	}
	return info
}
