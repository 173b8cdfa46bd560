// Package serial discovers receipt printers behind USB-serial adapters.
package serial

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"printer-service/internal/discovery"
	"printer-service/internal/model"
)

// PortLister returns the serial ports of the machine
type PortLister func() ([]*enumerator.PortDetails, error)

// Scanner implements discovery.PrinterScanner over the serial port enumerator
type Scanner struct {
	logger *zap.Logger
	list   PortLister
}

// NewScanner creates a serial scanner. list may be nil.
func NewScanner(logger *zap.Logger, list PortLister) *Scanner {
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}
	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
		list:   list,
	}
}

// ScannerType returns the scanner identifier
func (s *Scanner) ScannerType() string {
	return "serial"
}

// IsAvailable reports whether serial enumeration can run
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan reports USB-serial ports whose product or vendor identifies a receipt printer
func (s *Scanner) Scan(ctx context.Context) ([]model.PrinterDiscoveryResult, error) {
	ports, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	results := []model.PrinterDiscoveryResult{}
	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		if port == nil || !port.IsUSB {
			continue
		}

		texts := []string{port.Product}
		if vendor, ok := lookupVendor(port.VID); ok {
			texts = append(texts, vendor.Name)
		}
		if !discovery.LooksLikePrinter(texts...) {
			continue
		}

		name := strings.TrimSpace(port.Product)
		if name == "" {
			name = "Serial printer " + port.Name
		}
		results = append(results, model.PrinterDiscoveryResult{
			ID:               "serial-" + strings.ToLower(strings.Trim(strings.ReplaceAll(port.Name, "/", "-"), "-")),
			Name:             name,
			Type:             discovery.GuessPrinterType(texts...),
			ConnectionType:   model.ConnectionTypeSerial,
			ConnectionString: port.Name,
			Available:        true,
		})
	}

	s.logger.Info("Serial scan completed",
		zap.Int("ports_examined", len(ports)),
		zap.Int("printers_found", len(results)),
	)
	return results, nil
}

func lookupVendor(vid string) (discovery.Vendor, bool) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(vid), "0x"), 16, 16)
	if err != nil {
		return discovery.Vendor{}, false
	}
	return discovery.LookupVendor(uint16(id))
}
