// Package mdns discovers network printers that announce a raw print service over mDNS.
package mdns

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"printer-service/internal/discovery"
	"printer-service/internal/model"
)

const (
	DefaultService = "_pdl-datastream._tcp"
	DefaultDomain  = "local."
	DefaultTimeout = 2 * time.Second
)

// Params configures the browse
type Params struct {
	Service string
	Domain  string
	Timeout time.Duration
}

// BrowseFunc browses for service instances until ctx is done
type BrowseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// Scanner implements discovery.PrinterScanner over zeroconf
type Scanner struct {
	logger *zap.Logger
	params Params
	browse BrowseFunc
}

// NewScanner creates an mDNS scanner. browse may be nil.
func NewScanner(logger *zap.Logger, params Params, browse BrowseFunc) *Scanner {
	if params.Service == "" {
		params.Service = DefaultService
	}
	if params.Domain == "" {
		params.Domain = DefaultDomain
	}
	if params.Timeout <= 0 {
		params.Timeout = DefaultTimeout
	}
	if browse == nil {
		browse = zeroconfBrowse
	}
	return &Scanner{
		logger: logger.With(zap.String("scanner", "mdns")),
		params: params,
		browse: browse,
	}
}

func zeroconfBrowse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}
	return resolver.Browse(ctx, service, domain, entries)
}

// ScannerType returns the scanner identifier
func (s *Scanner) ScannerType() string {
	return "mdns"
}

// IsAvailable reports whether mDNS browsing can run
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan browses for the configured service until the browse timeout
func (s *Scanner) Scan(ctx context.Context) ([]model.PrinterDiscoveryResult, error) {
	browseCtx, cancel := context.WithTimeout(ctx, s.params.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := s.browse(browseCtx, s.params.Service, s.params.Domain, entries); err != nil {
		return nil, fmt.Errorf("mDNS browse failed: service=%s domain=%s: %w", s.params.Service, s.params.Domain, err)
	}

	results := []model.PrinterDiscoveryResult{}
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return results, nil
			}
			if result, ok := s.handleEntry(entry); ok {
				results = append(results, result)
			}
		case <-browseCtx.Done():
			s.logger.Info("mDNS browse completed", zap.Int("printers_found", len(results)))
			return results, nil
		}
	}
}

func (s *Scanner) handleEntry(entry *zeroconf.ServiceEntry) (model.PrinterDiscoveryResult, bool) {
	if entry == nil {
		return model.PrinterDiscoveryResult{}, false
	}
	if len(entry.AddrIPv4) < 1 {
		s.logger.Warn("Ignoring entry without IPv4 address", zap.String("instance", entry.Instance))
		return model.PrinterDiscoveryResult{}, false
	}

	port := entry.Port
	if port <= 0 {
		port = 9100
	}
	address := net.JoinHostPort(entry.AddrIPv4[0].String(), strconv.Itoa(port))

	name := entry.Instance
	if name == "" {
		name = strings.TrimSuffix(entry.HostName, ".")
	}

	texts := append([]string{entry.Instance, entry.HostName}, entry.Text...)
	return model.PrinterDiscoveryResult{
		ID:               "mdns-" + strings.NewReplacer(".", "-", ":", "-").Replace(address),
		Name:             name,
		Type:             discovery.GuessPrinterType(texts...),
		ConnectionType:   model.ConnectionTypeNetwork,
		ConnectionString: address,
		Available:        true,
	}, true
}
