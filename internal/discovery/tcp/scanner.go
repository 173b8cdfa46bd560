// Package tcp discovers network receipt printers by probing their raw port.
package tcp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"printer-service/internal/model"
)

const (
	DefaultPort          = 9100
	DefaultProbeTimeout  = time.Second
	DefaultMaxConcurrent = 8

	// maxExpandedHosts caps how many hosts one CIDR candidate expands to
	maxExpandedHosts = 1024
)

// Config for the TCP scanner
type Config struct {
	Candidates    []string // host, host:port or CIDR
	Port          int
	Timeout       time.Duration
	MaxConcurrent int
}

// DialFunc opens a TCP connection
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Scanner implements discovery.PrinterScanner by connecting to candidate addresses
type Scanner struct {
	logger *zap.Logger
	config Config
	dial   DialFunc
}

// NewScanner creates a TCP scanner. dial may be nil.
func NewScanner(logger *zap.Logger, config Config, dial DialFunc) *Scanner {
	if config.Port <= 0 {
		config.Port = DefaultPort
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultProbeTimeout
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
		dial:   dial,
	}
}

// ScannerType returns the scanner identifier
func (s *Scanner) ScannerType() string {
	return "tcp"
}

// IsAvailable reports whether any candidate is configured
func (s *Scanner) IsAvailable() bool {
	return len(s.config.Candidates) > 0
}

// Scan probes every candidate. A refused or timed out probe yields no result.
func (s *Scanner) Scan(ctx context.Context) ([]model.PrinterDiscoveryResult, error) {
	s.logger.Info("Starting TCP network scan", zap.Int("candidates", len(s.config.Candidates)))

	addresses := s.expand()
	reachable := make([]bool, len(addresses))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.MaxConcurrent)
	for i, address := range addresses {
		group.Go(func() error {
			reachable[i] = s.probe(groupCtx, address)
			return nil
		})
	}
	_ = group.Wait()

	results := []model.PrinterDiscoveryResult{}
	for i, address := range addresses {
		if !reachable[i] {
			continue
		}
		host, port, _ := net.SplitHostPort(address)
		results = append(results, model.PrinterDiscoveryResult{
			ID:               "net-" + strings.NewReplacer(".", "-", ":", "-").Replace(host) + "-" + port,
			Name:             fmt.Sprintf("Network printer %s", host),
			Type:             model.PrinterTypeGenericESCPOS,
			ConnectionType:   model.ConnectionTypeNetwork,
			ConnectionString: address,
			Available:        true,
		})
	}

	s.logger.Info("TCP scan completed",
		zap.Int("addresses_probed", len(addresses)),
		zap.Int("printers_found", len(results)),
	)
	return results, nil
}

func (s *Scanner) probe(ctx context.Context, address string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	conn, err := s.dial(probeCtx, "tcp", address)
	if err != nil {
		s.logger.Debug("Probe failed", zap.String("address", address), zap.Error(err))
		return false
	}
	_ = conn.Close()
	return true
}

// expand turns the candidates into unique host:port addresses, in candidate order
func (s *Scanner) expand() []string {
	port := strconv.Itoa(s.config.Port)
	seen := make(map[string]bool)
	var addresses []string
	add := func(address string) {
		if !seen[address] {
			seen[address] = true
			addresses = append(addresses, address)
		}
	}

	for _, candidate := range s.config.Candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}

		if prefix, err := netip.ParsePrefix(candidate); err == nil {
			for _, host := range hostsIn(prefix) {
				add(net.JoinHostPort(host, port))
			}
			continue
		}

		if _, _, err := net.SplitHostPort(candidate); err == nil {
			add(candidate)
			continue
		}
		add(net.JoinHostPort(strings.Trim(candidate, "[]"), port))
	}
	return addresses
}

// hostsIn lists the usable IPv4 hosts of a prefix, skipping network and broadcast addresses
func hostsIn(prefix netip.Prefix) []string {
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() {
		return []string{prefix.Addr().String()}
	}

	bits := prefix.Bits()
	if bits >= 31 {
		var hosts []string
		for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
			hosts = append(hosts, addr.String())
		}
		return hosts
	}

	var hosts []string
	broadcastless := (1 << (32 - bits)) - 2
	addr := prefix.Addr().Next()
	for i := 0; i < broadcastless && i < maxExpandedHosts; i++ {
		hosts = append(hosts, addr.String())
		addr = addr.Next()
	}
	return hosts
}
