// Package discovery finds printers on the local machine and network.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"printer-service/internal/model"
)

// DefaultScanTimeout bounds one scanner when the manager has no timeout set
const DefaultScanTimeout = 10 * time.Second

// PrinterScanner is one discovery mechanism
type PrinterScanner interface {
	Scan(ctx context.Context) ([]model.PrinterDiscoveryResult, error)
	ScannerType() string
	IsAvailable() bool
}

// Manager runs every available scanner and merges their results
type Manager struct {
	scanners []PrinterScanner
	timeout  time.Duration
	logger   *zap.Logger
}

// NewManager creates a manager. timeout bounds each scanner separately.
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	return &Manager{
		timeout: timeout,
		logger:  logger.With(zap.String("component", "discovery")),
	}
}

// RegisterScanner adds a scanner. Registration order decides which duplicate is kept.
func (m *Manager) RegisterScanner(scanner PrinterScanner) {
	m.scanners = append(m.scanners, scanner)
	m.logger.Info("Scanner registered", zap.String("type", scanner.ScannerType()))
}

// Discover scans concurrently and never fails. Scanner errors are logged and
// absorbed, results are deduplicated by transport and connection string.
func (m *Manager) Discover(ctx context.Context) []model.PrinterDiscoveryResult {
	start := time.Now()
	perScanner := make([][]model.PrinterDiscoveryResult, len(m.scanners))

	var group errgroup.Group
	for i, scanner := range m.scanners {
		if !scanner.IsAvailable() {
			m.logger.Debug("Scanner not available, skipping", zap.String("type", scanner.ScannerType()))
			continue
		}

		group.Go(func() error {
			scanCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			results, err := scanner.Scan(scanCtx)
			if err != nil {
				m.logger.Warn("Scanner failed", zap.String("type", scanner.ScannerType()), zap.Error(err))
				return nil
			}
			perScanner[i] = results
			m.logger.Info("Scanner completed",
				zap.String("type", scanner.ScannerType()),
				zap.Int("printers_found", len(results)),
			)
			return nil
		})
	}
	_ = group.Wait()

	merged := dedupe(perScanner)
	m.logger.Info("Discovery completed",
		zap.Int("printers_found", len(merged)),
		zap.Duration("duration", time.Since(start)),
	)
	return merged
}

// ScanByType runs a single scanner
func (m *Manager) ScanByType(ctx context.Context, scannerType string) ([]model.PrinterDiscoveryResult, error) {
	for _, scanner := range m.scanners {
		if scanner.ScannerType() != scannerType {
			continue
		}
		if !scanner.IsAvailable() {
			return nil, fmt.Errorf("scanner not available: %s", scannerType)
		}

		scanCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		results, err := scanner.Scan(scanCtx)
		if err != nil {
			return nil, err
		}
		return dedupe([][]model.PrinterDiscoveryResult{results}), nil
	}
	return nil, fmt.Errorf("scanner type not found: %s", scannerType)
}

// AvailableScanners returns the types of the scanners that can run here
func (m *Manager) AvailableScanners() []string {
	available := make([]string, 0, len(m.scanners))
	for _, scanner := range m.scanners {
		if scanner.IsAvailable() {
			available = append(available, scanner.ScannerType())
		}
	}
	return available
}

func targetKey(result model.PrinterDiscoveryResult) string {
	return string(result.ConnectionType) + "|" + strings.ToLower(strings.TrimSpace(result.ConnectionString))
}

func dedupe(groups [][]model.PrinterDiscoveryResult) []model.PrinterDiscoveryResult {
	seen := make(map[string]bool)
	unique := []model.PrinterDiscoveryResult{}
	for _, results := range groups {
		for _, result := range results {
			key := targetKey(result)
			if seen[key] {
				continue
			}
			seen[key] = true
			unique = append(unique, result)
		}
	}
	return unique
}
