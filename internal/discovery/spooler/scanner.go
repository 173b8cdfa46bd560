// Package spooler discovers printers through the operating system print spooler.
package spooler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"printer-service/internal/discovery"
	"printer-service/internal/model"
	"printer-service/internal/protocol"
)

const defaultRawPort = 9100

// Scanner implements discovery.PrinterScanner over lpstat or Get-Printer
type Scanner struct {
	logger *zap.Logger
	runner protocol.CommandRunner
	goos   string
}

// Option configures a Scanner
type Option func(*Scanner)

// WithRunner replaces command execution
func WithRunner(runner protocol.CommandRunner) Option {
	return func(s *Scanner) {
		s.runner = runner
	}
}

// WithGOOS overrides the platform used to pick the listing command
func WithGOOS(goos string) Option {
	return func(s *Scanner) {
		s.goos = goos
	}
}

// NewScanner creates a spooler scanner
func NewScanner(logger *zap.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		logger: logger.With(zap.String("scanner", "spooler")),
		runner: protocol.ExecRunner,
		goos:   runtime.GOOS,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScannerType returns the scanner identifier
func (s *Scanner) ScannerType() string {
	return "spooler"
}

// IsAvailable reports whether this platform has a supported spooler
func (s *Scanner) IsAvailable() bool {
	switch s.goos {
	case "linux", "darwin", "windows":
		return true
	default:
		return false
	}
}

// Scan lists spooler queues and maps each device URI or port to a transport
func (s *Scanner) Scan(ctx context.Context) ([]model.PrinterDiscoveryResult, error) {
	var (
		queues []queue
		err    error
	)
	if s.goos == "windows" {
		queues, err = s.listWindows(ctx)
	} else {
		queues, err = s.listCUPS(ctx)
	}
	if err != nil {
		return nil, err
	}

	results := make([]model.PrinterDiscoveryResult, 0, len(queues))
	for _, q := range queues {
		if discovery.IsVirtualPrinter(q.name, q.device, q.driver) {
			s.logger.Debug("Skipping virtual printer", zap.String("queue", q.name))
			continue
		}

		connectionType, connection := q.target()
		if err := validTarget(connectionType, connection); err != nil {
			s.logger.Debug("Skipping queue with unusable target",
				zap.String("queue", q.name),
				zap.String("device", q.device),
				zap.Error(err),
			)
			continue
		}

		results = append(results, model.PrinterDiscoveryResult{
			ID:               "spooler-" + slug(q.name),
			Name:             q.name,
			Type:             discovery.GuessPrinterType(q.name, q.device, q.driver),
			ConnectionType:   connectionType,
			ConnectionString: connection,
			Available:        true,
		})
	}
	return results, nil
}

type queue struct {
	name   string
	device string // CUPS device URI or Windows port name
	driver string
	cups   bool
}

var lpstatLine = regexp.MustCompile(`^device for ([^:]+):\s*(\S+)\s*$`)

func (s *Scanner) listCUPS(ctx context.Context) ([]queue, error) {
	output, err := s.runner(ctx, nil, "lpstat", "-v")
	if err != nil {
		// lpstat exits non-zero when no destinations exist
		if bytes.Contains(bytes.ToLower(output), []byte("no destinations")) {
			return nil, nil
		}
		return nil, fmt.Errorf("lpstat failed: %w", err)
	}
	return parseLpstat(output), nil
}

func parseLpstat(output []byte) []queue {
	var queues []queue
	for _, line := range strings.Split(string(output), "\n") {
		match := lpstatLine.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		queues = append(queues, queue{name: strings.TrimSpace(match[1]), device: match[2], cups: true})
	}
	return queues
}

type windowsPrinter struct {
	Name       string `json:"Name"`
	PortName   string `json:"PortName"`
	DriverName string `json:"DriverName"`
}

const getPrinterScript = "Get-Printer | Select-Object Name,PortName,DriverName | ConvertTo-Json -Compress"

func (s *Scanner) listWindows(ctx context.Context) ([]queue, error) {
	output, err := s.runner(ctx, nil, "powershell", "-NoProfile", "-NonInteractive", "-Command", getPrinterScript)
	if err != nil {
		return nil, fmt.Errorf("Get-Printer failed: %w", err)
	}
	return parseGetPrinter(output)
}

// parseGetPrinter accepts both the array and the single-object form of ConvertTo-Json
func parseGetPrinter(output []byte) ([]queue, error) {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var printers []windowsPrinter
	if trimmed[0] == '{' {
		var single windowsPrinter
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("decode Get-Printer output: %w", err)
		}
		printers = append(printers, single)
	} else if err := json.Unmarshal(trimmed, &printers); err != nil {
		return nil, fmt.Errorf("decode Get-Printer output: %w", err)
	}

	queues := make([]queue, 0, len(printers))
	for _, p := range printers {
		queues = append(queues, queue{name: p.Name, device: p.PortName, driver: p.DriverName})
	}
	return queues, nil
}

var (
	comPort      = regexp.MustCompile(`(?i)^(COM\d+):?$`)
	windowsIPRaw = regexp.MustCompile(`(?i)^(?:IP_)?(\d{1,3}(?:\.\d{1,3}){3})(?::(\d+))?$`)
)

// target maps the queue to the transport that reaches the device
func (q queue) target() (model.ConnectionType, string) {
	if !q.cups {
		if match := comPort.FindStringSubmatch(q.device); match != nil {
			return model.ConnectionTypeSerial, strings.ToUpper(match[1])
		}
		if match := windowsIPRaw.FindStringSubmatch(q.device); match != nil {
			port := defaultRawPort
			if match[2] != "" {
				port, _ = strconv.Atoi(match[2])
			}
			return model.ConnectionTypeNetwork, net.JoinHostPort(match[1], strconv.Itoa(port))
		}
		return model.ConnectionTypeUSB, q.name
	}

	uri, err := url.Parse(q.device)
	if err != nil {
		return model.ConnectionTypeUSB, q.name
	}

	switch uri.Scheme {
	case "socket":
		port := uri.Port()
		if port == "" {
			port = strconv.Itoa(defaultRawPort)
		}
		return model.ConnectionTypeNetwork, net.JoinHostPort(uri.Hostname(), port)
	case "serial":
		connection := uri.Opaque
		if connection == "" {
			connection = uri.Path
		}
		if baud := uri.Query().Get("baud"); baud != "" {
			connection += "@" + baud
		}
		return model.ConnectionTypeSerial, connection
	case "parallel", "file":
		path := uri.Opaque
		if path == "" {
			path = uri.Path
		}
		return model.ConnectionTypeUSB, path
	default:
		// usb, ipp and lpd queues are printed through the spooler itself
		return model.ConnectionTypeUSB, q.name
	}
}

func validTarget(connectionType model.ConnectionType, connection string) error {
	switch connectionType {
	case model.ConnectionTypeNetwork:
		_, _, err := protocol.ParseNetworkTarget(connection)
		return err
	case model.ConnectionTypeSerial:
		_, _, err := protocol.ParseSerialTarget(connection)
		return err
	default:
		_, err := protocol.ParseUSBTarget(connection)
		return err
	}
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
