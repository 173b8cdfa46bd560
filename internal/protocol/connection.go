// internal/protocol/connection.go
package protocol

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Defaults are transport settings not carried by a PrinterConfig
type Defaults struct {
	SerialBaudRate int
	SerialDataBits int
	SerialStopBits int
	SerialParity   string
	SerialTimeout  time.Duration

	TCPConnectTimeout time.Duration
	TCPReadTimeout    time.Duration
	TCPWriteTimeout   time.Duration
	TCPKeepAlive      bool

	USBTimeout   time.Duration
	USBInterface int
}

// DefaultSettings returns the transport defaults used when none are configured
func DefaultSettings() Defaults {
	return Defaults{
		SerialBaudRate:    9600,
		SerialDataBits:    8,
		SerialStopBits:    1,
		SerialParity:      "none",
		SerialTimeout:     5 * time.Second,
		TCPConnectTimeout: 5 * time.Second,
		TCPReadTimeout:    5 * time.Second,
		TCPWriteTimeout:   10 * time.Second,
		TCPKeepAlive:      true,
		USBTimeout:        5 * time.Second,
	}
}

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// USBConfig represents USB connection configuration
type USBConfig struct {
	VendorID     string        `json:"vendor_id"`
	ProductID    string        `json:"product_id"`
	SerialNumber string        `json:"serial_number"`
	Interface    int           `json:"interface"`
	Timeout      time.Duration `json:"timeout"`
}

// TCPConfig represents TCP connection configuration
type TCPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	KeepAlive    bool          `json:"keep_alive"`
	Timeout      time.Duration `json:"timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Address returns host:port
func (c *TCPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// USBTargetKind tells how a USB connection string addresses the printer
type USBTargetKind int

const (
	USBTargetDevice USBTargetKind = iota // VID:PID[:serial] through libusb
	USBTargetFile                        // kernel printer device file
	USBTargetQueue                       // OS spooler queue name
)

// MaxUSBConnectionLength bounds a USB connection string
const MaxUSBConnectionLength = 64

// USBTarget is a parsed USB connection string
type USBTarget struct {
	Kind         USBTargetKind
	VendorID     string
	ProductID    string
	SerialNumber string
	Path         string
	Queue        string
}

var usbIDPattern = regexp.MustCompile(`^(?:0[xX])?([0-9a-fA-F]{4}):(?:0[xX])?([0-9a-fA-F]{4})(?::(\S+))?$`)

// ParseUSBTarget parses VID:PID[:serial], a device path, or a queue name
func ParseUSBTarget(connection string) (USBTarget, error) {
	connection = strings.TrimSpace(connection)
	if connection == "" {
		return USBTarget{}, fmt.Errorf("USB connection string is empty")
	}
	if len(connection) > MaxUSBConnectionLength {
		return USBTarget{}, fmt.Errorf("USB connection string longer than %d characters", MaxUSBConnectionLength)
	}

	if match := usbIDPattern.FindStringSubmatch(connection); match != nil {
		return USBTarget{
			Kind:         USBTargetDevice,
			VendorID:     strings.ToLower(match[1]),
			ProductID:    strings.ToLower(match[2]),
			SerialNumber: match[3],
		}, nil
	}

	if strings.HasPrefix(connection, "/") || strings.HasPrefix(connection, `\\`) {
		return USBTarget{Kind: USBTargetFile, Path: connection}, nil
	}

	if strings.ContainsAny(connection, " \t/") {
		return USBTarget{}, fmt.Errorf("invalid USB queue name %q", connection)
	}
	return USBTarget{Kind: USBTargetQueue, Queue: connection}, nil
}

// StandardBaudRates are the rates accepted in a serial connection string
var StandardBaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400}

// ParseSerialTarget splits "port[@baud]". Baud is 0 when absent.
func ParseSerialTarget(connection string) (string, int, error) {
	connection = strings.TrimSpace(connection)
	if connection == "" {
		return "", 0, fmt.Errorf("serial connection string is empty")
	}

	index := strings.LastIndex(connection, "@")
	if index < 0 {
		return connection, 0, nil
	}

	port, rate := connection[:index], connection[index+1:]
	baud, err := strconv.Atoi(rate)
	if err != nil || port == "" {
		return "", 0, fmt.Errorf("invalid serial connection string %q", connection)
	}
	for _, standard := range StandardBaudRates {
		if baud == standard {
			return port, baud, nil
		}
	}
	return "", 0, fmt.Errorf("unsupported baud rate %d", baud)
}

// ParseNetworkTarget parses "host:port" with port in [1, 65535]
func ParseNetworkTarget(connection string) (string, int, error) {
	host, portText, err := net.SplitHostPort(strings.TrimSpace(connection))
	if err != nil {
		return "", 0, fmt.Errorf("invalid network address %q: %w", connection, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("network address %q has no host", connection)
	}

	port, err := strconv.Atoi(portText)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("network port must be in [1, 65535], got %q", portText)
	}
	return host, port, nil
}

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// IsMACAddress reports whether s is a Bluetooth hardware address
func IsMACAddress(s string) bool {
	return macPattern.MatchString(strings.TrimSpace(s))
}
