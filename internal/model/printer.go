// internal/model/printer.go
package model

import (
	"strings"
	"time"
)

// PrinterType is the type tag a driver constructor is registered under
type PrinterType string

const (
	PrinterTypeCbxPos89e     PrinterType = "cbx-pos-89e"
	PrinterTypeEpsonTM       PrinterType = "epson-tm"
	PrinterTypeGenericESCPOS PrinterType = "generic-escpos"
)

// ConnectionType represents how the printer is connected
type ConnectionType string

const (
	ConnectionTypeUSB       ConnectionType = "usb"
	ConnectionTypeSerial    ConnectionType = "serial"
	ConnectionTypeNetwork   ConnectionType = "network"
	ConnectionTypeBluetooth ConnectionType = "bluetooth"
)

// ConnectionTypes lists every known transport kind
var ConnectionTypes = []ConnectionType{
	ConnectionTypeUSB,
	ConnectionTypeSerial,
	ConnectionTypeNetwork,
	ConnectionTypeBluetooth,
}

// IsValid reports whether c is a known transport kind
func (c ConnectionType) IsValid() bool {
	for _, known := range ConnectionTypes {
		if c == known {
			return true
		}
	}
	return false
}

// PaperSize is the paper width class
type PaperSize string

const (
	PaperSize58mm  PaperSize = "58mm"
	PaperSize80mm  PaperSize = "80mm"
	PaperSize112mm PaperSize = "112mm"
)

// PaperSizes lists every known paper width class
var PaperSizes = []PaperSize{PaperSize58mm, PaperSize80mm, PaperSize112mm}

// IsValid reports whether p is a known paper width class
func (p PaperSize) IsValid() bool {
	for _, known := range PaperSizes {
		if p == known {
			return true
		}
	}
	return false
}

// CharsPerLine returns the font A column count for the paper width
func (p PaperSize) CharsPerLine() int {
	switch p {
	case PaperSize58mm:
		return 32
	case PaperSize112mm:
		return 64
	default:
		return 48
	}
}

// DotsPerLine returns the printable width in dots at 203 dpi
func (p PaperSize) DotsPerLine() int {
	switch p {
	case PaperSize58mm:
		return 384
	case PaperSize112mm:
		return 832
	default:
		return 576
	}
}

const (
	// MaxTimeoutMillis is the upper bound of PrinterConfig.Timeout
	MaxTimeoutMillis = 60000
	// MaxRetryCount is the upper bound of PrinterConfig.RetryCount
	MaxRetryCount = 10
)

// PrinterConfig is the persisted configuration record of one printer
type PrinterConfig struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Type             PrinterType    `json:"type"`
	ConnectionType   ConnectionType `json:"connectionType"`
	ConnectionString string         `json:"connectionString"`
	PaperSize        PaperSize      `json:"paperSize"`
	Encoding         string         `json:"encoding"`
	Timeout          int            `json:"timeout"` // milliseconds
	RetryCount       int            `json:"retryCount"`
	IsDefault        bool           `json:"isDefault"`
}

// TimeoutDuration returns the configured timeout, zero meaning transport default
func (c PrinterConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// SameTarget reports whether both configs address the same physical endpoint
func (c PrinterConfig) SameTarget(connectionType ConnectionType, connectionString string) bool {
	return c.ConnectionType == connectionType &&
		strings.EqualFold(strings.TrimSpace(c.ConnectionString), strings.TrimSpace(connectionString))
}

// PrinterConfigUpdate is a partial update of a PrinterConfig. The identifier is immutable.
type PrinterConfigUpdate struct {
	Name             *string         `json:"name,omitempty"`
	Type             *PrinterType    `json:"type,omitempty"`
	ConnectionType   *ConnectionType `json:"connectionType,omitempty"`
	ConnectionString *string         `json:"connectionString,omitempty"`
	PaperSize        *PaperSize      `json:"paperSize,omitempty"`
	Encoding         *string         `json:"encoding,omitempty"`
	Timeout          *int            `json:"timeout,omitempty"`
	RetryCount       *int            `json:"retryCount,omitempty"`
	IsDefault        *bool           `json:"isDefault,omitempty"`
}

// Apply returns a copy of base with every set field of the update merged in
func (u PrinterConfigUpdate) Apply(base PrinterConfig) PrinterConfig {
	merged := base
	if u.Name != nil {
		merged.Name = *u.Name
	}
	if u.Type != nil {
		merged.Type = *u.Type
	}
	if u.ConnectionType != nil {
		merged.ConnectionType = *u.ConnectionType
	}
	if u.ConnectionString != nil {
		merged.ConnectionString = *u.ConnectionString
	}
	if u.PaperSize != nil {
		merged.PaperSize = *u.PaperSize
	}
	if u.Encoding != nil {
		merged.Encoding = *u.Encoding
	}
	if u.Timeout != nil {
		merged.Timeout = *u.Timeout
	}
	if u.RetryCount != nil {
		merged.RetryCount = *u.RetryCount
	}
	if u.IsDefault != nil {
		merged.IsDefault = *u.IsDefault
	}
	return merged
}

// PrinterInfo is a read-only projection of a driver
type PrinterInfo struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Type             PrinterType    `json:"type"`
	ConnectionType   ConnectionType `json:"connectionType"`
	ConnectionString string         `json:"connectionString"`
	PaperSize        PaperSize      `json:"paperSize"`
	Status           PrinterStatus  `json:"status"`
	Connected        bool           `json:"connected"`
	IsDefault        bool           `json:"isDefault"`
}

// PrinterDiscoveryResult is one candidate found by discovery
type PrinterDiscoveryResult struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Type             PrinterType    `json:"type"`
	ConnectionType   ConnectionType `json:"connectionType"`
	ConnectionString string         `json:"connectionString"`
	Available        bool           `json:"available"`
}
