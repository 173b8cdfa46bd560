// internal/protocol/usb_connection.go
package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"printer-service/internal/model"
)

// USBContextFunc creates a libusb context
type USBContextFunc func() *gousb.Context

// OpenUSBContext calls newContext, gousb.NewContext when nil. gousb panics
// when libusb cannot initialize, e.g. without usbfs, and that panic is
// returned as an error.
func OpenUSBContext(newContext USBContextFunc) (usbCtx *gousb.Context, err error) {
	if newContext == nil {
		newContext = gousb.NewContext
	}
	defer func() {
		if r := recover(); r != nil {
			usbCtx = nil
			err = fmt.Errorf("libusb unavailable: %v", r)
		}
	}()
	return newContext(), nil
}

// USBConnection implements DeviceProtocol over libusb bulk endpoints
type USBConnection struct {
	config     *USBConfig
	newContext USBContextFunc
	ctx        *gousb.Context
	device   *gousb.Device
	intf     *gousb.Interface
	release  func()
	outEndpt *gousb.OutEndpoint
	inEndpt  *gousb.InEndpoint
	logger   *zap.Logger
	mutex    sync.RWMutex
	isOpen   bool
	stats    ProtocolStats
}

// NewUSBConnection creates a new USB connection
func NewUSBConnection(config *USBConfig, logger *zap.Logger) *USBConnection {
	return &USBConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "usb"),
			zap.String("vendor_id", config.VendorID),
			zap.String("product_id", config.ProductID),
		),
	}
}

// Open finds the device, claims its interface and resolves bulk endpoints
func (uc *USBConnection) Open(ctx context.Context) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if uc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	vendorID, err := ParseHexID(uc.config.VendorID)
	if err != nil {
		return fmt.Errorf("invalid vendor ID: %w", err)
	}
	productID, err := ParseHexID(uc.config.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	usbCtx, err := OpenUSBContext(uc.newContext)
	if err != nil {
		return err
	}

	device, err := uc.findAndOpenDevice(usbCtx, vendorID, productID)
	if err != nil {
		usbCtx.Close()
		return fmt.Errorf("failed to find USB device: %w", err)
	}

	// The kernel usblp driver usually owns printer-class interfaces
	if err := device.SetAutoDetach(true); err != nil {
		uc.logger.Debug("Auto-detach not supported", zap.Error(err))
	}

	intf, release, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		usbCtx.Close()
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	outEndpt, inEndpt, err := openBulkEndpoints(intf)
	if err != nil {
		release()
		device.Close()
		usbCtx.Close()
		return err
	}
	if inEndpt == nil {
		uc.logger.Debug("No bulk in endpoint, status reads disabled")
	}

	uc.ctx = usbCtx
	uc.device = device
	uc.intf = intf
	uc.release = release
	uc.outEndpt = outEndpt
	uc.inEndpt = inEndpt
	uc.isOpen = true
	uc.stats.IsConnected = true
	uc.stats.LastActivity = time.Now()

	uc.logger.Info("USB connection opened")
	return nil
}

// openBulkEndpoints picks the first bulk out and bulk in endpoint of the interface
func openBulkEndpoints(intf *gousb.Interface) (*gousb.OutEndpoint, *gousb.InEndpoint, error) {
	var outEndpt *gousb.OutEndpoint
	var inEndpt *gousb.InEndpoint

	for _, desc := range intf.Setting.Endpoints {
		if desc.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch desc.Direction {
		case gousb.EndpointDirectionOut:
			if outEndpt == nil {
				endpoint, err := intf.OutEndpoint(desc.Number)
				if err != nil {
					return nil, nil, fmt.Errorf("failed to open out endpoint %d: %w", desc.Number, err)
				}
				outEndpt = endpoint
			}
		case gousb.EndpointDirectionIn:
			if inEndpt == nil {
				if endpoint, err := intf.InEndpoint(desc.Number); err == nil {
					inEndpt = endpoint
				}
			}
		}
	}

	if outEndpt == nil {
		return nil, nil, fmt.Errorf("USB interface has no bulk out endpoint")
	}
	return outEndpt, inEndpt, nil
}

// Close releases the interface and the device
func (uc *USBConnection) Close() error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil
	}

	if uc.release != nil {
		uc.release()
		uc.release = nil
	}
	uc.intf = nil

	var closeErr error
	if uc.device != nil {
		closeErr = uc.device.Close()
		uc.device = nil
	}
	if uc.ctx != nil {
		_ = uc.ctx.Close()
		uc.ctx = nil
	}

	uc.outEndpt = nil
	uc.inEndpt = nil
	uc.isOpen = false
	uc.stats.IsConnected = false

	if closeErr != nil {
		return fmt.Errorf("failed to close USB device: %w", closeErr)
	}
	uc.logger.Info("USB connection closed")
	return nil
}

// IsOpen returns whether the connection is open
func (uc *USBConnection) IsOpen() bool {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	return uc.isOpen && uc.device != nil && uc.outEndpt != nil
}

// Write writes data to the bulk out endpoint
func (uc *USBConnection) Write(ctx context.Context, data []byte) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen || uc.outEndpt == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	writeCtx := ctx
	if uc.config.Timeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, uc.config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	n, err := uc.outEndpt.WriteContext(writeCtx, data)
	if err != nil {
		uc.stats.ErrorCount++
		uc.logger.Error("USB write failed", zap.Error(err))
		return fmt.Errorf("failed to write to USB device: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	uc.stats.recordWrite(n, time.Since(startTime))
	uc.logger.Debug("USB write completed", zap.Int("bytes", n))
	return nil
}

// Read reads data from the bulk in endpoint
func (uc *USBConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil, ErrNotOpen
	}
	if uc.inEndpt == nil {
		return nil, ErrReadUnsupported
	}

	buffer := make([]byte, maxBytes)
	n, err := uc.inEndpt.ReadContext(ctx, buffer)
	if err != nil {
		uc.stats.ErrorCount++
		return nil, fmt.Errorf("failed to read from USB device: %w", err)
	}

	uc.stats.recordRead(n)
	return buffer[:n], nil
}

// GetProtocolType returns the protocol type
func (uc *USBConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeUSB
}

// Ping tests the connection
func (uc *USBConnection) Ping(ctx context.Context) error {
	return uc.Write(ctx, pingCommand)
}

// ParseHexID parses a hex ID string (0x1234 or 1234)
func ParseHexID(hexStr string) (gousb.ID, error) {
	hexStr = strings.TrimPrefix(strings.TrimPrefix(hexStr, "0x"), "0X")

	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}
	return gousb.ID(id), nil
}

// findAndOpenDevice opens the first device matching VID/PID and, if set, the serial number
func (uc *USBConnection) findAndOpenDevice(usbCtx *gousb.Context, vendorID, productID gousb.ID) (*gousb.Device, error) {
	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vendorID && desc.Product == productID
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var selected *gousb.Device
	for _, device := range devices {
		if selected == nil && uc.matchesSerial(device) {
			selected = device
			continue
		}
		device.Close()
	}

	if selected == nil {
		return nil, fmt.Errorf("USB device not found (VID: %04X, PID: %04X)", vendorID, productID)
	}
	return selected, nil
}

func (uc *USBConnection) matchesSerial(device *gousb.Device) bool {
	if uc.config.SerialNumber == "" {
		return true
	}
	serial, err := device.SerialNumber()
	return err == nil && strings.EqualFold(serial, uc.config.SerialNumber)
}
