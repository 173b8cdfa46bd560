package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"printer-service/internal/model"
)

type fakeScanner struct {
	name      string
	available bool
	results   []model.PrinterDiscoveryResult
	err       error
	delay     time.Duration
}

func (f *fakeScanner) ScannerType() string { return f.name }
func (f *fakeScanner) IsAvailable() bool   { return f.available }

func (f *fakeScanner) Scan(ctx context.Context) ([]model.PrinterDiscoveryResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.results, f.err
}

func usbResult(id, connection string) model.PrinterDiscoveryResult {
	return model.PrinterDiscoveryResult{
		ID:               id,
		Name:             id,
		Type:             model.PrinterTypeGenericESCPOS,
		ConnectionType:   model.ConnectionTypeUSB,
		ConnectionString: connection,
		Available:        true,
	}
}

func TestManager_DiscoverMergesAndDedupes(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t), time.Second)
	manager.RegisterScanner(&fakeScanner{name: "usb", available: true, results: []model.PrinterDiscoveryResult{
		usbResult("usb-1", "0416:5011"),
	}})
	manager.RegisterScanner(&fakeScanner{name: "spooler", available: true, delay: 10 * time.Millisecond, results: []model.PrinterDiscoveryResult{
		usbResult("spooler-dup", " 0416:5011 "),
		usbResult("spooler-pos", "POS58"),
	}})

	results := manager.Discover(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "usb-1", results[0].ID, "first scanner in registration order wins")
	assert.Equal(t, "spooler-pos", results[1].ID)
}

func TestManager_DiscoverAbsorbsFailures(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t), 20*time.Millisecond)
	manager.RegisterScanner(&fakeScanner{name: "broken", available: true, err: errors.New("libusb: access denied")})
	manager.RegisterScanner(&fakeScanner{name: "slow", available: true, delay: time.Second, results: []model.PrinterDiscoveryResult{
		usbResult("late", "late"),
	}})
	manager.RegisterScanner(&fakeScanner{name: "absent", available: false, results: []model.PrinterDiscoveryResult{
		usbResult("never", "never"),
	}})

	start := time.Now()
	results := manager.Discover(context.Background())
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "per-scanner timeout bounds the slow scanner")
}

func TestManager_DiscoverWithoutScanners(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t), 0)
	results := manager.Discover(context.Background())
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestManager_ScanByType(t *testing.T) {
	manager := NewManager(zaptest.NewLogger(t), time.Second)
	manager.RegisterScanner(&fakeScanner{name: "usb", available: true, results: []model.PrinterDiscoveryResult{
		usbResult("a", "0416:5011"),
		usbResult("b", "0416:5011"),
	}})
	manager.RegisterScanner(&fakeScanner{name: "mdns", available: false})

	results, err := manager.ScanByType(context.Background(), "usb")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = manager.ScanByType(context.Background(), "mdns")
	assert.ErrorContains(t, err, "not available")
	_, err = manager.ScanByType(context.Background(), "bluetooth")
	assert.ErrorContains(t, err, "not found")

	assert.Equal(t, []string{"usb"}, manager.AvailableScanners())
}

func TestGuessPrinterType(t *testing.T) {
	tests := []struct {
		texts []string
		want  model.PrinterType
	}{
		{[]string{"CBX POS-89E"}, model.PrinterTypeCbxPos89e},
		{[]string{"", "pos89 thermal"}, model.PrinterTypeCbxPos89e},
		{[]string{"EPSON TM-T20III Receipt"}, model.PrinterTypeEpsonTM},
		{[]string{"Seiko Epson Corporation"}, model.PrinterTypeEpsonTM},
		{[]string{"POS58 Printer"}, model.PrinterTypeGenericESCPOS},
		{nil, model.PrinterTypeGenericESCPOS},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GuessPrinterType(tt.texts...), tt.texts)
	}
}

func TestLooksLikePrinter(t *testing.T) {
	assert.True(t, LooksLikePrinter("Xprinter XP-58"))
	assert.True(t, LooksLikePrinter("", "Thermal Receipt"))
	assert.True(t, LooksLikePrinter("Winbond POS Printer"))
	assert.False(t, LooksLikePrinter("Logitech USB Receiver"))
	assert.False(t, LooksLikePrinter())

	assert.True(t, IsVirtualPrinter("Microsoft Print to PDF"))
	assert.True(t, IsVirtualPrinter("Fax"))
	assert.False(t, IsVirtualPrinter("POS58"))
}

func TestLookupVendor(t *testing.T) {
	vendor, ok := LookupVendor(0x04B8)
	require.True(t, ok)
	assert.Equal(t, model.PrinterTypeEpsonTM, vendor.Type)
	name, ok := vendor.Model(0x0202)
	assert.True(t, ok)
	assert.Equal(t, "TM-T88IV", name)

	_, ok = vendor.Model(0xFFFF)
	assert.False(t, ok)
	_, ok = LookupVendor(0x046D)
	assert.False(t, ok)
}
