package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUSBTarget(t *testing.T) {
	tests := []struct {
		name       string
		connection string
		kind       USBTargetKind
		check      func(t *testing.T, target USBTarget)
		wantErr    bool
	}{
		{
			name:       "vid pid",
			connection: "04B8:0202",
			kind:       USBTargetDevice,
			check: func(t *testing.T, target USBTarget) {
				assert.Equal(t, "04b8", target.VendorID)
				assert.Equal(t, "0202", target.ProductID)
				assert.Empty(t, target.SerialNumber)
			},
		},
		{
			name:       "vid pid serial with hex prefix",
			connection: "0x0416:0x5011:ABC123",
			kind:       USBTargetDevice,
			check: func(t *testing.T, target USBTarget) {
				assert.Equal(t, "0416", target.VendorID)
				assert.Equal(t, "ABC123", target.SerialNumber)
			},
		},
		{
			name:       "device file",
			connection: "/dev/usb/lp0",
			kind:       USBTargetFile,
			check: func(t *testing.T, target USBTarget) {
				assert.Equal(t, "/dev/usb/lp0", target.Path)
			},
		},
		{
			name:       "queue name",
			connection: "POS-80",
			kind:       USBTargetQueue,
			check: func(t *testing.T, target USBTarget) {
				assert.Equal(t, "POS-80", target.Queue)
			},
		},
		{name: "empty", connection: "  ", wantErr: true},
		{name: "too long", connection: "printer-" + string(make([]byte, 70)), wantErr: true},
		{name: "queue with spaces", connection: "front desk", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := ParseUSBTarget(tt.connection)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, target.Kind)
			tt.check(t, target)
		})
	}
}

func TestParseSerialTarget(t *testing.T) {
	port, baud, err := ParseSerialTarget("/dev/ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", port)
	assert.Zero(t, baud)

	port, baud, err = ParseSerialTarget("COM3@115200")
	require.NoError(t, err)
	assert.Equal(t, "COM3", port)
	assert.Equal(t, 115200, baud)

	_, _, err = ParseSerialTarget("/dev/ttyS0@12345")
	assert.ErrorContains(t, err, "unsupported baud rate")

	_, _, err = ParseSerialTarget("@9600")
	assert.Error(t, err)
}

func TestParseNetworkTarget(t *testing.T) {
	tests := []struct {
		connection string
		host       string
		port       int
		wantErr    bool
	}{
		{"192.168.1.87:9100", "192.168.1.87", 9100, false},
		{"printer.local:1", "printer.local", 1, false},
		{"[fe80::1]:9100", "fe80::1", 9100, false},
		{"192.168.1.87", "", 0, true},
		{"192.168.1.87:0", "", 0, true},
		{"192.168.1.87:65536", "", 0, true},
		{":9100", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.connection, func(t *testing.T) {
			host, port, err := ParseNetworkTarget(tt.connection)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
		})
	}
}

func TestIsMACAddress(t *testing.T) {
	assert.True(t, IsMACAddress("00:11:22:AA:bb:CC"))
	assert.True(t, IsMACAddress("00-11-22-33-44-55"))
	assert.False(t, IsMACAddress("/dev/rfcomm0"))
	assert.False(t, IsMACAddress("00:11:22:33:44"))
}

func TestParseHexID(t *testing.T) {
	id, err := ParseHexID("0x04B8")
	require.NoError(t, err)
	assert.EqualValues(t, 0x04B8, id)

	_, err = ParseHexID("zzzz")
	assert.Error(t, err)
}
