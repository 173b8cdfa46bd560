package protocol

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"printer-service/internal/model"
)

func TestFactory_CreateProtocol(t *testing.T) {
	factory := NewFactory(DefaultSettings(), zaptest.NewLogger(t))

	tests := []struct {
		name     string
		cfg      model.PrinterConfig
		expected interface{}
	}{
		{"usb device", model.PrinterConfig{ConnectionType: model.ConnectionTypeUSB, ConnectionString: "04b8:0202"}, &USBConnection{}},
		{"usb file", model.PrinterConfig{ConnectionType: model.ConnectionTypeUSB, ConnectionString: "/dev/usb/lp0"}, &DeviceFileConnection{}},
		{"usb queue", model.PrinterConfig{ConnectionType: model.ConnectionTypeUSB, ConnectionString: "POS80"}, &SpoolerConnection{}},
		{"serial", model.PrinterConfig{ConnectionType: model.ConnectionTypeSerial, ConnectionString: "/dev/ttyUSB0@19200"}, &SerialConnection{}},
		{"network", model.PrinterConfig{ConnectionType: model.ConnectionTypeNetwork, ConnectionString: "10.0.0.5:9100"}, &TCPConnection{}},
		{"bluetooth rfcomm", model.PrinterConfig{ConnectionType: model.ConnectionTypeBluetooth, ConnectionString: "/dev/rfcomm0"}, &SerialConnection{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proto, err := factory.CreateProtocol(tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.expected, proto)
			assert.False(t, proto.IsOpen())
		})
	}
}

func TestFactory_SerialSettings(t *testing.T) {
	factory := NewFactory(DefaultSettings(), zaptest.NewLogger(t))

	proto, err := factory.CreateProtocol(model.PrinterConfig{
		ConnectionType:   model.ConnectionTypeSerial,
		ConnectionString: "/dev/ttyS1@19200",
		Timeout:          1500,
	})
	require.NoError(t, err)

	serialConn := proto.(*SerialConnection)
	assert.Equal(t, "/dev/ttyS1", serialConn.config.Port)
	assert.Equal(t, 19200, serialConn.config.BaudRate)
	assert.Equal(t, 8, serialConn.config.DataBits)
	assert.Equal(t, int64(1500), serialConn.config.Timeout.Milliseconds())
	assert.Equal(t, model.ConnectionTypeSerial, serialConn.GetProtocolType())
}

func TestFactory_Rejects(t *testing.T) {
	factory := NewFactory(DefaultSettings(), zaptest.NewLogger(t))

	_, err := factory.CreateProtocol(model.PrinterConfig{ConnectionType: model.ConnectionTypeBluetooth, ConnectionString: "00:11:22:33:44:55"})
	assert.ErrorContains(t, err, "RFCOMM")

	_, err = factory.CreateProtocol(model.PrinterConfig{ConnectionType: model.ConnectionTypeNetwork, ConnectionString: "no-port"})
	assert.Error(t, err)

	_, err = factory.CreateProtocol(model.PrinterConfig{ConnectionType: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported protocol type")
}

func TestSpoolerConnection_WriteSubmitsRawJob(t *testing.T) {
	var calls [][]string
	var submitted []byte
	runner := func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		if name == "lp" {
			submitted = stdin
		}
		return []byte("ok"), nil
	}

	conn := NewSpoolerConnection("POS80", runner, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, conn.Open(ctx))
	require.NoError(t, conn.Write(ctx, []byte{0x1B, 0x40}))

	assert.Equal(t, []byte{0x1B, 0x40}, submitted)
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"lpstat", "-p", "POS80"}, calls[0])
	assert.Equal(t, []string{"lp", "-d", "POS80", "-o", "raw"}, calls[1])

	_, err := conn.Read(ctx, 1)
	assert.ErrorIs(t, err, ErrReadUnsupported)
}

func TestSpoolerConnection_UnknownQueue(t *testing.T) {
	runner := func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
		return []byte("lpstat: Invalid destination name"), errors.New("exit status 1")
	}

	conn := NewSpoolerConnection("missing", runner, zaptest.NewLogger(t))
	err := conn.Open(context.Background())
	assert.ErrorContains(t, err, "unavailable")
	assert.False(t, conn.IsOpen())
}
