package spooler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"printer-service/internal/model"
)

type recordedCommand struct {
	name string
	args []string
}

func fakeRunner(output string, err error, calls *[]recordedCommand) func(context.Context, []byte, string, ...string) ([]byte, error) {
	return func(_ context.Context, _ []byte, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCommand{name: name, args: args})
		return []byte(output), err
	}
}

const lpstatOutput = `device for POS58: usb://Unknown/Printer?serial=ABC123
device for EPSON_TM_T20: socket://192.168.1.50:9100
device for Kitchen: socket://10.0.0.7
device for SerialPos: serial:/dev/ttyS0?baud=9600
device for Parallel: parallel:/dev/lp0
device for PDF: cups-pdf:/
lpstat: some unrelated line
`

func TestScanner_ParsesLpstat(t *testing.T) {
	var calls []recordedCommand
	scanner := NewScanner(zaptest.NewLogger(t),
		WithGOOS("linux"),
		WithRunner(fakeRunner(lpstatOutput, nil, &calls)),
	)

	results, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "lpstat", calls[0].name)
	assert.Equal(t, []string{"-v"}, calls[0].args)

	type target struct {
		name       string
		typ        model.PrinterType
		connection model.ConnectionType
		address    string
	}
	var got []target
	for _, r := range results {
		got = append(got, target{r.Name, r.Type, r.ConnectionType, r.ConnectionString})
		assert.True(t, r.Available)
		assert.True(t, strings.HasPrefix(r.ID, "spooler-"))
	}

	assert.Equal(t, []target{
		{"POS58", model.PrinterTypeGenericESCPOS, model.ConnectionTypeUSB, "POS58"},
		{"EPSON_TM_T20", model.PrinterTypeEpsonTM, model.ConnectionTypeNetwork, "192.168.1.50:9100"},
		{"Kitchen", model.PrinterTypeGenericESCPOS, model.ConnectionTypeNetwork, "10.0.0.7:9100"},
		{"SerialPos", model.PrinterTypeGenericESCPOS, model.ConnectionTypeSerial, "/dev/ttyS0@9600"},
		{"Parallel", model.PrinterTypeGenericESCPOS, model.ConnectionTypeUSB, "/dev/lp0"},
	}, got)
}

func TestScanner_NoDestinations(t *testing.T) {
	var calls []recordedCommand
	scanner := NewScanner(zaptest.NewLogger(t),
		WithGOOS("darwin"),
		WithRunner(fakeRunner("lpstat: No destinations added.", errors.New("exit status 1"), &calls)),
	)

	results, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScanner_LpstatFailure(t *testing.T) {
	var calls []recordedCommand
	scanner := NewScanner(zaptest.NewLogger(t),
		WithGOOS("linux"),
		WithRunner(fakeRunner("", errors.New("executable file not found"), &calls)),
	)

	_, err := scanner.Scan(context.Background())
	assert.ErrorContains(t, err, "lpstat failed")
}

func TestScanner_ParsesGetPrinter(t *testing.T) {
	output := `[
		{"Name":"POS-89E","PortName":"USB001","DriverName":"CBX Thermal"},
		{"Name":"Bar","PortName":"IP_192.168.0.20","DriverName":"EPSON TM-T88V Receipt"},
		{"Name":"Drawer","PortName":"COM3:","DriverName":"Generic / Text Only"},
		{"Name":"Microsoft Print to PDF","PortName":"PORTPROMPT:","DriverName":"Microsoft Print To PDF"},
		{"Name":"Front Desk","PortName":"USB002","DriverName":"POS-80"}
	]`
	var calls []recordedCommand
	scanner := NewScanner(zaptest.NewLogger(t),
		WithGOOS("windows"),
		WithRunner(fakeRunner(output, nil, &calls)),
	)

	results, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "powershell", calls[0].name)
	assert.Contains(t, calls[0].args[len(calls[0].args)-1], "Get-Printer")

	require.Len(t, results, 3, "virtual printers and queue names with spaces are skipped")
	assert.Equal(t, model.PrinterTypeCbxPos89e, results[0].Type)
	assert.Equal(t, model.ConnectionTypeUSB, results[0].ConnectionType)
	assert.Equal(t, "POS-89E", results[0].ConnectionString)

	assert.Equal(t, model.PrinterTypeEpsonTM, results[1].Type)
	assert.Equal(t, model.ConnectionTypeNetwork, results[1].ConnectionType)
	assert.Equal(t, "192.168.0.20:9100", results[1].ConnectionString)

	assert.Equal(t, model.ConnectionTypeSerial, results[2].ConnectionType)
	assert.Equal(t, "COM3", results[2].ConnectionString)
}

func TestParseGetPrinter_SingleObject(t *testing.T) {
	queues, err := parseGetPrinter([]byte(`{"Name":"POS58","PortName":"USB001","DriverName":"POS58"}`))
	require.NoError(t, err)
	require.Len(t, queues, 1)
	assert.Equal(t, "POS58", queues[0].name)

	queues, err = parseGetPrinter([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, queues)

	_, err = parseGetPrinter([]byte("[{"))
	assert.Error(t, err)
}

func TestScanner_IsAvailable(t *testing.T) {
	logger := zaptest.NewLogger(t)
	assert.True(t, NewScanner(logger, WithGOOS("linux")).IsAvailable())
	assert.True(t, NewScanner(logger, WithGOOS("windows")).IsAvailable())
	assert.False(t, NewScanner(logger, WithGOOS("plan9")).IsAvailable())
}
