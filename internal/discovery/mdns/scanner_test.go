package mdns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"printer-service/internal/model"
)

func entry(instance, host string, ip string, port int, text ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, DefaultService, DefaultDomain)
	e.HostName = host
	e.Port = port
	e.Text = text
	if ip != "" {
		e.AddrIPv4 = []net.IP{net.ParseIP(ip)}
	}
	return e
}

func TestScanner_CollectsEntriesUntilTimeout(t *testing.T) {
	var gotService, gotDomain string
	browse := func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
		gotService, gotDomain = service, domain
		go func() {
			for _, e := range []*zeroconf.ServiceEntry{
				entry("EPSON TM-m30", "tm-m30.local.", "192.168.1.40", 9100, "ty=EPSON TM-m30"),
				entry("Unaddressed", "ghost.local.", "", 9100),
				entry("", "kitchen.local.", "192.168.1.41", 0),
			} {
				select {
				case entries <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}

	scanner := NewScanner(zaptest.NewLogger(t), Params{Timeout: 100 * time.Millisecond}, browse)
	results, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultService, gotService)
	assert.Equal(t, DefaultDomain, gotDomain)

	require.Len(t, results, 2)
	assert.Equal(t, model.PrinterDiscoveryResult{
		ID:               "mdns-192-168-1-40-9100",
		Name:             "EPSON TM-m30",
		Type:             model.PrinterTypeEpsonTM,
		ConnectionType:   model.ConnectionTypeNetwork,
		ConnectionString: "192.168.1.40:9100",
		Available:        true,
	}, results[0])
	assert.Equal(t, "kitchen.local", results[1].Name)
	assert.Equal(t, "192.168.1.41:9100", results[1].ConnectionString)
	assert.Equal(t, model.PrinterTypeGenericESCPOS, results[1].Type)
}

func TestScanner_ClosedChannelEndsScan(t *testing.T) {
	browse := func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
		go func() {
			entries <- entry("POS", "pos.local.", "10.0.0.3", 9100)
			close(entries)
		}()
		return nil
	}

	scanner := NewScanner(zaptest.NewLogger(t), Params{Timeout: 10 * time.Second}, browse)
	start := time.Now()
	results, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScanner_BrowseFailure(t *testing.T) {
	browse := func(context.Context, string, string, chan<- *zeroconf.ServiceEntry) error {
		return errors.New("no multicast interface")
	}
	scanner := NewScanner(zaptest.NewLogger(t), Params{Service: "_printer._tcp", Domain: "lan."}, browse)

	_, err := scanner.Scan(context.Background())
	assert.ErrorContains(t, err, "service=_printer._tcp domain=lan.")
	assert.Equal(t, "mdns", scanner.ScannerType())
}
