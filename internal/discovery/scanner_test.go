package discovery

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/uwbtools/dwmctl/internal/transport"
)

// fakeTransport replays a fixed sequence of advertisements
type fakeTransport struct {
	advertisements []transport.Advertisement
}

func (f *fakeTransport) Scan(ctx context.Context, found func(transport.Advertisement)) error {
	for _, adv := range f.advertisements {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		found(adv)
	}
	// Real scans block until the window closes; replayed ones are done.
	return nil
}

func (f *fakeTransport) Connect(ctx context.Context, addr transport.Address) (transport.Session, error) {
	panic("scanner never connects")
}

func adv(addr, name string, rssi int) transport.Advertisement {
	return transport.Advertisement{
		Address: transport.MustParseAddress(addr),
		Name:    name,
		RSSI:    rssi,
	}
}

func TestScanForDevices(t *testing.T) {
	ft := &fakeTransport{advertisements: []transport.Advertisement{
		adv("EC:1B:82:4A:10:01", "DW2E4A", -70),
		adv("EC:1B:82:4A:10:02", "DW10C5", -55),
		adv("AA:BB:CC:DD:EE:FF", "FitnessTracker", -40), // filtered out
		adv("11:22:33:44:55:66", "", -30),               // nameless, filtered out
		adv("EC:1B:82:4A:10:01", "DW2E4A", -62),         // repeat, better signal
	}}

	scanner := NewScanner(ft)
	scanner.Timeout = 50 * time.Millisecond

	devices, err := scanner.ScanForDevices(context.Background())
	if err != nil {
		t.Fatalf("ScanForDevices failed: %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2: %v", len(devices), devices)
	}

	// Strongest first.
	if devices[0].Name != "DW10C5" {
		t.Errorf("first device = %v, want DW10C5 (strongest)", devices[0])
	}

	// Repeat sightings merge, keeping the best RSSI.
	second := devices[1]
	if second.Name != "DW2E4A" || second.RSSI != -62 || second.Sightings != 2 {
		t.Errorf("merged device = %+v, want DW2E4A at -62 with 2 sightings", second)
	}
}

func TestScanForDevices_NoPrefixFilter(t *testing.T) {
	ft := &fakeTransport{advertisements: []transport.Advertisement{
		adv("AA:BB:CC:DD:EE:FF", "FitnessTracker", -40),
		adv("11:22:33:44:55:66", "", -30),
	}}

	scanner := NewScanner(ft)
	scanner.Timeout = 50 * time.Millisecond
	scanner.Prefix = ""

	devices, err := scanner.ScanForDevices(context.Background())
	if err != nil {
		t.Fatalf("ScanForDevices failed: %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("unfiltered scan got %d devices, want 2", len(devices))
	}
}

func TestWaitForDevice(t *testing.T) {
	target := transport.MustParseAddress("EC:1B:82:4A:10:02")
	ft := &fakeTransport{advertisements: []transport.Advertisement{
		adv("EC:1B:82:4A:10:01", "DW2E4A", -70),
		adv("EC:1B:82:4A:10:02", "DW10C5", -55),
	}}

	scanner := NewScanner(ft)
	scanner.Timeout = 50 * time.Millisecond

	dev, err := scanner.WaitForDevice(context.Background(), target)
	if err != nil {
		t.Fatalf("WaitForDevice failed: %v", err)
	}
	if dev.Address != target {
		t.Errorf("found %s, want %s", dev.Address, target)
	}
}

func TestWaitForDevice_NotSighted(t *testing.T) {
	ft := &fakeTransport{advertisements: []transport.Advertisement{
		adv("EC:1B:82:4A:10:01", "DW2E4A", -70),
	}}

	scanner := NewScanner(ft)
	scanner.Timeout = 50 * time.Millisecond

	_, err := scanner.WaitForDevice(context.Background(), transport.MustParseAddress("EC:1B:82:4A:10:99"))
	if err == nil {
		t.Fatal("expected error for unsighted device")
	}
}

func TestDeviceString(t *testing.T) {
	dev := &Device{
		Address: transport.MustParseAddress("EC:1B:82:4A:10:C5"),
		Name:    "DW10C5",
		RSSI:    -55,
	}
	s := dev.String()
	for _, want := range []string{"EC:1B:82:4A:10:C5", "DW10C5", "-55"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}

	nameless := &Device{Address: dev.Address}
	if !strings.Contains(nameless.String(), "(no name)") {
		t.Errorf("nameless String() = %q", nameless.String())
	}
}
