package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/uwbtools/dwmctl/internal/transport"
)

const (
	// NamePrefix is the advertised-name prefix DWM1001 modules use
	NamePrefix = "DW"

	// DefaultScanTimeout is the default duration of a scan window
	DefaultScanTimeout = 10 * time.Second
)

// Scanner discovers modules by listening for advertisements
type Scanner struct {
	// Timeout is the scan window duration
	Timeout time.Duration

	// Prefix filters devices by advertised name. Empty matches everything.
	Prefix string

	transport transport.Transport
}

// NewScanner creates a scanner with default settings on top of the given transport
func NewScanner(t transport.Transport) *Scanner {
	return &Scanner{
		Timeout:   DefaultScanTimeout,
		Prefix:    NamePrefix,
		transport: t,
	}
}

// ScanForDevices listens for one scan window and returns the modules seen,
// strongest signal first. Repeat sightings of the same device are merged.
func (s *Scanner) ScanForDevices(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[transport.Address]*Device)

	err := s.transport.Scan(ctx, func(adv transport.Advertisement) {
		if !s.matches(adv) {
			return
		}

		mu.Lock()
		defer mu.Unlock()

		if dev, ok := seen[adv.Address]; ok {
			dev.Sightings++
			if adv.RSSI > dev.RSSI {
				dev.RSSI = adv.RSSI
			}
			if dev.Name == "" {
				dev.Name = adv.Name
			}
			return
		}
		seen[adv.Address] = &Device{
			Address:      adv.Address,
			Name:         adv.Name,
			RSSI:         adv.RSSI,
			Sightings:    1,
			DiscoveredAt: time.Now(),
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	devices := make([]*Device, 0, len(seen))
	for _, dev := range seen {
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].RSSI != devices[j].RSSI {
			return devices[i].RSSI > devices[j].RSSI
		}
		return devices[i].Address.String() < devices[j].Address.String()
	})
	return devices, nil
}

// WaitForDevice listens until the device at addr is sighted or the scan
// window closes
func (s *Scanner) WaitForDevice(ctx context.Context, addr transport.Address) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var mu sync.Mutex
	var found *Device

	err := s.transport.Scan(ctx, func(adv transport.Advertisement) {
		if adv.Address != addr {
			return
		}
		mu.Lock()
		if found == nil {
			found = &Device{
				Address:      adv.Address,
				Name:         adv.Name,
				RSSI:         adv.RSSI,
				Sightings:    1,
				DiscoveredAt: time.Now(),
			}
		}
		mu.Unlock()
		cancel() // sighted, stop scanning
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if found == nil {
		return nil, fmt.Errorf("device %s not sighted within %s", addr, s.Timeout)
	}
	return found, nil
}

// matches applies the name filter. Nameless advertisements are dropped when
// a prefix is set; they cannot be identified as modules.
func (s *Scanner) matches(adv transport.Advertisement) bool {
	if s.Prefix == "" {
		return true
	}
	if adv.Name == "" {
		return false
	}
	return strings.HasPrefix(adv.Name, s.Prefix)
}
