package discovery

import (
	"fmt"
	"time"

	"github.com/uwbtools/dwmctl/internal/transport"
)

// Device represents a module sighted during a scan
type Device struct {
	// Address is the device's link-layer address
	Address transport.Address

	// Name is the advertised local name (e.g., "DW2E4A")
	Name string

	// RSSI is the strongest signal seen for this device (dBm)
	RSSI int

	// Sightings is how many advertisements were seen during the scan
	Sightings int

	// DiscoveredAt is when the device was first sighted
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	name := d.Name
	if name == "" {
		name = "(no name)"
	}
	return fmt.Sprintf("%s %s (%d dBm)", d.Address, name, d.RSSI)
}
