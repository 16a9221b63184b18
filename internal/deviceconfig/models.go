package deviceconfig

import (
	"github.com/uwbtools/dwmctl/internal/protocol"
	"github.com/uwbtools/dwmctl/internal/transport"
)

// Snapshot is a full configuration readback of a single node. Fields are nil
// when the corresponding characteristic could not be read (for example the
// location characteristic on a node that has not ranged yet).
type Snapshot struct {
	Address transport.Address

	Position   *protocol.PersistedPosition
	Mode       *protocol.OperationMode
	Network    *protocol.NetworkID
	UpdateRate *protocol.UpdateRate
	LocMode    *protocol.LocationMode
	Label      *protocol.NodeLabel
	Location   *protocol.LocationData
}

// Update is the configuration destined for one device: an ordered list of
// messages applied within a single session.
type Update struct {
	Address transport.Address

	// Label is a display name for reporting. It does not affect what is
	// written; a NodeLabel message in Messages does that.
	Label string

	Messages []protocol.Message
}

// DeviceResult is the outcome of applying an Update to one device
type DeviceResult struct {
	Address transport.Address
	Label   string

	// Applied is how many messages were written before the first failure
	Applied int

	// Err is nil when every message was applied
	Err error
}

// Failed reports whether this device's update did not complete
func (r *DeviceResult) Failed() bool {
	return r.Err != nil
}

// ApplyReport summarizes a batch apply across multiple devices
type ApplyReport struct {
	Results []DeviceResult
}

// Failures returns the results for devices whose update did not complete
func (r *ApplyReport) Failures() []DeviceResult {
	var failed []DeviceResult
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Succeeded reports whether every device in the batch was fully configured
func (r *ApplyReport) Succeeded() bool {
	return len(r.Failures()) == 0
}
