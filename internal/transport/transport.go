package transport

import (
	"context"
	"errors"
	"time"
)

// ErrCharacteristicNotFound is wrapped by Session operations when the
// connected device does not expose the requested characteristic. Callers
// detect it with errors.Is.
var ErrCharacteristicNotFound = errors.New("characteristic not found")

// DefaultConnectTimeout bounds session establishment when the caller does
// not configure an explicit timeout. The underlying radio stack has no
// useful default of its own, so this is always applied.
const DefaultConnectTimeout = 10 * time.Second

// Advertisement is a device sighting produced during a scan.
type Advertisement struct {
	Address Address
	Name    string // Advertised local name, may be empty
	RSSI    int    // Signal strength in dBm at sighting time
}

// Session is an open link to a single device. A session supports one
// in-flight operation at a time; callers that share a session across
// goroutines must serialize access themselves.
//
// Close must be called on every exit path once a session is obtained.
// Close is idempotent.
type Session interface {
	// Write writes data to the characteristic with the given UUID.
	Write(characteristic string, data []byte) error
	// Read reads the current value of the characteristic with the given UUID.
	Read(characteristic string) ([]byte, error)
	// Close tears the session down and releases the link.
	Close() error
}

// Transport is the capability set required of a wireless (or test) link.
type Transport interface {
	// Scan reports device sightings to found until ctx expires. A scan that
	// runs to its deadline is a successful scan.
	Scan(ctx context.Context, found func(Advertisement)) error
	// Connect opens a session to the device at addr. The returned session
	// must be closed by the caller.
	Connect(ctx context.Context, addr Address) (Session, error)
}
