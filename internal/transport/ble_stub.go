//go:build !linux

package transport

import (
	"context"
	"errors"
	"time"
)

// BLE is only functional on Linux (the go-ble HCI backend). This stub keeps
// the rest of the repository compiling elsewhere; NewBLE reports the
// limitation at runtime.
type BLE struct {
	ConnectTimeout time.Duration
}

// NewBLE always fails on non-Linux platforms.
func NewBLE() (*BLE, error) {
	return nil, errors.New("BLE transport requires Linux (HCI)")
}

// Scan implements Transport.
func (t *BLE) Scan(ctx context.Context, found func(Advertisement)) error {
	return errors.New("BLE transport requires Linux (HCI)")
}

// Connect implements Transport.
func (t *BLE) Connect(ctx context.Context, addr Address) (Session, error) {
	return nil, errors.New("BLE transport requires Linux (HCI)")
}
