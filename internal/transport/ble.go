//go:build linux

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"go.uber.org/zap"

	"github.com/uwbtools/dwmctl/internal/logging"
)

// BLE is the production Transport on top of a Linux HCI device.
type BLE struct {
	// ConnectTimeout bounds session establishment. Zero means
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration

	mu  sync.Mutex
	dev ble.Device
}

// NewBLE opens the default HCI device.
func NewBLE() (*BLE, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to open HCI device: %w", err)
	}
	return &BLE{dev: dev}, nil
}

// Scan reports advertisements until ctx expires. Duplicate sightings of the
// same device are suppressed by the radio stack.
func (t *BLE) Scan(ctx context.Context, found func(Advertisement)) error {
	err := t.dev.Scan(ctx, false, func(a ble.Advertisement) {
		addr, perr := ParseAddress(a.Addr().String())
		if perr != nil {
			logging.Debug("Skipping advertisement with unparsable address",
				zap.String("addr", a.Addr().String()),
			)
			return
		}
		found(Advertisement{
			Address: addr,
			Name:    a.LocalName(),
			RSSI:    a.RSSI(),
		})
	})

	// Running out the scan window is the success path.
	if err == context.DeadlineExceeded || err == context.Canceled {
		return nil
	}
	return err
}

// Connect dials addr and discovers its GATT profile. The returned session
// must be closed by the caller.
func (t *BLE) Connect(ctx context.Context, addr Address) (Session, error) {
	timeout := t.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t.mu.Lock()
	client, err := t.dev.Dial(ctx, ble.NewAddr(addr.String()))
	t.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return nil, fmt.Errorf("failed to discover services on %s: %w", addr, err)
	}

	logging.Debug("Session established",
		zap.String("address", addr.String()),
		zap.Int("services", len(profile.Services)),
	)
	return &bleSession{addr: addr, client: client, profile: profile}, nil
}

type bleSession struct {
	addr    Address
	client  ble.Client
	profile *ble.Profile

	closeOnce sync.Once
	closeErr  error
}

func (s *bleSession) Write(characteristic string, data []byte) error {
	c, err := s.find(characteristic)
	if err != nil {
		return err
	}
	if err := s.client.WriteCharacteristic(c, data, false); err != nil {
		return fmt.Errorf("write to %s on %s: %w", characteristic, s.addr, err)
	}
	logging.LogRawBytes("characteristic written", data)
	return nil
}

func (s *bleSession) Read(characteristic string) ([]byte, error) {
	c, err := s.find(characteristic)
	if err != nil {
		return nil, err
	}
	data, err := s.client.ReadCharacteristic(c)
	if err != nil {
		return nil, fmt.Errorf("read of %s on %s: %w", characteristic, s.addr, err)
	}
	logging.LogRawBytes("characteristic read", data)
	return data, nil
}

func (s *bleSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.CancelConnection()
		logging.Debug("Session closed", zap.String("address", s.addr.String()))
	})
	return s.closeErr
}

func (s *bleSession) find(characteristic string) (*ble.Characteristic, error) {
	uuid, err := ble.Parse(characteristic)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic uuid %q: %w", characteristic, err)
	}
	c := s.profile.FindCharacteristic(ble.NewCharacteristic(uuid))
	if c == nil {
		return nil, fmt.Errorf("device %s: %w: %s", s.addr, ErrCharacteristicNotFound, characteristic)
	}
	return c, nil
}
