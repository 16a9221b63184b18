package deviceconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/uwbtools/dwmctl/internal/protocol"
	"github.com/uwbtools/dwmctl/internal/transport"
)

// fakeTransport is an in-memory Transport. Each device is a characteristic
// store; sessions are tracked so tests can assert they were released.
type fakeTransport struct {
	devices  map[transport.Address]*fakeDevice
	connects int
	sessions []*fakeSession
}

type fakeDevice struct {
	chars      map[string][]byte
	writeErr   error // injected on every write when set
	readErr    error // injected on every read when set
	writeCount int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{devices: make(map[transport.Address]*fakeDevice)}
}

func (f *fakeTransport) addDevice(addr transport.Address) *fakeDevice {
	dev := &fakeDevice{chars: make(map[string][]byte)}
	f.devices[addr] = dev
	return dev
}

func (f *fakeTransport) Scan(ctx context.Context, found func(transport.Advertisement)) error {
	for addr := range f.devices {
		found(transport.Advertisement{Address: addr, Name: "DW TEST", RSSI: -60})
	}
	return nil
}

func (f *fakeTransport) Connect(ctx context.Context, addr transport.Address) (transport.Session, error) {
	f.connects++
	dev, ok := f.devices[addr]
	if !ok {
		return nil, fmt.Errorf("no advertisement from %s: %w", addr, context.DeadlineExceeded)
	}
	s := &fakeSession{dev: dev}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// openSessions counts sessions that were handed out but never closed
func (f *fakeTransport) openSessions() int {
	open := 0
	for _, s := range f.sessions {
		if !s.closed {
			open++
		}
	}
	return open
}

type fakeSession struct {
	dev    *fakeDevice
	closed bool
}

func (s *fakeSession) Write(characteristic string, data []byte) error {
	if s.closed {
		return errors.New("write on closed session")
	}
	if s.dev.writeErr != nil {
		return s.dev.writeErr
	}
	s.dev.chars[characteristic] = append([]byte(nil), data...)
	s.dev.writeCount++
	return nil
}

func (s *fakeSession) Read(characteristic string) ([]byte, error) {
	if s.closed {
		return nil, errors.New("read on closed session")
	}
	if s.dev.readErr != nil {
		return nil, s.dev.readErr
	}
	data, ok := s.dev.chars[characteristic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrCharacteristicNotFound, characteristic)
	}
	return data, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// preload stores the encoded form of msg at its command's characteristic
func preload(t *testing.T, dev *fakeDevice, msg protocol.Message) {
	t.Helper()
	data, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("failed to encode %s: %v", msg, err)
	}
	char, ok := protocol.CharacteristicFor(msg.Command())
	if !ok {
		t.Fatalf("no characteristic for command 0x%02x", msg.Command())
	}
	dev.chars[char] = data
}

var testAddr = transport.MustParseAddress("EC:1B:82:4A:10:C5")

func TestSend_WritesEncodedMessage(t *testing.T) {
	ft := newFakeTransport()
	dev := ft.addDevice(testAddr)
	client := NewClient(ft)

	msg := &protocol.PersistedPosition{X: 1.5, Y: -2.0, Z: 0.25, QualityFactor: 80}
	if err := client.Send(context.Background(), testAddr, msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	want, _ := protocol.Encode(msg)
	char, _ := protocol.CharacteristicFor(msg.Command())
	if !bytes.Equal(dev.chars[char], want) {
		t.Errorf("device stored % x, want % x", dev.chars[char], want)
	}
	if ft.openSessions() != 0 {
		t.Errorf("%d sessions left open after Send", ft.openSessions())
	}
}

func TestSend_UnreachableDevice(t *testing.T) {
	ft := newFakeTransport() // no devices registered
	client := NewClient(ft)

	err := client.Send(context.Background(), testAddr, &protocol.LocationMode{Mode: protocol.LocationPosition})
	if err == nil {
		t.Fatal("expected error for unreachable device")
	}
	if !IsConnectionError(err) {
		t.Errorf("expected a connection error, got %v", err)
	}
	if !IsTimeoutError(err) {
		t.Errorf("connect deadline expiry should classify as timeout, got %v", err)
	}
	if ft.openSessions() != 0 {
		t.Errorf("%d sessions left open after failed connect", ft.openSessions())
	}
}

func TestSend_SessionReleasedOnWriteFailure(t *testing.T) {
	ft := newFakeTransport()
	dev := ft.addDevice(testAddr)
	dev.writeErr = errors.New("link dropped")
	client := NewClient(ft)

	err := client.Send(context.Background(), testAddr, &protocol.NetworkID{PANID: 0x1234})
	if err == nil {
		t.Fatal("expected write failure")
	}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.Type != ErrTypeWrite {
		t.Errorf("expected write error, got %v", err)
	}
	if ft.openSessions() != 0 {
		t.Errorf("%d sessions left open after write failure", ft.openSessions())
	}
}

func TestSend_InvalidMessageNeverConnects(t *testing.T) {
	ft := newFakeTransport()
	ft.addDevice(testAddr)
	client := NewClient(ft)

	err := client.Send(context.Background(), testAddr, &protocol.NetworkID{PANID: 0})
	if !protocol.IsRangeError(err) {
		t.Fatalf("expected range error for reserved PAN id, got %v", err)
	}
	if ft.connects != 0 {
		t.Errorf("encoding failure should not open a connection, got %d connects", ft.connects)
	}
}

func TestRead_DecodesReadback(t *testing.T) {
	ft := newFakeTransport()
	dev := ft.addDevice(testAddr)
	want := &protocol.OperationMode{
		Type:      protocol.NodeAnchor,
		UWB:       protocol.UWBActive,
		Initiator: true,
		LEDs:      true,
	}
	preload(t, dev, want)
	client := NewClient(ft)

	got, err := client.Read(context.Background(), testAddr, protocol.CmdOperationMode)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Read returned %v, want %v", got, want)
	}
	if ft.openSessions() != 0 {
		t.Errorf("%d sessions left open after Read", ft.openSessions())
	}
}

func TestRead_MissingCharacteristic(t *testing.T) {
	ft := newFakeTransport()
	ft.addDevice(testAddr) // empty characteristic store
	client := NewClient(ft)

	_, err := client.Read(context.Background(), testAddr, protocol.CmdNodeLabel)
	if !IsCharacteristicError(err) {
		t.Errorf("expected characteristic error, got %v", err)
	}
}

func TestRead_GarbageReadback(t *testing.T) {
	ft := newFakeTransport()
	dev := ft.addDevice(testAddr)
	char, _ := protocol.CharacteristicFor(protocol.CmdNetworkID)
	dev.chars[char] = []byte{0xff, 0x01, 0x02} // unregistered command byte
	client := NewClient(ft)

	_, err := client.Read(context.Background(), testAddr, protocol.CmdNetworkID)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.Type != ErrTypeDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
	if !protocol.IsDecodeError(errors.Unwrap(connErr)) {
		t.Errorf("decode error should wrap the codec's DecodeError, got %v", connErr.Err)
	}
}

func TestRead_EchoMismatch(t *testing.T) {
	ft := newFakeTransport()
	dev := ft.addDevice(testAddr)
	// A valid LocationMode payload stored where NetworkID should live.
	wrong, _ := protocol.Encode(&protocol.LocationMode{Mode: protocol.LocationDistances})
	char, _ := protocol.CharacteristicFor(protocol.CmdNetworkID)
	dev.chars[char] = wrong
	client := NewClient(ft)

	_, err := client.Read(context.Background(), testAddr, protocol.CmdNetworkID)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.Type != ErrTypeDecode {
		t.Errorf("expected decode error for wrong echoed command, got %v", err)
	}
}

func TestSendAll_StopsAtFirstFailure(t *testing.T) {
	ft := newFakeTransport()
	dev := ft.addDevice(testAddr)
	client := NewClient(ft)

	msgs := []protocol.Message{
		&protocol.NetworkID{PANID: 0x0c50},
		&protocol.LocationMode{Mode: protocol.LocationPosition},
		&protocol.NodeLabel{Label: "anchor-1"},
	}

	// First write succeeds, then the link drops.
	applied, err := client.SendAll(context.Background(), testAddr, msgs)
	if err != nil || applied != 3 {
		t.Fatalf("healthy SendAll = (%d, %v), want (3, nil)", applied, err)
	}

	dev.writeErr = errors.New("link dropped")
	applied, err = client.SendAll(context.Background(), testAddr, msgs)
	if err == nil {
		t.Fatal("expected failure with injected write error")
	}
	if applied != 0 {
		t.Errorf("applied = %d, want 0 (first write failed)", applied)
	}
	if ft.openSessions() != 0 {
		t.Errorf("%d sessions left open", ft.openSessions())
	}
}

func TestApply_BestEffortAcrossDevices(t *testing.T) {
	addr1 := transport.MustParseAddress("EC:1B:82:4A:10:01")
	addr2 := transport.MustParseAddress("EC:1B:82:4A:10:02") // never registered
	addr3 := transport.MustParseAddress("EC:1B:82:4A:10:03")

	ft := newFakeTransport()
	dev1 := ft.addDevice(addr1)
	dev3 := ft.addDevice(addr3)
	client := NewClient(ft)

	updates := []Update{
		{Address: addr1, Label: "anchor-1", Messages: []protocol.Message{&protocol.NetworkID{PANID: 0x0c50}}},
		{Address: addr2, Label: "anchor-2", Messages: []protocol.Message{&protocol.NetworkID{PANID: 0x0c50}}},
		{Address: addr3, Label: "anchor-3", Messages: []protocol.Message{&protocol.NetworkID{PANID: 0x0c50}}},
	}

	var notified []DeviceResult
	report := client.Apply(context.Background(), updates, func(res DeviceResult) {
		notified = append(notified, res)
	})

	if len(report.Results) != 3 {
		t.Fatalf("report has %d results, want 3", len(report.Results))
	}
	// The progress callback sees every result, in batch order.
	if len(notified) != 3 {
		t.Fatalf("progress callback fired %d times, want 3", len(notified))
	}
	for i, res := range notified {
		if res.Address != updates[i].Address {
			t.Errorf("progress %d reported %s, want %s", i, res.Address, updates[i].Address)
		}
	}
	if notified[1].Err == nil {
		t.Error("progress for the unreachable device should carry its error")
	}
	failures := report.Failures()
	if len(failures) != 1 {
		t.Fatalf("report has %d failures, want 1: %+v", len(failures), failures)
	}
	if failures[0].Address != addr2 {
		t.Errorf("failed device = %s, want %s", failures[0].Address, addr2)
	}
	if report.Succeeded() {
		t.Error("report with a failure should not report success")
	}

	// The unreachable device must not block its neighbours.
	if dev1.writeCount != 1 || dev3.writeCount != 1 {
		t.Errorf("devices 1 and 3 should each have one write, got %d and %d",
			dev1.writeCount, dev3.writeCount)
	}
	if ft.openSessions() != 0 {
		t.Errorf("%d sessions left open after batch", ft.openSessions())
	}
}

func TestReadSnapshot(t *testing.T) {
	ft := newFakeTransport()
	dev := ft.addDevice(testAddr)
	preload(t, dev, &protocol.PersistedPosition{X: 1, Y: 2, Z: 3, QualityFactor: 100})
	preload(t, dev, &protocol.OperationMode{Type: protocol.NodeAnchor, UWB: protocol.UWBActive})
	preload(t, dev, &protocol.NetworkID{PANID: 0x0c50})
	preload(t, dev, &protocol.UpdateRate{ActiveMs: 100, StationaryMs: 1000})
	preload(t, dev, &protocol.LocationMode{Mode: protocol.LocationPosition})
	preload(t, dev, &protocol.NodeLabel{Label: "anchor-1"})
	// No location data: the node has not ranged yet.
	client := NewClient(ft)

	snap, err := client.ReadSnapshot(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}

	if snap.Label == nil || snap.Label.Label != "anchor-1" {
		t.Errorf("label = %v, want anchor-1", snap.Label)
	}
	if snap.Network == nil || snap.Network.PANID != 0x0c50 {
		t.Errorf("network = %v, want pan 0x0c50", snap.Network)
	}
	if snap.Mode == nil || snap.Mode.Type != protocol.NodeAnchor {
		t.Errorf("mode = %v, want anchor", snap.Mode)
	}
	if snap.Location != nil {
		t.Errorf("location should be nil when the characteristic is absent, got %v", snap.Location)
	}
	if ft.openSessions() != 0 {
		t.Errorf("%d sessions left open after snapshot", ft.openSessions())
	}
}

func TestVerifyUpdate(t *testing.T) {
	fast := &VerificationOptions{
		MaxRetries:   1,
		InitialDelay: 0,
		RetryDelay:   time.Millisecond,
	}

	ft := newFakeTransport()
	dev := ft.addDevice(testAddr)
	client := NewClient(ft)

	u := Update{Address: testAddr, Messages: []protocol.Message{
		&protocol.NetworkID{PANID: 0x0c50},
		&protocol.NodeLabel{Label: "tag-7"},
	}}

	// Device state matches what the update would write.
	preload(t, dev, &protocol.NetworkID{PANID: 0x0c50})
	preload(t, dev, &protocol.NodeLabel{Label: "tag-7"})

	result := client.VerifyUpdate(context.Background(), u, fast)
	if !result.Success {
		t.Fatalf("verification should succeed, got %+v", result)
	}

	// Flip one value on the device and verify again.
	preload(t, dev, &protocol.NetworkID{PANID: 0x9999})
	result = client.VerifyUpdate(context.Background(), u, fast)
	if result.Success {
		t.Fatal("verification should fail on mismatched PAN id")
	}
	if len(result.Mismatches) != 1 {
		t.Errorf("mismatches = %v, want exactly one", result.Mismatches)
	}
}

func TestApplyAndVerify(t *testing.T) {
	fast := &VerificationOptions{MaxRetries: 0, InitialDelay: 0, RetryDelay: 0}

	ft := newFakeTransport()
	ft.addDevice(testAddr)
	client := NewClient(ft)

	u := Update{Address: testAddr, Messages: []protocol.Message{
		&protocol.LocationMode{Mode: protocol.LocationPositionDistances},
	}}

	result := client.ApplyAndVerify(context.Background(), u, fast)
	if !result.Success {
		t.Fatalf("apply-and-verify should succeed against the fake: %+v", result)
	}
}
