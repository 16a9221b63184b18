package deviceconfig

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/uwbtools/dwmctl/internal/logging"
	"github.com/uwbtools/dwmctl/internal/protocol"
	"github.com/uwbtools/dwmctl/internal/transport"
)

// Client sends configuration messages to modules and reads their state.
// Every operation opens its own session and releases it before returning,
// whatever the outcome. Operations are not retried; callers that want
// retries wrap the call.
type Client struct {
	transport transport.Transport
}

// NewClient creates a client on top of the given transport
func NewClient(t transport.Transport) *Client {
	return &Client{transport: t}
}

// Send encodes msg and writes it to the device at addr within a scoped
// session. Encoding happens before any radio work, so a *protocol.RangeError
// never costs a connection.
func (c *Client) Send(ctx context.Context, addr transport.Address, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	session, err := c.transport.Connect(ctx, addr)
	if err != nil {
		return NewConnectError(addr.String(), err)
	}
	defer func() { _ = session.Close() }()

	return c.writeMessage(session, addr, msg.Command(), data)
}

// SendAll writes msgs to the device in order within a single session. It
// returns how many messages were written; on error that count is where the
// failure happened. All messages are encoded up front, so an invalid message
// fails the call before anything reaches the device.
func (c *Client) SendAll(ctx context.Context, addr transport.Address, msgs []protocol.Message) (int, error) {
	encoded := make([][]byte, len(msgs))
	for i, msg := range msgs {
		data, err := protocol.Encode(msg)
		if err != nil {
			return 0, fmt.Errorf("message %d (%s): %w", i, protocol.CommandName(msg.Command()), err)
		}
		encoded[i] = data
	}

	session, err := c.transport.Connect(ctx, addr)
	if err != nil {
		return 0, NewConnectError(addr.String(), err)
	}
	defer func() { _ = session.Close() }()

	for i, msg := range msgs {
		if err := c.writeMessage(session, addr, msg.Command(), encoded[i]); err != nil {
			return i, err
		}
	}
	return len(msgs), nil
}

// Read reads the current value of one command from the device at addr
// within a scoped session.
func (c *Client) Read(ctx context.Context, addr transport.Address, cmd byte) (protocol.Message, error) {
	if _, ok := protocol.CharacteristicFor(cmd); !ok {
		return nil, fmt.Errorf("unrecognized command 0x%02x", cmd)
	}

	session, err := c.transport.Connect(ctx, addr)
	if err != nil {
		return nil, NewConnectError(addr.String(), err)
	}
	defer func() { _ = session.Close() }()

	return c.readMessage(session, addr, cmd)
}

// ReadSnapshot reads every configuration characteristic of the device in a
// single session. The location characteristic is read best-effort: a node
// that has not ranged yet leaves Snapshot.Location nil rather than failing
// the whole readback.
func (c *Client) ReadSnapshot(ctx context.Context, addr transport.Address) (*Snapshot, error) {
	session, err := c.transport.Connect(ctx, addr)
	if err != nil {
		return nil, NewConnectError(addr.String(), err)
	}
	defer func() { _ = session.Close() }()

	snap := &Snapshot{Address: addr}

	reads := []struct {
		cmd   byte
		store func(protocol.Message)
	}{
		{protocol.CmdPersistedPosition, func(m protocol.Message) { snap.Position = m.(*protocol.PersistedPosition) }},
		{protocol.CmdOperationMode, func(m protocol.Message) { snap.Mode = m.(*protocol.OperationMode) }},
		{protocol.CmdNetworkID, func(m protocol.Message) { snap.Network = m.(*protocol.NetworkID) }},
		{protocol.CmdUpdateRate, func(m protocol.Message) { snap.UpdateRate = m.(*protocol.UpdateRate) }},
		{protocol.CmdLocationMode, func(m protocol.Message) { snap.LocMode = m.(*protocol.LocationMode) }},
		{protocol.CmdNodeLabel, func(m protocol.Message) { snap.Label = m.(*protocol.NodeLabel) }},
	}

	for _, r := range reads {
		msg, err := c.readMessage(session, addr, r.cmd)
		if err != nil {
			return nil, err
		}
		r.store(msg)
	}

	if msg, err := c.readMessage(session, addr, protocol.CmdLocationData); err == nil {
		snap.Location = msg.(*protocol.LocationData)
	} else {
		logging.Debug("Location readback skipped",
			zap.String("address", addr.String()),
			zap.Error(err),
		)
	}

	return snap, nil
}

// Location reads the device's last computed position
func (c *Client) Location(ctx context.Context, addr transport.Address) (*protocol.LocationData, error) {
	msg, err := c.Read(ctx, addr, protocol.CmdLocationData)
	if err != nil {
		return nil, err
	}
	return msg.(*protocol.LocationData), nil
}

// Apply configures a batch of devices, one session per device. The batch is
// best-effort: a device that fails is recorded in the report and the batch
// moves on to the next device. The report always holds one result per
// update, in the same order. When progress is non-nil it is called with each
// device's result as the batch advances.
func (c *Client) Apply(ctx context.Context, updates []Update, progress func(DeviceResult)) *ApplyReport {
	report := &ApplyReport{Results: make([]DeviceResult, 0, len(updates))}

	for _, u := range updates {
		applied, err := c.SendAll(ctx, u.Address, u.Messages)
		result := DeviceResult{
			Address: u.Address,
			Label:   u.Label,
			Applied: applied,
			Err:     err,
		}
		report.Results = append(report.Results, result)
		if progress != nil {
			progress(result)
		}

		if err != nil {
			logging.Warn("Device update failed, continuing with remaining devices",
				zap.String("address", u.Address.String()),
				zap.Int("applied", applied),
				zap.Int("total", len(u.Messages)),
				zap.Error(err),
			)
		}
	}

	return report
}

// writeMessage writes one encoded message over an open session
func (c *Client) writeMessage(session transport.Session, addr transport.Address, cmd byte, data []byte) error {
	characteristic, ok := protocol.CharacteristicFor(cmd)
	if !ok {
		return fmt.Errorf("unrecognized command 0x%02x", cmd)
	}

	logging.LogDeviceOperation(addr.String(), "write "+protocol.CommandName(cmd), data)

	if err := session.Write(characteristic, data); err != nil {
		if errors.Is(err, transport.ErrCharacteristicNotFound) {
			return NewCharacteristicError(addr.String(), cmd)
		}
		return NewWriteError(addr.String(), cmd, err)
	}
	return nil
}

// readMessage reads and decodes one command over an open session. The
// module echoes the command byte at the front of every readback, so the
// payload decodes directly.
func (c *Client) readMessage(session transport.Session, addr transport.Address, cmd byte) (protocol.Message, error) {
	characteristic, ok := protocol.CharacteristicFor(cmd)
	if !ok {
		return nil, fmt.Errorf("unrecognized command 0x%02x", cmd)
	}

	data, err := session.Read(characteristic)
	if err != nil {
		if errors.Is(err, transport.ErrCharacteristicNotFound) {
			return nil, NewCharacteristicError(addr.String(), cmd)
		}
		return nil, NewReadError(addr.String(), cmd, err)
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		return nil, NewDeviceDecodeError(addr.String(), cmd, err)
	}
	if msg.Command() != cmd {
		return nil, NewDeviceDecodeError(addr.String(), cmd,
			fmt.Errorf("readback echoed command 0x%02x, expected 0x%02x", msg.Command(), cmd))
	}
	return msg, nil
}
