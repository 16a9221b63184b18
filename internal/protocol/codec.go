package protocol

import "fmt"

// DWM1001 network node service and the GATT characteristics each command is
// written to or read from.
const (
	ServiceUUID = "680c21d9-c946-4c1f-9c11-baa1c21329e7"

	charPersistedPosition = "f0f26c9b-2c8c-49ac-ab60-fe03def1b40c"
	charOperationMode     = "3f0afd88-7770-46b0-b5e7-9fc099598964"
	charNetworkID         = "80f9d8bc-3bff-45bb-a181-2d6a37991208"
	charUpdateRate        = "7bd47f30-5602-4389-b069-8305731308b6"
	charLocationMode      = "a02b947e-df97-4516-996a-1882521e0ead"
	charNodeLabel         = "00002a00-0000-1000-8000-00805f9b34fb"
	charLocationData      = "003bbdf2-c634-4b3d-ab56-7ec889b89a37"
)

// layout describes the fixed wire layout of one command: its field width
// (excluding the command byte), the characteristic it travels over, and the
// field decoder. This table is the single source of truth for the codec.
type layout struct {
	name           string
	fieldSize      int
	characteristic string
	decode         func(fields []byte) (Message, error)
}

var layouts = map[byte]layout{
	CmdPersistedPosition: {"PersistedPosition", 13, charPersistedPosition, decodePersistedPosition},
	CmdOperationMode:     {"OperationMode", 2, charOperationMode, decodeOperationMode},
	CmdNetworkID:         {"NetworkID", 2, charNetworkID, decodeNetworkID},
	CmdUpdateRate:        {"UpdateRate", 8, charUpdateRate, decodeUpdateRate},
	CmdLocationMode:      {"LocationMode", 1, charLocationMode, decodeLocationMode},
	CmdNodeLabel:         {"NodeLabel", labelWidth, charNodeLabel, decodeNodeLabel},
	CmdLocationData:      {"LocationData", 13, charLocationData, decodeLocationData},
}

// commandNames is derived from the layout table for error formatting.
var commandNames = func() map[byte]string {
	names := make(map[byte]string, len(layouts))
	for cmd, l := range layouts {
		names[cmd] = l.name
	}
	return names
}()

// Encode serializes a message to its fixed wire form: command byte followed
// by the message's fields. Fails with a *RangeError if any field is outside
// its protocol-defined bounds.
func Encode(m Message) ([]byte, error) {
	l, ok := layouts[m.Command()]
	if !ok {
		// Unreachable for the closed variant set; guards registry drift.
		return nil, fmt.Errorf("no layout registered for command 0x%02x", m.Command())
	}

	buf := make([]byte, 1, 1+l.fieldSize)
	buf[0] = m.Command()
	buf, err := m.appendFields(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) != 1+l.fieldSize {
		return nil, fmt.Errorf("%s encoded to %d bytes, layout says %d", l.name, len(buf)-1, l.fieldSize)
	}
	return buf, nil
}

// Decode reconstructs a message from its wire form. Fails with a
// *DecodeError when the command byte is unregistered or the payload length
// does not match the command's fixed width.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty payload"}
	}
	cmd := data[0]
	l, ok := layouts[cmd]
	if !ok {
		return nil, &DecodeError{Command: cmd, Reason: fmt.Sprintf("unrecognized command byte 0x%02x", cmd)}
	}
	if len(data)-1 != l.fieldSize {
		return nil, decodeErrorf(cmd, "payload length %d, expected %d", len(data)-1, l.fieldSize)
	}
	return l.decode(data[1:])
}

// CharacteristicFor returns the GATT characteristic UUID the command is
// exchanged over, and whether the command is registered.
func CharacteristicFor(cmd byte) (string, bool) {
	l, ok := layouts[cmd]
	if !ok {
		return "", false
	}
	return l.characteristic, true
}

// EncodedSize returns the full encoded size (command byte included) of a
// registered command, and whether the command is registered.
func EncodedSize(cmd byte) (int, bool) {
	l, ok := layouts[cmd]
	if !ok {
		return 0, false
	}
	return 1 + l.fieldSize, true
}

// CommandName returns a human-readable name for a command byte.
func CommandName(cmd byte) string {
	if name, ok := commandNames[cmd]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02x)", cmd)
}

// Commands returns the registered command bytes. Order is unspecified.
func Commands() []byte {
	cmds := make([]byte, 0, len(layouts))
	for cmd := range layouts {
		cmds = append(cmds, cmd)
	}
	return cmds
}
