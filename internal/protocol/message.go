package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Command identifier bytes (first byte of every encoded payload).
// One fixed, versioned layout per command; see the layout registry in
// codec.go for widths and characteristic bindings.
const (
	CmdPersistedPosition = 0x01 // Anchor position persisted across reboots
	CmdOperationMode     = 0x02 // Tag/anchor role and feature flags
	CmdNetworkID         = 0x03 // UWB network (PAN) identifier
	CmdUpdateRate        = 0x04 // Tag location update rates
	CmdLocationMode      = 0x05 // Location data mode selector
	CmdNodeLabel         = 0x06 // Human-readable node label
	CmdLocationData      = 0x07 // Last computed position (read-only)
)

// Coordinate bounds implied by the signed 32-bit millimetre wire format.
const (
	MaxCoordinateMeters = float64(math.MaxInt32) / 1000.0
	MinCoordinateMeters = float64(math.MinInt32) / 1000.0
)

// Update rate bounds from the module's published configuration limits.
const (
	MinUpdateRateMs = 100
	MaxUpdateRateMs = 60000
)

// labelWidth is the fixed wire width of the node label field.
const labelWidth = 16

// Message is a configuration message understood by the module. The set of
// implementations is closed: each variant owns its typed fields and its
// binary layout, registered in the codec table.
type Message interface {
	// Command returns the message's command identifier byte.
	Command() byte
	// String returns a human-readable summary of the message.
	String() string

	// appendFields serializes the message's fields (everything after the
	// command byte) onto dst. Unexported to keep the variant set closed.
	appendFields(dst []byte) ([]byte, error)
}

// NodeType selects the role a node plays in the UWB network.
type NodeType byte

const (
	NodeTag    NodeType = 0
	NodeAnchor NodeType = 1
)

func (t NodeType) String() string {
	switch t {
	case NodeTag:
		return "tag"
	case NodeAnchor:
		return "anchor"
	default:
		return fmt.Sprintf("NodeType(%d)", byte(t))
	}
}

// UWBMode selects how the node participates in UWB ranging.
type UWBMode byte

const (
	UWBOff     UWBMode = 0
	UWBPassive UWBMode = 1
	UWBActive  UWBMode = 2
)

func (m UWBMode) String() string {
	switch m {
	case UWBOff:
		return "off"
	case UWBPassive:
		return "passive"
	case UWBActive:
		return "active"
	default:
		return fmt.Sprintf("UWBMode(%d)", byte(m))
	}
}

// LocationDataMode selects what the location characteristic reports.
type LocationDataMode byte

const (
	LocationPosition          LocationDataMode = 0
	LocationDistances         LocationDataMode = 1
	LocationPositionDistances LocationDataMode = 2
)

func (m LocationDataMode) String() string {
	switch m {
	case LocationPosition:
		return "position"
	case LocationDistances:
		return "distances"
	case LocationPositionDistances:
		return "position+distances"
	default:
		return fmt.Sprintf("LocationDataMode(%d)", byte(m))
	}
}

// PersistedPosition sets the fixed coordinates of an anchor. Coordinates
// are metres, stored on the wire as signed 32-bit little-endian
// millimetres followed by a quality factor (0-100).
type PersistedPosition struct {
	X, Y, Z       float64
	QualityFactor uint8
}

func (m *PersistedPosition) Command() byte { return CmdPersistedPosition }

func (m *PersistedPosition) String() string {
	return fmt.Sprintf("PersistedPosition{x=%.3fm, y=%.3fm, z=%.3fm, qf=%d}",
		m.X, m.Y, m.Z, m.QualityFactor)
}

func (m *PersistedPosition) appendFields(dst []byte) ([]byte, error) {
	coords := []struct {
		name  string
		value float64
	}{{"x", m.X}, {"y", m.Y}, {"z", m.Z}}

	for _, c := range coords {
		mm, err := metersToMillimeters(m.Command(), c.name, c.value)
		if err != nil {
			return nil, err
		}
		dst = binary.LittleEndian.AppendUint32(dst, uint32(mm))
	}
	if m.QualityFactor > 100 {
		return nil, rangeErrorf(m.Command(), "quality_factor", "value %d exceeds maximum 100", m.QualityFactor)
	}
	return append(dst, m.QualityFactor), nil
}

func decodePersistedPosition(fields []byte) (Message, error) {
	if fields[12] > 100 {
		return nil, decodeErrorf(CmdPersistedPosition, "quality factor %d exceeds maximum 100", fields[12])
	}
	return &PersistedPosition{
		X:             millimetersToMeters(fields[0:4]),
		Y:             millimetersToMeters(fields[4:8]),
		Z:             millimetersToMeters(fields[8:12]),
		QualityFactor: fields[12],
	}, nil
}

// OperationMode configures the node role and feature flags. Wire format is
// two flag bytes; reserved bits must be zero.
//
//	byte 0: [7] anchor  [6:5] uwb mode  [4] firmware slot  [3] accelerometer
//	        [2] leds    [1] firmware update  [0] reserved
//	byte 1: [7] initiator  [6] low power  [5] location engine  [4:0] reserved
type OperationMode struct {
	Type           NodeType
	UWB            UWBMode
	FirmwareSlot   uint8 // 0 or 1
	Accelerometer  bool
	LEDs           bool
	FirmwareUpdate bool
	Initiator      bool
	LowPower       bool
	LocationEngine bool
}

func (m *OperationMode) Command() byte { return CmdOperationMode }

func (m *OperationMode) String() string {
	flags := make([]string, 0, 6)
	if m.Accelerometer {
		flags = append(flags, "accel")
	}
	if m.LEDs {
		flags = append(flags, "leds")
	}
	if m.FirmwareUpdate {
		flags = append(flags, "fwupdate")
	}
	if m.Initiator {
		flags = append(flags, "initiator")
	}
	if m.LowPower {
		flags = append(flags, "lowpower")
	}
	if m.LocationEngine {
		flags = append(flags, "le")
	}
	return fmt.Sprintf("OperationMode{%s, uwb=%s, fw=%d, flags=[%s]}",
		m.Type, m.UWB, m.FirmwareSlot, strings.Join(flags, " "))
}

func (m *OperationMode) appendFields(dst []byte) ([]byte, error) {
	if m.Type != NodeTag && m.Type != NodeAnchor {
		return nil, rangeErrorf(m.Command(), "type", "invalid node type %d", byte(m.Type))
	}
	if m.UWB > UWBActive {
		return nil, rangeErrorf(m.Command(), "uwb_mode", "invalid uwb mode %d", byte(m.UWB))
	}
	if m.FirmwareSlot > 1 {
		return nil, rangeErrorf(m.Command(), "firmware_slot", "slot must be 0 or 1, got %d", m.FirmwareSlot)
	}

	var b0, b1 byte
	b0 |= byte(m.Type) << 7
	b0 |= byte(m.UWB) << 5
	b0 |= m.FirmwareSlot << 4
	if m.Accelerometer {
		b0 |= 1 << 3
	}
	if m.LEDs {
		b0 |= 1 << 2
	}
	if m.FirmwareUpdate {
		b0 |= 1 << 1
	}
	if m.Initiator {
		b1 |= 1 << 7
	}
	if m.LowPower {
		b1 |= 1 << 6
	}
	if m.LocationEngine {
		b1 |= 1 << 5
	}
	return append(dst, b0, b1), nil
}

func decodeOperationMode(fields []byte) (Message, error) {
	b0, b1 := fields[0], fields[1]
	if b0&0x01 != 0 || b1&0x1f != 0 {
		return nil, decodeErrorf(CmdOperationMode, "reserved bits set (0x%02x 0x%02x)", b0, b1)
	}
	uwb := UWBMode(b0 >> 5 & 0x03)
	if uwb > UWBActive {
		return nil, decodeErrorf(CmdOperationMode, "invalid uwb mode %d", byte(uwb))
	}
	return &OperationMode{
		Type:           NodeType(b0 >> 7),
		UWB:            uwb,
		FirmwareSlot:   b0 >> 4 & 0x01,
		Accelerometer:  b0&(1<<3) != 0,
		LEDs:           b0&(1<<2) != 0,
		FirmwareUpdate: b0&(1<<1) != 0,
		Initiator:      b1&(1<<7) != 0,
		LowPower:       b1&(1<<6) != 0,
		LocationEngine: b1&(1<<5) != 0,
	}, nil
}

// NetworkID sets the UWB network (PAN) identifier. Zero is reserved.
type NetworkID struct {
	PANID uint16
}

func (m *NetworkID) Command() byte { return CmdNetworkID }

func (m *NetworkID) String() string {
	return fmt.Sprintf("NetworkID{pan=0x%04x}", m.PANID)
}

func (m *NetworkID) appendFields(dst []byte) ([]byte, error) {
	if m.PANID == 0 {
		return nil, rangeErrorf(m.Command(), "pan_id", "0 is reserved")
	}
	return binary.LittleEndian.AppendUint16(dst, m.PANID), nil
}

func decodeNetworkID(fields []byte) (Message, error) {
	return &NetworkID{PANID: binary.LittleEndian.Uint16(fields)}, nil
}

// UpdateRate sets how often a tag computes its location: one rate while
// moving and a slower one while stationary. Both are milliseconds, multiples
// of 100 within [100, 60000], stationary no faster than active.
type UpdateRate struct {
	ActiveMs     uint32
	StationaryMs uint32
}

func (m *UpdateRate) Command() byte { return CmdUpdateRate }

func (m *UpdateRate) String() string {
	return fmt.Sprintf("UpdateRate{active=%dms, stationary=%dms}", m.ActiveMs, m.StationaryMs)
}

func (m *UpdateRate) appendFields(dst []byte) ([]byte, error) {
	if err := validateRate(m.Command(), "active_ms", m.ActiveMs); err != nil {
		return nil, err
	}
	if err := validateRate(m.Command(), "stationary_ms", m.StationaryMs); err != nil {
		return nil, err
	}
	if m.StationaryMs < m.ActiveMs {
		return nil, rangeErrorf(m.Command(), "stationary_ms",
			"stationary rate %dms faster than active rate %dms", m.StationaryMs, m.ActiveMs)
	}
	dst = binary.LittleEndian.AppendUint32(dst, m.ActiveMs)
	return binary.LittleEndian.AppendUint32(dst, m.StationaryMs), nil
}

func validateRate(cmd byte, field string, ms uint32) error {
	if ms < MinUpdateRateMs || ms > MaxUpdateRateMs {
		return rangeErrorf(cmd, field, "%dms outside [%d, %d]", ms, MinUpdateRateMs, MaxUpdateRateMs)
	}
	if ms%100 != 0 {
		return rangeErrorf(cmd, field, "%dms is not a multiple of 100", ms)
	}
	return nil
}

func decodeUpdateRate(fields []byte) (Message, error) {
	return &UpdateRate{
		ActiveMs:     binary.LittleEndian.Uint32(fields[0:4]),
		StationaryMs: binary.LittleEndian.Uint32(fields[4:8]),
	}, nil
}

// LocationMode selects what the module reports on its location
// characteristic.
type LocationMode struct {
	Mode LocationDataMode
}

func (m *LocationMode) Command() byte { return CmdLocationMode }

func (m *LocationMode) String() string {
	return fmt.Sprintf("LocationMode{%s}", m.Mode)
}

func (m *LocationMode) appendFields(dst []byte) ([]byte, error) {
	if m.Mode > LocationPositionDistances {
		return nil, rangeErrorf(m.Command(), "mode", "invalid location data mode %d", byte(m.Mode))
	}
	return append(dst, byte(m.Mode)), nil
}

func decodeLocationMode(fields []byte) (Message, error) {
	mode := LocationDataMode(fields[0])
	if mode > LocationPositionDistances {
		return nil, decodeErrorf(CmdLocationMode, "invalid location data mode %d", fields[0])
	}
	return &LocationMode{Mode: mode}, nil
}

// NodeLabel sets the human-readable node label, a fixed 16-byte
// zero-padded printable-ASCII field on the wire.
type NodeLabel struct {
	Label string
}

func (m *NodeLabel) Command() byte { return CmdNodeLabel }

func (m *NodeLabel) String() string {
	return fmt.Sprintf("NodeLabel{%q}", m.Label)
}

func (m *NodeLabel) appendFields(dst []byte) ([]byte, error) {
	if len(m.Label) > labelWidth {
		return nil, rangeErrorf(m.Command(), "label", "%d bytes exceeds maximum %d", len(m.Label), labelWidth)
	}
	for i := 0; i < len(m.Label); i++ {
		if m.Label[i] < 0x20 || m.Label[i] > 0x7e {
			return nil, rangeErrorf(m.Command(), "label", "byte %d (0x%02x) is not printable ASCII", i, m.Label[i])
		}
	}
	field := make([]byte, labelWidth)
	copy(field, m.Label)
	return append(dst, field...), nil
}

func decodeNodeLabel(fields []byte) (Message, error) {
	end := len(fields)
	for i, b := range fields {
		if b == 0 {
			end = i
			break
		}
		if b < 0x20 || b > 0x7e {
			return nil, decodeErrorf(CmdNodeLabel, "byte %d (0x%02x) is not printable ASCII", i, b)
		}
	}
	// Everything after the terminator must be padding.
	for i := end; i < len(fields); i++ {
		if fields[i] != 0 {
			return nil, decodeErrorf(CmdNodeLabel, "garbage after label terminator at byte %d", i)
		}
	}
	return &NodeLabel{Label: string(fields[:end])}, nil
}

// LocationData is the module's last computed position. It is read-only:
// the module produces it, this client only decodes it. Same fixed-point
// layout as PersistedPosition.
type LocationData struct {
	X, Y, Z float64
	Quality uint8
}

func (m *LocationData) Command() byte { return CmdLocationData }

func (m *LocationData) String() string {
	return fmt.Sprintf("LocationData{x=%.3fm, y=%.3fm, z=%.3fm, q=%d}",
		m.X, m.Y, m.Z, m.Quality)
}

func (m *LocationData) appendFields(dst []byte) ([]byte, error) {
	coords := []struct {
		name  string
		value float64
	}{{"x", m.X}, {"y", m.Y}, {"z", m.Z}}

	for _, c := range coords {
		mm, err := metersToMillimeters(m.Command(), c.name, c.value)
		if err != nil {
			return nil, err
		}
		dst = binary.LittleEndian.AppendUint32(dst, uint32(mm))
	}
	if m.Quality > 100 {
		return nil, rangeErrorf(m.Command(), "quality", "value %d exceeds maximum 100", m.Quality)
	}
	return append(dst, m.Quality), nil
}

func decodeLocationData(fields []byte) (Message, error) {
	if fields[12] > 100 {
		return nil, decodeErrorf(CmdLocationData, "quality %d exceeds maximum 100", fields[12])
	}
	return &LocationData{
		X:       millimetersToMeters(fields[0:4]),
		Y:       millimetersToMeters(fields[4:8]),
		Z:       millimetersToMeters(fields[8:12]),
		Quality: fields[12],
	}, nil
}

// metersToMillimeters converts a coordinate to the signed 32-bit millimetre
// wire representation, failing with a RangeError when it does not fit.
func metersToMillimeters(cmd byte, field string, meters float64) (int32, error) {
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return 0, rangeErrorf(cmd, field, "value %v is not a finite number", meters)
	}
	mm := math.Round(meters * 1000)
	if mm > math.MaxInt32 || mm < math.MinInt32 {
		return 0, rangeErrorf(cmd, field, "%.3fm outside [%.3f, %.3f]",
			meters, MinCoordinateMeters, MaxCoordinateMeters)
	}
	return int32(mm), nil
}

func millimetersToMeters(b []byte) float64 {
	return float64(int32(binary.LittleEndian.Uint32(b))) / 1000.0
}
