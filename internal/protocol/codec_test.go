package protocol

import (
	"bytes"
	"math"
	"reflect"
	"testing"
)

func TestEncode_GoldenLayouts(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{
			name: "persisted position 10,10,0",
			msg:  &PersistedPosition{X: 10.0, Y: 10.0, Z: 0.0, QualityFactor: 100},
			want: []byte{
				0x01,
				0x10, 0x27, 0x00, 0x00, // 10000 mm
				0x10, 0x27, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x64,
			},
		},
		{
			name: "negative coordinate",
			msg:  &PersistedPosition{X: -1.5, Y: 0, Z: 0, QualityFactor: 0},
			want: []byte{
				0x01,
				0x24, 0xfa, 0xff, 0xff, // -1500 mm, two's complement LE
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00,
			},
		},
		{
			name: "anchor initiator operation mode",
			msg: &OperationMode{
				Type:      NodeAnchor,
				UWB:       UWBActive,
				LEDs:      true,
				Initiator: true,
			},
			want: []byte{0x02, 0xc4, 0x80},
		},
		{
			name: "tag operation mode with accelerometer",
			msg: &OperationMode{
				Type:           NodeTag,
				UWB:            UWBActive,
				Accelerometer:  true,
				LEDs:           true,
				LocationEngine: true,
			},
			want: []byte{0x02, 0x4c, 0x20},
		},
		{
			name: "network id",
			msg:  &NetworkID{PANID: 0xc0de},
			want: []byte{0x03, 0xde, 0xc0},
		},
		{
			name: "update rate",
			msg:  &UpdateRate{ActiveMs: 100, StationaryMs: 1000},
			want: []byte{0x04, 0x64, 0x00, 0x00, 0x00, 0xe8, 0x03, 0x00, 0x00},
		},
		{
			name: "location mode",
			msg:  &LocationMode{Mode: LocationPositionDistances},
			want: []byte{0x05, 0x02},
		},
		{
			name: "node label zero padded",
			msg:  &NodeLabel{Label: "DW-A1"},
			want: append([]byte{0x06, 'D', 'W', '-', 'A', '1'}, make([]byte, 11)...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % x, want % x", got, tt.want)
			}
			if size, ok := EncodedSize(tt.msg.Command()); !ok || len(got) != size {
				t.Errorf("encoded length %d does not match EncodedSize %d", len(got), size)
			}
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	// Coordinates picked as exact millimetre multiples so float comparison
	// is exact after the fixed-point round trip.
	messages := []Message{
		&PersistedPosition{X: 10.0, Y: 10.0, Z: 0.0, QualityFactor: 100},
		&PersistedPosition{X: -3.275, Y: 0.001, Z: 2.5, QualityFactor: 50},
		&OperationMode{Type: NodeAnchor, UWB: UWBActive, Initiator: true, LEDs: true},
		&OperationMode{Type: NodeTag, UWB: UWBPassive, LowPower: true, FirmwareSlot: 1},
		&NetworkID{PANID: 0x1234},
		&UpdateRate{ActiveMs: 200, StationaryMs: 2000},
		&LocationMode{Mode: LocationDistances},
		&NodeLabel{Label: "anchor-kitchen"},
		&LocationData{X: 1.25, Y: -0.5, Z: 2.0, Quality: 87},
	}

	for _, msg := range messages {
		t.Run(msg.String(), func(t *testing.T) {
			encoded, err := Encode(msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(decoded, msg) {
				t.Errorf("Decode(Encode(m)) = %v, want %v", decoded, msg)
			}

			// encode(decode(bytes)) == bytes for well-formed payloads
			reencoded, err := Encode(decoded)
			if err != nil {
				t.Fatalf("re-Encode() error = %v", err)
			}
			if !bytes.Equal(reencoded, encoded) {
				t.Errorf("Encode(Decode(b)) = % x, want % x", reencoded, encoded)
			}
		})
	}
}

func TestDecode_PositionQuantization(t *testing.T) {
	// Arbitrary (non-millimetre-aligned) coordinates must survive the round
	// trip within the 0.5 mm quantization error.
	msg := &PersistedPosition{X: 10.0001, Y: 9.99996, Z: 0.00049, QualityFactor: 10}

	encoded, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if encoded[0] != CmdPersistedPosition {
		t.Fatalf("first byte = 0x%02x, want position command 0x%02x", encoded[0], CmdPersistedPosition)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	pos := decoded.(*PersistedPosition)

	const eps = 0.0005 // half a millimetre
	for _, c := range []struct {
		name      string
		got, want float64
	}{
		{"x", pos.X, msg.X},
		{"y", pos.Y, msg.Y},
		{"z", pos.Z, msg.Z},
	} {
		if math.Abs(c.got-c.want) > eps {
			t.Errorf("%s = %v, want %v within %v", c.name, c.got, c.want, eps)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty payload", []byte{}},
		{"unrecognized command byte", []byte{0xff, 0x00, 0x00}},
		{"unregistered zero command", []byte{0x00}},
		{"position payload too short", []byte{CmdPersistedPosition, 0x01, 0x02}},
		{"position payload too long", append([]byte{CmdPersistedPosition}, make([]byte, 14)...)},
		{"operation mode truncated", []byte{CmdOperationMode, 0x80}},
		{"operation mode reserved bits", []byte{CmdOperationMode, 0x81, 0x00}},
		{"position quality above 100", func() []byte {
			b := append([]byte{CmdPersistedPosition}, make([]byte, 13)...)
			b[13] = 101
			return b
		}()},
		{"location data quality above 100", func() []byte {
			b := append([]byte{CmdLocationData}, make([]byte, 13)...)
			b[13] = 200
			return b
		}()},
		{"location mode out of range", []byte{CmdLocationMode, 0x03}},
		{"label with interior garbage", func() []byte {
			b := append([]byte{CmdNodeLabel, 'a', 0x00}, make([]byte, 14)...)
			b[5] = 'x'
			return b
		}()},
		{"label with control byte", append([]byte{CmdNodeLabel, 0x07}, make([]byte, 15)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.data)
			if err == nil {
				t.Fatalf("Decode() = %v, want error", msg)
			}
			if !IsDecodeError(err) {
				t.Errorf("error %v is not a DecodeError", err)
			}
		})
	}
}

func TestEncode_RangeErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"coordinate far outside int32 millimetres", &PersistedPosition{X: 1e9}},
		{"negative coordinate overflow", &PersistedPosition{Y: -1e9}},
		{"NaN coordinate", &PersistedPosition{Z: math.NaN()}},
		{"quality factor above 100", &PersistedPosition{QualityFactor: 101}},
		{"pan id zero", &NetworkID{PANID: 0}},
		{"update rate too fast", &UpdateRate{ActiveMs: 50, StationaryMs: 1000}},
		{"update rate too slow", &UpdateRate{ActiveMs: 100, StationaryMs: 70000}},
		{"update rate not multiple of 100", &UpdateRate{ActiveMs: 150, StationaryMs: 1000}},
		{"stationary faster than active", &UpdateRate{ActiveMs: 1000, StationaryMs: 500}},
		{"label too long", &NodeLabel{Label: "this-label-is-far-too-long"}},
		{"label not ascii", &NodeLabel{Label: "küche"}},
		{"invalid location data mode", &LocationMode{Mode: 7}},
		{"invalid uwb mode", &OperationMode{UWB: 3}},
		{"invalid firmware slot", &OperationMode{FirmwareSlot: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			if err == nil {
				t.Fatalf("Encode() = % x, want error", data)
			}
			if !IsRangeError(err) {
				t.Errorf("error %v is not a RangeError", err)
			}
		})
	}
}

func TestCharacteristicFor(t *testing.T) {
	for _, cmd := range Commands() {
		uuid, ok := CharacteristicFor(cmd)
		if !ok || uuid == "" {
			t.Errorf("command 0x%02x (%s) has no characteristic binding", cmd, CommandName(cmd))
		}
	}

	if _, ok := CharacteristicFor(0xee); ok {
		t.Error("CharacteristicFor(0xee) = ok, want missing")
	}
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		cmd  byte
		want string
	}{
		{CmdPersistedPosition, "PersistedPosition"},
		{CmdOperationMode, "OperationMode"},
		{CmdLocationData, "LocationData"},
		{0xab, "Unknown(0xab)"},
	}

	for _, tt := range tests {
		if got := CommandName(tt.cmd); got != tt.want {
			t.Errorf("CommandName(0x%02x) = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func BenchmarkEncodePersistedPosition(b *testing.B) {
	msg := &PersistedPosition{X: 10.0, Y: 10.0, Z: 0.0, QualityFactor: 100}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(msg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodePersistedPosition(b *testing.B) {
	data, err := Encode(&PersistedPosition{X: 10.0, Y: 10.0, Z: 0.0, QualityFactor: 100})
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
