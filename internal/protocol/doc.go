// Package protocol implements the DWM1001 control-point message codec.
//
// Every configuration operation the module understands is represented as a
// typed message (PersistedPosition, OperationMode, NetworkID, ...). A message
// encodes to a fixed-length byte sequence: one command identifier byte
// followed by the message's fields in a fixed order, fixed width and
// little-endian byte order. Decoding inspects the leading command byte and
// dispatches to the matching layout.
//
// The layout registry in codec.go is the single source of truth for the
// mapping between command bytes, payload widths, GATT characteristics and
// decoders. Adding a message kind means adding one registry entry plus the
// message type itself; nothing else in the repository hardcodes widths.
//
// Error contract:
//
//   - Decode fails with *DecodeError when the command byte is unrecognized,
//     the payload length does not match the command's fixed width, or a
//     field violates the wire structure (reserved bits set, garbage after
//     a label terminator).
//   - Encode fails with *RangeError when a field value lies outside the
//     protocol-defined bounds for its wire representation. Values are never
//     silently truncated or wrapped.
//
// For well-formed payloads Encode(Decode(b)) == b, and for any message with
// in-range fields Decode(Encode(m)) reproduces m up to the millimetre
// quantization of position coordinates.
package protocol
