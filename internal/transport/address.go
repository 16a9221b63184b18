package transport

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a 6-byte link-layer device address. It is treated as opaque:
// nothing in this repository interprets its internal structure.
type Address [6]byte

// ParseAddress parses a colon- or dash-separated hex address like
// "EC:1B:82:4A:10:C5". Parsing is case-insensitive.
func ParseAddress(s string) (Address, error) {
	var a Address

	cleaned := strings.NewReplacer(":", "", "-", "").Replace(s)
	if len(cleaned) != 12 {
		return a, fmt.Errorf("invalid device address %q: want 6 hex bytes", s)
	}
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return a, fmt.Errorf("invalid device address %q: %w", s, err)
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for known-good literals; it panics on
// malformed input. Intended for tests and constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the canonical upper-case colon-separated form.
func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsZero reports whether the address is all zeroes (the unset value).
func (a Address) IsZero() bool {
	return a == Address{}
}
