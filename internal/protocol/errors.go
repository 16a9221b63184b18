package protocol

import (
	"errors"
	"fmt"
)

// DecodeError reports a payload that cannot be decoded: unknown command
// byte, wrong payload length for the command, or malformed field content.
type DecodeError struct {
	Command byte   // Leading command byte of the offending payload (0 if absent)
	Reason  string // Human-readable description of what is wrong
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if name, ok := commandNames[e.Command]; ok {
		return fmt.Sprintf("decode %s (0x%02x): %s", name, e.Command, e.Reason)
	}
	return fmt.Sprintf("decode: %s", e.Reason)
}

// RangeError reports a field value outside the protocol-defined bounds for
// its fixed-width wire representation. Encoding fails with a RangeError
// instead of truncating or wrapping the value.
type RangeError struct {
	Command byte   // Command the field belongs to
	Field   string // Field name (e.g. "x", "pan_id")
	Reason  string // Description including the offending value and bounds
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("encode %s (0x%02x): field %s: %s",
		CommandName(e.Command), e.Command, e.Field, e.Reason)
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsRangeError reports whether err is (or wraps) a RangeError.
func IsRangeError(err error) bool {
	var re *RangeError
	return errors.As(err, &re)
}

func decodeErrorf(cmd byte, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Command: cmd, Reason: fmt.Sprintf(format, args...)}
}

func rangeErrorf(cmd byte, field, format string, args ...interface{}) *RangeError {
	return &RangeError{Command: cmd, Field: field, Reason: fmt.Sprintf(format, args...)}
}
