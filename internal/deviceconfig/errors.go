package deviceconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error types for device configuration operations

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeConnect indicates the session to the device could not be established
	ErrTypeConnect ErrorType = iota
	// ErrTypeTimeout indicates the operation ran out of time
	ErrTypeTimeout
	// ErrTypeWrite indicates a characteristic write failed mid-session
	ErrTypeWrite
	// ErrTypeRead indicates a characteristic read failed mid-session
	ErrTypeRead
	// ErrTypeCharacteristic indicates the device does not expose the expected characteristic
	ErrTypeCharacteristic
	// ErrTypeDecode indicates the device returned bytes the codec rejected
	ErrTypeDecode
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConnect:
		return "Connection Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeWrite:
		return "Write Error"
	case ErrTypeRead:
		return "Read Error"
	case ErrTypeCharacteristic:
		return "Characteristic Error"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ConnectionError represents an error that occurred during device communication
type ConnectionError struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
	Address string    // Device address (for context)
	Command byte      // Command being exchanged when the error occurred (0 if none)
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectError creates a session-establishment error, classifying context
// expiry as a timeout
func NewConnectError(address string, err error) *ConnectionError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ConnectionError{
			Type:    ErrTypeTimeout,
			Message: "device did not answer within the connection timeout",
			Err:     err,
			Address: address,
		}
	}
	return &ConnectionError{
		Type:    ErrTypeConnect,
		Message: "failed to establish session",
		Err:     err,
		Address: address,
	}
}

// NewWriteError creates a characteristic write error
func NewWriteError(address string, cmd byte, err error) *ConnectionError {
	return &ConnectionError{
		Type:    ErrTypeWrite,
		Message: "characteristic write failed",
		Err:     err,
		Address: address,
		Command: cmd,
	}
}

// NewReadError creates a characteristic read error
func NewReadError(address string, cmd byte, err error) *ConnectionError {
	return &ConnectionError{
		Type:    ErrTypeRead,
		Message: "characteristic read failed",
		Err:     err,
		Address: address,
		Command: cmd,
	}
}

// NewCharacteristicError creates an error for a command the device does not expose
func NewCharacteristicError(address string, cmd byte) *ConnectionError {
	return &ConnectionError{
		Type:    ErrTypeCharacteristic,
		Message: fmt.Sprintf("device does not expose a characteristic for command 0x%02x", cmd),
		Address: address,
		Command: cmd,
	}
}

// NewDeviceDecodeError wraps a codec rejection of bytes the device returned
func NewDeviceDecodeError(address string, cmd byte, err error) *ConnectionError {
	return &ConnectionError{
		Type:    ErrTypeDecode,
		Message: "device returned an unparsable payload",
		Err:     err,
		Address: address,
		Command: cmd,
	}
}

// IsConnectionError checks if an error is any session-level failure
// (connect, timeout, write, read)
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Type == ErrTypeConnect ||
			connErr.Type == ErrTypeTimeout ||
			connErr.Type == ErrTypeWrite ||
			connErr.Type == ErrTypeRead
	}
	return false
}

// IsTimeoutError checks if an error is a timeout
func IsTimeoutError(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Type == ErrTypeTimeout
	}
	return false
}

// IsCharacteristicError checks if the device lacks the expected characteristic
func IsCharacteristicError(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Type == ErrTypeCharacteristic
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch connErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The device did not respond in time.",
			"Troubleshooting:",
			"  • Check that the module is powered on",
			"  • Move the adapter closer to the module",
			"  • The module may be connected to another central - disconnect it first",
			"  • Try increasing the connection timeout",
		}, "\n")

	case ErrTypeConnect:
		return strings.Join([]string{
			"The session could not be established.",
			"Troubleshooting:",
			"  • Verify the device address with a scan",
			"  • Check that the adapter is up (hciconfig hci0 up)",
			"  • The module only accepts one connection at a time",
			"  • Power-cycle the module if it stopped advertising",
		}, "\n")

	case ErrTypeWrite, ErrTypeRead:
		return strings.Join([]string{
			"The session dropped mid-operation.",
			"Troubleshooting:",
			"  • Move the adapter closer to the module",
			"  • Retry the operation - the link may have faded briefly",
			"  • Check for interference from other 2.4 GHz radios",
		}, "\n")

	case ErrTypeCharacteristic:
		return strings.Join([]string{
			"The device does not expose the expected characteristic.",
			"This usually means the address does not belong to a DWM1001 module.",
			"Troubleshooting:",
			"  • Run a scan and check the advertised name (DW...)",
			"  • Check the module firmware version",
		}, "\n")

	case ErrTypeDecode:
		return strings.Join([]string{
			"The device returned bytes this client could not parse.",
			"This may indicate a firmware incompatibility.",
			"Troubleshooting:",
			"  • Check the module firmware version",
			"  • Re-read with DWMCTL_LOG_LEVEL=debug to inspect the raw bytes",
		}, "\n")

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		return err.Error()
	}

	switch connErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnect:
		return "Cannot reach device - is it advertising?"
	case ErrTypeWrite:
		return "Write failed - session dropped"
	case ErrTypeRead:
		return "Read failed - session dropped"
	case ErrTypeCharacteristic:
		return "Device is not a recognized module"
	case ErrTypeDecode:
		return "Device returned an unparsable payload"
	default:
		return connErr.Message
	}
}
