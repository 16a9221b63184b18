package deviceconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewConnectError_ClassifiesTimeout(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
	}{
		{"deadline exceeded", context.DeadlineExceeded, ErrTypeTimeout},
		{"wrapped deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), ErrTypeTimeout},
		{"plain failure", errors.New("no route"), ErrTypeConnect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connErr := NewConnectError("EC:1B:82:4A:10:C5", tt.err)
			if connErr.Type != tt.wantType {
				t.Errorf("type = %v, want %v", connErr.Type, tt.wantType)
			}
			if !errors.Is(connErr, tt.err) {
				t.Error("classified error should wrap the original")
			}
		})
	}
}

func TestConnectionError_Error(t *testing.T) {
	withCause := NewWriteError("EC:1B:82:4A:10:C5", 0x03, errors.New("link dropped"))
	if !strings.Contains(withCause.Error(), "link dropped") {
		t.Errorf("error string should include the cause: %q", withCause.Error())
	}

	withoutCause := NewCharacteristicError("EC:1B:82:4A:10:C5", 0x03)
	if strings.Contains(withoutCause.Error(), "caused by") {
		t.Errorf("error without cause should not mention one: %q", withoutCause.Error())
	}
}

func TestErrorPredicates(t *testing.T) {
	timeout := NewConnectError("a", context.DeadlineExceeded)
	write := NewWriteError("a", 0x01, errors.New("x"))
	char := NewCharacteristicError("a", 0x01)

	if !IsConnectionError(timeout) || !IsConnectionError(write) {
		t.Error("timeouts and write failures are connection errors")
	}
	if IsConnectionError(char) {
		t.Error("a missing characteristic is not a connection error")
	}
	if !IsTimeoutError(timeout) || IsTimeoutError(write) {
		t.Error("IsTimeoutError should match only timeouts")
	}
	if IsConnectionError(errors.New("plain")) {
		t.Error("plain errors are not connection errors")
	}
}

func TestTroubleshootingHints(t *testing.T) {
	// Every classified error type should produce actionable advice.
	errs := []error{
		NewConnectError("a", errors.New("x")),
		NewConnectError("a", context.DeadlineExceeded),
		NewWriteError("a", 0x01, errors.New("x")),
		NewReadError("a", 0x01, errors.New("x")),
		NewCharacteristicError("a", 0x01),
		NewDeviceDecodeError("a", 0x01, errors.New("x")),
	}

	for _, err := range errs {
		hint := GetTroubleshootingHint(err)
		if hint == "" {
			t.Errorf("no hint for %v", err)
		}
		short := GetShortErrorMessage(err)
		if short == "" || strings.Contains(short, "caused by") {
			t.Errorf("short message should be concise, got %q", short)
		}
	}

	if GetTroubleshootingHint(errors.New("plain")) == "" {
		t.Error("unclassified errors still deserve a generic hint")
	}
}
